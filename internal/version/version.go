// Package version models Unity editor versions such as 2022.3.10f1.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Stream is the release stream letter of a version.
type Stream byte

const (
	StreamAlpha Stream = 'a'
	StreamBeta  Stream = 'b'
	StreamFinal Stream = 'f'
	StreamPatch Stream = 'p'
)

func (s Stream) rank() int {
	switch s {
	case StreamAlpha:
		return 0
	case StreamBeta:
		return 1
	case StreamFinal:
		return 2
	case StreamPatch:
		return 3
	}
	return -1
}

// Version is an immutable editor version value.
type Version struct {
	Major        int
	Minor        int
	Patch        int
	Stream       Stream
	StreamNumber int
}

// Train identifies a major.minor release line.
type Train struct {
	Major int
	Minor int
}

func (t Train) String() string {
	return fmt.Sprintf("%d.%d", t.Major, t.Minor)
}

const pattern = `(\d{1,4})\.(\d{1,3})\.(\d{1,3})([abfpABFP])(\d{1,3})`

var (
	exactRegex    = regexp.MustCompile(`^` + pattern + `$`)
	embeddedRegex = regexp.MustCompile(pattern)
)

// Parse parses a version string of the form NNNN.N.N[abfp]N.
func Parse(raw string) (Version, error) {
	m := exactRegex.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Version{}, fmt.Errorf("not a version: %q", raw)
	}
	return fromMatch(m), nil
}

// Find extracts the first version-shaped substring of text.
func Find(text string) (Version, bool) {
	m := embeddedRegex.FindStringSubmatch(text)
	if m == nil {
		return Version{}, false
	}
	return fromMatch(m), true
}

// ParseLoose accepts either an exact version or a name that embeds one,
// such as an install folder called "Unity 2021.3.5f1".
func ParseLoose(raw string) (Version, bool) {
	if v, err := Parse(raw); err == nil {
		return v, true
	}
	return Find(raw)
}

// MustParse is Parse for constants and tests.
func MustParse(raw string) Version {
	v, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func fromMatch(m []string) Version {
	atoi := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	return Version{
		Major:        atoi(m[1]),
		Minor:        atoi(m[2]),
		Patch:        atoi(m[3]),
		Stream:       Stream(strings.ToLower(m[4])[0]),
		StreamNumber: atoi(m[5]),
	}
}

// IsZero reports whether v is the zero value.
func (v Version) IsZero() bool {
	return v == Version{}
}

func (v Version) String() string {
	if v.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d%c%d", v.Major, v.Minor, v.Patch, v.Stream, v.StreamNumber)
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty text yields the
// zero version.
func (v *Version) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*v = Version{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Train returns the major.minor pair of v.
func (v Version) Train() Train {
	return Train{Major: v.Major, Minor: v.Minor}
}

// SameTrain reports whether v and o share major and minor.
func (v Version) SameTrain(o Version) bool {
	return v.Major == o.Major && v.Minor == o.Minor
}

// Compare returns -1, 0 or 1 ordering by major, minor, patch, stream rank and
// stream number.
func (v Version) Compare(o Version) int {
	pairs := [][2]int{
		{v.Major, o.Major},
		{v.Minor, o.Minor},
		{v.Patch, o.Patch},
		{v.Stream.rank(), o.Stream.rank()},
		{v.StreamNumber, o.StreamNumber},
	}
	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

// Newest returns the greatest version in vs, or the zero value when empty.
func Newest(vs []Version) Version {
	var best Version
	for i, v := range vs {
		if i == 0 || best.Less(v) {
			best = v
		}
	}
	return best
}

// Closest picks the candidate in desired's train with the smallest
// non-negative patch delta. When nothing sits at or above the desired patch
// the nearest lower patch is used. Equal patches resolve to the newest by full
// order. ok is false when no candidate shares the train.
func Closest(desired Version, candidates []Version) (Version, bool) {
	var (
		best  Version
		found bool
	)
	for _, c := range candidates {
		if !c.SameTrain(desired) {
			continue
		}
		if !found || closerThan(desired, c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func closerThan(desired, a, b Version) bool {
	aAbove, bAbove := a.Patch >= desired.Patch, b.Patch >= desired.Patch
	if aAbove != bAbove {
		return aAbove
	}
	da, db := abs(a.Patch-desired.Patch), abs(b.Patch-desired.Patch)
	if da != db {
		return da < db
	}
	return b.Less(a)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
