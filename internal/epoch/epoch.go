// Package epoch maps editor versions to the automation strategy that works
// for that generation of the editor's scripting API.
package epoch

import (
	"fmt"
	"strings"

	"fontbake/internal/version"
)

// Epoch is a non-overlapping era of editor versions.
type Epoch int

const (
	Legacy Epoch = iota + 1
	Mid
	Modern
)

// All lists every epoch in ascending order.
var All = []Epoch{Legacy, Mid, Modern}

func (e Epoch) String() string {
	switch e {
	case Legacy:
		return "legacy"
	case Mid:
		return "mid"
	case Modern:
		return "modern"
	}
	return fmt.Sprintf("epoch(%d)", int(e))
}

// MarshalText implements encoding.TextMarshaler.
func (e Epoch) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// Mode is an epoch selection input. ModeAuto defers to version resolution.
type Mode int

const (
	ModeAuto Mode = iota
	ModeLegacy
	ModeMid
	ModeModern
)

func (m Mode) String() string {
	if m == ModeAuto {
		return "auto"
	}
	if e, ok := m.Epoch(); ok {
		return e.String()
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Epoch returns the forced epoch for non-auto modes.
func (m Mode) Epoch() (Epoch, bool) {
	switch m {
	case ModeLegacy:
		return Legacy, true
	case ModeMid:
		return Mid, true
	case ModeModern:
		return Modern, true
	}
	return 0, false
}

// ParseMode accepts auto, legacy, mid or modern (case-insensitive). Empty
// means auto.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return ModeAuto, nil
	case "legacy":
		return ModeLegacy, nil
	case "mid":
		return ModeMid, nil
	case "modern":
		return ModeModern, nil
	}
	return ModeAuto, fmt.Errorf("unknown epoch %q (want auto, legacy, mid or modern)", raw)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ForVersion applies the fixed boundary rules: 2023 and later is Modern, which
// includes the 6000+ numbering scheme; 2021 and 2022 are Mid; everything older
// is Legacy.
func ForVersion(v version.Version) Epoch {
	switch {
	case v.Major >= 2023:
		return Modern
	case v.Major >= 2021:
		return Mid
	default:
		return Legacy
	}
}
