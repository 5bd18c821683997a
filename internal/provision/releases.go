package provision

import (
	"regexp"
	"sort"
	"strings"

	"fontbake/internal/version"
)

// Release is one entry of the Hub's release list.
type Release struct {
	Version   version.Version
	LTS       bool
	Changeset string
}

var changesetRegex = regexp.MustCompile(`\b([0-9a-f]{12})\b`)

// parseReleaseList extracts releases from Hub output. Lines without a
// version are ignored; duplicates keep the first occurrence.
func parseReleaseList(output string) []Release {
	seen := map[version.Version]bool{}
	var releases []Release
	for _, line := range strings.Split(output, "\n") {
		v, ok := version.Find(line)
		if !ok || seen[v] {
			continue
		}
		seen[v] = true
		rel := Release{Version: v, LTS: strings.Contains(strings.ToUpper(line), "LTS")}
		rest := strings.Replace(line, v.String(), "", 1)
		if m := changesetRegex.FindStringSubmatch(rest); m != nil {
			rel.Changeset = m[1]
		}
		releases = append(releases, rel)
	}
	return sortReleases(releases)
}

type releaseSelector func(releases []Release, desired version.Version, preferLTS bool) (Release, bool)

// releaseSelectors run in order; the first hit wins.
var releaseSelectors = []releaseSelector{
	selectExactRelease,
	selectClosestRelease,
	selectNewestRelease,
}

func selectRelease(releases []Release, desired version.Version, preferLTS bool) (Release, bool) {
	for _, sel := range releaseSelectors {
		if rel, ok := sel(releases, desired, preferLTS); ok {
			return rel, true
		}
	}
	return Release{}, false
}

func selectExactRelease(releases []Release, desired version.Version, _ bool) (Release, bool) {
	if desired.IsZero() {
		return Release{}, false
	}
	for _, rel := range releases {
		if rel.Version == desired {
			return rel, true
		}
	}
	return Release{}, false
}

func selectClosestRelease(releases []Release, desired version.Version, _ bool) (Release, bool) {
	if desired.IsZero() {
		return Release{}, false
	}
	versions := make([]version.Version, len(releases))
	for i, rel := range releases {
		versions[i] = rel.Version
	}
	best, ok := version.Closest(desired, versions)
	if !ok {
		return Release{}, false
	}
	for _, rel := range releases {
		if rel.Version == best {
			return rel, true
		}
	}
	return Release{}, false
}

// selectNewestRelease only applies without a desired version. Final-stream
// releases are preferred, and LTS ones when preferLTS is set and any exist.
func selectNewestRelease(releases []Release, desired version.Version, preferLTS bool) (Release, bool) {
	if !desired.IsZero() || len(releases) == 0 {
		return Release{}, false
	}
	pool := releases
	if preferLTS {
		if lts := filterReleases(pool, func(r Release) bool { return r.LTS }); len(lts) > 0 {
			pool = lts
		}
	}
	if final := filterReleases(pool, func(r Release) bool { return r.Version.Stream == version.StreamFinal }); len(final) > 0 {
		pool = final
	}
	best := pool[0]
	for _, rel := range pool[1:] {
		if best.Version.Less(rel.Version) {
			best = rel
		}
	}
	return best, true
}

func filterReleases(in []Release, keep func(Release) bool) []Release {
	var out []Release
	for _, r := range in {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// knownTrains lists distinct trains, newest first, for error messages.
func knownTrains(vs []version.Version) []string {
	seen := map[version.Train]bool{}
	var trains []version.Train
	for _, v := range vs {
		if !seen[v.Train()] {
			seen[v.Train()] = true
			trains = append(trains, v.Train())
		}
	}
	sort.Slice(trains, func(i, j int) bool {
		if trains[i].Major != trains[j].Major {
			return trains[i].Major > trains[j].Major
		}
		return trains[i].Minor > trains[j].Minor
	})
	out := make([]string, len(trains))
	for i, t := range trains {
		out[i] = t.String()
	}
	return out
}
