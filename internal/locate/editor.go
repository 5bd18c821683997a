// Package locate discovers Unity editor installs, the Unity Hub executable
// and the editor version a built game was produced with.
package locate

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"fontbake/internal/version"
)

const (
	// EditorPathEnv names an explicit editor executable.
	EditorPathEnv = "UNITY_EDITOR_PATH"
	// EditorsRootEnv names an additional directory holding versioned installs.
	EditorsRootEnv = "UNITY_EDITORS_ROOT"
	// HubPathEnv names an explicit Unity Hub executable.
	HubPathEnv = "UNITY_HUB_PATH"
)

var (
	goos      = runtime.GOOS
	lookupEnv = os.LookupEnv
	homeDir   = os.UserHomeDir
)

// Install is a discovered editor. It only lives for the duration of a scan.
type Install struct {
	Version        version.Version `json:"version"`
	ExecutablePath string          `json:"executable"`
	Root           string          `json:"root"`
}

// EditorRelPath returns the executable path relative to a versioned install folder.
func EditorRelPath() string {
	switch goos {
	case "windows":
		return filepath.Join("Editor", "Unity.exe")
	case "darwin":
		return filepath.Join("Unity.app", "Contents", "MacOS", "Unity")
	default:
		return filepath.Join("Editor", "Unity")
	}
}

// DefaultEditorRoots lists the platform's usual Hub install locations.
func DefaultEditorRoots() []string {
	switch goos {
	case "windows":
		var roots []string
		for _, env := range []string{"ProgramFiles", "ProgramW6432"} {
			if v, ok := lookupEnv(env); ok && v != "" {
				roots = append(roots, filepath.Join(v, "Unity", "Hub", "Editor"), filepath.Join(v, "Unity", "Editor"))
			}
		}
		roots = append(roots, `C:\Program Files\Unity\Hub\Editor`)
		return dedupeStrings(roots)
	case "darwin":
		return []string{"/Applications/Unity/Hub/Editor", "/Applications/Unity"}
	default:
		var roots []string
		if home, err := homeDir(); err == nil {
			roots = append(roots, filepath.Join(home, "Unity", "Hub", "Editor"))
		}
		return append(roots, "/opt/unity/editors", "/opt/Unity/Hub/Editor")
	}
}

// EditorRoots orders the directories to scan: override, UNITY_EDITORS_ROOT,
// then the platform defaults.
func EditorRoots(override string) []string {
	var roots []string
	if s := strings.TrimSpace(override); s != "" {
		roots = append(roots, s)
	}
	if v, ok := lookupEnv(EditorsRootEnv); ok && strings.TrimSpace(v) != "" {
		roots = append(roots, strings.TrimSpace(v))
	}
	roots = append(roots, DefaultEditorRoots()...)
	return dedupeStrings(roots)
}

// DiscoverEditors scans roots for versioned install folders containing the
// editor executable. Results are newest first, ties broken by path, with
// duplicates removed by executable path.
func DiscoverEditors(roots []string) []Install {
	seen := map[string]struct{}{}
	var installs []Install

	add := func(root, dir string) {
		v, ok := version.ParseLoose(filepath.Base(dir))
		if !ok {
			return
		}
		exe := filepath.Join(dir, EditorRelPath())
		if info, err := os.Stat(exe); err != nil || info.IsDir() {
			return
		}
		key := pathKey(exe)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		installs = append(installs, Install{Version: v, ExecutablePath: filepath.Clean(exe), Root: root})
	}

	for _, root := range roots {
		if root == "" {
			continue
		}
		// A root may itself be a versioned install folder.
		add(root, root)

		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			add(root, filepath.Join(root, entry.Name()))
		}
	}

	SortInstalls(installs)
	return installs
}

// SortInstalls orders installs newest first, ties broken by path.
func SortInstalls(installs []Install) {
	sort.SliceStable(installs, func(i, j int) bool {
		if c := installs[i].Version.Compare(installs[j].Version); c != 0 {
			return c > 0
		}
		return installs[i].ExecutablePath < installs[j].ExecutablePath
	})
}

// FindExactVersion returns the install matching want exactly.
func FindExactVersion(installs []Install, want version.Version) (Install, bool) {
	for _, inst := range installs {
		if inst.Version == want {
			return inst, true
		}
	}
	return Install{}, false
}

// FindLatestInstalled returns the newest install.
func FindLatestInstalled(installs []Install) (Install, bool) {
	if len(installs) == 0 {
		return Install{}, false
	}
	best := installs[0]
	for _, inst := range installs[1:] {
		if best.Version.Less(inst.Version) {
			best = inst
		}
	}
	return best, true
}

// InstallFolderVersion derives the version from the install folder that
// contains an editor executable, e.g. .../2022.3.10f1/Editor/Unity.exe.
func InstallFolderVersion(executable string) (version.Version, bool) {
	dir := filepath.Dir(filepath.Clean(executable))
	for i := 0; i < 4 && dir != "" && dir != filepath.Dir(dir); i++ {
		if v, ok := version.ParseLoose(filepath.Base(dir)); ok {
			return v, true
		}
		dir = filepath.Dir(dir)
	}
	return version.Version{}, false
}

// InstallFolder strips the editor relative path from executable, returning
// the versioned install folder, or "" when executable is not laid out that way.
func InstallFolder(executable string) string {
	clean := filepath.Clean(executable)
	rel := string(filepath.Separator) + EditorRelPath()
	if !strings.HasSuffix(pathKey(clean), pathKey(rel)) {
		return ""
	}
	return clean[:len(clean)-len(rel)]
}

// IsDirectChild reports whether dir sits immediately inside root.
func IsDirectChild(root, dir string) bool {
	return pathKey(filepath.Dir(filepath.Clean(dir))) == pathKey(root)
}

// Versions extracts the versions of installs in order.
func Versions(installs []Install) []version.Version {
	out := make([]version.Version, len(installs))
	for i, inst := range installs {
		out[i] = inst.Version
	}
	return out
}

func pathKey(p string) string {
	p = filepath.Clean(p)
	if goos == "windows" || goos == "darwin" {
		return strings.ToLower(p)
	}
	return p
}

func dedupeStrings(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		key := pathKey(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
