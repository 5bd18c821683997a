package locate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrHubNotFound reports that no Unity Hub executable could be located.
var ErrHubNotFound = errors.New("unity hub not found")

// DefaultHubPaths lists the platform's usual Unity Hub executable locations.
func DefaultHubPaths() []string {
	switch goos {
	case "windows":
		var out []string
		for _, env := range []string{"ProgramFiles", "ProgramW6432", "LOCALAPPDATA"} {
			if v, ok := lookupEnv(env); ok && v != "" {
				out = append(out, filepath.Join(v, "Unity Hub", "Unity Hub.exe"))
			}
		}
		return append(out, `C:\Program Files\Unity Hub\Unity Hub.exe`)
	case "darwin":
		return []string{"/Applications/Unity Hub.app/Contents/MacOS/Unity Hub"}
	default:
		var out []string
		if home, err := homeDir(); err == nil {
			out = append(out,
				filepath.Join(home, "Applications", "Unity Hub.AppImage"),
				filepath.Join(home, "Applications", "UnityHub.AppImage"),
			)
		}
		return append(out, "/usr/bin/unityhub", "/opt/unityhub/unityhub", "/opt/UnityHub/UnityHub.AppImage")
	}
}

// HubCandidates orders Hub locations: explicit, UNITY_HUB_PATH, defaults.
func HubCandidates(explicit string) []string {
	var out []string
	if s := strings.TrimSpace(explicit); s != "" {
		out = append(out, s)
	}
	if v, ok := lookupEnv(HubPathEnv); ok && strings.TrimSpace(v) != "" {
		out = append(out, strings.TrimSpace(v))
	}
	return dedupeStrings(append(out, DefaultHubPaths()...))
}

// FindHub returns the first existing Hub executable.
func FindHub(explicit string) (string, error) {
	candidates := HubCandidates(explicit)
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w (checked %s)", ErrHubNotFound, strings.Join(candidates, ", "))
}
