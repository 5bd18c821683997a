package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// HomeEnv overrides the per-user application directory.
const HomeEnv = "FONTBAKE_HOME"

// AppPaths captures canonical per-user locations for fontbake.
type AppPaths struct {
	Root         string
	DownloadsDir string
	LogsDir      string
}

// Resolve determines the application directory from FONTBAKE_HOME or the
// platform default.
func Resolve() (AppPaths, error) {
	if override, ok := os.LookupEnv(HomeEnv); ok && strings.TrimSpace(override) != "" {
		abs, err := filepath.Abs(override)
		if err != nil {
			return AppPaths{}, fmt.Errorf("resolve %s: %w", HomeEnv, err)
		}
		return newAppPaths(abs), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return AppPaths{}, fmt.Errorf("detect user home: %w", err)
	}

	switch runtime.GOOS {
	case "darwin":
		return newAppPaths(filepath.Join(home, "Library", "Application Support", "fontbake")), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return newAppPaths(filepath.Join(localAppData, "fontbake")), nil
		}
		return newAppPaths(filepath.Join(home, "AppData", "Local", "fontbake")), nil
	default:
		return newAppPaths(filepath.Join(home, ".local", "share", "fontbake")), nil
	}
}

func newAppPaths(root string) AppPaths {
	return AppPaths{
		Root:         root,
		DownloadsDir: filepath.Join(root, "downloads"),
		LogsDir:      filepath.Join(root, "logs"),
	}
}

// EnsureDirs creates the downloads and logs directories.
func (p AppPaths) EnsureDirs() error {
	for _, dir := range []string{p.Root, p.DownloadsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ResolveFrom makes value absolute relative to base. Empty values stay empty.
func ResolveFrom(base, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(base, value)
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
