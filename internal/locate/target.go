package locate

import (
	"bytes"
	"context"
	"encoding/binary"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"

	"fontbake/internal/runner"
	"fontbake/internal/version"
)

const (
	maxRuntimeRead = 256 << 20
	maxHeaderRead  = 4 << 10
	nestedDepth    = 3
)

var runtimeLibraryNames = []string{"UnityPlayer.dll", "UnityPlayer.so", "UnityPlayer.dylib"}

// Version resource string keys, in lookup order.
var versionInfoKeys = []string{"ProductVersion", "FileVersion", "Comments"}

// DetectTargetVersion reports the editor version that produced the game at
// path. path may be the game executable, its folder, the runtime library
// itself or the <Game>_Data folder. Detection is best effort: any failure
// yields ok=false.
func DetectTargetVersion(ctx context.Context, path string) (version.Version, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return version.Version{}, false
	}
	path = filepath.Clean(path)

	if lib := findRuntimeLibrary(path); lib != "" {
		if v, ok := versionFromRuntimeLibrary(ctx, lib); ok {
			return v, true
		}
	}
	if header := findDataHeader(path); header != "" {
		if v, ok := versionFromHeader(ctx, header); ok {
			return v, true
		}
	}
	return version.Version{}, false
}

func findRuntimeLibrary(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}

	if !info.IsDir() {
		if isRuntimeLibrary(filepath.Base(path)) {
			return path
		}
		return siblingRuntimeLibrary(filepath.Dir(path))
	}

	if strings.HasSuffix(filepath.Base(path), "_Data") {
		if lib := siblingRuntimeLibrary(filepath.Dir(path)); lib != "" {
			return lib
		}
	}
	if lib := siblingRuntimeLibrary(path); lib != "" {
		return lib
	}
	return nestedRuntimeLibrary(path)
}

func isRuntimeLibrary(name string) bool {
	for _, candidate := range runtimeLibraryNames {
		if strings.EqualFold(name, candidate) {
			return true
		}
	}
	return false
}

func siblingRuntimeLibrary(dir string) string {
	for _, name := range runtimeLibraryNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func nestedRuntimeLibrary(root string) string {
	var match string
	rootDepth := strings.Count(root, string(filepath.Separator))
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.Count(p, string(filepath.Separator))-rootDepth >= nestedDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if isRuntimeLibrary(d.Name()) {
			match = p
			return fs.SkipAll
		}
		return nil
	})
	return match
}

// findDataHeader locates a serialized file whose header carries the editor version.
func findDataHeader(path string) string {
	var dataDirs []string
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	switch {
	case info.IsDir() && strings.HasSuffix(filepath.Base(path), "_Data"):
		dataDirs = append(dataDirs, path)
	case info.IsDir():
		matches, _ := filepath.Glob(filepath.Join(path, "*_Data"))
		dataDirs = append(dataDirs, matches...)
	default:
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		dataDirs = append(dataDirs, filepath.Join(filepath.Dir(path), base+"_Data"))
	}
	for _, dir := range dataDirs {
		for _, name := range []string{"globalgamemanagers", "data.unity3d", "mainData"} {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	return ""
}

func versionFromRuntimeLibrary(ctx context.Context, path string) (version.Version, bool) {
	data, _, err := runner.ReadFileRange(ctx, path, 0, maxRuntimeRead, runner.Retry{Attempts: 3})
	if err != nil || len(data) == 0 {
		return version.Version{}, false
	}
	if bytes.HasPrefix(data, []byte("MZ")) {
		for _, key := range versionInfoKeys {
			value := versionInfoString(data, key)
			if value == "" {
				continue
			}
			if v, ok := version.Find(value); ok {
				return v, true
			}
		}
		return version.Version{}, false
	}
	// ELF and Mach-O players embed the version as a plain string.
	return version.Find(string(data))
}

func versionFromHeader(ctx context.Context, path string) (version.Version, bool) {
	data, _, err := runner.ReadFileRange(ctx, path, 0, maxHeaderRead, runner.Retry{Attempts: 3})
	if err != nil {
		return version.Version{}, false
	}
	return version.Find(string(bytes.ReplaceAll(data, []byte{0}, []byte{' '})))
}

// versionInfoString finds a StringFileInfo entry in a PE version resource.
// Entries are laid out as a UTF-16LE key, NUL padding to a 32-bit boundary
// and a NUL terminated UTF-16LE value.
func versionInfoString(data []byte, key string) string {
	needle := encodeUTF16(key + "\x00")
	offset := 0
	for {
		idx := bytes.Index(data[offset:], needle)
		if idx < 0 {
			return ""
		}
		pos := offset + idx + len(needle)
		for pos+1 < len(data) && data[pos] == 0 && data[pos+1] == 0 {
			pos += 2
		}
		value := decodeUTF16Z(data[pos:])
		if strings.TrimSpace(value) != "" {
			return value
		}
		offset += idx + len(needle)
	}
}

func encodeUTF16(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:], u)
	}
	return out
}

func decodeUTF16Z(b []byte) string {
	var units []uint16
	for i := 0; i+1 < len(b) && len(units) < 256; i += 2 {
		u := binary.LittleEndian.Uint16(b[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}
