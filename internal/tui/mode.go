package tui

import (
	"io"
	"os"
	"runtime"
	"strings"
)

// OutputMode describes how progress output should be rendered.
type OutputMode int

const (
	// ModeTUI renders the live job table.
	ModeTUI OutputMode = iota
	// ModePlain streams prefixed editor log lines and a summary.
	ModePlain
	// ModeJSON writes the results as JSON only.
	ModeJSON
)

var getenv = os.Getenv

// DetectMode picks the output mode for out. Non-terminals, dumb terminals
// and CI environments get plain output.
func DetectMode(out io.Writer, plain, jsonOutput bool) OutputMode {
	if jsonOutput {
		return ModeJSON
	}
	if plain || getenv("CI") != "" {
		return ModePlain
	}
	file, ok := out.(*os.File)
	if !ok {
		return ModePlain
	}
	info, err := file.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return ModePlain
	}
	if runtime.GOOS != "windows" {
		term := getenv("TERM")
		if term == "" || strings.EqualFold(term, "dumb") {
			return ModePlain
		}
	}
	return ModeTUI
}
