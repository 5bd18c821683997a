package provision

import (
	"errors"
	"fmt"
	"strings"

	"fontbake/internal/version"
)

// ErrNotFound reports that no compatible editor could be located or installed.
var ErrNotFound = errors.New("no compatible unity editor")

// NotFoundError carries what an operator needs to fix a failed resolution.
type NotFoundError struct {
	Desired     version.Version
	InstallRoot string
	// Known lists installed versions or available trains, newest first.
	Known  []string
	Reason string
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	b.WriteString(ErrNotFound.Error())
	if !e.Desired.IsZero() {
		fmt.Fprintf(&b, " for %s", e.Desired)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	if e.InstallRoot != "" {
		fmt.Fprintf(&b, " (install root %s)", e.InstallRoot)
	}
	if len(e.Known) > 0 {
		fmt.Fprintf(&b, "; known: %s", strings.Join(e.Known, ", "))
	}
	return b.String()
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
