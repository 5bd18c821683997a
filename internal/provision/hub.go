package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"fontbake/internal/runner"
	"fontbake/internal/version"
)

// hubSyntax is the Hub calling convention.
type hubSyntax int

const (
	syntaxUnknown hubSyntax = iota
	// syntaxDirect: <hub> --headless <args>
	syntaxDirect
	// syntaxDoubleDash: <hub> -- --headless <args>
	syntaxDoubleDash
)

func (s hubSyntax) String() string {
	switch s {
	case syntaxDirect:
		return "direct"
	case syntaxDoubleDash:
		return "double-dash"
	}
	return "unknown"
}

func (s hubSyntax) args(rest []string) []string {
	prefix := []string{"--headless"}
	if s == syntaxDoubleDash {
		prefix = []string{"--", "--headless"}
	}
	return append(prefix, rest...)
}

var errVersionNotFound = errors.New("hub reports version not found")

var (
	versionNotFoundMarkers = []string{"not found", "no editor version", "invalid version", "unknown version"}
	syntaxRejectedMarkers  = []string{"unknown option", "unknown argument", "unrecognized", "usage:"}
)

// syntaxCache remembers which calling convention the Hub accepted. It is set
// once per run on the first successful call.
type syntaxCache struct {
	mu     sync.Mutex
	syntax hubSyntax
}

func (c *syntaxCache) get() hubSyntax {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syntax
}

func (c *syntaxCache) setOnce(s hubSyntax) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.syntax == syntaxUnknown {
		c.syntax = s
	}
}

// hubClient drives the Hub's headless CLI.
type hubClient struct {
	runner runner.Runner
	path   string
	cache  *syntaxCache
	logf   func(string, ...any)
}

// hubCheck reports whether a Hub result shows the calling convention worked.
type hubCheck func(res runner.RunResult) bool

func exitedZero(res runner.RunResult) bool { return res.ExitCode == 0 }

func listsReleases(res runner.RunResult) bool {
	return res.ExitCode == 0 && len(parseReleaseList(res.Output())) > 0
}

// run executes a Hub command. Until a convention is known both are tried
// and the first one whose result passes check is cached. When neither
// passes, the most informative result is returned for the caller to report.
func (h *hubClient) run(ctx context.Context, check hubCheck, rest ...string) (runner.RunResult, error) {
	candidates := []hubSyntax{syntaxDirect, syntaxDoubleDash}
	if known := h.cache.get(); known != syntaxUnknown {
		candidates = []hubSyntax{known}
	}

	var (
		best    runner.RunResult
		haveRes bool
		lastErr error
	)
	for _, syntax := range candidates {
		args := syntax.args(rest)
		h.logf("hub (%s): %s %s", syntax, h.path, strings.Join(args, " "))
		res, err := h.runner.Run(ctx, h.path, args, runner.RunOptions{})
		if err != nil {
			if ctx.Err() != nil {
				return res, err
			}
			lastErr = err
			continue
		}
		if check(res) {
			h.cache.setOnce(syntax)
			return res, nil
		}
		h.logf("hub (%s): result not accepted (exit %d)", syntax, res.ExitCode)
		if !haveRes || rejectsSyntax(best) {
			best, haveRes = res, true
		}
	}
	if haveRes {
		return best, nil
	}
	if lastErr == nil {
		lastErr = errors.New("hub produced no result")
	}
	return best, lastErr
}

func rejectsSyntax(res runner.RunResult) bool {
	return res.ExitCode != 0 && containsAny(res.Output(), syntaxRejectedMarkers)
}

// releases lists installable editor versions.
func (h *hubClient) releases(ctx context.Context) ([]Release, error) {
	res, err := h.run(ctx, listsReleases, "editors", "--releases")
	if err != nil {
		return nil, fmt.Errorf("list hub releases: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("list hub releases: exit %d: %s", res.ExitCode, tail(res.Output(), 400))
	}
	releases := parseReleaseList(res.Output())
	if len(releases) == 0 {
		return nil, errors.New("hub release list is empty")
	}
	return releases, nil
}

// setInstallPath points the Hub's editor install root at dir.
func (h *hubClient) setInstallPath(ctx context.Context, dir string) error {
	res, err := h.run(ctx, exitedZero, "install-path", "--set", dir)
	if err != nil {
		return fmt.Errorf("set hub install path: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("set hub install path: exit %d: %s", res.ExitCode, tail(res.Output(), 400))
	}
	return nil
}

// installVariants are the argument sets tried in order for an install.
func installVariants(rel Release) [][]string {
	v := rel.Version.String()
	var variants [][]string
	if rel.Changeset != "" {
		variants = append(variants, []string{"install", "--version", v, "--changeset", rel.Changeset})
	}
	return append(variants,
		[]string{"install", "--version", v},
		[]string{"install", "-v", v},
	)
}

// install asks the Hub to install rel, moving on to the next variant when
// the Hub reports the version as unknown.
func (h *hubClient) install(ctx context.Context, rel Release) error {
	var lastErr error
	for _, args := range installVariants(rel) {
		res, err := h.run(ctx, exitedZero, args...)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			lastErr = err
			continue
		}
		out := res.Output()
		if res.ExitCode != 0 && containsAny(out, versionNotFoundMarkers) {
			lastErr = fmt.Errorf("%w: %s", errVersionNotFound, rel.Version)
			continue
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("hub install %s: exit %d: %s", rel.Version, res.ExitCode, tail(out, 400))
		}
		return nil
	}
	return lastErr
}

func containsAny(text string, markers []string) bool {
	lower := strings.ToLower(text)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func tail(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	return "..." + text[len(text)-max:]
}

func releaseVersions(rs []Release) []version.Version {
	out := make([]version.Version, len(rs))
	for i, r := range rs {
		out[i] = r.Version
	}
	return out
}
