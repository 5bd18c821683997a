// Package provision resolves a runnable Unity editor executable, installing
// one through Unity Hub or the public download archive when nothing
// suitable is present.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"fontbake/internal/config"
	"fontbake/internal/locate"
	"fontbake/internal/paths"
	"fontbake/internal/runner"
	"fontbake/internal/version"
)

var (
	goos         = runtime.GOOS
	lookupEnv    = os.LookupEnv
	detectTarget = locate.DetectTargetVersion
	editorRoots  = locate.EditorRoots
	defaultRoots = locate.DefaultEditorRoots
	findHub      = locate.FindHub
)

// Resolution sources reported in Result.Source.
const (
	SourceExplicit  = "explicit"
	SourceEnv       = "env"
	SourceExact     = "exact"
	SourceClosest   = "closest"
	SourceNewest    = "newest"
	SourceInstalled = "installed"
)

// Result is a ready-to-run editor.
type Result struct {
	ExecutablePath string
	Version        version.Version
	Source         string
}

// Provisioner resolves editors. One instance is shared by all jobs of a run
// so the Hub calling convention is only settled once.
type Provisioner struct {
	Runner     runner.Runner
	Paths      paths.AppPaths
	Logger     *log.Logger
	HTTPClient *http.Client
	// Retry bounds the wait for a locked executable.
	Retry runner.Retry

	hubSyntax syntaxCache
}

// New returns a Provisioner using the real process runner.
func New(appPaths paths.AppPaths, logger *log.Logger) *Provisioner {
	return &Provisioner{
		Runner: runner.CmdRunner{},
		Paths:  appPaths,
		Logger: logger,
		Retry:  runner.DefaultRetry,
	}
}

func (p *Provisioner) logf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}

func (p *Provisioner) httpClient() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Minute}
}

func (p *Provisioner) hub(path string) *hubClient {
	return &hubClient{runner: p.Runner, path: path, cache: &p.hubSyntax, logf: p.logf}
}

// resolveState is shared by the resolver steps of one Resolve call.
type resolveState struct {
	opts     config.ProvisioningOptions
	desired  version.Version
	installs []locate.Install
}

// resolveStep returns ok=false to hand over to the next step. A non-nil
// error stops the chain.
type resolveStep struct {
	name string
	run  func(ctx context.Context, p *Provisioner, st *resolveState) (Result, bool, error)
}

var resolveSteps = []resolveStep{
	{"explicit path", stepExplicit},
	{"environment path", stepEnv},
	{"exact installed", stepExact},
	{"closest in train", stepClosest},
	{"newest installed", stepNewest},
	{"install", stepInstall},
}

// Resolve walks the fallback chain until a step produces an executable.
func (p *Provisioner) Resolve(ctx context.Context, opts config.ProvisioningOptions) (Result, error) {
	desired, err := p.desiredVersion(ctx, opts)
	if err != nil {
		return Result{}, err
	}
	st := &resolveState{
		opts:     opts,
		desired:  desired,
		installs: locate.DiscoverEditors(editorRoots(opts.InstallRoot)),
	}
	if desired.IsZero() {
		p.logf("resolving editor: no desired version, %d installs found", len(st.installs))
	} else {
		p.logf("resolving editor %s: %d installs found", desired, len(st.installs))
	}

	for _, step := range resolveSteps {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, ok, err := step.run(ctx, p, st)
		if err != nil {
			return Result{}, err
		}
		if ok {
			p.logf("editor resolved by %s: %s (%s)", step.name, res.ExecutablePath, res.Version)
			return res, nil
		}
	}
	return Result{}, p.notFound(st, "")
}

// desiredVersion comes from the version option, else the target game.
func (p *Provisioner) desiredVersion(ctx context.Context, opts config.ProvisioningOptions) (version.Version, error) {
	if raw := strings.TrimSpace(opts.UnityVersion); raw != "" {
		v, err := version.Parse(raw)
		if err != nil {
			return version.Version{}, fmt.Errorf("%w: unity version: %v", config.ErrConfig, err)
		}
		return v, nil
	}
	if opts.TargetGame != "" {
		if v, ok := detectTarget(ctx, opts.TargetGame); ok {
			p.logf("target game %s was built with %s", opts.TargetGame, v)
			return v, nil
		}
		p.logf("no editor version detected in %s", opts.TargetGame)
	}
	return version.Version{}, nil
}

func stepExplicit(ctx context.Context, p *Provisioner, st *resolveState) (Result, bool, error) {
	path := strings.TrimSpace(st.opts.EditorPath)
	if path == "" {
		return Result{}, false, nil
	}
	ok, err := paths.FileExists(path)
	if err != nil {
		return Result{}, false, fmt.Errorf("check editor path: %w", err)
	}
	if !ok {
		return Result{}, false, fmt.Errorf("%w: editor executable not found: %s", config.ErrConfig, path)
	}
	if err := runner.WaitUnlocked(ctx, path, p.Retry); err != nil {
		return Result{}, false, fmt.Errorf("editor executable %s: %w", path, err)
	}
	v, _ := locate.InstallFolderVersion(path)
	return Result{ExecutablePath: path, Version: v, Source: SourceExplicit}, true, nil
}

func stepEnv(ctx context.Context, p *Provisioner, st *resolveState) (Result, bool, error) {
	raw, ok := lookupEnv(locate.EditorPathEnv)
	path := strings.TrimSpace(raw)
	if !ok || path == "" {
		return Result{}, false, nil
	}
	if exists, _ := paths.FileExists(path); !exists {
		p.logf("%s points at a missing file: %s", locate.EditorPathEnv, path)
		return Result{}, false, nil
	}
	v, known := locate.InstallFolderVersion(path)
	if !st.desired.IsZero() && (!known || !v.SameTrain(st.desired)) {
		p.logf("%s (%s) does not match %s", locate.EditorPathEnv, path, st.desired)
		return Result{}, false, nil
	}
	if err := runner.WaitUnlocked(ctx, path, p.Retry); err != nil {
		return Result{}, false, fmt.Errorf("editor executable %s: %w", path, err)
	}
	return Result{ExecutablePath: path, Version: v, Source: SourceEnv}, true, nil
}

func stepExact(_ context.Context, _ *Provisioner, st *resolveState) (Result, bool, error) {
	if st.desired.IsZero() {
		return Result{}, false, nil
	}
	in, ok := locate.FindExactVersion(st.installs, st.desired)
	if !ok {
		return Result{}, false, nil
	}
	return fromInstall(in, SourceExact), true, nil
}

func stepClosest(_ context.Context, _ *Provisioner, st *resolveState) (Result, bool, error) {
	if st.desired.IsZero() {
		return Result{}, false, nil
	}
	best, ok := version.Closest(st.desired, locate.Versions(st.installs))
	if !ok {
		return Result{}, false, nil
	}
	in, _ := locate.FindExactVersion(st.installs, best)
	return fromInstall(in, SourceClosest), true, nil
}

func stepNewest(_ context.Context, _ *Provisioner, st *resolveState) (Result, bool, error) {
	if !st.desired.IsZero() {
		return Result{}, false, nil
	}
	in, ok := locate.FindLatestInstalled(st.installs)
	if !ok {
		return Result{}, false, nil
	}
	return fromInstall(in, SourceNewest), true, nil
}

func stepInstall(ctx context.Context, p *Provisioner, st *resolveState) (Result, bool, error) {
	if !st.opts.AutoInstallEditor {
		return Result{}, false, p.notFound(st, "set an explicit editor path or enable automatic editor installation")
	}
	res, err := p.install(ctx, st)
	if err != nil {
		return Result{}, false, err
	}
	return res, true, nil
}

func fromInstall(in locate.Install, source string) Result {
	return Result{ExecutablePath: in.ExecutablePath, Version: in.Version, Source: source}
}

// installRoot returns the directory editors are installed into and whether
// it is the platform default rather than a user choice.
func installRoot(opts config.ProvisioningOptions) (string, bool) {
	if s := strings.TrimSpace(opts.InstallRoot); s != "" {
		return s, false
	}
	roots := defaultRoots()
	if len(roots) == 0 {
		return "", true
	}
	return roots[0], true
}

func (p *Provisioner) notFound(st *resolveState, reason string) error {
	root, _ := installRoot(st.opts)
	known := make([]string, 0, len(st.installs))
	for _, in := range st.installs {
		known = append(known, in.Version.String())
	}
	return &NotFoundError{Desired: st.desired, InstallRoot: root, Known: known, Reason: reason}
}

// ListInstalled returns the installs visible with opts, newest first.
func (p *Provisioner) ListInstalled(opts config.ProvisioningOptions) []locate.Install {
	return locate.DiscoverEditors(editorRoots(opts.InstallRoot))
}

// ListReleases queries the Hub release list and reports the Hub calling
// convention that worked.
func (p *Provisioner) ListReleases(ctx context.Context, opts config.ProvisioningOptions) ([]Release, string, error) {
	hubPath, err := findHub(opts.HubPath)
	if err != nil {
		return nil, "", err
	}
	releases, err := p.hub(hubPath).releases(ctx)
	if err != nil {
		return nil, "", err
	}
	return releases, p.hubSyntax.get().String(), nil
}

var errNoRelease = errors.New("no matching release")
