// Package pipeline converts one font into a TextMeshPro AssetBundle by
// driving the Unity editor through a disposable project.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"fontbake/internal/config"
	"fontbake/internal/epoch"
	"fontbake/internal/paths"
	"fontbake/internal/provision"
	"fontbake/internal/runner"
	"fontbake/internal/version"
)

// Phase names an editor invocation.
type Phase string

const (
	PhaseCreate Phase = "create"
	PhaseBuild  Phase = "build"
)

// EditorResolver yields a runnable editor for a job.
type EditorResolver interface {
	Resolve(ctx context.Context, opts config.ProvisioningOptions) (provision.Result, error)
}

// LineFunc receives editor log lines as they are written.
type LineFunc func(phase Phase, line string)

// Pipeline runs conversions. It is safe for concurrent use; every Run gets
// its own workspace.
type Pipeline struct {
	Editors  EditorResolver
	Registry *epoch.Registry
	Runner   runner.Runner
	Logger   *log.Logger
	// TempDir holds workspaces; empty means the system temp dir.
	TempDir string
	Tail    TailOptions
}

// Result describes a finished conversion.
type Result struct {
	ArtifactPath   string          `json:"artifact"`
	ManifestPath   string          `json:"manifest"`
	EditorPath     string          `json:"editor"`
	EditorVersion  version.Version `json:"editorVersion"`
	Epoch          epoch.Epoch     `json:"epoch"`
	AdapterName    string          `json:"adapter"`
	NoGraphicsUsed bool            `json:"noGraphics"`
	// WorkspacePath is only set when the workspace was kept.
	WorkspacePath string `json:"workspace,omitempty"`
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}

func (p *Pipeline) runner() runner.Runner {
	if p.Runner != nil {
		return p.Runner
	}
	return runner.CmdRunner{}
}

// Run executes one job: validate, resolve the editor and its adapter, build
// the workspace, run the create and build phases, verify the artifact.
func (p *Pipeline) Run(ctx context.Context, opts config.Options, onLine LineFunc) (Result, error) {
	outputDir, err := validate(opts)
	if err != nil {
		return Result{}, err
	}

	editor, err := p.Editors.Resolve(ctx, opts.Provision)
	if err != nil {
		return Result{}, fmt.Errorf("resolve editor: %w", err)
	}

	adapter, err := p.resolveAdapter(ctx, opts, editor.ExecutablePath)
	if err != nil {
		return Result{}, err
	}
	noGraphics := adapter.DefaultNoGraphics
	if opts.Convert.UseNoGraphics != nil {
		noGraphics = *opts.Convert.UseNoGraphics
	}
	p.logf("job %s: editor %s, adapter %s, nographics=%t", opts.FontBaseName(), editor.ExecutablePath, adapter.Name, noGraphics)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	ws, err := newWorkspace(p.TempDir)
	if err != nil {
		return Result{}, err
	}
	result := Result{
		EditorPath:     editor.ExecutablePath,
		EditorVersion:  editor.Version,
		Epoch:          adapter.Epoch,
		AdapterName:    adapter.Name,
		NoGraphicsUsed: noGraphics,
	}
	if opts.Convert.KeepTemp {
		result.WorkspacePath = ws.Root
		p.logf("keeping workspace %s", ws.Root)
	} else {
		defer func() {
			if err := os.RemoveAll(ws.Root); err != nil {
				p.logf("remove workspace %s: %v", ws.Root, err)
			}
		}()
	}

	exe := editor.ExecutablePath
	if err := p.runPhase(ctx, PhaseCreate, exe, createArgs(ws, noGraphics), ws.LogFile(PhaseCreate), onLine); err != nil {
		return result, err
	}
	if err := ws.prepare(opts, adapter, outputDir); err != nil {
		return result, err
	}
	if err := p.runPhase(ctx, PhaseBuild, exe, buildArgs(ws, adapter, noGraphics), ws.LogFile(PhaseBuild), onLine); err != nil {
		return result, err
	}

	bundle := filepath.Join(outputDir, opts.ResolvedBundleName())
	manifest := bundle + ".manifest"
	for _, f := range []string{bundle, manifest} {
		exists, err := paths.FileExists(f)
		if err != nil {
			return result, fmt.Errorf("verify artifact: %w", err)
		}
		if !exists {
			return result, fmt.Errorf("unity reported success but %s is missing (see %s)", f, ws.LogFile(PhaseBuild))
		}
	}
	result.ArtifactPath = bundle
	result.ManifestPath = manifest
	return result, nil
}

// validate rejects bad options before anything is installed or spawned and
// returns the absolute output directory.
func validate(opts config.Options) (string, error) {
	var problems []error
	if strings.TrimSpace(opts.Convert.Font) == "" {
		problems = append(problems, fmt.Errorf("%w: font path is required", config.ErrConfig))
	}
	if strings.TrimSpace(opts.Convert.Output) == "" {
		problems = append(problems, fmt.Errorf("%w: output directory is required", config.ErrConfig))
	}
	if err := opts.Validate(); err != nil {
		problems = append(problems, err)
	}
	if err := errors.Join(problems...); err != nil {
		return "", err
	}

	if err := config.ValidateFontExtension(opts.Convert.Font); err != nil {
		return "", err
	}
	exists, err := paths.FileExists(opts.Convert.Font)
	if err != nil {
		return "", fmt.Errorf("check font: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("%w: font not found: %s", config.ErrConfig, opts.Convert.Font)
	}

	outputDir, err := filepath.Abs(opts.Convert.Output)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}
	return outputDir, nil
}

func (p *Pipeline) resolveAdapter(ctx context.Context, opts config.Options, editorPath string) (epoch.Adapter, error) {
	mode, err := opts.EpochMode()
	if err != nil {
		return epoch.Adapter{}, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	res, err := epoch.Resolve(ctx, epoch.Input{
		Mode:           mode,
		EditorPath:     editorPath,
		DesiredVersion: opts.Provision.UnityVersion,
		TargetPath:     opts.Provision.TargetGame,
	})
	if err != nil {
		return epoch.Adapter{}, fmt.Errorf("resolve epoch: %w", err)
	}
	registry := p.Registry
	if registry == nil {
		if registry, err = epoch.DefaultRegistry(); err != nil {
			return epoch.Adapter{}, err
		}
	}
	adapter, err := registry.Get(res.Epoch)
	if err != nil {
		return epoch.Adapter{}, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	p.logf("epoch %s from %s", res.Epoch, res.Source)
	return adapter, nil
}

// runPhase runs the editor while tailing its log file. The tailer outlives
// the process by a short grace period to catch the final flush.
func (p *Pipeline) runPhase(ctx context.Context, phase Phase, exe string, args []string, logPath string, onLine LineFunc) error {
	p.logf("unity %s: %s %s", phase, exe, strings.Join(args, " "))

	var (
		res    runner.RunResult
		exited = make(chan struct{})
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(exited)
		var err error
		res, err = p.runner().Run(gctx, exe, args, runner.RunOptions{})
		return err
	})
	g.Go(func() error {
		err := Tail(gctx, logPath, exited, p.Tail, func(line string) {
			if onLine != nil {
				onLine(phase, line)
			}
		})
		if ctx.Err() != nil {
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("unity %s phase: %w", phase, err)
	}

	if res.ExitCode != 0 {
		return classify(ctx, phase, res, logPath)
	}
	return nil
}

func baseArgs(noGraphics bool) []string {
	args := []string{"-batchmode"}
	if noGraphics {
		args = append(args, "-nographics")
	}
	return append(args, "-quit")
}

func createArgs(ws workspace, noGraphics bool) []string {
	return append(baseArgs(noGraphics),
		"-createProject", ws.ProjectDir(),
		"-logFile", ws.LogFile(PhaseCreate),
	)
}

func buildArgs(ws workspace, adapter epoch.Adapter, noGraphics bool) []string {
	return append(baseArgs(noGraphics),
		"-projectPath", ws.ProjectDir(),
		"-executeMethod", adapter.Payload.EntryPoint,
		"-fontbakeJob", ws.JobFile(),
		"-logFile", ws.LogFile(PhaseBuild),
	)
}
