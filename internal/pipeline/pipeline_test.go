package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"fontbake/internal/config"
	"fontbake/internal/epoch"
	"fontbake/internal/locate"
	"fontbake/internal/provision"
	"fontbake/internal/runner"
	"fontbake/internal/version"
)

// fakeUnity simulates the editor: it writes its log file and, in the build
// phase, the bundle described by the job file.
type fakeUnity struct {
	mu        sync.Mutex
	calls     [][]string
	buildExit int
	buildLog  string
	noOutput  bool
}

func argValue(args []string, name string) string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func (f *fakeUnity) Run(_ context.Context, command string, args []string, _ runner.RunOptions) (runner.RunResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{command}, args...))
	f.mu.Unlock()

	logPath := argValue(args, "-logFile")
	if project := argValue(args, "-createProject"); project != "" {
		if err := os.MkdirAll(filepath.Join(project, "Assets"), 0o755); err != nil {
			return runner.RunResult{ExitCode: -1}, err
		}
		_ = os.WriteFile(logPath, []byte("Creating project\nProject created"), 0o644)
		return runner.RunResult{}, nil
	}

	jobData, err := os.ReadFile(argValue(args, "-fontbakeJob"))
	if err != nil {
		return runner.RunResult{ExitCode: -1}, err
	}
	var job jobDescription
	if err := json.Unmarshal(jobData, &job); err != nil {
		return runner.RunResult{ExitCode: -1}, err
	}
	logText := f.buildLog
	if logText == "" {
		logText = "Building " + job.BundleName + "\r\nBuild done\n"
	}
	_ = os.WriteFile(logPath, []byte(logText), 0o644)
	if f.buildExit != 0 {
		return runner.RunResult{ExitCode: f.buildExit}, nil
	}
	if !f.noOutput {
		bundle := filepath.Join(job.BundleOutputDir, job.BundleName)
		_ = os.WriteFile(bundle, []byte("bundle"), 0o644)
		_ = os.WriteFile(bundle+".manifest", []byte("manifest"), 0o644)
	}
	return runner.RunResult{}, nil
}

type fakeEditors struct {
	exe   string
	calls int
}

func (f *fakeEditors) Resolve(context.Context, config.ProvisioningOptions) (provision.Result, error) {
	f.calls++
	v, _ := locate.InstallFolderVersion(f.exe)
	return provision.Result{ExecutablePath: f.exe, Version: v, Source: provision.SourceExact}, nil
}

type fixture struct {
	pipeline *Pipeline
	unity    *fakeUnity
	editors  *fakeEditors
	opts     config.Options
	temp     string
}

func newFixture(t *testing.T, editorVersion string) *fixture {
	t.Helper()
	dir := t.TempDir()
	font := filepath.Join(dir, "Noto Sans.ttf")
	if err := os.WriteFile(font, []byte("font"), 0o644); err != nil {
		t.Fatal(err)
	}
	temp := filepath.Join(dir, "tmp")
	if err := os.MkdirAll(temp, 0o755); err != nil {
		t.Fatal(err)
	}

	opts := config.Default()
	opts.Convert.Font = font
	opts.Convert.Output = filepath.Join(dir, "out")

	unity := &fakeUnity{}
	editors := &fakeEditors{exe: filepath.Join(dir, "editors", editorVersion, locate.EditorRelPath())}
	return &fixture{
		pipeline: &Pipeline{
			Editors: editors,
			Runner:  unity,
			TempDir: temp,
			Tail:    TailOptions{Interval: 5 * time.Millisecond, GracePolls: 3},
		},
		unity:   unity,
		editors: editors,
		opts:    opts,
		temp:    temp,
	}
}

func TestRunProducesBundle(t *testing.T) {
	fx := newFixture(t, "2022.3.10f1")

	var (
		mu    sync.Mutex
		lines []string
	)
	res, err := fx.pipeline.Run(context.Background(), fx.opts, func(phase Phase, line string) {
		mu.Lock()
		lines = append(lines, string(phase)+": "+line)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, f := range []string{res.ArtifactPath, res.ManifestPath} {
		if _, err := os.Stat(f); err != nil {
			t.Fatalf("missing %s: %v", f, err)
		}
	}
	if filepath.Base(res.ArtifactPath) != "noto_sans" {
		t.Fatalf("artifact %s", res.ArtifactPath)
	}
	if res.Epoch != epoch.Mid || res.AdapterName != "TMPBundleBuilder" || !res.NoGraphicsUsed {
		t.Fatalf("adapter: %+v", res)
	}
	if res.WorkspacePath != "" {
		t.Fatalf("workspace should not be reported: %s", res.WorkspacePath)
	}
	entries, _ := os.ReadDir(fx.temp)
	if len(entries) != 0 {
		t.Fatalf("workspace not cleaned up: %v", entries)
	}

	want := []string{"create: Creating project", "create: Project created", "build: Building noto_sans", "build: Build done"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("lines: %q", lines)
	}

	if len(fx.unity.calls) != 2 {
		t.Fatalf("calls: %v", fx.unity.calls)
	}
	create := strings.Join(fx.unity.calls[0][1:], " ")
	if !strings.HasPrefix(create, "-batchmode -nographics -quit -createProject ") || !strings.Contains(create, " -logFile ") {
		t.Fatalf("create args: %s", create)
	}
	build := fx.unity.calls[1][1:]
	if build[0] != "-batchmode" || build[1] != "-nographics" || build[2] != "-quit" || build[3] != "-projectPath" ||
		build[5] != "-executeMethod" || build[6] != "FontBake.Builder.Build" || build[7] != "-fontbakeJob" || build[9] != "-logFile" {
		t.Fatalf("build args: %q", build)
	}
}

func TestRunEpochFollowsEditorVersion(t *testing.T) {
	cases := []struct {
		version    string
		adapter    string
		noGraphics bool
	}{
		{"2019.4.40f1", "LegacyTMPBundleBuilder", true},
		{"2021.3.9f1", "TMPBundleBuilder", true},
		{"2023.2.1f1", "ModernTMPBundleBuilder", false},
		{"6000.0.23f1", "ModernTMPBundleBuilder", false},
	}
	for _, tc := range cases {
		t.Run(tc.version, func(t *testing.T) {
			fx := newFixture(t, tc.version)
			res, err := fx.pipeline.Run(context.Background(), fx.opts, nil)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.AdapterName != tc.adapter || res.NoGraphicsUsed != tc.noGraphics {
				t.Fatalf("got %s nographics=%t", res.AdapterName, res.NoGraphicsUsed)
			}
			if res.EditorVersion != version.MustParse(tc.version) {
				t.Fatalf("editor version %s", res.EditorVersion)
			}
		})
	}
}

func TestRunNoGraphicsOverride(t *testing.T) {
	fx := newFixture(t, "2022.3.10f1")
	fx.opts.Convert.UseNoGraphics = config.BoolPtr(false)
	res, err := fx.pipeline.Run(context.Background(), fx.opts, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.NoGraphicsUsed {
		t.Fatal("override ignored")
	}
	for _, call := range fx.unity.calls {
		for _, a := range call {
			if a == "-nographics" {
				t.Fatalf("unexpected -nographics in %v", call)
			}
		}
	}
}

func TestRunRejectsUnsupportedFontBeforeResolving(t *testing.T) {
	fx := newFixture(t, "2022.3.10f1")
	bad := filepath.Join(t.TempDir(), "font.woff")
	if err := os.WriteFile(bad, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	fx.opts.Convert.Font = bad

	_, err := fx.pipeline.Run(context.Background(), fx.opts, nil)
	if !errors.Is(err, config.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if fx.editors.calls != 0 || len(fx.unity.calls) != 0 {
		t.Fatal("nothing should run for an invalid font")
	}
}

func TestRunRequiresFontAndOutput(t *testing.T) {
	fx := newFixture(t, "2022.3.10f1")
	fx.opts.Convert.Font = ""
	fx.opts.Convert.Output = ""
	_, err := fx.pipeline.Run(context.Background(), fx.opts, nil)
	if !errors.Is(err, config.ErrConfig) || !strings.Contains(err.Error(), "font path is required") || !strings.Contains(err.Error(), "output directory is required") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestRunClassifiesLicensingFailure(t *testing.T) {
	cases := []struct {
		name string
		exit int
		log  string
	}{
		{"log marker", 1, "Initialize engine\nNo valid Unity Editor license found. Please activate your license.\n"},
		{"license system line", 3, "[LICENSE SYSTEM][2024] Error: token expired\n"},
		{"exit code", 198, "Initialize engine\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(t, "2022.3.10f1")
			fx.unity.buildExit = tc.exit
			fx.unity.buildLog = tc.log

			_, err := fx.pipeline.Run(context.Background(), fx.opts, nil)
			var editorErr *EditorError
			if !errors.As(err, &editorErr) {
				t.Fatalf("expected EditorError, got %v", err)
			}
			if !editorErr.Licensing || editorErr.Phase != PhaseBuild || editorErr.ExitCode != tc.exit {
				t.Fatalf("classification: %+v", editorErr)
			}
			if !strings.Contains(err.Error(), LicensingHint) {
				t.Fatalf("hint missing: %v", err)
			}
		})
	}
}

func TestRunPlainFailureIncludesLogTail(t *testing.T) {
	fx := newFixture(t, "2022.3.10f1")
	fx.unity.buildExit = 1
	fx.unity.buildLog = "Compiling\nerror CS0246: TMPro not found\n"

	_, err := fx.pipeline.Run(context.Background(), fx.opts, nil)
	var editorErr *EditorError
	if !errors.As(err, &editorErr) || editorErr.Licensing {
		t.Fatalf("unexpected error %v", err)
	}
	if !strings.Contains(err.Error(), "error CS0246") || strings.Contains(err.Error(), LicensingHint) {
		t.Fatalf("message: %v", err)
	}
}

func TestRunFailsWhenArtifactMissing(t *testing.T) {
	fx := newFixture(t, "2022.3.10f1")
	fx.unity.noOutput = true
	_, err := fx.pipeline.Run(context.Background(), fx.opts, nil)
	if err == nil || !strings.Contains(err.Error(), "is missing") {
		t.Fatalf("expected missing artifact error, got %v", err)
	}
}

func TestRunKeepsWorkspace(t *testing.T) {
	fx := newFixture(t, "2022.3.10f1")
	fx.opts.Convert.KeepTemp = true
	res, err := fx.pipeline.Run(context.Background(), fx.opts, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.WorkspacePath == "" {
		t.Fatal("workspace path not reported")
	}
	payload := filepath.Join(res.WorkspacePath, "Project", "Assets", "FontBake", "Editor", "FontBakeBuilder.cs")
	if _, err := os.Stat(payload); err != nil {
		t.Fatalf("payload missing: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(res.WorkspacePath, "job.json"))
	if err != nil {
		t.Fatal(err)
	}
	var job jobDescription
	if err := json.Unmarshal(data, &job); err != nil {
		t.Fatal(err)
	}
	if job.TMPName != "Noto Sans SDF" || job.FontAsset != "Assets/FontBake/Fonts/Noto Sans.ttf" || len(job.AtlasSizes) != 4 {
		t.Fatalf("job: %+v", job)
	}
}

func TestIsLicensingFailure(t *testing.T) {
	cases := []struct {
		exit int
		log  string
		want bool
	}{
		{198, "", true},
		{1, "com.unity.editor.headless entitlement missing", true},
		{1, "License is not active", true},
		{1, "Failed to activate/update license", true},
		{1, "LICENSE SYSTEM started\nall good", false},
		{1, "Scripts have compiler errors", false},
	}
	for _, tc := range cases {
		if got := IsLicensingFailure(tc.exit, tc.log); got != tc.want {
			t.Errorf("%d %q: got %v", tc.exit, tc.log, got)
		}
	}
}
