package provision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"fontbake/internal/config"
	"fontbake/internal/locate"
	"fontbake/internal/paths"
	"fontbake/internal/runner"
	"fontbake/internal/version"
)

type fakeRunner struct {
	mu     sync.Mutex
	calls  [][]string
	handle func(command string, args []string) (runner.RunResult, error)
}

func (f *fakeRunner) Run(_ context.Context, command string, args []string, _ runner.RunOptions) (runner.RunResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{command}, args...))
	f.mu.Unlock()
	if f.handle == nil {
		return runner.RunResult{}, nil
	}
	return f.handle(command, args)
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = strings.Join(c, " ")
	}
	return out
}

func ok(out string) (runner.RunResult, error) {
	return runner.RunResult{Stdout: []byte(out)}, nil
}

func makeEditor(t *testing.T, root, name string) string {
	t.Helper()
	exe := filepath.Join(root, name, locate.EditorRelPath())
	if err := os.MkdirAll(filepath.Dir(exe), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(exe, []byte("editor"), 0o755); err != nil {
		t.Fatal(err)
	}
	return exe
}

// isolate points every discovery seam at roots and neutralises the
// environment and process table.
func isolate(t *testing.T, roots ...string) {
	t.Helper()
	prevRoots, prevDefaults, prevEnv, prevHub := editorRoots, defaultRoots, lookupEnv, findHub
	prevList, prevGOOS, prevDetect := listProcesses, goos, detectTarget
	prevLockPoll, prevLockDeadline, prevStaleAge, prevPidAlive := lockPollInterval, lockDeadline, lockStaleAge, pidAlive
	editorRoots = func(override string) []string {
		if override != "" {
			return append([]string{override}, roots...)
		}
		return roots
	}
	defaultRoots = func() []string { return roots }
	lookupEnv = func(string) (string, bool) { return "", false }
	findHub = func(string) (string, error) { return "", locate.ErrHubNotFound }
	listProcesses = func(context.Context) ([]procInfo, error) { return nil, nil }
	detectTarget = func(context.Context, string) (version.Version, bool) { return version.Version{}, false }
	goos = "linux"
	lockPollInterval = 10 * time.Millisecond
	t.Cleanup(func() {
		editorRoots, defaultRoots, lookupEnv, findHub = prevRoots, prevDefaults, prevEnv, prevHub
		listProcesses, goos, detectTarget = prevList, prevGOOS, prevDetect
		lockPollInterval, lockDeadline, lockStaleAge, pidAlive = prevLockPoll, prevLockDeadline, prevStaleAge, prevPidAlive
	})
}

func newTestProvisioner(t *testing.T, r runner.Runner) *Provisioner {
	t.Helper()
	root := t.TempDir()
	return &Provisioner{
		Runner: r,
		Paths:  paths.AppPaths{Root: root, DownloadsDir: filepath.Join(root, "downloads"), LogsDir: filepath.Join(root, "logs")},
		Retry:  runner.Retry{Attempts: 2, Interval: time.Millisecond},
	}
}

func TestResolveExplicitPath(t *testing.T) {
	root := t.TempDir()
	isolate(t, root)
	exe := makeEditor(t, root, "2022.3.10f1")
	p := newTestProvisioner(t, &fakeRunner{})

	res, err := p.Resolve(context.Background(), config.ProvisioningOptions{EditorPath: exe})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != SourceExplicit || res.ExecutablePath != exe || res.Version.String() != "2022.3.10f1" {
		t.Fatalf("unexpected result %+v", res)
	}

	_, err = p.Resolve(context.Background(), config.ProvisioningOptions{EditorPath: filepath.Join(root, "missing")})
	if !errors.Is(err, config.ErrConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestResolveEnvPathRequiresMatchingTrain(t *testing.T) {
	root := t.TempDir()
	envRoot := t.TempDir()
	isolate(t, root)
	envExe := makeEditor(t, envRoot, "2021.3.2f1")
	installed := makeEditor(t, root, "2022.3.1f1")
	lookupEnv = func(key string) (string, bool) {
		if key == locate.EditorPathEnv {
			return envExe, true
		}
		return "", false
	}
	p := newTestProvisioner(t, &fakeRunner{})

	res, err := p.Resolve(context.Background(), config.ProvisioningOptions{UnityVersion: "2021.3.9f1"})
	if err != nil || res.Source != SourceEnv || res.ExecutablePath != envExe {
		t.Fatalf("same train: %+v, %v", res, err)
	}

	res, err = p.Resolve(context.Background(), config.ProvisioningOptions{UnityVersion: "2022.3.1f1"})
	if err != nil || res.Source != SourceExact || res.ExecutablePath != installed {
		t.Fatalf("other train: %+v, %v", res, err)
	}

	res, err = p.Resolve(context.Background(), config.ProvisioningOptions{})
	if err != nil || res.Source != SourceEnv {
		t.Fatalf("no desired version: %+v, %v", res, err)
	}
}

func TestResolveFromInstalls(t *testing.T) {
	root := t.TempDir()
	isolate(t, root)
	for _, v := range []string{"2021.3.1f1", "2021.3.5f1", "2021.3.9f1", "2022.3.4f1"} {
		makeEditor(t, root, v)
	}
	p := newTestProvisioner(t, &fakeRunner{})

	cases := []struct {
		desired    string
		wantSource string
		want       string
	}{
		{"2021.3.5f1", SourceExact, "2021.3.5f1"},
		{"2021.3.6f1", SourceClosest, "2021.3.9f1"},
		{"2021.3.12f1", SourceClosest, "2021.3.9f1"},
		{"", SourceNewest, "2022.3.4f1"},
	}
	for _, tc := range cases {
		t.Run(tc.desired, func(t *testing.T) {
			res, err := p.Resolve(context.Background(), config.ProvisioningOptions{UnityVersion: tc.desired})
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.Source != tc.wantSource || res.Version.String() != tc.want {
				t.Fatalf("got %s from %s, want %s from %s", res.Version, res.Source, tc.want, tc.wantSource)
			}
		})
	}
}

func TestResolveUsesTargetGameVersion(t *testing.T) {
	root := t.TempDir()
	isolate(t, root)
	makeEditor(t, root, "2020.3.48f1")
	makeEditor(t, root, "2022.3.4f1")
	detectTarget = func(context.Context, string) (version.Version, bool) {
		return version.MustParse("2020.3.48f1"), true
	}
	p := newTestProvisioner(t, &fakeRunner{})

	res, err := p.Resolve(context.Background(), config.ProvisioningOptions{TargetGame: "/games/demo.exe"})
	if err != nil || res.Version.String() != "2020.3.48f1" || res.Source != SourceExact {
		t.Fatalf("got %+v, %v", res, err)
	}
}

func TestResolveAutoInstallDisabled(t *testing.T) {
	root := t.TempDir()
	isolate(t, root)
	makeEditor(t, root, "2022.3.4f1")
	p := newTestProvisioner(t, &fakeRunner{})

	_, err := p.Resolve(context.Background(), config.ProvisioningOptions{UnityVersion: "2019.4.40f1"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || len(nf.Known) != 1 || nf.Known[0] != "2022.3.4f1" {
		t.Fatalf("expected known installs in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "automatic editor installation") {
		t.Fatalf("missing guidance: %v", err)
	}
}

func TestResolveInstallsThroughHub(t *testing.T) {
	root := t.TempDir()
	isolate(t, root)
	findHub = func(string) (string, error) { return "/opt/hub", nil }

	fr := &fakeRunner{}
	fr.handle = func(command string, args []string) (runner.RunResult, error) {
		if args[0] == "--headless" {
			return runner.RunResult{Stderr: []byte("error: unknown option --headless"), ExitCode: 1}, nil
		}
		rest := args[2:]
		switch rest[0] {
		case "editors":
			return ok("2022.3.10f1 (LTS) abcdef123456\n2021.3.9f1 (LTS) 0123456789ab\n2021.3.5f1\n")
		case "install-path":
			return ok("")
		case "install":
			if len(rest) > 3 && rest[3] == "--changeset" {
				return runner.RunResult{Stderr: []byte("Error: version not found"), ExitCode: 1}, nil
			}
			makeEditor(t, root, rest[2])
			return ok("installed")
		}
		return runner.RunResult{ExitCode: 1}, nil
	}
	p := newTestProvisioner(t, fr)

	res, err := p.Resolve(context.Background(), config.ProvisioningOptions{UnityVersion: "2021.3.6f1", AutoInstallEditor: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != SourceInstalled || res.Version.String() != "2021.3.9f1" {
		t.Fatalf("unexpected result %+v", res)
	}

	cmds := fr.commands()
	want := []string{
		"/opt/hub --headless editors --releases",
		"/opt/hub -- --headless editors --releases",
		"/opt/hub -- --headless install-path --set " + root,
		"/opt/hub -- --headless install --version 2021.3.9f1 --changeset 0123456789ab",
		"/opt/hub -- --headless install --version 2021.3.9f1",
	}
	if len(cmds) != len(want) {
		t.Fatalf("commands:\n%s", strings.Join(cmds, "\n"))
	}
	for i := range want {
		if cmds[i] != want[i] {
			t.Errorf("command %d: got %q want %q", i, cmds[i], want[i])
		}
	}
}

func TestResolveFallsBackToArchive(t *testing.T) {
	root := t.TempDir()
	isolate(t, root)

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/archive":
			fmt.Fprintf(w, `<html><body>
<a href="unityhub://2020.3.48f1/b805b124c6b7">Hub</a>
<a href="%s/download_unity/c9bb3a2e8b6f/Windows64EditorInstaller/UnitySetup64-2020.3.40f1.exe">Win</a>
<script>{"link":"unityhub://2022.3.10f1/ff3792e53c62"}</script>
</body></html>`, srv.URL)
		case strings.HasSuffix(r.URL.Path, "/LinuxEditorInstaller/Unity.tar.xz"):
			_, _ = w.Write([]byte("tarball"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	prevPage, prevBase := archivePageURL, downloadBaseURL
	archivePageURL, downloadBaseURL = srv.URL+"/archive", srv.URL+"/download_unity"
	t.Cleanup(func() { archivePageURL, downloadBaseURL = prevPage, prevBase })

	fr := &fakeRunner{}
	fr.handle = func(command string, args []string) (runner.RunResult, error) {
		if command == "tar" {
			dest := args[len(args)-1]
			makeEditor(t, filepath.Dir(dest), filepath.Base(dest))
		}
		return ok("")
	}
	p := newTestProvisioner(t, fr)

	res, err := p.Resolve(context.Background(), config.ProvisioningOptions{UnityVersion: "2020.3.45f1", AutoInstallEditor: true})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Version.String() != "2020.3.48f1" {
		t.Fatalf("installed %s", res.Version)
	}
	cmds := fr.commands()
	if len(cmds) != 1 || !strings.HasPrefix(cmds[0], "tar -xJf ") || !strings.HasSuffix(cmds[0], filepath.Join(root, "2020.3.48f1")) {
		t.Fatalf("commands: %v", cmds)
	}
	if _, err := os.Stat(filepath.Join(p.Paths.DownloadsDir, "b805b124c6b7-Unity.tar.xz")); !os.IsNotExist(err) {
		t.Fatalf("installer should be removed after install: %v", err)
	}
}

func TestParseReleaseList(t *testing.T) {
	out := "Available releases:\n2022.3.10f1 (LTS) abcdef123456\n6000.0.23f1\nnoise\n2022.3.10f1 duplicate\n2023.2.0b5\n"
	releases := parseReleaseList(out)
	if len(releases) != 3 {
		t.Fatalf("releases: %+v", releases)
	}
	if releases[0].Version.String() != "6000.0.23f1" || releases[2].Version.String() != "2022.3.10f1" {
		t.Fatalf("order: %+v", releases)
	}
	if !releases[2].LTS || releases[2].Changeset != "abcdef123456" {
		t.Fatalf("metadata: %+v", releases[2])
	}
}

func TestSelectRelease(t *testing.T) {
	releases := parseReleaseList("2023.2.0b5\n2022.3.10f1 (LTS)\n2022.3.4f1 (LTS)\n2023.1.5f1\n")
	cases := []struct {
		name      string
		desired   string
		preferLTS bool
		want      string
	}{
		{"exact", "2022.3.4f1", true, "2022.3.4f1"},
		{"closest", "2022.3.6f1", true, "2022.3.10f1"},
		{"newest final", "", false, "2023.1.5f1"},
		{"newest lts", "", true, "2022.3.10f1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var desired version.Version
			if tc.desired != "" {
				desired = version.MustParse(tc.desired)
			}
			rel, found := selectRelease(releases, desired, tc.preferLTS)
			if !found || rel.Version.String() != tc.want {
				t.Fatalf("got %v (%v), want %s", rel.Version, found, tc.want)
			}
		})
	}
	if _, found := selectRelease(releases, version.MustParse("2019.4.1f1"), true); found {
		t.Fatal("no release should match another train")
	}
}

func TestHubSyntaxIsCached(t *testing.T) {
	fr := &fakeRunner{}
	fr.handle = func(command string, args []string) (runner.RunResult, error) {
		if args[0] == "--" {
			return runner.RunResult{Stdout: []byte("usage: unknown option"), ExitCode: 2}, nil
		}
		return ok("2022.3.10f1\n")
	}
	p := newTestProvisioner(t, fr)
	hub := p.hub("/hub")
	for i := 0; i < 2; i++ {
		if _, err := hub.releases(context.Background()); err != nil {
			t.Fatalf("releases: %v", err)
		}
	}
	if got := p.hubSyntax.get(); got != syntaxDirect {
		t.Fatalf("cached syntax %s", got)
	}
	if n := len(fr.commands()); n != 2 {
		t.Fatalf("expected 2 hub calls, got %d", n)
	}
}

func TestHubTriesDoubleDashWhenDirectIsNotAccepted(t *testing.T) {
	tests := []struct {
		name   string
		direct runner.RunResult
	}{
		{name: "exit zero without releases", direct: runner.RunResult{}},
		{name: "generic failure", direct: runner.RunResult{Stderr: []byte("Error: headless mode failed"), ExitCode: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRunner{handle: func(command string, args []string) (runner.RunResult, error) {
				if args[0] == "--headless" {
					return tt.direct, nil
				}
				return ok("2022.3.10f1 (LTS)\n")
			}}
			p := newTestProvisioner(t, fr)
			releases, err := p.hub("/hub").releases(context.Background())
			if err != nil {
				t.Fatalf("releases: %v", err)
			}
			if len(releases) != 1 || releases[0].Version.String() != "2022.3.10f1" {
				t.Fatalf("releases = %+v", releases)
			}
			if got := p.hubSyntax.get(); got != syntaxDoubleDash {
				t.Fatalf("cached syntax %s", got)
			}
			if n := len(fr.commands()); n != 2 {
				t.Fatalf("expected 2 hub calls, got %v", fr.commands())
			}
		})
	}
}

func TestHubSyntaxNotCachedWhenNothingWorks(t *testing.T) {
	fr := &fakeRunner{handle: func(command string, args []string) (runner.RunResult, error) {
		if args[0] == "--" {
			return runner.RunResult{Stdout: []byte("usage: unknown option"), ExitCode: 2}, nil
		}
		return runner.RunResult{Stderr: []byte("Error: not signed in"), ExitCode: 1}, nil
	}}
	p := newTestProvisioner(t, fr)
	_, err := p.hub("/hub").releases(context.Background())
	if err == nil || !strings.Contains(err.Error(), "not signed in") {
		t.Fatalf("expected the direct failure to be reported, got %v", err)
	}
	if got := p.hubSyntax.get(); got != syntaxUnknown {
		t.Fatalf("cached syntax %s", got)
	}
}

func TestHubInstallIgnoresMarkersOnSuccess(t *testing.T) {
	fr := &fakeRunner{handle: func(command string, args []string) (runner.RunResult, error) {
		return ok("Installed 2022.3.10f1 (optional module not found, skipped)")
	}}
	p := newTestProvisioner(t, fr)
	p.hubSyntax.setOnce(syntaxDirect)
	rel := Release{Version: version.MustParse("2022.3.10f1"), Changeset: "abcdef123456"}
	if err := p.hub("/hub").install(context.Background(), rel); err != nil {
		t.Fatalf("install: %v", err)
	}
	if n := len(fr.commands()); n != 1 {
		t.Fatalf("expected a single install call, got %v", fr.commands())
	}
}

func TestEnsureHubWithoutAutoInstall(t *testing.T) {
	isolate(t, t.TempDir())
	p := newTestProvisioner(t, &fakeRunner{})
	_, err := p.ensureHub(context.Background(), config.ProvisioningOptions{})
	if !errors.Is(err, locate.ErrHubNotFound) {
		t.Fatalf("expected ErrHubNotFound, got %v", err)
	}
}

func TestEnsureHubBootstrapsAppImage(t *testing.T) {
	isolate(t, t.TempDir())
	home := t.TempDir()
	prevHome := userHomeDir
	userHomeDir = func() (string, error) { return home, nil }
	t.Cleanup(func() { userHomeDir = prevHome })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("appimage"))
	}))
	defer srv.Close()
	prevURLs := hubInstallerURLs
	hubInstallerURLs = map[string]string{"linux": srv.URL + "/hub/UnityHub.AppImage"}
	t.Cleanup(func() { hubInstallerURLs = prevURLs })

	dest := filepath.Join(home, "Applications", "Unity Hub.AppImage")
	findHub = func(string) (string, error) {
		if _, err := os.Stat(dest); err == nil {
			return dest, nil
		}
		return "", locate.ErrHubNotFound
	}

	p := newTestProvisioner(t, &fakeRunner{})
	got, err := p.ensureHub(context.Background(), config.ProvisioningOptions{AutoInstallHub: true})
	if err != nil {
		t.Fatalf("ensureHub: %v", err)
	}
	if got != dest {
		t.Fatalf("hub path %s", got)
	}
	info, err := os.Stat(dest)
	if err != nil || info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("hub not executable: %v %v", info, err)
	}
}

func TestTrimCacheOnlyRemovesOtherVersions(t *testing.T) {
	root := t.TempDir()
	keep := makeEditor(t, root, "2022.3.10f1")
	makeEditor(t, root, "2021.3.9f1")
	p := newTestProvisioner(t, &fakeRunner{})

	p.trimCache(root, version.MustParse("2022.3.10f1"))

	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("kept editor removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "2021.3.9f1")); !os.IsNotExist(err) {
		t.Fatalf("old editor still present: %v", err)
	}
}

func TestTrimCacheSkippedForCustomRoot(t *testing.T) {
	root := t.TempDir()
	isolate(t, root)
	old := makeEditor(t, root, "2021.3.9f1")
	findHub = func(string) (string, error) { return "/opt/hub", nil }
	fr := &fakeRunner{handle: func(command string, args []string) (runner.RunResult, error) {
		if args[1] == "editors" {
			return ok("2022.3.10f1\n")
		}
		if args[1] == "install" {
			makeEditor(t, root, "2022.3.10f1")
		}
		return ok("")
	}}
	p := newTestProvisioner(t, fr)

	_, err := p.Resolve(context.Background(), config.ProvisioningOptions{
		UnityVersion:      "2022.3.10f1",
		InstallRoot:       root,
		AutoInstallEditor: true,
		TrimCache:         true,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := os.Stat(old); err != nil {
		t.Fatalf("custom root must not be trimmed: %v", err)
	}
}

func TestResolveDownloadPath(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"https://download.unity3d.com/download_unity/abcdef123456/LinuxEditorInstaller/Unity.tar.xz":                 "abcdef123456-Unity.tar.xz",
		"https://download.unity3d.com/download_unity/abcdef123456/Windows64EditorInstaller/UnitySetup64-2022.3.1f1.exe": "UnitySetup64-2022.3.1f1.exe",
		"https://public-cdn.cloud.unity3d.com/hub/prod/UnityHubSetup.exe":                                             "hub-UnityHubSetup.exe",
	}
	for raw, want := range cases {
		got, err := resolveDownloadPath(dir, raw)
		if err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
		if got != filepath.Join(dir, want) {
			t.Errorf("%s: got %s want %s", raw, filepath.Base(got), want)
		}
	}
}

func TestInstallerMatcher(t *testing.T) {
	match := installerMatcher("2022.3.10f1")
	cases := []struct {
		proc procInfo
		want bool
	}{
		{procInfo{Name: "UnitySetup64-2022.3.10f1.exe"}, true},
		{procInfo{Name: "Unity Hub Installer", Cmdline: "--version 2022.3.10f1"}, true},
		{procInfo{Name: "UnitySetup64-2021.3.1f1.exe"}, false},
		{procInfo{Name: "Unity", Cmdline: "2022.3.10f1"}, false},
	}
	for _, tc := range cases {
		if got := match(tc.proc); got != tc.want {
			t.Errorf("%+v: got %v", tc.proc, got)
		}
	}
}

func TestWaitInstallersDrained(t *testing.T) {
	isolate(t, t.TempDir())
	prevInterval := drainInterval
	drainInterval = time.Millisecond
	t.Cleanup(func() { drainInterval = prevInterval })

	var polls int
	listProcesses = func(context.Context) ([]procInfo, error) {
		polls++
		if polls < 3 {
			return []procInfo{{Name: "UnitySetup64-2022.3.10f1.exe"}}, nil
		}
		return nil, nil
	}
	p := newTestProvisioner(t, &fakeRunner{})
	if err := p.waitInstallersDrained(context.Background(), installerMatcher("2022.3.10f1")); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if polls != 3 {
		t.Fatalf("expected 3 polls, got %d", polls)
	}
}

func TestInstallLockSerialises(t *testing.T) {
	isolate(t, t.TempDir())
	p := newTestProvisioner(t, &fakeRunner{})
	unlock, err := p.acquireInstallLock(context.Background(), "2022.3.10f1")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := p.acquireInstallLock(ctx, "2022.3.10f1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout while locked, got %v", err)
	}
	unlock()
	unlock2, err := p.acquireInstallLock(context.Background(), "2022.3.10f1")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	unlock2()
}

func writeLock(t *testing.T, p *Provisioner, name, pid string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(p.Paths.Root, "install-"+name+".lock")
	if err := os.MkdirAll(p.Paths.Root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(pid+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestInstallLockRemovesStaleLocks(t *testing.T) {
	tests := []struct {
		name  string
		pid   string
		alive bool
		age   time.Duration
	}{
		{name: "dead owner", pid: "999999", alive: false, age: time.Minute},
		{name: "abandoned long ago", pid: "4242", alive: true, age: 48 * time.Hour},
		{name: "dead owner and old", pid: "999999", alive: false, age: 48 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t, t.TempDir())
			pidAlive = func(context.Context, int32) bool { return tt.alive }
			p := newTestProvisioner(t, &fakeRunner{})
			writeLock(t, p, "2022.3.10f1", tt.pid, tt.age)

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			unlock, err := p.acquireInstallLock(ctx, "2022.3.10f1")
			if err != nil {
				t.Fatalf("acquire over stale lock: %v", err)
			}
			unlock()
		})
	}
}

func TestInstallLockGivesUpAtDeadline(t *testing.T) {
	isolate(t, t.TempDir())
	pidAlive = func(context.Context, int32) bool { return true }
	lockDeadline = 50 * time.Millisecond
	p := newTestProvisioner(t, &fakeRunner{})
	path := writeLock(t, p, "2022.3.10f1", "4242", 0)

	_, err := p.acquireInstallLock(context.Background(), "2022.3.10f1")
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected lock timeout, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("live lock must be left in place: %v", err)
	}
}
