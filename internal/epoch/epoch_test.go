package epoch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fontbake/internal/locate"
	"fontbake/internal/version"
)

func TestForVersion(t *testing.T) {
	tests := []struct {
		in   string
		want Epoch
	}{
		{"2018.4.36f1", Legacy},
		{"2020.3.48f1", Legacy},
		{"2021.1.0a1", Mid},
		{"2022.3.10f1", Mid},
		{"2023.1.0a5", Modern},
		{"2023.2.20f1", Modern},
		{"6000.0.23f1", Modern},
	}
	for _, tt := range tests {
		if got := ForVersion(version.MustParse(tt.in)); got != tt.want {
			t.Errorf("ForVersion(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseMode(t *testing.T) {
	for raw, want := range map[string]Mode{"": ModeAuto, "AUTO": ModeAuto, "legacy": ModeLegacy, " Mid ": ModeMid, "modern": ModeModern} {
		got, err := ParseMode(raw)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", raw, got, err)
		}
	}
	if _, err := ParseMode("ancient"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry: %v", err)
	}
	wantNames := map[Epoch]string{
		Legacy: "LegacyTMPBundleBuilder",
		Mid:    "TMPBundleBuilder",
		Modern: "ModernTMPBundleBuilder",
	}
	for _, e := range All {
		a, err := reg.Get(e)
		if err != nil {
			t.Fatalf("Get(%s): %v", e, err)
		}
		if a.Epoch != e || a.Name != wantNames[e] {
			t.Errorf("adapter for %s = %+v", e, a)
		}
		if a.Payload.EntryPoint == "" || a.Payload.Source == "" || a.Payload.OutputFile == "" {
			t.Errorf("adapter %s has incomplete payload", e)
		}
	}
	again, _ := DefaultRegistry()
	if again != reg {
		t.Error("expected cached registry instance")
	}
}

func TestRegistryMissingEpoch(t *testing.T) {
	reg, err := NewRegistry(Adapter{Epoch: Mid, Name: "only"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Get(Modern); err == nil {
		t.Fatal("expected error for unregistered epoch")
	}
	if _, err := NewRegistry(Adapter{Epoch: Mid}, Adapter{Epoch: Mid}); err == nil {
		t.Fatal("expected duplicate error")
	}
}

func TestResolveOrder(t *testing.T) {
	root := t.TempDir()
	exe := filepath.Join(root, "2019.4.40f1", locate.EditorRelPath())
	if err := os.MkdirAll(filepath.Dir(exe), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(exe, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}

	origDetect := detectTarget
	defer func() { detectTarget = origDetect }()
	detectTarget = func(_ context.Context, path string) (version.Version, bool) {
		if path == "game" {
			return version.MustParse("2023.2.1f1"), true
		}
		return version.Version{}, false
	}

	tests := []struct {
		name   string
		in     Input
		want   Epoch
		source string
	}{
		{"mode wins", Input{Mode: ModeModern, EditorPath: exe, DesiredVersion: "2019.4.1f1"}, Modern, SourceMode},
		{"editor folder", Input{EditorPath: exe, DesiredVersion: "2022.3.1f1", TargetPath: "game"}, Legacy, SourceEditorFolder},
		{"version option", Input{DesiredVersion: "2022.3.1f1", TargetPath: "game"}, Mid, SourceVersionOption},
		{"target", Input{EditorPath: filepath.Join(root, "Unity"), TargetPath: "game"}, Modern, SourceTarget},
		{"default", Input{TargetPath: "elsewhere"}, Mid, SourceDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(context.Background(), tt.in)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.Epoch != tt.want || res.Source != tt.source {
				t.Fatalf("got %s via %s, want %s via %s", res.Epoch, res.Source, tt.want, tt.source)
			}
		})
	}
}

func TestResolveRejectsBadVersion(t *testing.T) {
	if _, err := Resolve(context.Background(), Input{DesiredVersion: "2022.3"}); err == nil {
		t.Fatal("expected error for unparsable version")
	}
}
