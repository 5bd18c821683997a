package epoch

import (
	"context"
	"fmt"
	"strings"

	"fontbake/internal/locate"
	"fontbake/internal/version"
)

// Input carries everything the resolver may consult.
type Input struct {
	Mode           Mode
	EditorPath     string
	DesiredVersion string
	TargetPath     string
}

// Resolution is the outcome of epoch selection.
type Resolution struct {
	Epoch   Epoch
	Version version.Version
	Source  string
}

// Source values for Resolution.
const (
	SourceMode          = "mode"
	SourceEditorFolder  = "editor-folder"
	SourceVersionOption = "version-option"
	SourceTarget        = "target"
	SourceDefault       = "default"
)

var detectTarget = locate.DetectTargetVersion

type versionStep func(ctx context.Context, in Input) (version.Version, string, bool, error)

var versionSteps = []versionStep{
	fromEditorFolder,
	fromVersionOption,
	fromTarget,
}

// Resolve picks the epoch: an explicit mode wins outright; otherwise the
// first resolvable version decides; with nothing resolvable the result is Mid.
func Resolve(ctx context.Context, in Input) (Resolution, error) {
	if e, ok := in.Mode.Epoch(); ok {
		return Resolution{Epoch: e, Source: SourceMode}, nil
	}
	for _, step := range versionSteps {
		v, source, ok, err := step(ctx, in)
		if err != nil {
			return Resolution{}, err
		}
		if ok {
			return Resolution{Epoch: ForVersion(v), Version: v, Source: source}, nil
		}
	}
	return Resolution{Epoch: Mid, Source: SourceDefault}, nil
}

func fromEditorFolder(_ context.Context, in Input) (version.Version, string, bool, error) {
	if strings.TrimSpace(in.EditorPath) == "" {
		return version.Version{}, "", false, nil
	}
	v, ok := locate.InstallFolderVersion(in.EditorPath)
	return v, SourceEditorFolder, ok, nil
}

func fromVersionOption(_ context.Context, in Input) (version.Version, string, bool, error) {
	raw := strings.TrimSpace(in.DesiredVersion)
	if raw == "" {
		return version.Version{}, "", false, nil
	}
	v, err := version.Parse(raw)
	if err != nil {
		return version.Version{}, "", false, fmt.Errorf("unity version: %w", err)
	}
	return v, SourceVersionOption, true, nil
}

func fromTarget(ctx context.Context, in Input) (version.Version, string, bool, error) {
	if strings.TrimSpace(in.TargetPath) == "" {
		return version.Version{}, "", false, nil
	}
	v, ok := detectTarget(ctx, in.TargetPath)
	return v, SourceTarget, ok, nil
}
