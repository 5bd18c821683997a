package cli

import (
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"fontbake/internal/config"
	"fontbake/internal/epoch"
	"fontbake/internal/logx"
	"fontbake/internal/paths"
	"fontbake/internal/pipeline"
	"fontbake/internal/provision"
)

// app holds what a command run needs: settings, directories and the run log.
type app struct {
	settings config.Settings
	paths    paths.AppPaths
	logger   *log.Logger
	logFile  io.Closer
}

func newApp(cmd *cobra.Command, command string) (*app, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	appPaths, err := paths.Resolve()
	if err != nil {
		return nil, err
	}
	if err := appPaths.EnsureDirs(); err != nil {
		return nil, err
	}
	var mirror io.Writer
	if verbose {
		mirror = cmd.ErrOrStderr()
	}
	logger, closer, err := logx.New(appPaths.LogsDir, command, mirror)
	if err != nil {
		return nil, err
	}
	logger.Printf("fontbake %s: %s", Version, command)
	return &app{settings: settings, paths: appPaths, logger: logger, logFile: closer}, nil
}

func (a *app) Close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

func (a *app) provisioner() *provision.Provisioner {
	return provision.New(a.paths, a.logger)
}

func (a *app) pipeline(prov *provision.Provisioner) (*pipeline.Pipeline, error) {
	registry, err := epoch.DefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("load adapters: %w", err)
	}
	return &pipeline.Pipeline{
		Editors:  prov,
		Registry: registry,
		Runner:   prov.Runner,
		Logger:   a.logger,
		Tail:     pipeline.DefaultTailOptions(),
	}, nil
}
