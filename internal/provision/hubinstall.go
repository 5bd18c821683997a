package provision

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fontbake/internal/config"
	"fontbake/internal/runner"
)

var hubInstallerURLs = map[string]string{
	"windows": "https://public-cdn.cloud.unity3d.com/hub/prod/UnityHubSetup.exe",
	"linux":   "https://public-cdn.cloud.unity3d.com/hub/prod/UnityHub.AppImage",
}

var userHomeDir = os.UserHomeDir

// ensureHub returns the Hub executable, bootstrapping it when allowed.
func (p *Provisioner) ensureHub(ctx context.Context, opts config.ProvisioningOptions) (string, error) {
	hubPath, err := findHub(opts.HubPath)
	if err == nil {
		return hubPath, nil
	}
	if !opts.AutoInstallHub {
		return "", fmt.Errorf("%w; set a hub path or enable automatic hub installation", err)
	}
	installerURL, ok := hubInstallerURLs[goos]
	if !ok {
		return "", fmt.Errorf("automatic unity hub installation is not supported on %s", goos)
	}

	unlock, err := p.acquireInstallLock(ctx, "hub")
	if err != nil {
		return "", err
	}
	defer unlock()
	if hubPath, err := findHub(opts.HubPath); err == nil {
		return hubPath, nil
	}

	file, err := p.ensureDownload(ctx, installerURL)
	if err != nil {
		return "", fmt.Errorf("download unity hub: %w", err)
	}
	defer p.removeDownload(file)

	switch goos {
	case "windows":
		p.logf("running unity hub installer %s", file)
		res, err := p.Runner.Run(ctx, file, []string{"/S"}, runner.RunOptions{})
		if err != nil {
			return "", fmt.Errorf("run unity hub installer: %w", err)
		}
		if res.ExitCode != 0 {
			return "", fmt.Errorf("unity hub installer exited with %d", res.ExitCode)
		}
		if err := p.waitInstallersDrained(ctx, installerMatcher("unityhub")); err != nil {
			return "", err
		}
	default:
		home, err := userHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		dest := filepath.Join(home, "Applications", "Unity Hub.AppImage")
		if err := installExecutable(file, dest); err != nil {
			return "", fmt.Errorf("install unity hub: %w", err)
		}
		p.logf("installed unity hub to %s", dest)
	}

	hubPath, err = findHub(opts.HubPath)
	if err != nil {
		return "", fmt.Errorf("unity hub still missing after install: %w", err)
	}
	return hubPath, nil
}

// installExecutable copies src to dest through a temp file and marks it executable.
func installExecutable(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".hub-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o755); err != nil {
		return err
	}
	return os.Rename(tmpPath, dest)
}
