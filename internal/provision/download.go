package provision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"fontbake/internal/runner"
)

const userAgent = "fontbake/1.0"

func (p *Provisioner) ensureDownload(ctx context.Context, downloadURL string) (string, error) {
	if err := os.MkdirAll(p.Paths.DownloadsDir, 0o755); err != nil {
		return "", fmt.Errorf("prepare downloads dir: %w", err)
	}
	dest, err := resolveDownloadPath(p.Paths.DownloadsDir, downloadURL)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		p.logf("reusing download %s (%s)", dest, humanize.Bytes(uint64(info.Size())))
		return dest, nil
	}
	if err := p.downloadArtifact(ctx, dest, downloadURL); err != nil {
		return "", err
	}
	return dest, nil
}

func (p *Provisioner) downloadArtifact(ctx context.Context, dest, downloadURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	p.logf("downloading %s", downloadURL)
	resp, err := p.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", downloadURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download %s: unexpected status %s", downloadURL, resp.Status)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dest), "download-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	written, err := io.Copy(tmpFile, resp.Body)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("finalize download: %w", err)
	}
	p.logf("downloaded %s (%s)", filepath.Base(dest), humanize.Bytes(uint64(written)))
	return nil
}

// resolveDownloadPath names the local file after the URL. Installers that
// share a generic name (Unity.tar.xz) get the changeset folder as prefix.
func resolveDownloadPath(downloadsDir, downloadURL string) (string, error) {
	parsed, err := url.Parse(downloadURL)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	base := path.Base(parsed.Path)
	if base == "." || base == "" || base == "/" {
		return "", fmt.Errorf("infer file name from url: %s", downloadURL)
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) >= 3 && !strings.ContainsAny(base, "0123456789") {
		base = segments[len(segments)-3] + "-" + base
	}
	return filepath.Join(downloadsDir, base), nil
}

// removeDownload deletes a finished installer; failures are only logged.
func (p *Provisioner) removeDownload(file string) {
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		p.logf("cleanup %s: %v", file, err)
	}
}

func (p *Provisioner) extractTarXz(ctx context.Context, archivePath, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("prepare extract dir: %w", err)
	}
	res, err := p.Runner.Run(ctx, "tar", []string{"-xJf", archivePath, "-C", dest}, runner.RunOptions{})
	if err != nil {
		return fmt.Errorf("tar extract: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("tar extract: exit %d: %s", res.ExitCode, tail(res.Output(), 400))
	}
	return nil
}
