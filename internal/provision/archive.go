package provision

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"fontbake/internal/runner"
	"fontbake/internal/version"
)

var (
	archivePageURL  = "https://unity.com/releases/editor/archive"
	downloadBaseURL = "https://download.unity3d.com/download_unity"
)

// The archive page is third-party markup; these patterns are best effort.
var (
	hubLinkRegex       = regexp.MustCompile(`unityhub://(\d+\.\d+\.\d+[abfp]\d+)/([0-9a-f]{12})`)
	installerLinkRegex = regexp.MustCompile(`download_unity/([0-9a-f]{12})/[A-Za-z0-9]+/Unity(?:Setup64|Setup|Editor|Download)?-(\d+\.\d+\.\d+[abfp]\d+)\.(?:exe|pkg)`)
)

// scrapeArchive lists releases linked from the public download archive.
func (p *Provisioner) scrapeArchive(ctx context.Context) ([]Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archivePageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch archive page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch archive page: unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read archive page: %w", err)
	}
	releases := parseArchivePage(body)
	if len(releases) == 0 {
		return nil, fmt.Errorf("archive page lists no releases")
	}
	return releases, nil
}

// parseArchivePage collects version/changeset pairs from anchor targets and
// from inline script text, where the page embeds its release data.
func parseArchivePage(body []byte) []Release {
	seen := map[version.Version]bool{}
	var releases []Release
	add := func(rawVersion, changeset string) {
		v, err := version.Parse(rawVersion)
		if err != nil || seen[v] {
			return
		}
		seen[v] = true
		releases = append(releases, Release{Version: v, Changeset: changeset})
	}
	scan := func(text string) {
		for _, m := range hubLinkRegex.FindAllStringSubmatch(text, -1) {
			add(m[1], m[2])
		}
		for _, m := range installerLinkRegex.FindAllStringSubmatch(text, -1) {
			add(m[2], m[1])
		}
	}

	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sortReleases(releases)
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "a" {
				continue
			}
			for _, attr := range tok.Attr {
				if attr.Key == "href" {
					scan(attr.Val)
				}
			}
		case html.TextToken:
			scan(string(z.Text()))
		}
	}
}

func sortReleases(rs []Release) []Release {
	sort.SliceStable(rs, func(i, j int) bool { return rs[j].Version.Less(rs[i].Version) })
	return rs
}

// editorInstallerURL is the direct installer for rel on this platform.
func editorInstallerURL(rel Release) (string, error) {
	base := strings.TrimRight(downloadBaseURL, "/") + "/" + rel.Changeset
	switch goos {
	case "windows":
		return fmt.Sprintf("%s/Windows64EditorInstaller/UnitySetup64-%s.exe", base, rel.Version), nil
	case "linux":
		return base + "/LinuxEditorInstaller/Unity.tar.xz", nil
	}
	return "", fmt.Errorf("direct editor installation is not supported on %s", goos)
}

// installFromArchive installs the release closest to desired straight from
// the download archive into <root>/<version>.
func (p *Provisioner) installFromArchive(ctx context.Context, desired version.Version, root string) (Release, error) {
	releases, err := p.scrapeArchive(ctx)
	if err != nil {
		return Release{}, err
	}
	rel, ok := selectRelease(releases, desired, false)
	if !ok {
		return Release{}, &NotFoundError{
			Desired:     desired,
			InstallRoot: root,
			Known:       knownTrains(releaseVersions(releases)),
			Reason:      errNoRelease.Error() + " in the download archive",
		}
	}
	installerURL, err := editorInstallerURL(rel)
	if err != nil {
		return Release{}, err
	}
	file, err := p.ensureDownload(ctx, installerURL)
	if err != nil {
		return Release{}, err
	}
	defer p.removeDownload(file)

	target := filepath.Join(root, rel.Version.String())
	p.logf("installing %s from archive into %s", rel.Version, target)
	switch goos {
	case "windows":
		res, err := p.Runner.Run(ctx, file, []string{"/S", "/D=" + target}, runner.RunOptions{})
		if err != nil {
			return Release{}, fmt.Errorf("run editor installer: %w", err)
		}
		if res.ExitCode != 0 {
			return Release{}, fmt.Errorf("editor installer exited with %d", res.ExitCode)
		}
		if err := p.waitInstallersDrained(ctx, installerMatcher(rel.Version.String())); err != nil {
			return Release{}, err
		}
	default:
		if err := p.extractTarXz(ctx, file, target); err != nil {
			return Release{}, err
		}
	}
	return rel, nil
}
