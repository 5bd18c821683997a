package provision

import (
	"context"
	"errors"
	"fmt"
	"os"

	"fontbake/internal/locate"
	"fontbake/internal/version"
)

// install drives the Hub, falling back to the download archive, then
// rescans for the installed editor.
func (p *Provisioner) install(ctx context.Context, st *resolveState) (Result, error) {
	root, isDefault := installRoot(st.opts)
	if root == "" {
		return Result{}, p.notFound(st, "no install root available")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return Result{}, fmt.Errorf("prepare install root: %w", err)
	}

	token := "latest"
	if !st.desired.IsZero() {
		token = st.desired.String()
	}
	unlock, err := p.acquireInstallLock(ctx, token)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	// A concurrent job may have finished the same install while we waited.
	if !st.desired.IsZero() {
		if in, ok := locate.FindExactVersion(p.rescan(st, root), st.desired); ok {
			return fromInstall(in, SourceInstalled), nil
		}
	}

	rel, err := p.installViaHub(ctx, st, root)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		p.logf("hub install failed: %v", err)
		if st.desired.IsZero() {
			return Result{}, fmt.Errorf("install editor: %w", err)
		}
		var archiveErr error
		rel, archiveErr = p.installFromArchive(ctx, st.desired, root)
		if archiveErr != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			var nf *NotFoundError
			if errors.As(archiveErr, &nf) {
				return Result{}, nf
			}
			return Result{}, fmt.Errorf("install editor %s: %w", st.desired, errors.Join(err, archiveErr))
		}
	}

	installs := p.rescan(st, root)
	want := st.desired
	if want.IsZero() {
		want = rel.Version
	}
	in, ok := locate.FindExactVersion(installs, want)
	if !ok {
		in, ok = locate.FindExactVersion(installs, rel.Version)
	}
	if !ok {
		in, ok = locate.FindLatestInstalled(installs)
	}
	if !ok {
		st.installs = installs
		return Result{}, p.notFound(st, "installation finished but no editor was found")
	}

	if isDefault && st.opts.TrimCache {
		p.trimCache(root, in.Version)
	}
	return fromInstall(in, SourceInstalled), nil
}

func (p *Provisioner) rescan(st *resolveState, root string) []locate.Install {
	return locate.DiscoverEditors(append([]string{root}, editorRoots(st.opts.InstallRoot)...))
}

func (p *Provisioner) installViaHub(ctx context.Context, st *resolveState, root string) (Release, error) {
	hubPath, err := p.ensureHub(ctx, st.opts)
	if err != nil {
		return Release{}, err
	}
	hub := p.hub(hubPath)
	// The release list settles the calling convention for the later commands.
	releases, err := hub.releases(ctx)
	if err != nil {
		return Release{}, err
	}
	if err := hub.setInstallPath(ctx, root); err != nil {
		p.logf("%v", err)
	}
	rel, ok := selectRelease(releases, st.desired, st.opts.PreferLTS)
	if !ok {
		return Release{}, &NotFoundError{
			Desired:     st.desired,
			InstallRoot: root,
			Known:       knownTrains(releaseVersions(releases)),
			Reason:      errNoRelease.Error() + " in the hub release list",
		}
	}
	p.logf("installing %s via hub", rel.Version)
	if err := hub.install(ctx, rel); err != nil {
		return Release{}, err
	}
	if err := p.waitInstallersDrained(ctx, installerMatcher(rel.Version.String())); err != nil {
		return Release{}, err
	}
	return rel, nil
}

// trimCache removes editors in root other than keep. Failures are logged.
func (p *Provisioner) trimCache(root string, keep version.Version) {
	for _, in := range locate.DiscoverEditors([]string{root}) {
		if in.Version == keep {
			continue
		}
		folder := locate.InstallFolder(in.ExecutablePath)
		if folder == "" || !locate.IsDirectChild(root, folder) {
			continue
		}
		p.logf("trimming cached editor %s", folder)
		if err := os.RemoveAll(folder); err != nil {
			p.logf("trim %s: %v", folder, err)
		}
	}
}
