package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"fontbake/internal/config"
)

// optionFlags are the job option flags shared by convert and batch. Only
// flags set on the command line override settings.
type optionFlags struct {
	editorPath   string
	hubPath      string
	unityVersion string
	targetGame   string
	installRoot  string
	noAutoEditor bool
	noAutoHub    bool
	noLTS        bool
	trimCache    bool

	output         string
	buildTarget    string
	bundleName     string
	tmpName        string
	epoch          string
	noGraphics     bool
	pointSize      int
	padding        int
	scanUpperBound string
	atlasSizes     []int
	includeControl bool
	keepTemp       bool
	forceDynamic   bool
	forceStatic    bool
	warmupLimit    int
	warmupBatch    int
}

func (f *optionFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.editorPath, "unity", "", "Unity editor executable")
	fs.StringVar(&f.hubPath, "hub", "", "Unity Hub executable")
	fs.StringVar(&f.unityVersion, "unity-version", "", "Desired editor version, e.g. 2022.3.10f1")
	fs.StringVar(&f.targetGame, "target-game", "", "Game executable or _Data folder to match the editor version against")
	fs.StringVar(&f.installRoot, "install-root", "", "Directory editors are installed into")
	fs.BoolVar(&f.noAutoEditor, "no-auto-install", false, "Never install an editor automatically")
	fs.BoolVar(&f.noAutoHub, "no-hub-install", false, "Never install Unity Hub automatically")
	fs.BoolVar(&f.noLTS, "no-lts", false, "Do not prefer LTS releases when installing without a desired version")
	fs.BoolVar(&f.trimCache, "trim-cache", false, "Remove other editor versions from the default install root after installing")

	fs.StringVarP(&f.output, "output", "o", "", "Output directory for the bundle")
	fs.StringVar(&f.buildTarget, "build-target", "", "Unity build target (default StandaloneWindows64)")
	fs.StringVar(&f.bundleName, "bundle-name", "", "AssetBundle name (default: lowercased font name)")
	fs.StringVar(&f.tmpName, "tmp-name", "", "TextMeshPro asset name (default: \"<font> SDF\")")
	fs.StringVar(&f.epoch, "epoch", "", "Automation strategy: auto, legacy, mid or modern")
	fs.BoolVar(&f.noGraphics, "nographics", false, "Pass -nographics to the editor (default depends on the epoch)")
	fs.IntVar(&f.pointSize, "point-size", 0, "Sampling point size")
	fs.IntVar(&f.padding, "padding", 0, "Atlas padding")
	fs.StringVar(&f.scanUpperBound, "scan-upper-bound", "", "Highest code point to scan, decimal or 0x hex")
	fs.IntSliceVar(&f.atlasSizes, "atlas-sizes", nil, "Atlas size candidates, smallest first")
	fs.BoolVar(&f.includeControl, "include-control", false, "Include control characters")
	fs.BoolVar(&f.keepTemp, "keep-temp", false, "Keep the temporary Unity project")
	fs.BoolVar(&f.forceDynamic, "force-dynamic", false, "Always produce a dynamic font asset")
	fs.BoolVar(&f.forceStatic, "force-static", false, "Always produce a static font asset")
	fs.IntVar(&f.warmupLimit, "warmup-limit", 0, "Dynamic warm-up glyph limit")
	fs.IntVar(&f.warmupBatch, "warmup-batch", 0, "Dynamic warm-up batch size")
}

func (f *optionFlags) apply(fs *pflag.FlagSet, opts *config.Options) error {
	p, c := &opts.Provision, &opts.Convert
	changed := fs.Changed

	if changed("unity") {
		p.EditorPath = absPath(f.editorPath)
	}
	if changed("hub") {
		p.HubPath = absPath(f.hubPath)
	}
	if changed("unity-version") {
		p.UnityVersion = f.unityVersion
	}
	if changed("target-game") {
		p.TargetGame = absPath(f.targetGame)
	}
	if changed("install-root") {
		p.InstallRoot = absPath(f.installRoot)
	}
	if changed("no-auto-install") {
		p.AutoInstallEditor = !f.noAutoEditor
	}
	if changed("no-hub-install") {
		p.AutoInstallHub = !f.noAutoHub
	}
	if changed("no-lts") {
		p.PreferLTS = !f.noLTS
	}
	if changed("trim-cache") {
		p.TrimCache = f.trimCache
	}

	if changed("output") {
		c.Output = absPath(f.output)
	}
	if changed("build-target") {
		c.BuildTarget = f.buildTarget
	}
	if changed("bundle-name") {
		c.BundleName = f.bundleName
	}
	if changed("tmp-name") {
		c.TMPName = f.tmpName
	}
	if changed("epoch") {
		c.Epoch = f.epoch
	}
	if changed("nographics") {
		c.UseNoGraphics = config.BoolPtr(f.noGraphics)
	}
	if changed("point-size") {
		c.PointSize = f.pointSize
	}
	if changed("padding") {
		c.Padding = f.padding
	}
	if changed("scan-upper-bound") {
		bound, err := strconv.ParseInt(strings.TrimSpace(f.scanUpperBound), 0, 32)
		if err != nil {
			return usageError{fmt.Errorf("invalid --scan-upper-bound %q", f.scanUpperBound)}
		}
		c.ScanUpperBound = int(bound)
	}
	if changed("atlas-sizes") {
		c.AtlasSizes = append([]int(nil), f.atlasSizes...)
	}
	if changed("include-control") {
		c.IncludeControl = f.includeControl
	}
	if changed("keep-temp") {
		c.KeepTemp = f.keepTemp
	}
	if changed("force-dynamic") {
		c.ForceDynamic = f.forceDynamic
	}
	if changed("force-static") {
		c.ForceStatic = f.forceStatic
	}
	if changed("warmup-limit") {
		c.DynamicWarmupLimit = f.warmupLimit
	}
	if changed("warmup-batch") {
		c.DynamicWarmupBatch = f.warmupBatch
	}
	return nil
}

func absPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
