package config

import (
	"errors"
	"path/filepath"
	"strings"

	"fontbake/internal/epoch"
)

// ErrConfig marks configuration errors: invalid or conflicting options that
// are never retried.
var ErrConfig = errors.New("configuration error")

// Supported font extensions.
var FontExtensions = []string{".ttf", ".otf", ".ttc", ".otc"}

// ProvisioningOptions controls how the editor executable is found or installed.
type ProvisioningOptions struct {
	EditorPath        string `mapstructure:"editor_path" yaml:"editor_path"`
	HubPath           string `mapstructure:"hub_path" yaml:"hub_path"`
	UnityVersion      string `mapstructure:"unity_version" yaml:"unity_version"`
	TargetGame        string `mapstructure:"target_game" yaml:"target_game"`
	InstallRoot       string `mapstructure:"install_root" yaml:"install_root"`
	AutoInstallEditor bool   `mapstructure:"auto_install_editor" yaml:"auto_install_editor"`
	AutoInstallHub    bool   `mapstructure:"auto_install_hub" yaml:"auto_install_hub"`
	PreferLTS         bool   `mapstructure:"prefer_lts" yaml:"prefer_lts"`
	TrimCache         bool   `mapstructure:"trim_cache" yaml:"trim_cache"`
}

// ConversionOptions describes the font asset and bundle to produce.
type ConversionOptions struct {
	Font               string `mapstructure:"font" yaml:"font"`
	Output             string `mapstructure:"output" yaml:"output"`
	BuildTarget        string `mapstructure:"build_target" yaml:"build_target"`
	BundleName         string `mapstructure:"bundle_name" yaml:"bundle_name"`
	TMPName            string `mapstructure:"tmp_name" yaml:"tmp_name"`
	Epoch              string `mapstructure:"epoch" yaml:"epoch"`
	UseNoGraphics      *bool  `mapstructure:"use_no_graphics" yaml:"use_no_graphics,omitempty"`
	PointSize          int    `mapstructure:"point_size" yaml:"point_size"`
	Padding            int    `mapstructure:"padding" yaml:"padding"`
	ScanUpperBound     int    `mapstructure:"scan_upper_bound" yaml:"scan_upper_bound"`
	AtlasSizes         []int  `mapstructure:"atlas_sizes" yaml:"atlas_sizes"`
	IncludeControl     bool   `mapstructure:"include_control" yaml:"include_control"`
	KeepTemp           bool   `mapstructure:"keep_temp" yaml:"keep_temp"`
	ForceDynamic       bool   `mapstructure:"force_dynamic" yaml:"force_dynamic"`
	ForceStatic        bool   `mapstructure:"force_static" yaml:"force_static"`
	DynamicWarmupLimit int    `mapstructure:"dynamic_warmup_limit" yaml:"dynamic_warmup_limit"`
	DynamicWarmupBatch int    `mapstructure:"dynamic_warmup_batch" yaml:"dynamic_warmup_batch"`
}

// Options is the full set of knobs for one conversion job. Batch jobs get
// their own copy with per-job overrides applied.
type Options struct {
	Provision ProvisioningOptions `mapstructure:"provision" yaml:"provision"`
	Convert   ConversionOptions   `mapstructure:"convert" yaml:"convert"`
}

// Settings is the persisted configuration: base job options plus run-level knobs.
type Settings struct {
	Options         `mapstructure:",squash" yaml:",inline"`
	MaxWorkers      int  `mapstructure:"max_workers" yaml:"max_workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error"`
}

// Default returns the baseline options.
func Default() Options {
	return Options{
		Provision: ProvisioningOptions{
			AutoInstallEditor: true,
			AutoInstallHub:    true,
			PreferLTS:         true,
		},
		Convert: ConversionOptions{
			BuildTarget:        "StandaloneWindows64",
			Epoch:              "auto",
			PointSize:          90,
			Padding:            9,
			ScanUpperBound:     0xFFFF,
			AtlasSizes:         []int{1024, 2048, 4096, 8192},
			DynamicWarmupLimit: 20000,
			DynamicWarmupBatch: 1024,
		},
	}
}

// DefaultSettings returns Default options with run-level defaults.
func DefaultSettings() Settings {
	return Settings{Options: Default(), MaxWorkers: 1}
}

// ApplyDefaults fills zero values that have no meaningful zero.
func (o *Options) ApplyDefaults() {
	d := Default()
	c := &o.Convert
	if strings.TrimSpace(c.BuildTarget) == "" {
		c.BuildTarget = d.Convert.BuildTarget
	}
	if strings.TrimSpace(c.Epoch) == "" {
		c.Epoch = d.Convert.Epoch
	}
	if c.PointSize == 0 {
		c.PointSize = d.Convert.PointSize
	}
	if c.ScanUpperBound == 0 {
		c.ScanUpperBound = d.Convert.ScanUpperBound
	}
	if len(c.AtlasSizes) == 0 {
		c.AtlasSizes = append([]int(nil), d.Convert.AtlasSizes...)
	}
	if c.DynamicWarmupLimit == 0 {
		c.DynamicWarmupLimit = d.Convert.DynamicWarmupLimit
	}
	if c.DynamicWarmupBatch == 0 {
		c.DynamicWarmupBatch = d.Convert.DynamicWarmupBatch
	}
}

// Clone returns a deep copy.
func (o Options) Clone() Options {
	out := o
	out.Convert.AtlasSizes = append([]int(nil), o.Convert.AtlasSizes...)
	if o.Convert.UseNoGraphics != nil {
		v := *o.Convert.UseNoGraphics
		out.Convert.UseNoGraphics = &v
	}
	return out
}

// EpochMode parses the epoch option.
func (o Options) EpochMode() (epoch.Mode, error) {
	return epoch.ParseMode(o.Convert.Epoch)
}

// FontBaseName returns the font file name without extension.
func (o Options) FontBaseName() string {
	base := filepath.Base(o.Convert.Font)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ResolvedBundleName returns the bundle name, defaulting to the lowercased font name.
func (o Options) ResolvedBundleName() string {
	if name := strings.TrimSpace(o.Convert.BundleName); name != "" {
		return name
	}
	return strings.ToLower(strings.ReplaceAll(o.FontBaseName(), " ", "_"))
}

// ResolvedTMPName returns the generated asset name, defaulting to "<font> SDF".
func (o Options) ResolvedTMPName() string {
	if name := strings.TrimSpace(o.Convert.TMPName); name != "" {
		return name
	}
	return o.FontBaseName() + " SDF"
}

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}
