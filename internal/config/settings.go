package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix namespaces settings environment variables, e.g. FONTBAKE_MAX_WORKERS.
	EnvPrefix = "FONTBAKE"
	// SettingsName is the settings file base name searched for by default.
	SettingsName = "fontbake"
)

// NewViper returns a viper instance with defaults, environment binding and
// the settings search path configured. file overrides the search path.
func NewViper(file string) *viper.Viper {
	v := viper.New()
	setDefaults(v, DefaultSettings())

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(SettingsName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "fontbake"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadSettings reads the settings file if present and returns merged settings.
// A missing default settings file is not an error; a missing explicit file is.
func LoadSettings(v *viper.Viper) (Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read settings: %w", err)
		}
	}

	s := DefaultSettings()
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("%w: decode settings: %v", ErrConfig, err)
	}
	s.ApplyDefaults()
	if s.MaxWorkers < 1 {
		s.MaxWorkers = 1
	}
	return s, nil
}

func setDefaults(v *viper.Viper, s Settings) {
	p, c := s.Provision, s.Convert
	v.SetDefault("max_workers", s.MaxWorkers)
	v.SetDefault("continue_on_error", s.ContinueOnError)

	v.SetDefault("provision.editor_path", p.EditorPath)
	v.SetDefault("provision.hub_path", p.HubPath)
	v.SetDefault("provision.unity_version", p.UnityVersion)
	v.SetDefault("provision.target_game", p.TargetGame)
	v.SetDefault("provision.install_root", p.InstallRoot)
	v.SetDefault("provision.auto_install_editor", p.AutoInstallEditor)
	v.SetDefault("provision.auto_install_hub", p.AutoInstallHub)
	v.SetDefault("provision.prefer_lts", p.PreferLTS)
	v.SetDefault("provision.trim_cache", p.TrimCache)

	v.SetDefault("convert.build_target", c.BuildTarget)
	v.SetDefault("convert.epoch", c.Epoch)
	v.SetDefault("convert.point_size", c.PointSize)
	v.SetDefault("convert.padding", c.Padding)
	v.SetDefault("convert.scan_upper_bound", c.ScanUpperBound)
	v.SetDefault("convert.atlas_sizes", c.AtlasSizes)
	v.SetDefault("convert.include_control", c.IncludeControl)
	v.SetDefault("convert.keep_temp", c.KeepTemp)
	v.SetDefault("convert.force_dynamic", c.ForceDynamic)
	v.SetDefault("convert.force_static", c.ForceStatic)
	v.SetDefault("convert.dynamic_warmup_limit", c.DynamicWarmupLimit)
	v.SetDefault("convert.dynamic_warmup_batch", c.DynamicWarmupBatch)
}
