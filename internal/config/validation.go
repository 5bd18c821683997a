package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"fontbake/internal/version"
)

const (
	minAtlasSize = 64
	maxAtlasSize = 16384
	maxCodepoint = 0x10FFFF
)

// Validate checks option consistency. It does not touch the filesystem.
// Findings are joined and wrap ErrConfig.
func (o Options) Validate() error {
	var problems []error
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf("%w: "+format, append([]any{ErrConfig}, args...)...))
	}

	c := o.Convert
	if c.ForceStatic && c.ForceDynamic {
		add("force-static and force-dynamic are mutually exclusive")
	}
	if _, err := o.EpochMode(); err != nil {
		add("%v", err)
	}
	if raw := strings.TrimSpace(o.Provision.UnityVersion); raw != "" {
		if _, err := version.Parse(raw); err != nil {
			add("unity version: %v", err)
		}
	}
	if c.PointSize <= 0 {
		add("point size must be positive, got %d", c.PointSize)
	}
	if c.Padding < 0 {
		add("padding must not be negative, got %d", c.Padding)
	}
	if c.ScanUpperBound < 0x20 || c.ScanUpperBound > maxCodepoint {
		add("scan upper bound %#x outside 0x20..%#x", c.ScanUpperBound, maxCodepoint)
	}
	if len(c.AtlasSizes) == 0 {
		add("at least one atlas size is required")
	}
	for _, size := range c.AtlasSizes {
		if size < minAtlasSize || size > maxAtlasSize || size&(size-1) != 0 {
			add("atlas size %d must be a power of two within %d..%d", size, minAtlasSize, maxAtlasSize)
		}
	}
	if c.DynamicWarmupLimit < 0 {
		add("dynamic warm-up limit must not be negative, got %d", c.DynamicWarmupLimit)
	}
	if c.DynamicWarmupBatch <= 0 {
		add("dynamic warm-up batch must be positive, got %d", c.DynamicWarmupBatch)
	}
	return errors.Join(problems...)
}

// ValidateFontExtension rejects fonts the editor cannot import.
func ValidateFontExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(FontExtensions, ext) {
		return fmt.Errorf("%w: unsupported font extension %q (want one of %s)", ErrConfig, ext, strings.Join(FontExtensions, ", "))
	}
	return nil
}
