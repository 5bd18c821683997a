package batch

import (
	"fmt"
	"strings"

	"fontbake/internal/config"
	"fontbake/internal/paths"
)

// Merge applies the fields present on d over a copy of base.
func Merge(base config.Options, d Descriptor) config.Options {
	out := base.Clone()
	p, c := &out.Provision, &out.Convert

	setString(&c.Font, d.Font)
	setString(&c.Output, d.Output)
	setString(&p.EditorPath, d.Unity)
	setString(&p.UnityVersion, d.UnityVersion)
	setString(&p.TargetGame, d.TargetGame)
	setString(&c.BuildTarget, d.BuildTarget)
	setString(&c.BundleName, d.BundleName)
	setString(&c.TMPName, d.TMPName)
	setString(&c.Epoch, d.Epoch)
	if d.UseNoGraphics != nil {
		c.UseNoGraphics = config.BoolPtr(*d.UseNoGraphics)
	}
	setInt(&c.PointSize, d.PointSize)
	setInt(&c.Padding, d.Padding)
	setInt(&c.ScanUpperBound, d.ScanUpperBound)
	if d.AtlasSizes != nil {
		c.AtlasSizes = append([]int(nil), d.AtlasSizes...)
	}
	setBool(&c.IncludeControl, d.IncludeControl)
	setBool(&c.KeepTemp, d.KeepTemp)
	setBool(&c.ForceDynamic, d.ForceDynamic)
	setBool(&c.ForceStatic, d.ForceStatic)
	setInt(&c.DynamicWarmupLimit, d.DynamicWarmupLimit)
	setInt(&c.DynamicWarmupBatch, d.DynamicWarmupBatch)
	return out
}

// resolveJob merges d and makes the paths d supplies absolute against
// baseDir; inherited paths are left as given. A job without a font or output
// fails here rather than inside the pipeline.
func resolveJob(base config.Options, d Descriptor, baseDir string) (config.Options, error) {
	opts := Merge(base, d)
	if baseDir != "" {
		c, p := &opts.Convert, &opts.Provision
		for _, f := range []struct {
			set *string
			dst *string
		}{
			{d.Font, &c.Font},
			{d.Output, &c.Output},
			{d.Unity, &p.EditorPath},
			{d.TargetGame, &p.TargetGame},
		} {
			if f.set != nil {
				*f.dst = paths.ResolveFrom(baseDir, *f.dst)
			}
		}
	}

	var missing []string
	if strings.TrimSpace(opts.Convert.Font) == "" {
		missing = append(missing, "font")
	}
	if strings.TrimSpace(opts.Convert.Output) == "" {
		missing = append(missing, "output")
	}
	if len(missing) > 0 {
		return opts, fmt.Errorf("%w: job is missing %s", config.ErrConfig, strings.Join(missing, " and "))
	}
	return opts, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
