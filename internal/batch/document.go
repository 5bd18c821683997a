// Package batch runs many conversion jobs described by a job document.
package batch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"fontbake/internal/config"
	"fontbake/internal/epoch"
)

// Descriptor carries only the fields a job overrides; nil means inherit.
type Descriptor struct {
	ID                 *string `yaml:"id"`
	Font               *string `yaml:"font"`
	Output             *string `yaml:"output"`
	Unity              *string `yaml:"unity"`
	UnityVersion       *string `yaml:"unityVersion"`
	TargetGame         *string `yaml:"targetGame"`
	BuildTarget        *string `yaml:"buildTarget"`
	BundleName         *string `yaml:"bundleName"`
	TMPName            *string `yaml:"tmpName"`
	Epoch              *string `yaml:"epoch"`
	UseNoGraphics      *bool   `yaml:"useNoGraphics"`
	PointSize          *int    `yaml:"pointSize"`
	Padding            *int    `yaml:"padding"`
	ScanUpperBound     *int    `yaml:"scanUpperBound"`
	AtlasSizes         []int   `yaml:"atlasSizes"`
	IncludeControl     *bool   `yaml:"includeControl"`
	KeepTemp           *bool   `yaml:"keepTemp"`
	ForceDynamic       *bool   `yaml:"forceDynamic"`
	ForceStatic        *bool   `yaml:"forceStatic"`
	DynamicWarmupLimit *int    `yaml:"dynamicWarmupLimit"`
	DynamicWarmupBatch *int    `yaml:"dynamicWarmupBatch"`
}

// Document is an ordered list of jobs.
type Document struct {
	Jobs []Descriptor `yaml:"jobs"`
	// BaseDir resolves relative font and output paths; it is the document's
	// directory when loaded from a file.
	BaseDir string `yaml:"-"`
}

// Load reads a job document. JSON documents are accepted as YAML.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read job document: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Document{}, fmt.Errorf("resolve job document path: %w", err)
	}
	doc.BaseDir = filepath.Dir(abs)
	return doc, nil
}

// Parse decodes and validates a job document.
func Parse(data []byte) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: decode job document: %v", config.ErrConfig, err)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Validate checks document-level rules. Per-job completeness (font and
// output) is checked after merging, when base options are known.
func (d Document) Validate() error {
	if len(d.Jobs) == 0 {
		return fmt.Errorf("%w: job document contains no jobs", config.ErrConfig)
	}
	var problems []error
	for i, job := range d.Jobs {
		add := func(format string, args ...any) {
			problems = append(problems, fmt.Errorf("%w: job %d: "+format, append([]any{config.ErrConfig, i}, args...)...))
		}
		if job.Epoch != nil {
			if _, err := epoch.ParseMode(*job.Epoch); err != nil {
				add("%v", err)
			}
		}
		for _, size := range job.AtlasSizes {
			if size < 64 || size > 16384 || size&(size-1) != 0 {
				add("atlas size %d must be a power of two within 64..16384", size)
			}
		}
		if job.ForceStatic != nil && job.ForceDynamic != nil && *job.ForceStatic && *job.ForceDynamic {
			add("forceStatic and forceDynamic are mutually exclusive")
		}
	}
	return errors.Join(problems...)
}

// Name labels a job in results: its id, else the font file name, else its
// position.
func (d Descriptor) Name(index int) string {
	if d.ID != nil && strings.TrimSpace(*d.ID) != "" {
		return strings.TrimSpace(*d.ID)
	}
	if d.Font != nil && strings.TrimSpace(*d.Font) != "" {
		return filepath.Base(*d.Font)
	}
	return fmt.Sprintf("job-%d", index+1)
}
