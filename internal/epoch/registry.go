package epoch

import (
	"embed"
	"fmt"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed payloads/*.yaml
var payloadFS embed.FS

// Payload is the opaque in-editor script. It is written verbatim into the
// workspace and never interpreted here.
type Payload struct {
	EntryPoint string `yaml:"entryPoint"`
	OutputFile string `yaml:"outputFile"`
	Source     string `yaml:"source"`
}

// Adapter bundles the defaults and script payload for one epoch.
type Adapter struct {
	Epoch             Epoch
	Name              string
	DefaultNoGraphics bool
	Payload           Payload
}

type adapterDefinition struct {
	Name       string `yaml:"name"`
	NoGraphics bool   `yaml:"noGraphics"`
	Payload    `yaml:",inline"`
}

// Registry holds exactly one adapter per epoch.
type Registry struct {
	adapters map[Epoch]Adapter
}

// NewRegistry builds a registry from adapters, rejecting duplicates.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[Epoch]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, dup := r.adapters[a.Epoch]; dup {
			return nil, fmt.Errorf("duplicate adapter for epoch %s", a.Epoch)
		}
		r.adapters[a.Epoch] = a
	}
	return r, nil
}

// Get returns the adapter for e. A missing adapter is a configuration fault.
func (r *Registry) Get(e Epoch) (Adapter, error) {
	a, ok := r.adapters[e]
	if !ok {
		return Adapter{}, fmt.Errorf("no adapter registered for epoch %s", e)
	}
	return a, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
	defaultErr      error
)

// DefaultRegistry loads the embedded adapter definitions once and caches them.
func DefaultRegistry() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = loadEmbedded()
	})
	return defaultRegistry, defaultErr
}

func loadEmbedded() (*Registry, error) {
	adapters := make([]Adapter, 0, len(All))
	for _, e := range All {
		name := path.Join("payloads", e.String()+".yaml")
		raw, err := payloadFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read adapter definition %s: %w", name, err)
		}
		var def adapterDefinition
		if err := yaml.Unmarshal(raw, &def); err != nil {
			return nil, fmt.Errorf("parse adapter definition %s: %w", name, err)
		}
		if strings.TrimSpace(def.EntryPoint) == "" || strings.TrimSpace(def.Source) == "" {
			return nil, fmt.Errorf("adapter definition %s missing entryPoint or source", name)
		}
		if def.OutputFile == "" {
			def.OutputFile = "FontBakeBuilder.cs"
		}
		adapters = append(adapters, Adapter{
			Epoch:             e,
			Name:              def.Name,
			DefaultNoGraphics: def.NoGraphics,
			Payload:           def.Payload,
		})
	}
	return NewRegistry(adapters...)
}
