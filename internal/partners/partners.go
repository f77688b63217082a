// Package partners holds the curated registry of organizations a submission
// can be recommended to.
package partners

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed partners.yaml
var registryYAML []byte

// Partner is one registry entry.
type Partner struct {
	Name        string `yaml:"name" json:"name"`
	Website     string `yaml:"website" json:"website"`
	Description string `yaml:"description" json:"description"`
	FocusArea   string `yaml:"focusArea" json:"focusArea"`
}

// Registry is read-only after load.
type Registry struct {
	partners []Partner
	byName   map[string]Partner
}

// Load parses the embedded registry.
func Load() (*Registry, error) {
	return Parse(registryYAML)
}

// Parse builds a registry from YAML. Names must be unique and non-empty.
func Parse(raw []byte) (*Registry, error) {
	var list []Partner
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse partner registry: %w", err)
	}
	r := &Registry{partners: list, byName: make(map[string]Partner, len(list))}
	for i, p := range list {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if key == "" {
			return nil, fmt.Errorf("partner %d has no name", i)
		}
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("duplicate partner %q", p.Name)
		}
		r.byName[key] = p
	}
	return r, nil
}

// All returns partners in registry order.
func (r *Registry) All() []Partner {
	out := make([]Partner, len(r.partners))
	copy(out, r.partners)
	return out
}

// Names returns partner names in registry order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.partners))
	for _, p := range r.partners {
		out = append(out, p.Name)
	}
	return out
}

// Lookup finds a partner by case-insensitive name.
func (r *Registry) Lookup(name string) (Partner, bool) {
	p, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}
