// Package config reads and writes YAML model definitions and simulation
// settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDt         = 0.01
	DefaultDuration   = 10.0
	DefaultTolerance  = 1e-6
	DefaultIntegrator = "rk4"
	DefaultAngle      = 0.5
)

var ErrInvalid = errors.New("config: invalid definition")

type Config struct {
	Model      ModelDef `yaml:"model"`
	Integrator string   `yaml:"integrator"`
	Dt         float64  `yaml:"dt"`
	Duration   float64  `yaml:"duration"`
	Seed       int64    `yaml:"seed"`
	Adaptive   bool     `yaml:"adaptive,omitempty"`
	Tolerance  float64  `yaml:"tolerance"`
	// Record lists output paths, relative to the model, sampled every step.
	Record []string `yaml:"record,omitempty"`
}

type ModelDef struct {
	Name       string         `yaml:"name"`
	Gravity    *float64       `yaml:"gravity,omitempty"`
	Components []ComponentDef `yaml:"components"`
}

// ComponentDef describes one node. Connectors and Inputs map a slot name to
// the path or bare name of what it should bind to.
type ComponentDef struct {
	Type       string             `yaml:"type"`
	Name       string             `yaml:"name"`
	Properties map[string]float64 `yaml:"properties,omitempty"`
	Connectors map[string]string  `yaml:"connectors,omitempty"`
	Inputs     map[string]string  `yaml:"inputs,omitempty"`
	Components []ComponentDef     `yaml:"components,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      pendulumDef("pendulum", DefaultAngle, 0),
		Integrator: DefaultIntegrator,
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Tolerance:  DefaultTolerance,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. A file that
// names components replaces the default model entirely.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Model = ModelDef{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Model.Name == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalid)
	}
	if len(c.Model.Components) == 0 {
		return fmt.Errorf("%w: model %s has no components", ErrInvalid, c.Model.Name)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalid, c.Dt)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %g", ErrInvalid, c.Duration)
	}
	return validateComponents(c.Model.Components, c.Model.Name)
}

func validateComponents(defs []ComponentDef, parent string) error {
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if d.Type == "" {
			return fmt.Errorf("%w: component %q under %s has no type", ErrInvalid, d.Name, parent)
		}
		if d.Name != "" {
			if seen[d.Name] {
				return fmt.Errorf("%w: duplicate component %q under %s", ErrInvalid, d.Name, parent)
			}
			seen[d.Name] = true
		}
		if err := validateComponents(d.Components, parent+"/"+d.Name); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy, so presets can be modified by callers.
func (c *Config) Clone() *Config {
	out := *c
	out.Record = append([]string(nil), c.Record...)
	if c.Model.Gravity != nil {
		g := *c.Model.Gravity
		out.Model.Gravity = &g
	}
	out.Model.Components = cloneDefs(c.Model.Components)
	return &out
}

func cloneDefs(defs []ComponentDef) []ComponentDef {
	if defs == nil {
		return nil
	}
	out := make([]ComponentDef, len(defs))
	for i, d := range defs {
		out[i] = d
		out[i].Properties = cloneMap(d.Properties)
		out[i].Connectors = cloneMap(d.Connectors)
		out[i].Inputs = cloneMap(d.Inputs)
		out[i].Components = cloneDefs(d.Components)
	}
	return out
}

func cloneMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Find returns the definition at a slash separated path of component names.
func (m *ModelDef) Find(path string) (*ComponentDef, bool) {
	defs := m.Components
	var found *ComponentDef
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		found = nil
		for i := range defs {
			if defs[i].Name == seg {
				found = &defs[i]
				break
			}
		}
		if found == nil {
			return nil, false
		}
		defs = found.Components
	}
	return found, found != nil
}

// SetProperty overrides one numeric property addressed as
// "<component path>.<property>".
func (c *Config) SetProperty(key string, value float64) error {
	dot := strings.LastIndex(key, ".")
	if dot <= 0 || dot == len(key)-1 {
		return fmt.Errorf("%w: property key %q must be <component>.<property>", ErrInvalid, key)
	}
	def, ok := c.Model.Find(key[:dot])
	if !ok {
		return fmt.Errorf("%w: no component %q", ErrInvalid, key[:dot])
	}
	if def.Properties == nil {
		def.Properties = make(map[string]float64)
	}
	def.Properties[key[dot+1:]] = value
	return nil
}
