package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model.Name != "pendulum" {
		t.Errorf("expected model pendulum, got %s", cfg.Model.Name)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Duration <= 0 {
		t.Error("duration should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("pendulum", "small")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	hinge, ok := cfg.Model.Find("hinge")
	if !ok {
		t.Fatal("expected hinge in preset")
	}
	if hinge.Properties["angle"] != 0.2 {
		t.Errorf("expected angle 0.2, got %f", hinge.Properties["angle"])
	}
}

func TestGetPresetIsACopy(t *testing.T) {
	cfg := GetPreset("pendulum", "small")
	if err := cfg.SetProperty("hinge.angle", 1.3); err != nil {
		t.Fatal(err)
	}
	again := GetPreset("pendulum", "small")
	hinge, _ := again.Model.Find("hinge")
	if hinge.Properties["angle"] != 0.2 {
		t.Errorf("expected preset untouched, got angle %f", hinge.Properties["angle"])
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	cfg := GetPreset("pendulum", "nonexistent")
	if cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}

	cfg = GetPreset("nonexistent", "small")
	if cfg != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("pendulum")
	if diff := cmp.Diff([]string{"damped", "large", "small"}, presets); diff != "" {
		t.Errorf("presets mismatch (-want +got):\n%s", diff)
	}

	presets = ListPresets("nonexistent")
	if presets != nil {
		t.Error("expected nil for nonexistent model")
	}

	if diff := cmp.Diff([]string{"controlled", "coupled", "pendulum", "spring"}, ListModels()); diff != "" {
		t.Errorf("models mismatch (-want +got):\n%s", diff)
	}
}

func TestAllPresetsValidate(t *testing.T) {
	for model, variants := range Presets {
		for name, cfg := range variants {
			if err := cfg.Validate(); err != nil {
				t.Errorf("preset %s/%s: %v", model, name, err)
			}
		}
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
model:
  name: arm
  gravity: 1.62
  components:
    - type: ground
      name: ground
    - type: group
      name: upper
      components:
        - type: body
          name: bob
          properties: {mass: 2, length: 0.5}
        - type: pin_joint
          name: shoulder
          properties: {angle: 0.1}
          connectors: {parent_frame: ground, child_frame: upper/bob}
dt: 0.005
duration: 2
record: [upper/bob/height]
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Integrator != DefaultIntegrator {
		t.Errorf("expected default integrator, got %s", cfg.Integrator)
	}
	if cfg.Model.Gravity == nil || *cfg.Model.Gravity != 1.62 {
		t.Errorf("expected gravity 1.62, got %v", cfg.Model.Gravity)
	}
	joint, ok := cfg.Model.Find("upper/shoulder")
	if !ok {
		t.Fatal("expected nested joint")
	}
	want := map[string]string{"parent_frame": "ground", "child_frame": "upper/bob"}
	if diff := cmp.Diff(want, joint.Connectors); diff != "" {
		t.Errorf("connectors mismatch (-want +got):\n%s", diff)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no components", "model: {name: empty}"},
		{"no name", "model: {components: [{type: ground, name: g}]}"},
		{"missing type", "model: {name: m, components: [{name: g}]}"},
		{"duplicate", "model: {name: m, components: [{type: ground, name: g}, {type: body, name: g}]}"},
		{"bad dt", "dt: -1\nmodel: {name: m, components: [{type: ground, name: g}]}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected invalid definition, got %v", err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	cfg := GetPreset("spring", "metered")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSetProperty(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.SetProperty("bob.mass", 3); err != nil {
		t.Fatal(err)
	}
	bob, _ := cfg.Model.Find("bob")
	if bob.Properties["mass"] != 3 {
		t.Errorf("expected mass 3, got %f", bob.Properties["mass"])
	}
	for _, key := range []string{"mass", "bob.", "nobody.mass"} {
		if err := cfg.SetProperty(key, 1); !errors.Is(err, ErrInvalid) {
			t.Errorf("key %q: expected invalid, got %v", key, err)
		}
	}
}
