package config

import "slices"

func pendulumDef(name string, angle, damping float64) ModelDef {
	return ModelDef{
		Name: name,
		Components: []ComponentDef{
			{Type: "ground", Name: "ground"},
			{Type: "body", Name: "bob", Properties: map[string]float64{"mass": 1, "length": 1}},
			{
				Type:       "pin_joint",
				Name:       "hinge",
				Properties: map[string]float64{"angle": angle, "damping": damping},
				Connectors: map[string]string{"parent_frame": "ground", "child_frame": "bob"},
			},
		},
	}
}

func coupledDef(stiffness float64) ModelDef {
	arm := func(group, name string, angle float64) []ComponentDef {
		return []ComponentDef{
			{Type: "body", Name: "bob", Properties: map[string]float64{"mass": 1, "length": 1}},
			{
				Type:       "pin_joint",
				Name:       name,
				Properties: map[string]float64{"angle": angle},
				Connectors: map[string]string{"parent_frame": "/coupled/ground", "child_frame": group + "/bob"},
			},
		}
	}
	return ModelDef{
		Name: "coupled",
		Components: []ComponentDef{
			{Type: "ground", Name: "ground"},
			{Type: "group", Name: "left", Components: arm("left", "left_hinge", 0.4)},
			{Type: "group", Name: "right", Components: arm("right", "right_hinge", 0)},
			{
				Type:       "coordinate_coupler",
				Name:       "coupler",
				Properties: map[string]float64{"stiffness": stiffness},
				Connectors: map[string]string{"coordinate1": "left_hinge_angle", "coordinate2": "right_hinge_angle"},
			},
		},
	}
}

func springDef(stiffness float64) ModelDef {
	m := pendulumDef("sprung", 1.0, 0)
	m.Components = append(m.Components,
		ComponentDef{
			Type:       "torsional_spring",
			Name:       "spring",
			Properties: map[string]float64{"stiffness": stiffness, "damping": 0.2},
			Connectors: map[string]string{"coordinate": "hinge_angle"},
		},
		ComponentDef{
			Type:   "work_meter",
			Name:   "meter",
			Inputs: map[string]string{"power": "spring/power"},
		},
	)
	return m
}

func controlledDef(target float64) ModelDef {
	m := pendulumDef("controlled", 0, 0.1)
	m.Components = append(m.Components, ComponentDef{
		Type:       "pid_controller",
		Name:       "controller",
		Properties: map[string]float64{"kp": 40, "ki": 40, "kd": 8, "target": target},
		Connectors: map[string]string{"coordinate": "hinge_angle"},
	})
	return m
}

var Presets = map[string]map[string]*Config{
	"pendulum": {
		"small": {
			Model: pendulumDef("pendulum", 0.2, 0), Integrator: "rk4", Dt: 0.01, Duration: 20.0,
			Record: []string{"bob/height", "hinge/hinge_angle/value"},
		},
		"large": {
			Model: pendulumDef("pendulum", 2.5, 0), Integrator: "rk4", Dt: 0.01, Duration: 20.0,
			Record: []string{"bob/height", "hinge/hinge_angle/value"},
		},
		"damped": {
			Model: pendulumDef("pendulum", 1.0, 0.3), Integrator: "rk45", Dt: 0.01, Duration: 30.0,
			Adaptive: true, Tolerance: 1e-6,
			Record: []string{"bob/height", "hinge/gravity_torque"},
		},
	},
	"coupled": {
		"weak": {
			Model: coupledDef(0.5), Integrator: "rk4", Dt: 0.01, Duration: 60.0,
			Record: []string{"left/left_hinge/left_hinge_angle/value", "right/right_hinge/right_hinge_angle/value"},
		},
		"strong": {
			Model: coupledDef(5), Integrator: "rk4", Dt: 0.005, Duration: 30.0,
			Record: []string{"left/left_hinge/left_hinge_angle/value", "right/right_hinge/right_hinge_angle/value"},
		},
	},
	"controlled": {
		"pid": {
			Model: controlledDef(1.0), Integrator: "rk4", Dt: 0.005, Duration: 10.0,
			Record: []string{"hinge/hinge_angle/value", "controller/error", "controller/torque"},
		},
	},
	"spring": {
		"metered": {
			Model: springDef(8), Integrator: "rk4", Dt: 0.005, Duration: 20.0,
			Record: []string{"spring/torque", "spring/power", "meter/work"},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func ListModels() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
