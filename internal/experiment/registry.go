package experiment

import (
	"fmt"
	"maps"
	"slices"

	"github.com/san-kum/simtree/internal/component"
	"github.com/san-kum/simtree/internal/config"
	"github.com/san-kum/simtree/internal/elements"
	"github.com/san-kum/simtree/internal/model"
)

// Factory constructs an unconfigured element with the given name.
type Factory func(name string) component.Component

// Registry maps definition type names to element factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register("ground", func(name string) component.Component { return elements.NewGround(name) })
	r.Register("body", func(name string) component.Component { return elements.NewBody(name, 1, 1) })
	r.Register("pin_joint", func(name string) component.Component { return elements.NewPinJoint(name, "", "") })
	r.Register("torsional_spring", func(name string) component.Component { return elements.NewTorsionalSpring(name, "", 0) })
	r.Register("coordinate_coupler", func(name string) component.Component { return elements.NewCoordinateCoupler(name, "", "", 0) })
	r.Register("pid_controller", func(name string) component.Component { return elements.NewPIDController(name, "", 0, 0, 0, 0) })
	r.Register("work_meter", func(name string) component.Component { return elements.NewWorkMeter(name, "") })
	r.Register("group", func(name string) component.Component { return elements.NewGroup(name) })

	return r
}

func (r *Registry) Register(typeName string, f Factory) {
	r.factories[typeName] = f
}

func (r *Registry) Types() []string {
	return slices.Sorted(maps.Keys(r.factories))
}

// Build constructs one element and, for groups, its nested members.
func (r *Registry) Build(def config.ComponentDef) (component.Component, error) {
	fn, ok := r.factories[def.Type]
	if !ok {
		return nil, fmt.Errorf("unknown component type: %s", def.Type)
	}
	c := fn(def.Name)
	b := c.ComponentBase()

	if len(def.Properties) > 0 {
		p, ok := c.(elements.Parameterized)
		if !ok {
			return nil, fmt.Errorf("%s %q takes no properties", def.Type, def.Name)
		}
		for _, key := range slices.Sorted(maps.Keys(def.Properties)) {
			if err := p.SetParam(key, def.Properties[key]); err != nil {
				return nil, fmt.Errorf("%s %q: %w", def.Type, def.Name, err)
			}
		}
	}
	for slot, target := range def.Connectors {
		conn, err := b.Connector(slot)
		if err != nil {
			return nil, err
		}
		conn.SetConnecteeName(target)
	}
	for slot, target := range def.Inputs {
		in, err := b.GetInput(slot)
		if err != nil {
			return nil, err
		}
		in.SetConnecteeName(target)
	}

	if len(def.Components) > 0 {
		g, ok := c.(*elements.Group)
		if !ok {
			return nil, fmt.Errorf("%s %q cannot hold components", def.Type, def.Name)
		}
		for _, sub := range def.Components {
			m, err := r.Build(sub)
			if err != nil {
				return nil, err
			}
			g.Add(m)
		}
	}
	return c, nil
}

// BuildModel constructs an unbuilt model tree from a definition.
func (r *Registry) BuildModel(def config.ModelDef) (*model.Model, error) {
	m := model.New(def.Name)
	if def.Gravity != nil {
		m.Gravity = *def.Gravity
	}
	for _, cd := range def.Components {
		c, err := r.Build(cd)
		if err != nil {
			return nil, err
		}
		m.Add(c)
	}
	return m, nil
}
