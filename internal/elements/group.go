package elements

import "github.com/san-kum/simtree/internal/component"

// Group holds other components so they share a path prefix. It adds nothing
// to the system itself.
type Group struct {
	component.Base
	Members []component.Component
}

func NewGroup(name string, members ...component.Component) *Group {
	g := &Group{Members: members}
	g.Init(g, name)
	return g
}

func (g *Group) Add(c component.Component) { g.Members = append(g.Members, c) }

func (g *Group) ExtendFinalizeFromProperties() error {
	for _, m := range g.Members {
		if err := g.AddComponent(m); err != nil {
			return err
		}
	}
	return nil
}
