package viz

import (
	"fmt"
	"strings"

	"github.com/san-kum/simtree/internal/component"
)

// TreeOptions selects the slots RenderTree lists under each node.
type TreeOptions struct {
	Connectors bool
	Inputs     bool
	Outputs    bool
}

// RenderTree draws root and its descendants in preorder with box-drawing
// guides.
func RenderTree(st Styles, root component.Component, opts TreeOptions) string {
	var b strings.Builder
	renderNode(&b, st, root, "", "", opts)
	return b.String()
}

func renderNode(b *strings.Builder, st Styles, c component.Component, lead, childLead string, opts TreeOptions) {
	base := c.ComponentBase()
	fmt.Fprintf(b, "%s%s %s\n", lead, st.Node.Render(base.Name()), st.Class.Render("("+base.ClassName()+")"))

	var details []string
	if opts.Connectors {
		for _, conn := range base.Connectors() {
			details = append(details, fmt.Sprintf("→ %s: %s", conn.Name(), conn.ConnecteeName()))
		}
	}
	if opts.Inputs {
		for _, in := range base.Inputs() {
			details = append(details, fmt.Sprintf("← %s: %s", in.Name(), in.ConnecteeName()))
		}
	}
	if opts.Outputs {
		for _, out := range base.Outputs() {
			details = append(details, fmt.Sprintf("○ %s [%s] @%s", out.Name(), out.TypeName(), out.DependsOn()))
		}
	}

	children := base.Children()
	for _, d := range details {
		guide := "  "
		if len(children) > 0 {
			guide = "│ "
		}
		fmt.Fprintf(b, "%s%s%s\n", childLead, guide, st.Subtle.Render(d))
	}

	for i, child := range children {
		if i == len(children)-1 {
			renderNode(b, st, child, childLead+"└── ", childLead+"    ", opts)
		} else {
			renderNode(b, st, child, childLead+"├── ", childLead+"│   ", opts)
		}
	}
}
