package workflow

import (
	"fmt"
	"strings"
)

// Dot renders the declared graph in Graphviz DOT format. Edges are labelled
// with their output:input links.
func (w *Workflow) Dot() string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", w.Name)
	for _, n := range w.Nodes() {
		attrs := []string{fmt.Sprintf("label=%q", nodeLabel(n))}
		switch {
		case n.Iterables != nil:
			attrs = append(attrs, "shape=box", `style="rounded"`)
		case n.IsJoin():
			attrs = append(attrs, "shape=invtrapezium")
		case n.IsMap():
			attrs = append(attrs, "shape=box3d")
		default:
			attrs = append(attrs, "shape=box")
		}
		fmt.Fprintf(&b, "  %q [%s];\n", n.Name, strings.Join(attrs, ", "))
	}
	for _, e := range w.edges {
		links := make([]string, len(e.Links))
		for i, l := range e.Links {
			links[i] = l.Output + ":" + l.Input
		}
		fmt.Fprintf(&b, "  %q -> %q [label=%q];\n", e.From, e.To, strings.Join(links, ", "))
	}
	b.WriteString("}\n")
	return b.String()
}

func nodeLabel(n *Node) string {
	name := "?"
	if n.Interface != nil {
		name = n.Interface.Spec().Name
	}
	return fmt.Sprintf("%s (%s)", n.Name, name)
}
