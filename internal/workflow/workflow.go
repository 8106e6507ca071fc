package workflow

import (
	"errors"
	"fmt"
)

// Link maps an output of the source node to an input of the destination.
type Link struct {
	Output string
	Input  string
}

// L is shorthand for building a Link.
func L(output, input string) Link {
	return Link{Output: output, Input: input}
}

// Edge is a declared connection between two nodes.
type Edge struct {
	From  string
	To    string
	Links []Link
}

// Workflow is a named collection of nodes and the edges between them.
type Workflow struct {
	Name    string
	BaseDir string

	nodes map[string]*Node
	order []string
	edges []Edge
	errs  []error
}

// New creates an empty workflow.
func New(name, baseDir string) *Workflow {
	return &Workflow{
		Name:    name,
		BaseDir: baseDir,
		nodes:   make(map[string]*Node),
	}
}

// Add registers nodes with the workflow. Adding the same node twice is a
// no-op; adding a different node under an existing name is an error that
// surfaces from Expand.
func (w *Workflow) Add(nodes ...*Node) {
	for _, n := range nodes {
		w.add(n)
	}
}

func (w *Workflow) add(n *Node) {
	if n == nil {
		w.errs = append(w.errs, errors.New("nil node"))
		return
	}
	if existing, ok := w.nodes[n.Name]; ok {
		if existing != n {
			w.errs = append(w.errs, fmt.Errorf("duplicate node name %q", n.Name))
		}
		return
	}
	w.nodes[n.Name] = n
	w.order = append(w.order, n.Name)
}

// Connect declares that dst consumes outputs of src. Both nodes are added
// to the workflow if they are not part of it yet.
func (w *Workflow) Connect(src, dst *Node, links ...Link) {
	w.add(src)
	w.add(dst)
	if src == nil || dst == nil {
		return
	}
	if len(links) == 0 {
		w.errs = append(w.errs, fmt.Errorf("connection %s -> %s has no links", src.Name, dst.Name))
		return
	}
	w.edges = append(w.edges, Edge{From: src.Name, To: dst.Name, Links: links})
}

// Node returns the node registered under name.
func (w *Workflow) Node(name string) (*Node, bool) {
	n, ok := w.nodes[name]
	return n, ok
}

// Nodes returns the nodes in declaration order.
func (w *Workflow) Nodes() []*Node {
	out := make([]*Node, 0, len(w.order))
	for _, name := range w.order {
		out = append(out, w.nodes[name])
	}
	return out
}

// Edges returns the declared edges in declaration order.
func (w *Workflow) Edges() []Edge {
	out := make([]Edge, len(w.edges))
	copy(out, w.edges)
	return out
}

// Validate checks the declaration without expanding it.
func (w *Workflow) Validate() error {
	errs := append([]error(nil), w.errs...)

	fed := make(map[string]map[string]string) // dst -> input -> src
	for _, e := range w.edges {
		src, dst := w.nodes[e.From], w.nodes[e.To]
		if src.Interface == nil || dst.Interface == nil {
			continue
		}
		srcSpec, dstSpec := src.Interface.Spec(), dst.Interface.Spec()
		for _, l := range e.Links {
			if !srcSpec.HasOutput(l.Output) {
				errs = append(errs, fmt.Errorf("node %q (%s) has no output %q", src.Name, srcSpec.Name, l.Output))
			}
			if !dstSpec.HasInput(l.Input) {
				errs = append(errs, fmt.Errorf("node %q (%s) has no input %q", dst.Name, dstSpec.Name, l.Input))
			}
			if fed[dst.Name] == nil {
				fed[dst.Name] = make(map[string]string)
			}
			if prev, ok := fed[dst.Name][l.Input]; ok {
				errs = append(errs, fmt.Errorf("input %q of node %q is connected twice (from %q and %q)", l.Input, dst.Name, prev, src.Name))
			}
			fed[dst.Name][l.Input] = src.Name
			if _, ok := dst.Inputs[l.Input]; ok {
				errs = append(errs, fmt.Errorf("input %q of node %q is both set and connected", l.Input, dst.Name))
			}
		}
	}

	for _, name := range w.order {
		n := w.nodes[name]
		if n.Interface == nil {
			errs = append(errs, fmt.Errorf("node %q has no interface", name))
			continue
		}
		spec := n.Interface.Spec()
		for field := range n.Inputs {
			if !spec.HasInput(field) {
				errs = append(errs, fmt.Errorf("node %q (%s) has no input %q", name, spec.Name, field))
			}
		}
		for _, f := range n.IterFields {
			if !spec.HasInput(f) {
				errs = append(errs, fmt.Errorf("map node %q iterates over unknown input %q", name, f))
			}
		}
		for _, f := range n.JoinFields {
			if !spec.HasInput(f) {
				errs = append(errs, fmt.Errorf("join node %q joins unknown input %q", name, f))
			}
		}
		if n.IsJoin() {
			src, ok := w.nodes[n.JoinSource]
			if !ok {
				errs = append(errs, fmt.Errorf("join node %q names unknown join source %q", name, n.JoinSource))
			} else if src.Iterables == nil {
				errs = append(errs, fmt.Errorf("join source %q of node %q is not iterable", n.JoinSource, name))
			}
		}
		if it := n.Iterables; it != nil {
			if !spec.HasInput(it.Field) {
				errs = append(errs, fmt.Errorf("node %q iterates over unknown input %q", name, it.Field))
			}
			if len(it.Values) == 0 {
				errs = append(errs, fmt.Errorf("iterable node %q has no values for %q", name, it.Field))
			}
			seen := make(map[string]bool, len(it.Values))
			for _, v := range it.Values {
				if seen[v] {
					errs = append(errs, fmt.Errorf("iterable node %q repeats value %q", name, v))
				}
				seen[v] = true
			}
		}
	}

	return errors.Join(errs...)
}
