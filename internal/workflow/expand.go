package workflow

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/mrtpipelines/internal/dag"
)

// Source records where one input of an instance comes from.
type Source struct {
	Input  string
	Output string
	// From lists upstream instance IDs. It holds more than one ID only for
	// join fields, in iterable order.
	From []string
	Join bool
}

// Instance is one concrete execution of a node.
type Instance struct {
	ID       string
	Workflow string
	Node     *Node
	Dir      string
	// Static holds the node's static inputs plus the iterable value, if any.
	Static  Inputs
	Sources []Source

	keys  map[string]string
	order int
}

// Plan is the expanded form of one or more workflows.
type Plan struct {
	Graph     *dag.Graph
	Instances map[string]*Instance
}

// Instance returns the instance with the given ID.
func (p *Plan) Instance(id string) (*Instance, bool) {
	inst, ok := p.Instances[id]
	return inst, ok
}

// InstancesOf returns the instances of a node in expansion order.
func (p *Plan) InstancesOf(workflow, node string) []*Instance {
	var out []*Instance
	for _, id := range p.Graph.Nodes() {
		inst := p.Instances[id]
		if inst.Workflow == workflow && inst.Node.Name == node {
			out = append(out, inst)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

// Expand validates the workflow and expands it into a plan.
func (w *Workflow) Expand() (*Plan, error) {
	return Expand(w)
}

// Expand validates and expands several workflows into a single plan.
// Workflow names must be unique; instances of different workflows never
// depend on each other.
func Expand(workflows ...*Workflow) (*Plan, error) {
	plan := &Plan{Graph: dag.New(), Instances: make(map[string]*Instance)}
	seen := make(map[string]bool)
	var errs []error
	for _, w := range workflows {
		if seen[w.Name] {
			errs = append(errs, fmt.Errorf("duplicate workflow name %q", w.Name))
			continue
		}
		seen[w.Name] = true
		if err := w.expandInto(plan); err != nil {
			errs = append(errs, fmt.Errorf("workflow %q: %w", w.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := plan.Graph.DetectCycles(); err != nil {
		return nil, err
	}
	return plan, nil
}

func (w *Workflow) expandInto(plan *Plan) error {
	if err := w.Validate(); err != nil {
		return err
	}

	decl := dag.New()
	for _, name := range w.order {
		decl.AddNode(name)
	}
	incoming := make(map[string][]Edge)
	for _, e := range w.edges {
		if err := decl.AddEdge(e.From, e.To); err != nil {
			return err
		}
		incoming[e.To] = append(incoming[e.To], e)
	}
	order, err := decl.TopologicalOrder()
	if err != nil {
		return err
	}

	axes := make(map[string][]string)
	instances := make(map[string][]*Instance)
	seq := len(plan.Instances)

	for _, name := range order {
		n := w.nodes[name]

		set := make(map[string]bool)
		for _, e := range incoming[name] {
			for _, a := range axes[e.From] {
				set[a] = true
			}
		}
		if n.Iterables != nil {
			set[name] = true
		}
		if n.IsJoin() {
			if !set[n.JoinSource] {
				return fmt.Errorf("join source %q is not an upstream iterable of node %q", n.JoinSource, name)
			}
			delete(set, n.JoinSource)
		}
		nodeAxes := make([]string, 0, len(set))
		for a := range set {
			nodeAxes = append(nodeAxes, a)
		}
		sort.Strings(nodeAxes)
		axes[name] = nodeAxes

		for _, combo := range w.combinations(nodeAxes) {
			inst := w.newInstance(n, nodeAxes, combo)
			for _, e := range incoming[name] {
				for _, l := range e.Links {
					src, err := inst.source(e.From, l, instances[e.From], axes[e.From], n)
					if err != nil {
						return err
					}
					inst.Sources = append(inst.Sources, src)
				}
			}
			if _, dup := plan.Instances[inst.ID]; dup {
				return fmt.Errorf("duplicate instance id %q", inst.ID)
			}
			inst.order = seq
			seq++
			plan.Instances[inst.ID] = inst
			plan.Graph.AddNode(inst.ID)
			for _, src := range inst.Sources {
				for _, from := range src.From {
					if err := plan.Graph.AddEdge(from, inst.ID); err != nil {
						return err
					}
				}
			}
			instances[name] = append(instances[name], inst)
		}
	}
	return nil
}

// combinations returns the cartesian product of the iterable values of the
// given axes, in declaration order of the values.
func (w *Workflow) combinations(axes []string) [][]string {
	combos := [][]string{{}}
	for _, a := range axes {
		values := w.nodes[a].Iterables.Values
		next := make([][]string, 0, len(combos)*len(values))
		for _, c := range combos {
			for _, v := range values {
				nc := make([]string, len(c), len(c)+1)
				copy(nc, c)
				next = append(next, append(nc, v))
			}
		}
		combos = next
	}
	return combos
}

func (w *Workflow) newInstance(n *Node, axes, combo []string) *Instance {
	id := w.Name + "." + n.Name
	dir := filepath.Join(w.BaseDir, w.Name, n.Name)
	keys := make(map[string]string, len(axes))
	for i, a := range axes {
		keys[a] = combo[i]
		id += "." + combo[i]
		dir = filepath.Join(dir, "_"+w.nodes[a].Iterables.Field+"_"+sanitize(combo[i]))
	}

	static := make(Inputs, len(n.Inputs)+1)
	for k, v := range n.Inputs {
		static[k] = v
	}
	if n.Iterables != nil {
		static[n.Iterables.Field] = keys[n.Name]
	}

	return &Instance{
		ID:       id,
		Workflow: w.Name,
		Node:     n,
		Dir:      dir,
		Static:   static,
		keys:     keys,
	}
}

func (inst *Instance) source(from string, l Link, upstream []*Instance, upAxes []string, n *Node) (Source, error) {
	src := Source{Input: l.Input, Output: l.Output}
	for _, up := range upstream {
		match := true
		for _, a := range upAxes {
			if n.IsJoin() && a == n.JoinSource {
				continue
			}
			if up.keys[a] != inst.keys[a] {
				match = false
				break
			}
		}
		if match {
			src.From = append(src.From, up.ID)
		}
	}
	if n.IsJoin() && n.isJoinField(l.Input) {
		src.Join = true
		return src, nil
	}
	if len(src.From) != 1 {
		return src, fmt.Errorf("input %q of node %q receives %d values from %q; declare it as a join field", l.Input, n.Name, len(src.From), from)
	}
	return src, nil
}

// Key returns the iterable value this instance runs for on the given
// iterable node, if any.
func (inst *Instance) Key(iterable string) (string, bool) {
	v, ok := inst.keys[iterable]
	return v, ok
}

// Resolve builds the full input set of the instance from the outputs of
// its upstream instances.
func (inst *Instance) Resolve(results map[string]Outputs) (Inputs, error) {
	in := make(Inputs, len(inst.Static)+len(inst.Sources))
	for k, v := range inst.Static {
		in[k] = v
	}
	for _, src := range inst.Sources {
		if !src.Join {
			out, ok := results[src.From[0]]
			if !ok {
				return nil, fmt.Errorf("no result for %q", src.From[0])
			}
			v, ok := out[src.Output]
			if !ok {
				return nil, fmt.Errorf("%q produced no output %q", src.From[0], src.Output)
			}
			in[src.Input] = v
			continue
		}
		var joined []any
		for _, id := range src.From {
			out, ok := results[id]
			if !ok {
				return nil, fmt.Errorf("no result for %q", id)
			}
			v, ok := out[src.Output]
			if !ok {
				return nil, fmt.Errorf("%q produced no output %q", id, src.Output)
			}
			joined = append(joined, list(v)...)
		}
		in[src.Input] = compact(joined)
	}
	return in, nil
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", string(filepath.Separator), "_", " ", "_").Replace(s)
}
