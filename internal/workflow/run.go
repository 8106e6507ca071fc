package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Run executes the instance's interface with resolved inputs. Map nodes run
// the interface once per element of their iterated fields, each element in
// its own subdirectory, and return every output as a list.
func (inst *Instance) Run(ctx context.Context, env *Env, in Inputs) (Outputs, error) {
	n := inst.Node
	if !n.IsMap() {
		return n.Interface.Run(ctx, env, in)
	}

	lists := make(map[string][]any, len(n.IterFields))
	size := -1
	for _, f := range n.IterFields {
		l := list(in[f])
		if size >= 0 && len(l) != size {
			return nil, fmt.Errorf("map node %q: iterfield %q has %d elements, expected %d", n.Name, f, len(l), size)
		}
		size = len(l)
		lists[f] = l
	}

	spec := n.Interface.Spec()
	collected := make(map[string][]any, len(spec.Outputs))
	for i := 0; i < size; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		elem := make(Inputs, len(in))
		for k, v := range in {
			elem[k] = v
		}
		for f, l := range lists {
			elem[f] = l[i]
		}
		dir := filepath.Join(env.Dir, "mapflow", fmt.Sprintf("_%s%d", n.Name, i))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("map node %q: %w", n.Name, err)
		}
		out, err := n.Interface.Run(ctx, &Env{Dir: dir, Runner: env.Runner}, elem)
		if err != nil {
			return nil, fmt.Errorf("map node %q element %d: %w", n.Name, i, err)
		}
		for _, name := range spec.Outputs {
			if v, ok := out[name]; ok {
				collected[name] = append(collected[name], v)
			}
		}
	}

	outputs := make(Outputs, len(collected))
	for _, name := range spec.Outputs {
		if v, ok := collected[name]; ok {
			outputs[name] = compact(v)
		} else if size == 0 {
			outputs[name] = []string{}
		}
	}
	return outputs, nil
}
