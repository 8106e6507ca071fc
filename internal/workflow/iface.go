package workflow

import (
	"context"

	"github.com/vk/mrtpipelines/internal/command"
)

// Inputs maps input field names to values. Values are strings, string
// slices, integers or booleans.
type Inputs map[string]any

// Outputs maps output field names to values.
type Outputs map[string]any

// Spec describes the named inputs and outputs an Interface accepts.
type Spec struct {
	// Name identifies the interface in logs and result records.
	Name    string
	Inputs  []string
	Outputs []string
}

// HasInput reports whether the spec declares the input.
func (s Spec) HasInput(name string) bool { return contains(s.Inputs, name) }

// HasOutput reports whether the spec declares the output.
func (s Spec) HasOutput(name string) bool { return contains(s.Outputs, name) }

// Env is what an interface gets to work with while running.
type Env struct {
	// Dir is the instance working directory. It exists when Run is called.
	Dir    string
	Runner command.Runner
}

// Interface is the unit of work a node runs. Implementations wrap one
// external tool or a small file helper.
type Interface interface {
	Spec() Spec
	Run(ctx context.Context, env *Env, in Inputs) (Outputs, error)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
