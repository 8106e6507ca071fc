package interfaces

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/vk/mrtpipelines/internal/command"
	"github.com/vk/mrtpipelines/internal/ctxlog"
	"github.com/vk/mrtpipelines/internal/workflow"
)

// tool is an external command: it turns inputs into an argument vector and
// predicts the files the command writes.
type tool interface {
	workflow.Interface
	build(dir string, in workflow.Inputs) (*command.Cmd, workflow.Outputs, error)
}

// runTool builds the command, runs it in the instance directory and checks
// that every predicted output file exists.
func runTool(ctx context.Context, t tool, env *workflow.Env, in workflow.Inputs) (workflow.Outputs, error) {
	name := t.Spec().Name
	if env.Runner == nil {
		return nil, fmt.Errorf("%s: no command runner", name)
	}
	cmd, outputs, err := t.build(env.Dir, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	cmd.Dir = env.Dir

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running command.", "command", cmd.String(), "dir", env.Dir)

	res, err := env.Runner.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}
	logger.Debug("Command finished.", "command", cmd.Name, "duration", res.Duration)

	var missing []error
	for field, v := range outputs {
		path, ok := v.(string)
		if !ok {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, fmt.Errorf("output %s (%s) was not created", field, path))
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return outputs, nil
}

// params reads typed values from an input set, remembering the first error.
type params struct {
	in  workflow.Inputs
	err error
}

func (p *params) fail(name string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("input %s: %w", name, err)
	}
}

func (p *params) has(name string) bool {
	v, ok := p.in[name]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return false
	}
	return true
}

func (p *params) str(name string) string {
	if !p.has(name) {
		p.fail(name, errors.New("is required"))
		return ""
	}
	s, err := workflow.AsString(p.in[name])
	if err != nil {
		p.fail(name, err)
	}
	return s
}

func (p *params) strOr(name, def string) string {
	if !p.has(name) {
		return def
	}
	return p.str(name)
}

func (p *params) strs(name string) []string {
	if !p.has(name) {
		p.fail(name, errors.New("is required"))
		return nil
	}
	s, err := workflow.AsStrings(p.in[name])
	if err != nil {
		p.fail(name, err)
	}
	if len(s) == 0 {
		p.fail(name, errors.New("is empty"))
	}
	return s
}

func (p *params) num(name string) int {
	if !p.has(name) {
		return 0
	}
	n, err := workflow.AsInt(p.in[name])
	if err != nil {
		p.fail(name, err)
	}
	return n
}

func (p *params) flag(name string) bool {
	if !p.has(name) {
		return false
	}
	b, err := workflow.AsBool(p.in[name])
	if err != nil {
		p.fail(name, err)
	}
	return b
}

// outPath resolves a relative output name inside dir.
func outPath(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// withThreads appends -nthreads unless n is zero.
func withThreads(args []string, n int) []string {
	if n == 0 {
		return args
	}
	return append(args, "-nthreads", strconv.Itoa(n))
}
