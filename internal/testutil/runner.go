package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vk/mrtpipelines/internal/command"
)

// FakeRunner is a command.Runner that records commands instead of running
// them. Every argument that names a path inside the command's working
// directory is created as an empty file, standing in for tool outputs.
type FakeRunner struct {
	// Fail, when set, is returned for commands with this name.
	Fail map[string]error

	mu   sync.Mutex
	cmds []*command.Cmd
}

func (f *FakeRunner) Run(ctx context.Context, c *command.Cmd) (*command.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.cmds = append(f.cmds, c)
	err := f.Fail[c.Name]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if c.Dir != "" {
		prefix := filepath.Clean(c.Dir) + string(filepath.Separator)
		for _, arg := range c.Args {
			if strings.HasPrefix(arg, prefix) {
				if err := os.WriteFile(arg, nil, 0o644); err != nil {
					return nil, err
				}
			}
		}
	}
	return &command.Result{Duration: time.Millisecond}, nil
}

// Commands returns the recorded commands in call order.
func (f *FakeRunner) Commands() []*command.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*command.Cmd(nil), f.cmds...)
}

// Named returns the recorded commands with the given name.
func (f *FakeRunner) Named(name string) []*command.Cmd {
	var out []*command.Cmd
	for _, c := range f.Commands() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
