// Package command runs external toolkit binaries. It is the only place in
// the module that starts processes.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/vk/mrtpipelines/internal/ctxlog"
	"github.com/vk/mrtpipelines/internal/retry"
)

// Cmd describes one invocation of an external binary.
type Cmd struct {
	// Name is the executable name, resolved against the runner's BinDir and then PATH.
	Name string
	Args []string
	// Dir is the working directory of the process.
	Dir string
	// Env is appended to the parent environment.
	Env []string
}

// String renders the command line the way a user would type it.
func (c *Cmd) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if a == "" || strings.ContainsAny(a, " \t'\"") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Result holds what a finished process produced.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner starts a command and waits for it.
type Runner interface {
	Run(ctx context.Context, cmd *Cmd) (*Result, error)
}

// ExitError is returned when a process exits with a non-zero status.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	if tail := lastLines(e.Stderr, 5); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	// BinDir, when set, is searched before PATH.
	BinDir string
	// LogWriter receives a copy of every process's stderr when non-nil.
	LogWriter io.Writer
}

// NewExecRunner creates a runner resolving binaries in binDir first.
func NewExecRunner(binDir string) *ExecRunner {
	return &ExecRunner{BinDir: binDir}
}

// Run starts the process in its own process group so cancellation kills
// the whole tree. Failing to start a binary that exists, or being killed by
// a signal, is reported as a retryable error.
func (r *ExecRunner) Run(ctx context.Context, c *Cmd) (*Result, error) {
	if c == nil || c.Name == "" {
		return nil, errors.New("command name is empty")
	}
	logger := ctxlog.FromContext(ctx)

	path := r.resolve(c.Name)
	cmd := exec.Command(path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if r.LogWriter != nil {
		cmd.Stderr = io.MultiWriter(&stderr, r.LogWriter)
	} else {
		cmd.Stderr = &stderr
	}

	logger.Debug("Starting command.", "command", c.String(), "dir", c.Dir)
	start := time.Now()
	if err := cmd.Start(); err != nil {
		err = fmt.Errorf("failed to start %s: %w", c.Name, err)
		// A missing binary stays missing.
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, retry.Retryable(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		return nil, fmt.Errorf("command %s cancelled: %w", c.Name, ctx.Err())
	case err = <-done:
	}

	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute %s: %w", c.Name, err)
		}
		res.ExitCode = exitErr.ExitCode()
		failure := &ExitError{Command: c.String(), ExitCode: res.ExitCode, Stderr: string(res.Stderr)}
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return res, retry.Retryable(failure)
		}
		return res, failure
	}

	logger.Debug("Command finished.", "command", c.Name, "duration", res.Duration)
	return res, nil
}

func (r *ExecRunner) resolve(name string) string {
	if r.BinDir == "" || strings.ContainsRune(name, os.PathSeparator) {
		return name
	}
	candidate := filepath.Join(r.BinDir, name)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return name
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}
