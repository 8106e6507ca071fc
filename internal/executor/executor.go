package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/mrtpipelines/internal/command"
	"github.com/vk/mrtpipelines/internal/ctxlog"
	"github.com/vk/mrtpipelines/internal/retry"
	"github.com/vk/mrtpipelines/internal/workflow"
)

// ErrSkipped marks instances that never ran because a dependency failed.
var ErrSkipped = errors.New("skipped due to upstream failure")

// Options configures an Executor.
type Options struct {
	// Workers is the number of instances run at once. Zero means one per CPU.
	Workers int
	// Rerun ignores cached results.
	Rerun  bool
	Retry  retry.Config
	Runner command.Runner
}

type task struct {
	inst     *workflow.Instance
	depCount atomic.Int32
	state    atomic.Int32
	skipOnce sync.Once

	mu       sync.Mutex
	err      error
	started  time.Time
	finished time.Time
	attempts int
}

func (t *task) setState(s State) { t.state.Store(int32(s)) }

func (t *task) State() State { return State(t.state.Load()) }

func (t *task) fail(err error) {
	t.mu.Lock()
	t.err = err
	t.finished = time.Now()
	t.mu.Unlock()
	t.setState(Failed)
}

func (t *task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Executor runs the instances of a plan.
type Executor struct {
	plan  *workflow.Plan
	opts  Options
	tasks map[string]*task
	wg    sync.WaitGroup

	mu      sync.RWMutex
	results map[string]workflow.Outputs
}

// New prepares an executor for the plan.
func New(plan *workflow.Plan, opts Options) *Executor {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	e := &Executor{
		plan:    plan,
		opts:    opts,
		tasks:   make(map[string]*task, len(plan.Instances)),
		results: make(map[string]workflow.Outputs, len(plan.Instances)),
	}
	for _, id := range plan.Graph.Nodes() {
		inst, ok := plan.Instance(id)
		if !ok {
			continue
		}
		t := &task{inst: inst}
		deps, _ := plan.Graph.Dependencies(id)
		t.depCount.Store(int32(len(deps)))
		e.tasks[id] = t
	}
	return e
}

// Run executes the whole plan and returns an error if any instance fails.
// It respects cancellation of ctx. An executor runs only once.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *task, len(e.tasks))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Debug("Initializing executor, finding root instances...")
	rootCount := 0
	for _, id := range e.plan.Graph.Nodes() {
		t := e.tasks[id]
		if t.depCount.Load() == 0 {
			logger.Debug("Found root instance.", "instance", id)
			readyChan <- t
			rootCount++
		}
	}
	logger.Debug("Found all root instances.", "count", rootCount)

	e.wg.Add(len(e.tasks))

	logger.Debug("Starting worker pool.", "workers", e.opts.Workers)
	for i := 0; i < e.opts.Workers; i++ {
		go e.worker(runCtx, readyChan, cancel, i)
	}

	logger.Info("Waiting for all instances to complete...", "instances", len(e.tasks))
	e.wg.Wait()
	close(readyChan)
	logger.Info("All instances completed.")

	var failed []string
	var rootCause error
	for _, id := range e.plan.Graph.Nodes() {
		t := e.tasks[id]
		if t.State() != Failed {
			continue
		}
		err := t.Err()
		logger.Debug("Instance did not finish.", "instance", id, "error", err)
		// Skips and cancellations are symptoms, not causes.
		if err == nil || errors.Is(err, ErrSkipped) || errors.Is(err, context.Canceled) {
			continue
		}
		failed = append(failed, id)
		if rootCause == nil {
			rootCause = err
		}
	}

	if rootCause != nil {
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failed, ", "), rootCause)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return nil
}

// skipDependents recursively marks all downstream instances as failed and
// releases them from the wait group.
func (e *Executor) skipDependents(ctx context.Context, t *task) {
	logger := ctxlog.FromContext(ctx)
	dependents, err := e.plan.Graph.Dependents(t.inst.ID)
	if err != nil {
		logger.Error("Failed to get dependents.", "instance", t.inst.ID, "error", err)
		return
	}
	for _, id := range dependents {
		dependent := e.tasks[id]
		dependent.skipOnce.Do(func() {
			logger.Warn("Skipping dependent instance due to upstream failure.", "instance", id, "dependency", t.inst.ID)
			dependent.fail(fmt.Errorf("%w of '%s'", ErrSkipped, t.inst.ID))
			e.wg.Done()
			e.skipDependents(ctx, dependent)
		})
	}
}

// Outputs returns the outputs of a finished instance.
func (e *Executor) Outputs(id string) (workflow.Outputs, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out, ok := e.results[id]
	return out, ok
}

func (e *Executor) storeOutputs(id string, out workflow.Outputs) {
	e.mu.Lock()
	e.results[id] = out
	e.mu.Unlock()
}

// Status is a point-in-time view of one instance.
type Status struct {
	ID       string    `json:"id"`
	Workflow string    `json:"workflow"`
	Node     string    `json:"node"`
	State    string    `json:"state"`
	Dir      string    `json:"dir"`
	Attempts int       `json:"attempts,omitempty"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started,omitempty"`
	Finished time.Time `json:"finished,omitempty"`
}

// Snapshot returns the status of every instance, ordered by ID. It is safe
// to call while the executor runs.
func (e *Executor) Snapshot() []Status {
	out := make([]Status, 0, len(e.tasks))
	for id, t := range e.tasks {
		t.mu.Lock()
		s := Status{
			ID:       id,
			Workflow: t.inst.Workflow,
			Node:     t.inst.Node.Name,
			State:    t.State().String(),
			Dir:      t.inst.Dir,
			Attempts: t.attempts,
			Started:  t.started,
			Finished: t.finished,
		}
		if t.err != nil {
			s.Error = t.err.Error()
		}
		t.mu.Unlock()
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Counts tallies instances per state.
func (e *Executor) Counts() map[string]int {
	counts := make(map[string]int)
	for _, t := range e.tasks {
		counts[t.State().String()]++
	}
	return counts
}
