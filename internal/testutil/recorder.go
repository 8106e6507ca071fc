package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/vk/mrtpipelines/internal/workflow"
)

// ExecutionRecord holds the start and end times of a single run.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// Recorder is a workflow.Interface for concurrency tests. It copies its
// "in" input to its "out" output, ignores "aux", sleeps for the configured
// duration and records when each run happened, keyed by the "id" input.
type Recorder struct {
	Name  string
	Sleep time.Duration
	// Fail, when set, is returned for runs whose id it names.
	Fail map[string]error

	mu    sync.Mutex
	times map[string]*ExecutionRecord
	order []string
	calls int
}

// NewRecorder creates a recorder with the given interface name.
func NewRecorder(name string, sleep time.Duration) *Recorder {
	return &Recorder{Name: name, Sleep: sleep, times: make(map[string]*ExecutionRecord)}
}

func (r *Recorder) Spec() workflow.Spec {
	return workflow.Spec{Name: r.Name, Inputs: []string{"id", "in", "aux"}, Outputs: []string{"out"}}
}

func (r *Recorder) Run(ctx context.Context, _ *workflow.Env, in workflow.Inputs) (workflow.Outputs, error) {
	id, _ := in["id"].(string)
	start := time.Now()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(r.Sleep):
	}
	end := time.Now()

	r.mu.Lock()
	r.times[id] = &ExecutionRecord{Start: start, End: end}
	r.order = append(r.order, id)
	r.calls++
	err := r.Fail[id]
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return workflow.Outputs{"out": in["in"]}, nil
}

// Record returns the execution record for id.
func (r *Recorder) Record(id string) (*ExecutionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.times[id]
	return rec, ok
}

// Order returns ids in completion order.
func (r *Recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Calls returns the number of runs.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}
