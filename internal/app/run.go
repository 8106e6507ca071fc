package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vk/mrtpipelines/internal/ctxlog"
	"github.com/vk/mrtpipelines/internal/executor"
	"github.com/vk/mrtpipelines/internal/retry"
	"github.com/vk/mrtpipelines/internal/workflow"
)

// provenanceFile is written into each workflow directory after a run.
const provenanceFile = "_run.json"

// runRecord is the provenance written for one workflow.
type runRecord struct {
	RunID     string            `json:"run_id"`
	Workflow  string            `json:"workflow"`
	Study     string            `json:"study"`
	Started   time.Time         `json:"started"`
	Finished  time.Time         `json:"finished"`
	Succeeded bool              `json:"succeeded"`
	Error     string            `json:"error,omitempty"`
	Counts    map[string]int    `json:"counts"`
	Instances []executor.Status `json:"instances"`
}

// Run builds the selected workflows and executes them as one plan.
func (a *App) Run(ctx context.Context) error {
	runID := uuid.NewString()
	a.mu.Lock()
	a.runID = runID
	a.mu.Unlock()

	logger := a.logger.With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)

	ws, err := a.Workflows()
	if err != nil {
		return err
	}
	plan, err := workflow.Expand(ws...)
	if err != nil {
		return fmt.Errorf("failed to expand workflows: %w", err)
	}

	rc := retry.DefaultConfig()
	rc.MaxRetries = a.config.MaxRetries
	exec := executor.New(plan, executor.Options{
		Workers: a.config.Workers,
		Rerun:   a.config.Rerun,
		Retry:   rc,
		Runner:  a.runner,
	})
	a.mu.Lock()
	a.exec = exec
	a.mu.Unlock()

	a.startHealthcheckServer()
	defer a.closeHealthcheckServer()

	names := make([]string, len(ws))
	for i, w := range ws {
		names[i] = w.Name
	}
	logger.Info("🚀 Starting run", "study", a.study.Name, "workflows", names, "instances", len(plan.Instances))

	started := time.Now()
	runErr := exec.Run(ctx)
	finished := time.Now()

	if err := a.writeProvenance(runID, ws, exec, started, finished, runErr); err != nil {
		logger.Error("Failed to write run provenance", "error", err)
	}

	counts := exec.Counts()
	if runErr != nil {
		logger.Error("Run failed", "counts", counts, "duration", finished.Sub(started))
		return runErr
	}
	logger.Info("🏁 Run finished", "counts", counts, "duration", finished.Sub(started))
	return nil
}

func (a *App) writeProvenance(runID string, ws []*workflow.Workflow, exec *executor.Executor, started, finished time.Time, runErr error) error {
	snapshot := exec.Snapshot()
	for _, w := range ws {
		rec := runRecord{
			RunID:     runID,
			Workflow:  w.Name,
			Study:     a.study.Source,
			Started:   started,
			Finished:  finished,
			Succeeded: true,
			Counts:    map[string]int{},
			Instances: []executor.Status{},
		}
		for _, s := range snapshot {
			if s.Workflow != w.Name {
				continue
			}
			rec.Instances = append(rec.Instances, s)
			rec.Counts[s.State]++
			if s.State != executor.Done.String() && s.State != executor.Cached.String() {
				rec.Succeeded = false
			}
		}
		if !rec.Succeeded && runErr != nil {
			rec.Error = runErr.Error()
		}
		if err := writeJSON(filepath.Join(a.config.WorkDir, w.Name, provenanceFile), rec); err != nil {
			return fmt.Errorf("workflow %q: %w", w.Name, err)
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
