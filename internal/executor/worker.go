package executor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vk/mrtpipelines/internal/ctxlog"
	"github.com/vk/mrtpipelines/internal/retry"
	"github.com/vk/mrtpipelines/internal/workflow"
)

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *task, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for t := range readyChan {
		taskCtx := ctxlog.With(ctx, "workerID", workerID, "instance", t.inst.ID)
		workerLogger := ctxlog.FromContext(taskCtx)

		if ctx.Err() != nil {
			t.skipOnce.Do(func() {
				workerLogger.Warn("Context canceled, skipping instance.")
				t.fail(ctx.Err())
				e.wg.Done()
			})
			e.skipDependents(ctx, t)
			continue
		}

		workerLogger.Debug("Worker picked up instance for execution.")
		t.mu.Lock()
		t.started = time.Now()
		t.mu.Unlock()
		t.setState(Running)

		state, err := e.runTask(taskCtx, t)
		if err != nil {
			workerLogger.Error("Instance execution failed.", "error", err)
			t.fail(err)
			cancel()
			e.skipDependents(ctx, t)
			e.wg.Done()
			continue
		}

		t.mu.Lock()
		t.finished = time.Now()
		t.mu.Unlock()
		t.setState(state)

		dependents, err := e.plan.Graph.Dependents(t.inst.ID)
		if err != nil {
			workerLogger.Error("Failed to get dependents for completed instance.", "error", err)
		} else {
			for _, id := range dependents {
				dependent := e.tasks[id]
				if dependent.depCount.Add(-1) == 0 {
					workerLogger.Debug("Unlocking dependent instance.", "dependentID", id)
					readyChan <- dependent
				}
			}
		}

		e.wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// runTask resolves inputs, consults the result cache and runs the instance.
func (e *Executor) runTask(ctx context.Context, t *task) (State, error) {
	inst := t.inst
	logger := ctxlog.FromContext(ctx).With("node", inst.Node.Name)

	e.mu.RLock()
	in, err := inst.Resolve(e.results)
	e.mu.RUnlock()
	if err != nil {
		return Failed, fmt.Errorf("resolving inputs: %w", err)
	}

	if err := os.MkdirAll(inst.Dir, 0o755); err != nil {
		return Failed, fmt.Errorf("creating working directory: %w", err)
	}

	hash, err := inputsHash(inst, in)
	if err != nil {
		return Failed, err
	}

	if !e.opts.Rerun {
		if rec, ok := loadResult(inst.Dir); ok && rec.Hash == hash && outputsExist(rec.Outputs) {
			logger.Info("♻️ Reusing cached result", "dir", inst.Dir)
			e.storeOutputs(inst.ID, rec.Outputs)
			return Cached, nil
		}
	}

	logger.Info("▶️ Starting instance", "dir", inst.Dir)
	env := &workflow.Env{Dir: inst.Dir, Runner: e.opts.Runner}
	out, err := retry.Do(ctx, e.opts.Retry, func() (workflow.Outputs, error) {
		t.mu.Lock()
		t.attempts++
		t.mu.Unlock()
		return inst.Run(ctx, env, in)
	})
	if err != nil {
		return Failed, err
	}

	if err := saveResult(inst.Dir, &result{
		Hash:      hash,
		Interface: inst.Node.Interface.Spec().Name,
		Inputs:    in,
		Outputs:   out,
		Finished:  time.Now().UTC(),
	}); err != nil {
		logger.Warn("Could not record result.", "error", err)
	}

	e.storeOutputs(inst.ID, out)
	logger.Info("✅ Instance finished")
	return Done, nil
}
