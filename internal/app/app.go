package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vk/mrtpipelines/internal/command"
	"github.com/vk/mrtpipelines/internal/config"
	"github.com/vk/mrtpipelines/internal/ctxlog"
	"github.com/vk/mrtpipelines/internal/executor"
	"github.com/vk/mrtpipelines/internal/pipelines"
	"github.com/vk/mrtpipelines/internal/study"
	"github.com/vk/mrtpipelines/internal/workflow"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	logger  *slog.Logger
	logFile io.Closer
	config  *Config
	study   *config.Study
	runner  command.Runner

	mu         sync.RWMutex
	runID      string
	exec       *executor.Executor
	httpServer *http.Server
}

// NewApp configures logging and loads the study. A nil runner runs the
// MRtrix tools from cfg.MRtrixBin or PATH.
func NewApp(ctx context.Context, outW io.Writer, cfg *Config, runner command.Runner) (*App, error) {
	logW := outW
	var logFile io.Closer
	if cfg.LogFile != "" {
		lf, err := openLogFile(logPath(cfg.WorkDir, cfg.LogFile))
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logW = io.MultiWriter(outW, lf)
		logFile = lf
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	if runner == nil {
		er := command.NewExecRunner(cfg.MRtrixBin)
		er.LogWriter = logW
		runner = er
	}

	s, err := study.Load(ctx, cfg.StudyPath, cfg.Vars)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("failed to load study: %w", err)
	}
	logger.Debug("Study loaded.", "path", cfg.StudyPath, "subjects", len(s.Subjects))

	return &App{
		outW:    outW,
		logger:  logger,
		logFile: logFile,
		config:  cfg,
		study:   s,
		runner:  runner,
	}, nil
}

// Close releases the log file, if any.
func (a *App) Close() error {
	if a.logFile != nil {
		return a.logFile.Close()
	}
	return nil
}

// Workflows declares the selected workflows.
func (a *App) Workflows() ([]*workflow.Workflow, error) {
	names := a.config.Workflows
	if len(names) == 0 {
		names = pipelines.Available(a.study)
		if len(names) == 0 {
			return nil, fmt.Errorf("study %s declares inputs for none of the workflows %v", a.study.Source, pipelines.Names())
		}
	}
	opts := pipelines.Options{
		WorkDir:  a.config.WorkDir,
		NThreads: a.config.NThreads,
		NFibers:  a.config.NFibers,
	}
	out := make([]*workflow.Workflow, 0, len(names))
	for _, name := range names {
		w, err := pipelines.Build(name, a.study, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

// Graph renders the declared graphs of the selected workflows as DOT.
func (a *App) Graph() (string, error) {
	ws, err := a.Workflows()
	if err != nil {
		return "", err
	}
	var out string
	for _, w := range ws {
		if err := w.Validate(); err != nil {
			return "", fmt.Errorf("workflow %q: %w", w.Name, err)
		}
		out += w.Dot()
	}
	return out, nil
}

// RunID returns the ID of the current or last run.
func (a *App) RunID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runID
}

func (a *App) currentExecutor() *executor.Executor {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.exec
}
