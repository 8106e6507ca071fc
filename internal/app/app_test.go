package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/mrtpipelines/internal/testutil"
)

// writeAnatStudy writes a YAML study with two subjects carrying T1w and T2w
// images and returns its path.
func writeAnatStudy(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	var body string
	for _, id := range []string{"sub-01", "sub-02"} {
		t1 := filepath.Join(dir, id+"_T1w.nii.gz")
		t2 := filepath.Join(dir, id+"_T2w.nii.gz")
		require.NoError(t, os.WriteFile(t1, []byte(id), 0o644))
		require.NoError(t, os.WriteFile(t2, []byte(id), 0o644))
		body += fmt.Sprintf("  - id: %s\n    t1w: %s\n    t2w: %s\n", id, t1, t2)
	}
	path := filepath.Join(dir, "study.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: anat\nsubjects:\n"+body), 0o644))
	return path
}

func newTestApp(t *testing.T, cfg Config, runner *testutil.FakeRunner) (*App, *testutil.SafeBuffer) {
	t.Helper()
	if cfg.StudyPath == "" {
		cfg.StudyPath = writeAnatStudy(t)
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}
	c, err := NewConfig(cfg)
	require.NoError(t, err)

	out := &testutil.SafeBuffer{}
	a, err := NewApp(context.Background(), out, c, runner)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, out
}

func TestNewConfig(t *testing.T) {
	base := Config{StudyPath: "study.hcl", WorkDir: "/work"}

	cfg, err := NewConfig(base)
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"no study", func(c *Config) { c.StudyPath = "" }, "study file is required"},
		{"no wdir", func(c *Config) { c.WorkDir = "" }, "working directory is required"},
		{"negative threads", func(c *Config) { c.NThreads = -1 }, "nthreads"},
		{"negative workers", func(c *Config) { c.Workers = -2 }, "workers"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "retries"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "invalid log-format"},
		{"bad level", func(c *Config) { c.LogLevel = "trace" }, "invalid log-level"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			_, err := NewConfig(c)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestNewApp_MissingStudy(t *testing.T) {
	cfg, err := NewConfig(Config{StudyPath: filepath.Join(t.TempDir(), "absent.yaml"), WorkDir: t.TempDir()})
	require.NoError(t, err)

	_, err = NewApp(context.Background(), &testutil.SafeBuffer{}, cfg, &testutil.FakeRunner{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load study")
}

func TestRun_WritesProvenance(t *testing.T) {
	runner := &testutil.FakeRunner{}
	a, out := newTestApp(t, Config{Workers: 2, NThreads: 4}, runner)

	require.NoError(t, a.Run(context.Background()))
	assert.NotEmpty(t, a.RunID())
	assert.Len(t, runner.Named("population_template"), 2)
	assert.Contains(t, out.String(), "Run finished")
	assert.Contains(t, out.String(), a.RunID())

	data, err := os.ReadFile(filepath.Join(a.config.WorkDir, "anat_template", provenanceFile))
	require.NoError(t, err)
	var rec runRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, a.RunID(), rec.RunID)
	assert.Equal(t, "anat_template", rec.Workflow)
	assert.True(t, rec.Succeeded)
	assert.Empty(t, rec.Error)
	// inputnode per subject, then one join copy and one template per kind
	assert.Equal(t, 6, rec.Counts["done"])
	assert.Len(t, rec.Instances, 6)
	assert.False(t, rec.Finished.Before(rec.Started))
}

func TestRun_SecondRunIsCached(t *testing.T) {
	wdir := t.TempDir()
	study := writeAnatStudy(t)

	first, _ := newTestApp(t, Config{StudyPath: study, WorkDir: wdir}, &testutil.FakeRunner{})
	require.NoError(t, first.Run(context.Background()))

	runner := &testutil.FakeRunner{}
	second, _ := newTestApp(t, Config{StudyPath: study, WorkDir: wdir}, runner)
	require.NoError(t, second.Run(context.Background()))

	assert.Empty(t, runner.Commands())
	assert.NotEqual(t, first.RunID(), second.RunID())
	assert.Equal(t, 6, second.currentExecutor().Counts()["cached"])
}

func TestRun_RelativeStudyPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "anat"), 0o755))
	var body string
	for _, id := range []string{"sub-01", "sub-02"} {
		for _, kind := range []string{"T1w", "T2w"} {
			name := filepath.Join("anat", id+"_"+kind+".nii.gz")
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(id+kind), 0o644))
		}
		body += fmt.Sprintf("  - id: %s\n    t1w: anat/%s_T1w.nii.gz\n    t2w: anat/%s_T2w.nii.gz\n", id, id, id)
	}
	studyPath := filepath.Join(dir, "study.yaml")
	require.NoError(t, os.WriteFile(studyPath, []byte("subjects:\n"+body), 0o644))

	runner := &testutil.FakeRunner{}
	a, _ := newTestApp(t, Config{StudyPath: studyPath}, runner)
	require.NoError(t, a.Run(context.Background()))

	staged, err := os.ReadFile(filepath.Join(a.config.WorkDir, "tmpFiles", "T1w", "sub-02.nii.gz"))
	require.NoError(t, err)
	assert.Equal(t, "sub-02T1w", string(staged))
	for _, c := range runner.Named("population_template") {
		assert.True(t, filepath.IsAbs(c.Args[0]), "in_dir %q is not absolute", c.Args[0])
	}
}

func TestRun_FailureRecorded(t *testing.T) {
	runner := &testutil.FakeRunner{Fail: map[string]error{"population_template": errors.New("out of memory")}}
	a, _ := newTestApp(t, Config{}, runner)

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")

	data, err := os.ReadFile(filepath.Join(a.config.WorkDir, "anat_template", provenanceFile))
	require.NoError(t, err)
	var rec runRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.False(t, rec.Succeeded)
	assert.Contains(t, rec.Error, "out of memory")
	assert.NotZero(t, rec.Counts["failed"])
}

func TestRun_UnknownWorkflow(t *testing.T) {
	a, _ := newTestApp(t, Config{Workflows: []string{"nope"}}, &testutil.FakeRunner{})
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown workflow")
}

func TestRun_StudyMissingInputs(t *testing.T) {
	a, _ := newTestApp(t, Config{Workflows: []string{"fod_template"}}, &testutil.FakeRunner{})
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fod_template")
}

func TestGraph(t *testing.T) {
	a, _ := newTestApp(t, Config{}, &testutil.FakeRunner{})
	dot, err := a.Graph()
	require.NoError(t, err)
	assert.Contains(t, dot, `digraph "anat_template" {`)
	assert.Contains(t, dot, "T1wTemplate")
}

func TestHealthAndStatus(t *testing.T) {
	a, _ := newTestApp(t, Config{}, &testutil.FakeRunner{})
	srv := httptest.NewServer(a.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var before statusReport
	getJSON(t, srv.URL+"/status", &before)
	assert.Empty(t, before.Instances)

	require.NoError(t, a.Run(context.Background()))

	var after statusReport
	getJSON(t, srv.URL+"/status", &after)
	assert.Equal(t, a.RunID(), after.RunID)
	assert.Len(t, after.Instances, 6)
	assert.Equal(t, 6, after.Counts["done"])
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestLogFile(t *testing.T) {
	wdir := t.TempDir()
	a, _ := newTestApp(t, Config{WorkDir: wdir, LogFile: "run.log", LogFormat: "json"}, &testutil.FakeRunner{})
	require.NoError(t, a.Run(context.Background()))
	require.NoError(t, a.Close())

	data, err := os.ReadFile(filepath.Join(wdir, "logs", "run.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id":"`+a.RunID()+`"`)
}

func TestLogPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/w", "logs", "a.log"), logPath("/w", "a.log"))
	assert.Equal(t, "/var/log/a.log", logPath("/w", "/var/log/a.log"))
	assert.Equal(t, filepath.Join("sub", "a.log"), logPath("/w", filepath.Join("sub", "a.log")))
}
