package interfaces

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/mrtpipelines/internal/command"
	"github.com/vk/mrtpipelines/internal/workflow"
)

// fakeRunner records commands and creates the files named in touch.
type fakeRunner struct {
	cmds  []*command.Cmd
	touch []string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, c *command.Cmd) (*command.Result, error) {
	f.cmds = append(f.cmds, c)
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.touch {
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			return nil, err
		}
	}
	return &command.Result{Duration: time.Millisecond}, nil
}

func TestBuild_Args(t *testing.T) {
	const dir = "/inst"
	tests := []struct {
		name     string
		tool     tool
		in       workflow.Inputs
		wantName string
		wantArgs []string
		wantOut  workflow.Outputs
	}{
		{
			name:     "responsemean",
			tool:     AverageResponse{},
			in:       workflow.Inputs{"in_files": []string{"a.txt", "b.txt"}, "out_file": "template_wmresponse.txt"},
			wantName: "responsemean",
			wantArgs: []string{"a.txt", "b.txt", "/inst/template_wmresponse.txt"},
			wantOut:  workflow.Outputs{"out_file": "/inst/template_wmresponse.txt"},
		},
		{
			name: "dwi2fod msmt",
			tool: EstimateFOD{},
			in: workflow.Inputs{
				"algorithm": "msmt_csd", "in_file": "dwi.mif", "mask": "mask.mif", "nthreads": 8,
				"wm_txt": "wm.txt", "gm_txt": "gm.txt", "csf_txt": "csf.txt",
			},
			wantName: "dwi2fod",
			wantArgs: []string{
				"msmt_csd", "dwi.mif", "wm.txt", "/inst/wm.mif", "gm.txt", "/inst/gm.mif",
				"csf.txt", "/inst/csf.mif", "-mask", "mask.mif", "-nthreads", "8",
			},
			wantOut: workflow.Outputs{"wm_odf": "/inst/wm.mif", "gm_odf": "/inst/gm.mif", "csf_odf": "/inst/csf.mif"},
		},
		{
			name:     "dwi2fod wm only without threads",
			tool:     EstimateFOD{},
			in:       workflow.Inputs{"in_file": "dwi.mif", "wm_txt": "wm.txt", "wm_odf": "/abs/fod.mif"},
			wantName: "dwi2fod",
			wantArgs: []string{"msmt_csd", "dwi.mif", "wm.txt", "/abs/fod.mif"},
			wantOut:  workflow.Outputs{"wm_odf": "/abs/fod.mif"},
		},
		{
			name: "mtnormalise",
			tool: MTNormalise{},
			in: workflow.Inputs{
				"in_wm": "wm.mif", "in_gm": "gm.mif", "in_csf": "csf.mif", "mask": "mask.mif", "nthreads": 2,
			},
			wantName: "mtnormalise",
			wantArgs: []string{
				"wm.mif", "/inst/wm_norm.mif", "gm.mif", "/inst/gm_norm.mif",
				"csf.mif", "/inst/csf_norm.mif", "-mask", "mask.mif", "-nthreads", "2",
			},
			wantOut: workflow.Outputs{"out_wm": "/inst/wm_norm.mif", "out_gm": "/inst/gm_norm.mif", "out_csf": "/inst/csf_norm.mif"},
		},
		{
			name:     "population_template",
			tool:     PopulationTemplate{},
			in:       workflow.Inputs{"in_dir": "/w/FOD", "mask_dir": "/w/Mask", "out_file": "template_wmfod.mif", "nthreads": 12},
			wantName: "population_template",
			wantArgs: []string{"/w/FOD", "/inst/template_wmfod.mif", "-mask_dir", "/w/Mask", "-nthreads", "12"},
			wantOut:  workflow.Outputs{"out_file": "/inst/template_wmfod.mif"},
		},
		{
			name:     "mrmath",
			tool:     MRMath{},
			in:       workflow.Inputs{"in_file": []string{"a.mif", "b.mif"}, "operation": "min", "out_file": "template_brainmask.mif", "axis": 3},
			wantName: "mrmath",
			wantArgs: []string{"a.mif", "b.mif", "min", "/inst/template_brainmask.mif", "-axis", "3"},
			wantOut:  workflow.Outputs{"out_file": "/inst/template_brainmask.mif"},
		},
		{
			name: "tckgen",
			tool: Tractography{},
			in: workflow.Inputs{
				"in_file": "fod.mif", "out_file": "t.tck", "select": 1000, "seed_image": "seed.mif", "backtrack": true, "nthreads": 1,
			},
			wantName: "tckgen",
			wantArgs: []string{"fod.mif", "/inst/t.tck", "-algorithm", "iFOD2", "-select", "1000", "-seed_image", "seed.mif", "-backtrack", "-nthreads", "1"},
			wantOut:  workflow.Outputs{"out_file": "/inst/t.tck"},
		},
		{
			name:     "tcksift",
			tool:     SIFT{},
			in:       workflow.Inputs{"in_file": "t.tck", "in_fod": "fod.mif", "out_file": "s.tck", "term_number": 500},
			wantName: "tcksift",
			wantArgs: []string{"t.tck", "fod.mif", "/inst/s.tck", "-term_number", "500"},
			wantOut:  workflow.Outputs{"out_file": "/inst/s.tck"},
		},
		{
			name:     "tckconvert",
			tool:     TCKConvert{},
			in:       workflow.Inputs{"in_file": "s.tck", "out_file": "s.vtk", "nthreads": 3},
			wantName: "tckconvert",
			wantArgs: []string{"s.tck", "/inst/s.vtk", "-nthreads", "3"},
			wantOut:  workflow.Outputs{"out_file": "/inst/s.vtk"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd, out, err := tc.tool.build(dir, tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.wantName, cmd.Name)
			assert.Equal(t, tc.wantArgs, cmd.Args)
			assert.Equal(t, tc.wantOut, out)
		})
	}
}

func TestBuild_MissingInput(t *testing.T) {
	_, _, err := MTNormalise{}.build("/inst", workflow.Inputs{"in_wm": "wm.mif"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input mask: is required")

	_, _, err = MRMath{}.build("/inst", workflow.Inputs{"in_file": []string{}, "operation": "min"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input in_file: is empty")

	_, _, err = SIFT{}.build("/inst", workflow.Inputs{"in_file": "t.tck", "in_fod": "fod.mif", "term_number": "many"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected an integer")
}

func TestRunTool(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{touch: []string{filepath.Join(dir, "out.vtk")}}
	env := &workflow.Env{Dir: dir, Runner: runner}

	out, err := TCKConvert{}.Run(context.Background(), env, workflow.Inputs{"in_file": "in.tck", "out_file": "out.vtk"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.vtk"), out["out_file"])
	require.Len(t, runner.cmds, 1)
	assert.Equal(t, dir, runner.cmds[0].Dir)
}

func TestRunTool_MissingOutput(t *testing.T) {
	env := &workflow.Env{Dir: t.TempDir(), Runner: &fakeRunner{}}
	_, err := TCKConvert{}.Run(context.Background(), env, workflow.Inputs{"in_file": "in.tck", "out_file": "out.vtk"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not created")
}

func TestRunTool_CommandError(t *testing.T) {
	exitErr := &command.ExitError{Command: "tckconvert", ExitCode: 1}
	env := &workflow.Env{Dir: t.TempDir(), Runner: &fakeRunner{err: exitErr}}
	_, err := TCKConvert{}.Run(context.Background(), env, workflow.Inputs{"in_file": "in.tck"})
	require.Error(t, err)
	var target *command.ExitError
	assert.ErrorAs(t, err, &target)
}

func TestCopyFiles(t *testing.T) {
	src := t.TempDir()
	a := filepath.Join(src, "a_fod.mif")
	b := filepath.Join(src, "b_dwi.nii.gz")
	require.NoError(t, os.WriteFile(a, []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("B"), 0o644))
	outDir := filepath.Join(t.TempDir(), "tmpFiles", "FOD")

	out, err := CopyFiles{}.Run(context.Background(), nil, workflow.Inputs{
		"in_file":    []string{a, b},
		"subject_id": []string{"sub-01", "sub-02"},
		"out_dir":    outDir,
	})
	require.NoError(t, err)
	assert.Equal(t, outDir, out["out_dir"])
	assert.Equal(t, []string{filepath.Join(outDir, "sub-01.mif"), filepath.Join(outDir, "sub-02.nii.gz")}, out["out_files"])

	data, err := os.ReadFile(filepath.Join(outDir, "sub-02.nii.gz"))
	require.NoError(t, err)
	assert.Equal(t, "B", string(data))
}

func TestCopyFiles_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := CopyFiles{}.Run(context.Background(), nil, workflow.Inputs{
		"in_file": []string{"x", "y"}, "subject_id": []string{"s"}, "out_dir": dir,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 files but 1 subject ids")

	_, err = CopyFiles{}.Run(context.Background(), nil, workflow.Inputs{
		"in_file": []string{"/a/x.mif", "/b/x.mif"}, "out_dir": dir,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both map to")

	_, err = CopyFiles{}.Run(context.Background(), nil, workflow.Inputs{
		"in_file": []string{filepath.Join(dir, "missing.mif")}, "out_dir": filepath.Join(dir, "out"),
	})
	require.Error(t, err)
}

func TestSelectAll(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mif", "a.mif"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	out, err := SelectAll{}.Run(context.Background(), nil, workflow.Inputs{"in_dir": dir})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.mif"), filepath.Join(dir, "b.mif")}, out["out_files"])

	_, err = SelectAll{}.Run(context.Background(), nil, workflow.Inputs{"in_dir": filepath.Join(dir, "sub")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files")
}

func TestIdentity(t *testing.T) {
	id := NewIdentity("subject_id", "dwi")
	assert.Equal(t, []string{"subject_id", "dwi"}, id.Spec().Outputs)

	out, err := id.Run(context.Background(), nil, workflow.Inputs{"subject_id": "s", "dwi": "d.mif", "extra": 1})
	require.NoError(t, err)
	assert.Equal(t, workflow.Outputs{"subject_id": "s", "dwi": "d.mif"}, out)

	_, err = id.Run(context.Background(), nil, workflow.Inputs{"subject_id": "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field dwi is not set")
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".nii.gz", extension("/x/sub_dwi.nii.gz"))
	assert.Equal(t, ".mif", extension("fod.mif"))
	assert.Equal(t, "", extension("noext"))
}

func TestSubjectFiles(t *testing.T) {
	s := &SubjectFiles{
		Kinds: []string{"dwi", "mask"},
		Files: map[string]map[string]string{
			"sub-01": {"dwi": "/d/1.mif", "mask": "/m/1.mif"},
			"sub-02": {"dwi": "/d/2.mif"},
		},
	}
	assert.Equal(t, []string{"subject_id", "dwi", "mask"}, s.Spec().Outputs)

	out, err := s.Run(context.Background(), nil, workflow.Inputs{"subject_id": "sub-01"})
	require.NoError(t, err)
	assert.Equal(t, workflow.Outputs{"subject_id": "sub-01", "dwi": "/d/1.mif", "mask": "/m/1.mif"}, out)

	_, err = s.Run(context.Background(), nil, workflow.Inputs{"subject_id": "sub-02"})
	assert.ErrorContains(t, err, `subject "sub-02" has no mask`)

	_, err = s.Run(context.Background(), nil, workflow.Inputs{"subject_id": "sub-09"})
	assert.ErrorContains(t, err, `unknown subject "sub-09"`)
}
