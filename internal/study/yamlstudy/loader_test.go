package yamlstudy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: pilot
subjects:
  - id: sub-01
    dwi: /data/sub-01/dwi.mif
    mask: /data/sub-01/mask.mif
  - id: sub-02
    fa: /data/sub-02/fa.nii.gz
tract:
  fod: /data/template/wmfod.mif
`), 0o644))

	study, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "pilot", study.Name)
	assert.Equal(t, path, study.Source)
	assert.Equal(t, []string{"sub-01", "sub-02"}, study.SubjectIDs())
	assert.Equal(t, map[string]string{"dwi": "/data/sub-01/dwi.mif", "mask": "/data/sub-01/mask.mif"}, study.Subjects[0].Files)
	assert.Equal(t, map[string]string{"fa": "/data/sub-02/fa.nii.gz"}, study.Subjects[1].Files)
	require.NotNil(t, study.Tract)
	assert.Equal(t, "/data/template/wmfod.mif", study.Tract.FOD)
	assert.Empty(t, study.Tract.Seed)
}

func TestLoad_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "study.yaml")
	require.NoError(t, os.WriteFile(path, []byte("subjects:\n  - id: a\n    flair: x\n"), 0o644))

	_, err := NewLoader().Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flair")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read study file")
}

func TestLoad_RelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "study.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
subjects:
  - id: sub-01
    t1w: anat/sub-01_T1w.nii.gz
tract:
  fod: template/wmfod.mif
  seed: /abs/seed.mif
`), 0o644))

	study, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "anat", "sub-01_T1w.nii.gz"), study.Subjects[0].File("t1w"))
	assert.Equal(t, filepath.Join(dir, "template", "wmfod.mif"), study.Tract.FOD)
	assert.Equal(t, "/abs/seed.mif", study.Tract.Seed)
}
