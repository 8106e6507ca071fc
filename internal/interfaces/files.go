package interfaces

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vk/mrtpipelines/internal/ctxlog"
	"github.com/vk/mrtpipelines/internal/workflow"
)

// copyConcurrency bounds the number of files copied at once.
const copyConcurrency = 4

// CopyFiles stages files into a shared directory. When subject IDs are given
// each copy is named after its subject, so that images of different kinds
// staged for the same subjects line up by name.
type CopyFiles struct{}

func (CopyFiles) Spec() workflow.Spec {
	return workflow.Spec{
		Name:    "copyfiles",
		Inputs:  []string{"in_file", "subject_id", "out_dir"},
		Outputs: []string{"out_dir", "out_files"},
	}
}

func (CopyFiles) Run(ctx context.Context, _ *workflow.Env, in workflow.Inputs) (workflow.Outputs, error) {
	p := &params{in: in}
	files := p.strs("in_file")
	outDir := p.str("out_dir")
	var ids []string
	if p.has("subject_id") {
		ids = p.strs("subject_id")
	}
	if p.err != nil {
		return nil, fmt.Errorf("copyfiles: %w", p.err)
	}
	if ids != nil && len(ids) != len(files) {
		return nil, fmt.Errorf("copyfiles: %d files but %d subject ids", len(files), len(ids))
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("copyfiles: %w", err)
	}

	dests := make([]string, len(files))
	seen := make(map[string]string, len(files))
	for i, src := range files {
		name := filepath.Base(src)
		if ids != nil {
			name = ids[i] + extension(src)
		}
		dests[i] = filepath.Join(outDir, name)
		if prev, dup := seen[dests[i]]; dup {
			return nil, fmt.Errorf("copyfiles: %s and %s both map to %s", prev, src, dests[i])
		}
		seen[dests[i]] = src
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(copyConcurrency)
	for i := range files {
		src, dst := files[i], dests[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return copyFile(src, dst)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("copyfiles: %w", err)
	}

	ctxlog.FromContext(ctx).Debug("Staged files.", "count", len(files), "dir", outDir)
	return workflow.Outputs{"out_dir": outDir, "out_files": dests}, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s: %w", src, err)
	}
	return nil
}

// extension returns the file extension, keeping compound image extensions
// such as .nii.gz intact.
func extension(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".nii.gz", ".mif.gz"} {
		if strings.HasSuffix(base, ext) {
			return ext
		}
	}
	return filepath.Ext(base)
}

// SelectAll lists the regular files of a directory in name order.
type SelectAll struct{}

func (SelectAll) Spec() workflow.Spec {
	return workflow.Spec{
		Name:    "selectall",
		Inputs:  []string{"in_dir"},
		Outputs: []string{"out_files"},
	}
}

func (SelectAll) Run(_ context.Context, _ *workflow.Env, in workflow.Inputs) (workflow.Outputs, error) {
	p := &params{in: in}
	dir := p.str("in_dir")
	if p.err != nil {
		return nil, fmt.Errorf("selectall: %w", p.err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("selectall: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("selectall: no files in %s", dir)
	}
	sort.Strings(files)
	return workflow.Outputs{"out_files": files}, nil
}

// Identity passes its fields through unchanged.
type Identity struct {
	Fields []string
}

// NewIdentity returns an Identity over the given fields.
func NewIdentity(fields ...string) *Identity {
	return &Identity{Fields: fields}
}

func (i *Identity) Spec() workflow.Spec {
	return workflow.Spec{Name: "identity", Inputs: i.Fields, Outputs: i.Fields}
}

func (i *Identity) Run(_ context.Context, _ *workflow.Env, in workflow.Inputs) (workflow.Outputs, error) {
	out := make(workflow.Outputs, len(i.Fields))
	var missing []error
	for _, f := range i.Fields {
		v, ok := in[f]
		if !ok {
			missing = append(missing, fmt.Errorf("field %s is not set", f))
			continue
		}
		out[f] = v
	}
	if err := errors.Join(missing...); err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	return out, nil
}
