package hcl

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/mrtpipelines/internal/config"
	"github.com/vk/mrtpipelines/internal/ctxlog"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	// Vars override variable defaults by name.
	Vars map[string]string
}

// NewLoader creates a new HCL study loader.
func NewLoader(vars map[string]string) *Loader {
	return &Loader{Vars: vars}
}

// Load parses the study file at path.
func (l *Loader) Load(ctx context.Context, path string) (*config.Study, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	vars, err := l.variables(root.Variables)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	evalCtx := baseContext(vars)

	study := &config.Study{Source: path}
	if root.Study != nil {
		var attrs studyAttrs
		if diags := gohcl.DecodeBody(root.Study.Body, evalCtx, &attrs); diags.HasErrors() {
			return nil, fmt.Errorf("%s: study block: %w", path, diags)
		}
		study.Name = deref(attrs.Name)
		study.Description = deref(attrs.Description)
	}

	add := func(id string, files map[string]string) {
		if sub, ok := study.Subject(id); ok {
			for kind, p := range files {
				sub.Files[kind] = p
			}
			return
		}
		study.Subjects = append(study.Subjects, &config.Subject{ID: id, Files: files})
	}

	for _, tpl := range root.Templates {
		ids, err := stringList(tpl.IDs, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("%s: subjects block ids: %w", path, err)
		}
		for _, id := range ids {
			files, err := decodeFiles(tpl.Body, subjectContext(evalCtx, id))
			if err != nil {
				return nil, fmt.Errorf("%s: subjects block for %q: %w", path, id, err)
			}
			add(id, files)
		}
	}

	seen := make(map[string]bool, len(root.Subjects))
	for _, s := range root.Subjects {
		if seen[s.ID] {
			return nil, fmt.Errorf("%s: duplicate subject block %q", path, s.ID)
		}
		seen[s.ID] = true
		files, err := decodeFiles(s.Body, subjectContext(evalCtx, s.ID))
		if err != nil {
			return nil, fmt.Errorf("%s: subject %q: %w", path, s.ID, err)
		}
		add(s.ID, files)
	}

	if root.Tract != nil {
		var attrs tractAttrs
		if diags := gohcl.DecodeBody(root.Tract.Body, evalCtx, &attrs); diags.HasErrors() {
			return nil, fmt.Errorf("%s: tract block: %w", path, diags)
		}
		study.Tract = &config.Tract{FOD: deref(attrs.FOD), Seed: deref(attrs.Seed)}
		if attrs.Backtrack != nil {
			study.Tract.Backtrack = *attrs.Backtrack
		}
	}

	if err := study.ResolvePaths(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	logger.Debug("HCL loading complete.", "subjects", len(study.Subjects), "tract", study.Tract != nil)
	return study, nil
}

// variables evaluates variable defaults and applies overrides.
func (l *Loader) variables(blocks []*variableBlock) (map[string]cty.Value, error) {
	vars := make(map[string]cty.Value, len(blocks))
	declared := make(map[string]bool, len(blocks))
	constCtx := &hcl.EvalContext{Functions: functions}

	for _, b := range blocks {
		if declared[b.Name] {
			return nil, fmt.Errorf("variable %q declared twice", b.Name)
		}
		declared[b.Name] = true

		if v, ok := l.Vars[b.Name]; ok {
			vars[b.Name] = cty.StringVal(v)
			continue
		}
		val, diags := b.Default.Value(constCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("variable %q: %w", b.Name, diags)
		}
		if val.IsNull() {
			return nil, fmt.Errorf("variable %q has no default and was not set", b.Name)
		}
		vars[b.Name] = val
	}

	var unknown []string
	for name := range l.Vars {
		if !declared[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("undeclared variables set: %v", unknown)
	}
	return vars, nil
}

func decodeFiles(body hcl.Body, evalCtx *hcl.EvalContext) (map[string]string, error) {
	var attrs fileAttrs
	if diags := gohcl.DecodeBody(body, evalCtx, &attrs); diags.HasErrors() {
		return nil, diags
	}
	return attrs.files(), nil
}

func stringList(expr hcl.Expression, evalCtx *hcl.EvalContext) ([]string, error) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}
	val, err := convert.Convert(val, cty.List(cty.String))
	if err != nil {
		return nil, err
	}
	var out []string
	if err := gocty.FromCtyValue(val, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
