// Package yamlstudy reads study definitions written in YAML.
package yamlstudy

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vk/mrtpipelines/internal/config"
	"github.com/vk/mrtpipelines/internal/ctxlog"
)

type document struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Subjects    []subjectDocument `yaml:"subjects"`
	Tract       *tractDocument    `yaml:"tract"`
}

type subjectDocument struct {
	ID           string `yaml:"id"`
	DWI          string `yaml:"dwi"`
	Mask         string `yaml:"mask"`
	WMResponse   string `yaml:"wm_response"`
	GMResponse   string `yaml:"gm_response"`
	CSFResponse  string `yaml:"csf_response"`
	FA           string `yaml:"fa"`
	MD           string `yaml:"md"`
	AD           string `yaml:"ad"`
	RD           string `yaml:"rd"`
	TemplateMask string `yaml:"template_mask"`
	T1w          string `yaml:"t1w"`
	T2w          string `yaml:"t2w"`
}

type tractDocument struct {
	FOD       string `yaml:"fod"`
	Seed      string `yaml:"seed"`
	Backtrack bool   `yaml:"backtrack"`
}

// Loader implements config.Loader for YAML study files.
type Loader struct{}

// NewLoader creates a YAML study loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads the study at path. Unknown keys are rejected.
func (l *Loader) Load(ctx context.Context, path string) (*config.Study, error) {
	ctxlog.FromContext(ctx).Debug("YAML loader started.", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read study file: %w", err)
	}

	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file %s: %w", path, err)
	}

	study := &config.Study{
		Name:        doc.Name,
		Description: doc.Description,
		Source:      path,
	}
	for _, s := range doc.Subjects {
		study.Subjects = append(study.Subjects, &config.Subject{ID: s.ID, Files: s.files()})
	}
	if doc.Tract != nil {
		study.Tract = &config.Tract{FOD: doc.Tract.FOD, Seed: doc.Tract.Seed, Backtrack: doc.Tract.Backtrack}
	}
	if err := study.ResolvePaths(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return study, nil
}

func (s subjectDocument) files() map[string]string {
	out := make(map[string]string)
	for kind, v := range map[string]string{
		config.KindDWI:          s.DWI,
		config.KindMask:         s.Mask,
		config.KindWMResponse:   s.WMResponse,
		config.KindGMResponse:   s.GMResponse,
		config.KindCSFResponse:  s.CSFResponse,
		config.KindFA:           s.FA,
		config.KindMD:           s.MD,
		config.KindAD:           s.AD,
		config.KindRD:           s.RD,
		config.KindTemplateMask: s.TemplateMask,
		config.KindT1w:          s.T1w,
		config.KindT2w:          s.T2w,
	} {
		if v != "" {
			out[kind] = v
		}
	}
	return out
}
