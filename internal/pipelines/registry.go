package pipelines

import (
	"fmt"
	"sort"

	"github.com/vk/mrtpipelines/internal/config"
	"github.com/vk/mrtpipelines/internal/workflow"
)

// Workflow names.
const (
	FODTemplateName    = "fod_template"
	TensorTemplateName = "tensor_template"
	AnatTemplateName   = "anat_template"
	TemplateTractName  = "template_tract"
)

// Options are the run-wide settings the workflows are built with.
type Options struct {
	WorkDir  string
	NThreads int
	NFibers  int
}

type definition struct {
	kinds []string
	build func(study *config.Study, opts Options) *workflow.Workflow
}

var definitions = map[string]definition{
	FODTemplateName: {
		kinds: FODKinds,
		build: func(s *config.Study, o Options) *workflow.Workflow {
			return FODTemplate(s.Subjects, o.WorkDir, o.NThreads, FODTemplateName)
		},
	},
	TensorTemplateName: {
		kinds: TensorKinds,
		build: func(s *config.Study, o Options) *workflow.Workflow {
			return TensorTemplate(s.Subjects, o.WorkDir, o.NThreads, TensorTemplateName)
		},
	},
	AnatTemplateName: {
		kinds: AnatKinds,
		build: func(s *config.Study, o Options) *workflow.Workflow {
			return AnatTemplate(s.Subjects, o.WorkDir, o.NThreads, AnatTemplateName)
		},
	},
	TemplateTractName: {
		build: func(s *config.Study, o Options) *workflow.Workflow {
			return TemplateTract(s.Tract, o.WorkDir, o.NFibers, o.NThreads, TemplateTractName)
		},
	},
}

// Names returns the names of all workflows, sorted.
func Names() []string {
	names := make([]string, 0, len(definitions))
	for name := range definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Available returns the workflows the study declares enough inputs for,
// sorted by name.
func Available(study *config.Study) []string {
	var names []string
	for _, name := range Names() {
		if check(study, name) == nil {
			names = append(names, name)
		}
	}
	return names
}

// Build validates the study against the named workflow's inputs and
// declares the workflow.
func Build(name string, study *config.Study, opts Options) (*workflow.Workflow, error) {
	def, ok := definitions[name]
	if !ok {
		return nil, fmt.Errorf("unknown workflow %q (available: %v)", name, Names())
	}
	if err := check(study, name); err != nil {
		return nil, fmt.Errorf("study cannot run %s: %w", name, err)
	}
	if opts.NThreads < 0 {
		return nil, fmt.Errorf("nthreads must not be negative, got %d", opts.NThreads)
	}
	if name == TemplateTractName {
		if opts.NFibers < 2 {
			return nil, fmt.Errorf("nfibers must be at least 2, got %d", opts.NFibers)
		}
		if opts.NThreads == 0 {
			opts.NThreads = DefaultNThreads
		}
	}
	return def.build(study, opts), nil
}

func check(study *config.Study, name string) error {
	if name == TemplateTractName {
		return study.ValidateTract()
	}
	return study.Validate(definitions[name].kinds...)
}
