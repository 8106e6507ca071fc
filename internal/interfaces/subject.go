package interfaces

import (
	"context"
	"fmt"

	"github.com/vk/mrtpipelines/internal/workflow"
)

// SubjectFiles looks up the files of one subject. It is the source node of
// every per-subject workflow: iterated over subject IDs, it emits the
// subject's ID and one output per requested file kind.
type SubjectFiles struct {
	Kinds []string
	Files map[string]map[string]string
}

func (s *SubjectFiles) Spec() workflow.Spec {
	return workflow.Spec{
		Name:    "subjectfiles",
		Inputs:  []string{"subject_id"},
		Outputs: append([]string{"subject_id"}, s.Kinds...),
	}
}

func (s *SubjectFiles) Run(_ context.Context, _ *workflow.Env, in workflow.Inputs) (workflow.Outputs, error) {
	p := &params{in: in}
	id := p.str("subject_id")
	if p.err != nil {
		return nil, fmt.Errorf("subjectfiles: %w", p.err)
	}
	files, ok := s.Files[id]
	if !ok {
		return nil, fmt.Errorf("subjectfiles: unknown subject %q", id)
	}
	out := workflow.Outputs{"subject_id": id}
	for _, kind := range s.Kinds {
		path, ok := files[kind]
		if !ok || path == "" {
			return nil, fmt.Errorf("subjectfiles: subject %q has no %s", id, kind)
		}
		out[kind] = path
	}
	return out, nil
}
