package pipelines

import (
	"path/filepath"

	"github.com/vk/mrtpipelines/internal/config"
	"github.com/vk/mrtpipelines/internal/interfaces"
	"github.com/vk/mrtpipelines/internal/workflow"
)

// maxSubjectThreads caps the per-subject tools, which gain little beyond it.
const maxSubjectThreads = 8

// InputNode is the name of the per-subject source node every subject
// workflow joins over.
const InputNode = "inputnode"

// stagingDir is where join nodes collect per-subject files.
func stagingDir(wdir, kind string) string {
	return filepath.Join(wdir, "tmpFiles", kind)
}

func capThreads(n int) int {
	if n >= maxSubjectThreads {
		return maxSubjectThreads
	}
	return n
}

// inputNode builds the iterable source node emitting each subject's files
// of the given kinds.
func inputNode(subjects []*config.Subject, kinds ...string) *workflow.Node {
	files := make(map[string]map[string]string, len(subjects))
	ids := make([]string, len(subjects))
	for i, s := range subjects {
		ids[i] = s.ID
		files[s.ID] = s.Files
	}
	iface := &interfaces.SubjectFiles{Kinds: kinds, Files: files}
	return workflow.NewNode(InputNode, iface).Iterate("subject_id", ids...)
}

// copyNode joins one file kind of every subject into a staging directory,
// naming the copies after their subjects.
func copyNode(w *workflow.Workflow, input *workflow.Node, name, outDir string) *workflow.Node {
	n := workflow.NewJoinNode(name, interfaces.CopyFiles{}, InputNode, "in_file", "subject_id").
		Set("out_dir", outDir)
	w.Connect(input, n, workflow.L("subject_id", "subject_id"))
	return n
}
