package pipelines

import (
	"github.com/vk/mrtpipelines/internal/config"
	"github.com/vk/mrtpipelines/internal/interfaces"
	"github.com/vk/mrtpipelines/internal/workflow"
)

// AnatKinds are the subject files the anatomical template needs.
var AnatKinds = []string{config.KindT1w, config.KindT2w}

// AnatTemplate builds T1w and T2w population templates.
func AnatTemplate(subjects []*config.Subject, wdir string, nthreads int, name string) *workflow.Workflow {
	nthreads = capThreads(nthreads)
	w := workflow.New(name, wdir)
	input := inputNode(subjects, AnatKinds...)

	for _, m := range []struct{ kind, label string }{
		{config.KindT1w, "T1w"},
		{config.KindT2w, "T2w"},
	} {
		cp := copyNode(w, input, "copy"+m.label, stagingDir(wdir, m.label))
		template := workflow.NewNode(m.label+"Template", interfaces.PopulationTemplate{}).
			Set("out_file", "template_"+m.kind+".mif").
			Set("nthreads", nthreads)

		w.Connect(input, cp, workflow.L(m.kind, "in_file"))
		w.Connect(cp, template, workflow.L("out_dir", "in_dir"))
	}
	return w
}
