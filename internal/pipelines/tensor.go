package pipelines

import (
	"github.com/vk/mrtpipelines/internal/config"
	"github.com/vk/mrtpipelines/internal/interfaces"
	"github.com/vk/mrtpipelines/internal/workflow"
)

// TensorKinds are the subject files the tensor template needs.
var TensorKinds = []string{
	config.KindFA, config.KindMD, config.KindAD, config.KindRD, config.KindTemplateMask,
}

// TensorTemplate builds FA, MD, AD and RD population templates sharing the
// subjects' template-space masks, plus a group brain mask taken as the
// voxelwise minimum of those masks.
func TensorTemplate(subjects []*config.Subject, wdir string, nthreads int, name string) *workflow.Workflow {
	w := workflow.New(name, wdir)
	input := inputNode(subjects, TensorKinds...)

	copyMask := copyNode(w, input, "copyTempMask", stagingDir(wdir, "TempMask"))
	w.Connect(input, copyMask, workflow.L(config.KindTemplateMask, "in_file"))

	for _, m := range []struct{ kind, dir, node string }{
		{config.KindFA, "FA", "FA"},
		{config.KindMD, "MD", "MD"},
		{config.KindAD, "AD", "AD"},
		{config.KindRD, "RD", "RD"},
	} {
		cp := copyNode(w, input, "copy"+m.node, stagingDir(wdir, m.dir))
		template := workflow.NewNode(m.node+"Template", interfaces.PopulationTemplate{}).
			Set("out_file", "template_"+m.kind+".mif").
			Set("nthreads", nthreads)

		w.Connect(input, cp, workflow.L(m.kind, "in_file"))
		w.Connect(cp, template, workflow.L("out_dir", "in_dir"))
		w.Connect(copyMask, template, workflow.L("out_dir", "mask_dir"))
	}

	selectMasks := workflow.NewNode("selectMasks", interfaces.SelectAll{})
	maskTemplate := workflow.NewNode("MaskTemplate", interfaces.MRMath{}).
		Set("out_file", "template_brainmask.mif").
		Set("operation", "min").
		Set("nthreads", nthreads)

	w.Connect(copyMask, selectMasks, workflow.L("out_dir", "in_dir"))
	w.Connect(selectMasks, maskTemplate, workflow.L("out_files", "in_file"))

	return w
}
