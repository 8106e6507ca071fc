package pipelines

import (
	"github.com/vk/mrtpipelines/internal/config"
	"github.com/vk/mrtpipelines/internal/interfaces"
	"github.com/vk/mrtpipelines/internal/workflow"
)

// FODKinds are the subject files the FOD template needs.
var FODKinds = []string{
	config.KindDWI, config.KindMask,
	config.KindWMResponse, config.KindGMResponse, config.KindCSFResponse,
}

// FODTemplate builds a white-matter FOD population template: group-average
// responses, multi-tissue CSD per subject, intensity normalisation, then
// population_template over the normalised WM FODs and masks.
func FODTemplate(subjects []*config.Subject, wdir string, nthreads int, name string) *workflow.Workflow {
	subjectThreads := capThreads(nthreads)
	w := workflow.New(name, wdir)

	input := inputNode(subjects, FODKinds...)

	avgWM := workflow.NewJoinNode("avgResponse_wm", interfaces.AverageResponse{}, InputNode, "in_files").
		Set("out_file", "template_wmresponse.txt")
	avgGM := workflow.NewJoinNode("avgResponse_gm", interfaces.AverageResponse{}, InputNode, "in_files").
		Set("out_file", "template_gmresponse.txt")
	avgCSF := workflow.NewJoinNode("avgResponse_csf", interfaces.AverageResponse{}, InputNode, "in_files").
		Set("out_file", "template_csfresponse.txt")

	dwi2fod := workflow.NewMapNode("dwi2fod", interfaces.EstimateFOD{}, "in_file").
		Set("algorithm", "msmt_csd").
		Set("nthreads", subjectThreads)

	mtnormalise := workflow.NewMapNode("mtnormalise", interfaces.MTNormalise{}, "in_wm", "in_gm", "in_csf", "mask").
		Set("nthreads", subjectThreads)

	copyFOD := copyNode(w, input, "copyFOD", stagingDir(wdir, "FOD"))
	copyMask := copyNode(w, input, "copyMask", stagingDir(wdir, "Mask"))

	template := workflow.NewNode("FODTemplate", interfaces.PopulationTemplate{}).
		Set("out_file", "template_wmfod.mif").
		Set("nthreads", nthreads)

	w.Connect(input, avgWM, workflow.L(config.KindWMResponse, "in_files"))
	w.Connect(input, avgGM, workflow.L(config.KindGMResponse, "in_files"))
	w.Connect(input, avgCSF, workflow.L(config.KindCSFResponse, "in_files"))
	w.Connect(input, dwi2fod, workflow.L(config.KindDWI, "in_file"))
	w.Connect(avgWM, dwi2fod, workflow.L("out_file", "wm_txt"))
	w.Connect(avgGM, dwi2fod, workflow.L("out_file", "gm_txt"))
	w.Connect(avgCSF, dwi2fod, workflow.L("out_file", "csf_txt"))
	w.Connect(dwi2fod, mtnormalise,
		workflow.L("wm_odf", "in_wm"),
		workflow.L("gm_odf", "in_gm"),
		workflow.L("csf_odf", "in_csf"),
	)
	w.Connect(input, mtnormalise, workflow.L(config.KindMask, "mask"))
	w.Connect(mtnormalise, copyFOD, workflow.L("out_wm", "in_file"))
	w.Connect(input, copyMask, workflow.L(config.KindMask, "in_file"))
	w.Connect(copyFOD, template, workflow.L("out_dir", "in_dir"))
	w.Connect(copyMask, template, workflow.L("out_dir", "mask_dir"))

	return w
}
