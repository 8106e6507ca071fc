package interfaces

import (
	"context"
	"strconv"

	"github.com/vk/mrtpipelines/internal/command"
	"github.com/vk/mrtpipelines/internal/workflow"
)

// AverageResponse averages per-subject response functions with responsemean.
type AverageResponse struct{}

func (AverageResponse) Spec() workflow.Spec {
	return workflow.Spec{
		Name:    "responsemean",
		Inputs:  []string{"in_files", "out_file"},
		Outputs: []string{"out_file"},
	}
}

func (a AverageResponse) Run(ctx context.Context, env *workflow.Env, in workflow.Inputs) (workflow.Outputs, error) {
	return runTool(ctx, a, env, in)
}

func (AverageResponse) build(dir string, in workflow.Inputs) (*command.Cmd, workflow.Outputs, error) {
	p := &params{in: in}
	files := p.strs("in_files")
	out := outPath(dir, p.strOr("out_file", "response.txt"))
	if p.err != nil {
		return nil, nil, p.err
	}
	args := append(append([]string{}, files...), out)
	return &command.Cmd{Name: "responsemean", Args: args}, workflow.Outputs{"out_file": out}, nil
}

// EstimateFOD runs dwi2fod. The GM and CSF pairs are only passed when their
// response files are given.
type EstimateFOD struct{}

func (EstimateFOD) Spec() workflow.Spec {
	return workflow.Spec{
		Name: "dwi2fod",
		Inputs: []string{
			"algorithm", "in_file", "mask", "nthreads",
			"wm_txt", "wm_odf", "gm_txt", "gm_odf", "csf_txt", "csf_odf",
		},
		Outputs: []string{"wm_odf", "gm_odf", "csf_odf"},
	}
}

func (e EstimateFOD) Run(ctx context.Context, env *workflow.Env, in workflow.Inputs) (workflow.Outputs, error) {
	return runTool(ctx, e, env, in)
}

func (EstimateFOD) build(dir string, in workflow.Inputs) (*command.Cmd, workflow.Outputs, error) {
	p := &params{in: in}
	args := []string{
		p.strOr("algorithm", "msmt_csd"),
		p.str("in_file"),
		p.str("wm_txt"),
	}
	outputs := workflow.Outputs{"wm_odf": outPath(dir, p.strOr("wm_odf", "wm.mif"))}
	args = append(args, outputs["wm_odf"].(string))
	if p.has("gm_txt") {
		outputs["gm_odf"] = outPath(dir, p.strOr("gm_odf", "gm.mif"))
		args = append(args, p.str("gm_txt"), outputs["gm_odf"].(string))
	}
	if p.has("csf_txt") {
		outputs["csf_odf"] = outPath(dir, p.strOr("csf_odf", "csf.mif"))
		args = append(args, p.str("csf_txt"), outputs["csf_odf"].(string))
	}
	if p.has("mask") {
		args = append(args, "-mask", p.str("mask"))
	}
	args = withThreads(args, p.num("nthreads"))
	if p.err != nil {
		return nil, nil, p.err
	}
	return &command.Cmd{Name: "dwi2fod", Args: args}, outputs, nil
}

// MTNormalise runs mtnormalise over up to three tissue FODs.
type MTNormalise struct{}

func (MTNormalise) Spec() workflow.Spec {
	return workflow.Spec{
		Name: "mtnormalise",
		Inputs: []string{
			"in_wm", "out_wm", "in_gm", "out_gm", "in_csf", "out_csf", "mask", "nthreads",
		},
		Outputs: []string{"out_wm", "out_gm", "out_csf"},
	}
}

func (m MTNormalise) Run(ctx context.Context, env *workflow.Env, in workflow.Inputs) (workflow.Outputs, error) {
	return runTool(ctx, m, env, in)
}

func (MTNormalise) build(dir string, in workflow.Inputs) (*command.Cmd, workflow.Outputs, error) {
	p := &params{in: in}
	outputs := workflow.Outputs{"out_wm": outPath(dir, p.strOr("out_wm", "wm_norm.mif"))}
	args := []string{p.str("in_wm"), outputs["out_wm"].(string)}
	if p.has("in_gm") {
		outputs["out_gm"] = outPath(dir, p.strOr("out_gm", "gm_norm.mif"))
		args = append(args, p.str("in_gm"), outputs["out_gm"].(string))
	}
	if p.has("in_csf") {
		outputs["out_csf"] = outPath(dir, p.strOr("out_csf", "csf_norm.mif"))
		args = append(args, p.str("in_csf"), outputs["out_csf"].(string))
	}
	args = append(args, "-mask", p.str("mask"))
	args = withThreads(args, p.num("nthreads"))
	if p.err != nil {
		return nil, nil, p.err
	}
	return &command.Cmd{Name: "mtnormalise", Args: args}, outputs, nil
}

// PopulationTemplate builds an unbiased template from a directory of images.
type PopulationTemplate struct{}

func (PopulationTemplate) Spec() workflow.Spec {
	return workflow.Spec{
		Name:    "population_template",
		Inputs:  []string{"in_dir", "out_file", "mask_dir", "nthreads"},
		Outputs: []string{"out_file"},
	}
}

func (t PopulationTemplate) Run(ctx context.Context, env *workflow.Env, in workflow.Inputs) (workflow.Outputs, error) {
	return runTool(ctx, t, env, in)
}

func (PopulationTemplate) build(dir string, in workflow.Inputs) (*command.Cmd, workflow.Outputs, error) {
	p := &params{in: in}
	out := outPath(dir, p.strOr("out_file", "template.mif"))
	args := []string{p.str("in_dir"), out}
	if p.has("mask_dir") {
		args = append(args, "-mask_dir", p.str("mask_dir"))
	}
	args = withThreads(args, p.num("nthreads"))
	if p.err != nil {
		return nil, nil, p.err
	}
	return &command.Cmd{Name: "population_template", Args: args}, workflow.Outputs{"out_file": out}, nil
}

// MRMath reduces a set of images with mrmath.
type MRMath struct{}

func (MRMath) Spec() workflow.Spec {
	return workflow.Spec{
		Name:    "mrmath",
		Inputs:  []string{"in_file", "operation", "out_file", "axis", "nthreads"},
		Outputs: []string{"out_file"},
	}
}

func (m MRMath) Run(ctx context.Context, env *workflow.Env, in workflow.Inputs) (workflow.Outputs, error) {
	return runTool(ctx, m, env, in)
}

func (MRMath) build(dir string, in workflow.Inputs) (*command.Cmd, workflow.Outputs, error) {
	p := &params{in: in}
	args := append([]string{}, p.strs("in_file")...)
	out := outPath(dir, p.strOr("out_file", "mrmath.mif"))
	args = append(args, p.str("operation"), out)
	if p.has("axis") {
		args = append(args, "-axis", strconv.Itoa(p.num("axis")))
	}
	args = withThreads(args, p.num("nthreads"))
	if p.err != nil {
		return nil, nil, p.err
	}
	return &command.Cmd{Name: "mrmath", Args: args}, workflow.Outputs{"out_file": out}, nil
}

// Tractography generates streamlines with tckgen.
type Tractography struct{}

func (Tractography) Spec() workflow.Spec {
	return workflow.Spec{
		Name:    "tckgen",
		Inputs:  []string{"in_file", "out_file", "algorithm", "select", "seed_image", "backtrack", "nthreads"},
		Outputs: []string{"out_file"},
	}
}

func (t Tractography) Run(ctx context.Context, env *workflow.Env, in workflow.Inputs) (workflow.Outputs, error) {
	return runTool(ctx, t, env, in)
}

func (Tractography) build(dir string, in workflow.Inputs) (*command.Cmd, workflow.Outputs, error) {
	p := &params{in: in}
	out := outPath(dir, p.strOr("out_file", "tracked.tck"))
	args := []string{p.str("in_file"), out, "-algorithm", p.strOr("algorithm", "iFOD2")}
	if p.has("select") {
		args = append(args, "-select", strconv.Itoa(p.num("select")))
	}
	if p.has("seed_image") {
		args = append(args, "-seed_image", p.str("seed_image"))
	}
	if p.flag("backtrack") {
		args = append(args, "-backtrack")
	}
	args = withThreads(args, p.num("nthreads"))
	if p.err != nil {
		return nil, nil, p.err
	}
	return &command.Cmd{Name: "tckgen", Args: args}, workflow.Outputs{"out_file": out}, nil
}

// SIFT filters a tractogram with tcksift.
type SIFT struct{}

func (SIFT) Spec() workflow.Spec {
	return workflow.Spec{
		Name:    "tcksift",
		Inputs:  []string{"in_file", "in_fod", "out_file", "term_number", "nthreads"},
		Outputs: []string{"out_file"},
	}
}

func (s SIFT) Run(ctx context.Context, env *workflow.Env, in workflow.Inputs) (workflow.Outputs, error) {
	return runTool(ctx, s, env, in)
}

func (SIFT) build(dir string, in workflow.Inputs) (*command.Cmd, workflow.Outputs, error) {
	p := &params{in: in}
	out := outPath(dir, p.strOr("out_file", "sift.tck"))
	args := []string{p.str("in_file"), p.str("in_fod"), out}
	if p.has("term_number") {
		args = append(args, "-term_number", strconv.Itoa(p.num("term_number")))
	}
	args = withThreads(args, p.num("nthreads"))
	if p.err != nil {
		return nil, nil, p.err
	}
	return &command.Cmd{Name: "tcksift", Args: args}, workflow.Outputs{"out_file": out}, nil
}

// TCKConvert converts a tractogram to another format, picked by the output
// file extension.
type TCKConvert struct{}

func (TCKConvert) Spec() workflow.Spec {
	return workflow.Spec{
		Name:    "tckconvert",
		Inputs:  []string{"in_file", "out_file", "nthreads"},
		Outputs: []string{"out_file"},
	}
}

func (c TCKConvert) Run(ctx context.Context, env *workflow.Env, in workflow.Inputs) (workflow.Outputs, error) {
	return runTool(ctx, c, env, in)
}

func (TCKConvert) build(dir string, in workflow.Inputs) (*command.Cmd, workflow.Outputs, error) {
	p := &params{in: in}
	out := outPath(dir, p.strOr("out_file", "converted.vtk"))
	args := withThreads([]string{p.str("in_file"), out}, p.num("nthreads"))
	if p.err != nil {
		return nil, nil, p.err
	}
	return &command.Cmd{Name: "tckconvert", Args: args}, workflow.Outputs{"out_file": out}, nil
}
