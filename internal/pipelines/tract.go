package pipelines

import (
	"fmt"

	"github.com/vk/mrtpipelines/internal/config"
	"github.com/vk/mrtpipelines/internal/interfaces"
	"github.com/vk/mrtpipelines/internal/workflow"
)

// Tractography defaults.
const (
	DefaultNFibers  = 1000000
	DefaultNThreads = 1
)

// TemplateTract generates whole-brain tractography on the template FOD,
// filters it to half the streamlines with SIFT and converts the result to
// VTK.
func TemplateTract(tract *config.Tract, wdir string, nfibers, nthreads int, name string) *workflow.Workflow {
	sifted := nfibers / 2
	w := workflow.New(name, wdir)

	fields := []string{"fod"}
	if tract.Seed != "" {
		fields = append(fields, "seed")
	}
	input := workflow.NewNode(InputNode, interfaces.NewIdentity(fields...)).Set("fod", tract.FOD)
	if tract.Seed != "" {
		input.Set("seed", tract.Seed)
	}

	tckgen := workflow.NewNode("template_tckgen", interfaces.Tractography{}).
		Set("select", nfibers).
		Set("backtrack", tract.Backtrack).
		Set("out_file", fmt.Sprintf("template_variant-tckgen_streamlines-%d_tract.tck", nfibers)).
		Set("nthreads", nthreads)

	sift := workflow.NewNode("template_tcksift", interfaces.SIFT{}).
		Set("term_number", sifted).
		Set("out_file", fmt.Sprintf("template_variant-sift_streamlines-%d_tract.tck", sifted)).
		Set("nthreads", nthreads)

	convert := workflow.NewNode("template_tckconvert", interfaces.TCKConvert{}).
		Set("out_file", fmt.Sprintf("template_variant_sift_streamlines-%s_tract.vtk", abbreviate(sifted))).
		Set("nthreads", nthreads)

	w.Connect(input, tckgen, workflow.L("fod", "in_file"))
	if tract.Seed != "" {
		w.Connect(input, tckgen, workflow.L("seed", "seed_image"))
	}
	w.Connect(input, sift, workflow.L("fod", "in_fod"))
	w.Connect(tckgen, sift, workflow.L("out_file", "in_file"))
	w.Connect(sift, convert, workflow.L("out_file", "in_file"))

	return w
}

// abbreviate renders a streamline count with a K or M suffix when it is a
// whole number of thousands or millions.
func abbreviate(n int) string {
	switch {
	case n != 0 && n%1000000 == 0:
		return fmt.Sprintf("%dM", n/1000000)
	case n != 0 && n%1000 == 0:
		return fmt.Sprintf("%dK", n/1000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
