package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vk/mrtpipelines/internal/app"
	"github.com/vk/mrtpipelines/internal/command"
	"github.com/vk/mrtpipelines/internal/pipelines"
)

// Version is set at build time.
var Version = "dev"

// Deps are the process-level collaborators of the commands.
type Deps struct {
	Out io.Writer
	// Runner runs MRtrix commands. Nil runs the real binaries.
	Runner command.Runner
}

// NewRootCommand assembles the command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:   "mrtpipelines",
		Short: "Group-level MRtrix3 template pipelines",
		Long: `mrtpipelines builds population templates from per-subject diffusion and
anatomical images with MRtrix3, and generates template tractography.

A study file (.hcl or .yaml) lists the subjects and their input images.
Results are cached in the working directory, so interrupted runs resume
where they stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(deps.Out)
	root.SetErr(deps.Out)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})
	addPersistentFlags(root)

	run := &cobra.Command{
		Use:   "run <study>",
		Short: "Run every workflow the study has inputs for",
		Long: `Run the selected workflows as one graph.

Examples:
  mrtpipelines run study.hcl
  mrtpipelines run study.yaml --workflow fod_template --workflow template_tract`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflows, _ := cmd.Flags().GetStringSlice("workflow")
			return runWorkflows(cmd, deps, args[0], workflows)
		},
	}
	run.Flags().StringSlice("workflow", nil, fmt.Sprintf("Workflow to run, repeatable (one of %v)", pipelines.Names()))
	root.AddCommand(run)

	for _, c := range []struct{ use, workflow, short string }{
		{"fod-template", pipelines.FODTemplateName, "Build a WM FOD population template"},
		{"tensor-template", pipelines.TensorTemplateName, "Build FA, MD, AD, RD and mask templates"},
		{"anat-template", pipelines.AnatTemplateName, "Build T1w and T2w population templates"},
		{"tract", pipelines.TemplateTractName, "Generate tractography on a template FOD"},
	} {
		root.AddCommand(&cobra.Command{
			Use:   c.use + " <study>",
			Short: c.short,
			Args:  exactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWorkflows(cmd, deps, args[0], []string{c.workflow})
			},
		})
	}

	graph := &cobra.Command{
		Use:   "graph <study>",
		Short: "Print the declared workflow graphs in DOT format",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflows, _ := cmd.Flags().GetStringSlice("workflow")
			a, err := newApp(cmd, deps, args[0], workflows)
			if err != nil {
				return err
			}
			defer a.Close()
			dot, err := a.Graph()
			if err != nil {
				return failure(err)
			}
			fmt.Fprint(cmd.OutOrStdout(), dot)
			return nil
		},
	}
	graph.Flags().StringSlice("workflow", nil, "Workflow to print, repeatable")
	root.AddCommand(graph)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  exactArgs(0),
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mrtpipelines %s\n", Version)
		},
	})
	return root
}

// exactArgs reports argument count mismatches as usage errors.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

func newApp(cmd *cobra.Command, deps Deps, studyPath string, workflows []string) (*app.App, error) {
	cfg, err := loadConfig(cmd, studyPath, workflows)
	if err != nil {
		return nil, usageError(err)
	}
	a, err := app.NewApp(cmd.Context(), cmd.OutOrStdout(), cfg, deps.Runner)
	if err != nil {
		return nil, failure(err)
	}
	return a, nil
}

func runWorkflows(cmd *cobra.Command, deps Deps, studyPath string, workflows []string) error {
	a, err := newApp(cmd, deps, studyPath, workflows)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Run(cmd.Context()); err != nil {
		return failure(err)
	}
	return nil
}

// Execute runs the command line in args. Errors are *ExitError values that
// carry the process exit code.
func Execute(ctx context.Context, args []string, deps Deps) error {
	root := NewRootCommand(deps)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	// Unknown subcommands and other cobra parse failures.
	return usageError(err)
}
