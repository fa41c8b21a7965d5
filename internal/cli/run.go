package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
	"github.com/alexanderjulianmartinez/load-watch/internal/pipeline"
)

const runLongDescription = `Command "run"

Run the configured pipeline stages in order: builtin fetch and validate steps
and external commands such as meltano or dbt. The first failing stage stops
the run.`

func runCommand(root *rootCommand) *cobra.Command {
	var (
		from, to string
		dryRun   bool
		force    bool
		strict   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline stages in order",
		Long:  runLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.Pipeline.Stages) == 0 {
				return apperr.New(apperr.KindConfig, "no pipeline stages configured")
			}

			stages, err := pipeline.Stages(cfg)
			if err != nil {
				return err
			}
			stages, err = pipeline.Slice(stages, from, to)
			if err != nil {
				return err
			}

			runner := pipeline.NewRunner(map[string]pipeline.Builtin{
				pipeline.BuiltinFetch: func(ctx context.Context) error {
					_, err := root.fetchDataset(ctx, cfg, force)
					return err
				},
				pipeline.BuiltinValidate: func(ctx context.Context) error {
					return root.validateDatasets(ctx, cfg, validateOptions{strict: strict})
				},
			}, root.stdout, root.stderr, root.logger)

			if dryRun {
				return runner.Plan(root.stdout, stages)
			}
			return runner.Run(root.ctx, stages)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first stage to run")
	cmd.Flags().StringVar(&to, "to", "", "last stage to run")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the stages without running them")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "download the dataset again in the fetch stage")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail the validate stage on warnings")
	return cmd
}
