package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/load-watch/internal/config"
	"github.com/alexanderjulianmartinez/load-watch/internal/source/csvfile"
	"github.com/alexanderjulianmartinez/load-watch/internal/validate"
)

const validateLongDescription = `Command "validate"

Count the data rows of every configured CSV file and compare them with
COUNT(*) of the matching warehouse table. Exits non-zero when any dataset
does not match so later pipeline stages can be gated on it.`

type validateOptions struct {
	datasets []string
	strict   bool
}

func validateCommand(root *rootCommand) *cobra.Command {
	var opts validateOptions
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compare file row counts with warehouse table row counts",
		Long:  validateLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			return root.validateDatasets(root.ctx, cfg, opts)
		},
	}
	cmd.Flags().StringSliceVarP(&opts.datasets, "dataset", "d", nil, "only check the named datasets (repeatable)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail on warnings such as unexpected source row counts")
	return cmd
}

func (r *rootCommand) validateDatasets(ctx context.Context, cfg *config.Config, opts validateOptions) error {
	selected, err := cfg.SelectDatasets(opts.datasets)
	if err != nil {
		return err
	}
	datasets, err := validate.Datasets(cfg, selected)
	if err != nil {
		return err
	}

	wh, err := r.openWarehouse(ctx, cfg.Warehouse, r.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := wh.Close(); cerr != nil {
			r.logger.Warn("closing warehouse connection", zap.Error(cerr))
		}
	}()

	r.logger.Info("validating datasets",
		zap.Int("datasets", len(datasets)),
		zap.String("warehouse", wh.Name()),
	)
	report, err := validate.New(csvfile.NewCounter(r.fs), wh, r.logger).Validate(ctx, datasets)
	if report != nil && len(report.Results) > 0 {
		if perr := report.Print(r.stdout, r.colored(), opts.strict); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}
	return report.Err(opts.strict)
}
