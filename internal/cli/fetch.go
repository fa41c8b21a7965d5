package cli

import (
	"context"
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"

	"github.com/alexanderjulianmartinez/load-watch/internal/config"
	"github.com/alexanderjulianmartinez/load-watch/internal/fetch"
)

const fetchLongDescription = `Command "fetch"

Download the configured Kaggle dataset and extract it into the data directory.
Credentials come from KAGGLE_USERNAME/KAGGLE_KEY or kaggle.json. A dataset that
was already fetched is left alone unless --force is given.`

func fetchCommand(root *rootCommand) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download and extract the source dataset",
		Long:  fetchLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			_, err = root.fetchDataset(root.ctx, cfg, force)
			return err
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "download again and overwrite existing files")
	return cmd
}

func (r *rootCommand) fetchDataset(ctx context.Context, cfg *config.Config, force bool) (*fetch.Result, error) {
	creds, err := fetch.ResolveCredentials(r.fs, cfg.Kaggle.Username, cfg.Kaggle.Key)
	if err != nil {
		return nil, err
	}

	client := fetch.NewClient(fetch.ClientOptions{
		BaseURL:     cfg.Kaggle.BaseURL,
		Credentials: creds,
		Timeout:     cfg.Kaggle.Timeout.Duration,
		Retries:     cfg.Kaggle.Retries,
		Transport:   r.transport,
	}, r.logger)

	fetcher := fetch.New(r.fs, client, cfg.DataDir(), r.logger,
		fetch.WithForce(force || cfg.Kaggle.Force),
		fetch.WithProgress(r.progress),
	)
	res, err := fetcher.Fetch(ctx, cfg.Kaggle.Dataset)
	if err != nil {
		return nil, err
	}

	if res.Skipped {
		fmt.Fprintf(r.stdout, "%s already present in %s (%d files), use --force to download again\n", res.Dataset, res.Dir, len(res.Files))
		return res, nil
	}
	fmt.Fprintf(r.stdout, "fetched %s into %s: %d files, %s\n",
		res.Dataset, res.Dir, len(res.Files), datasize.ByteSize(res.Size).HumanReadable())
	for _, f := range res.Files {
		fmt.Fprintf(r.stdout, "  %s\n", f)
	}
	return res, nil
}
