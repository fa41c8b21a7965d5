package cli

import (
	"os"
	"strconv"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/cobra"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
	"github.com/alexanderjulianmartinez/load-watch/internal/table"
	"github.com/alexanderjulianmartinez/load-watch/internal/warehouse"
)

func datasetsCommand(root *rootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List configured datasets with their files and tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			tbl := table.New(root.stdout, "NAME", "FILE", "SIZE", "TABLE", "EXPECTED ROWS")
			for _, d := range cfg.Datasets {
				ref, err := warehouse.ParseTableRef(d.Table)
				if err != nil {
					return apperr.Wrapf(apperr.KindConfig, err, "dataset %s", d.Name)
				}
				ref = ref.WithDefaults(cfg.Warehouse.Project, cfg.Warehouse.Dataset)

				path := cfg.DatasetPath(d)
				size := "missing"
				if fi, err := root.fs.Stat(path); err == nil {
					size = datasize.ByteSize(fi.Size()).HumanReadable()
				} else if !os.IsNotExist(err) {
					size = "unreadable"
				}

				expected := "-"
				if d.ExpectedRows != nil {
					expected = strconv.FormatInt(*d.ExpectedRows, 10)
				}
				tbl.Append([]string{d.Name, path, size, ref.String(), expected})
			}
			tbl.Render()
			return nil
		},
	}
}
