package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
	"github.com/alexanderjulianmartinez/load-watch/internal/config"
	"github.com/alexanderjulianmartinez/load-watch/internal/fetch"
	"github.com/alexanderjulianmartinez/load-watch/internal/log"
	"github.com/alexanderjulianmartinez/load-watch/internal/warehouse"
	"github.com/alexanderjulianmartinez/load-watch/internal/warehouse/dwh"
)

const DefaultConfigFile = "loadwatch.yaml"

const rootLongDescription = `loadwatch fetches the Kaggle source dataset, checks that every file landed
in the warehouse with the same number of rows, and drives the pipeline stages
in order, stopping as soon as one fails.`

type rootCommand struct {
	cmd    *cobra.Command
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer
	fs     afero.Fs
	logger *zap.Logger

	configPath string
	verbose    bool
	logJSON    bool
	noColor    bool

	// replaced in tests
	openWarehouse func(ctx context.Context, cfg config.WarehouseConfig, logger *zap.Logger) (warehouse.Counter, error)
	transport     http.RoundTripper
	progress      func(total int64) io.Writer
}

// NewRootCommand builds the command tree writing reports to stdout and logs
// to stderr.
func NewRootCommand(stdout, stderr io.Writer) *rootCommand {
	root := &rootCommand{
		ctx:           context.Background(),
		stdout:        stdout,
		stderr:        stderr,
		fs:            afero.NewOsFs(),
		logger:        log.Nop(),
		openWarehouse: dwh.Open,
	}
	if f, ok := stderr.(*os.File); ok {
		root.progress = fetch.TerminalProgress(f)
	}

	root.cmd = &cobra.Command{
		Use:           "loadwatch",
		Short:         "Fetch, load-check and drive the Olist analytics pipeline",
		Long:          rootLongDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return root.setup(cmd.Context())
		},
	}
	root.cmd.SetOut(stdout)
	root.cmd.SetErr(stderr)
	root.cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return apperr.Wrap(apperr.KindConfig, err, "invalid arguments")
	})

	flags := root.cmd.PersistentFlags()
	flags.StringVarP(&root.configPath, "config", "c", defaultConfigPath(), "path to the config file (env "+config.EnvConfigPath+")")
	flags.BoolVarP(&root.verbose, "verbose", "v", false, "print debug logs")
	flags.BoolVar(&root.logJSON, "log-json", false, "write logs as JSON lines")
	flags.BoolVar(&root.noColor, "no-color", false, "disable coloured output")

	root.cmd.AddCommand(
		fetchCommand(root),
		validateCommand(root),
		runCommand(root),
		datasetsCommand(root),
	)
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv(config.EnvConfigPath); p != "" {
		return p
	}
	return DefaultConfigFile
}

func (r *rootCommand) setup(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	runID := log.NewRunID()
	r.ctx = log.WithRunID(ctx, runID)
	r.logger = log.ForContext(r.ctx, log.New(r.stderr, log.Options{Verbose: r.verbose, JSON: r.logJSON}))
	r.logger.Debug("starting", zap.String("config", r.configPath))
	return nil
}

func (r *rootCommand) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(r.configPath)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("config loaded",
		zap.String("path", r.configPath),
		zap.Int("datasets", len(cfg.Datasets)),
		zap.String("warehouse", cfg.Warehouse.Type),
	)
	return cfg, nil
}

// colored reports whether stdout gets ANSI colours.
func (r *rootCommand) colored() bool {
	if r.noColor || color.NoColor {
		return false
	}
	f, ok := r.stdout.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// Execute runs the CLI with args and returns the process exit code.
func (r *rootCommand) Execute(ctx context.Context, args []string) int {
	r.cmd.SetArgs(args)
	err := r.cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	kind := apperr.KindOf(err)
	red := color.New(color.FgRed)
	if !r.colored() {
		red.DisableColor()
	}
	fmt.Fprintf(r.stderr, "%s %v\n", red.Sprintf("loadwatch: %s error:", kindLabel(kind)), err)
	_ = r.logger.Sync()
	return kind.ExitCode()
}

func kindLabel(k apperr.Kind) string {
	switch k {
	case apperr.KindConfig:
		return "configuration"
	case apperr.KindNetwork:
		return "network"
	case apperr.KindAuth:
		return "authentication"
	case apperr.KindMismatch:
		return "validation"
	case apperr.KindNotFound:
		return "not found"
	default:
		return "internal"
	}
}

