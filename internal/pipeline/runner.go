package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
)

// Builtin runs an in-process stage.
type Builtin func(ctx context.Context) error

// Runner executes stages in order and stops at the first failure.
type Runner struct {
	builtins map[string]Builtin
	stdout   io.Writer
	stderr   io.Writer
	logger   *zap.Logger
}

func NewRunner(builtins map[string]Builtin, stdout, stderr io.Writer, logger *zap.Logger) *Runner {
	return &Runner{
		builtins: builtins,
		stdout:   stdout,
		stderr:   stderr,
		logger:   logger.Named("pipeline"),
	}
}

// Plan writes the stages that would run, one per line.
func (r *Runner) Plan(w io.Writer, stages []Stage) error {
	for i, s := range stages {
		if _, err := fmt.Fprintf(w, "%d. %s\n", i+1, s); err != nil {
			return err
		}
	}
	return nil
}

// Run executes stages sequentially. The returned error names the failing
// stage and keeps the kind of the underlying failure.
func (r *Runner) Run(ctx context.Context, stages []Stage) error {
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}

		logger := r.logger.With(zap.String("stage", s.Name))
		logger.Info("stage started", zap.String("stage_desc", s.String()))
		started := time.Now()

		if err := r.runStage(ctx, s); err != nil {
			logger.Error("stage failed", zap.Duration("duration", time.Since(started)), zap.Error(err))
			return apperr.Wrapf(apperr.KindOf(err), err, "stage %s failed", s.Name)
		}
		logger.Info("stage finished", zap.Duration("duration", time.Since(started)))
	}
	return nil
}

func (r *Runner) runStage(ctx context.Context, s Stage) error {
	if s.Builtin != "" {
		fn, ok := r.builtins[s.Builtin]
		if !ok {
			return apperr.Newf(apperr.KindConfig, "unknown builtin %s", s.Builtin)
		}
		return fn(ctx)
	}

	cmd := exec.CommandContext(ctx, s.Args[0], s.Args[1:]...)
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(), s.Env...)
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, exec.ErrNotFound):
		return apperr.Wrapf(apperr.KindConfig, err, "command %s", s.Args[0])
	case errors.As(err, &exitErr):
		return apperr.Newf(apperr.KindInternal, "%s exited with status %d", s.Args[0], exitErr.ExitCode())
	default:
		return apperr.Wrapf(apperr.KindInternal, err, "run %s", s.Args[0])
	}
}
