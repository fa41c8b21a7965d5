package validate

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
	"github.com/alexanderjulianmartinez/load-watch/internal/config"
	"github.com/alexanderjulianmartinez/load-watch/internal/source"
	"github.com/alexanderjulianmartinez/load-watch/internal/source/csvfile"
	"github.com/alexanderjulianmartinez/load-watch/internal/warehouse"
	"github.com/alexanderjulianmartinez/load-watch/pkg/types"
)

// FileCounter counts data rows in a local dataset file.
type FileCounter interface {
	Count(ctx context.Context, path string, header bool) (*source.FileInfo, error)
}

// Dataset is one file/table pair to check.
type Dataset struct {
	Name         string
	Path         string
	Table        warehouse.TableRef
	Header       bool
	ExpectedRows *int64
}

// Datasets resolves config entries into checkable datasets.
func Datasets(cfg *config.Config, selected []config.DatasetConfig) ([]Dataset, error) {
	out := make([]Dataset, 0, len(selected))
	for _, d := range selected {
		ref, err := warehouse.ParseTableRef(d.Table)
		if err != nil {
			return nil, apperr.Wrapf(apperr.KindConfig, err, "dataset %s", d.Name)
		}
		out = append(out, Dataset{
			Name:         d.Name,
			Path:         cfg.DatasetPath(d),
			Table:        ref,
			Header:       d.HasHeader(),
			ExpectedRows: d.ExpectedRows,
		})
	}
	return out, nil
}

type Validator struct {
	files     FileCounter
	warehouse warehouse.Counter
	logger    *zap.Logger
}

func New(files FileCounter, wh warehouse.Counter, logger *zap.Logger) *Validator {
	return &Validator{files: files, warehouse: wh, logger: logger}
}

// Validate checks every dataset in order. Per-dataset problems become
// results in the report; only errors that would fail every remaining check
// (bad credentials, bad configuration) stop the run and are returned.
func (v *Validator) Validate(ctx context.Context, datasets []Dataset) (*Report, error) {
	report := &Report{}
	for _, ds := range datasets {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := v.check(ctx, ds)
		report.Results = append(report.Results, res)
		v.logResult(res)

		if err != nil && apperr.KindOf(err).Fatal() {
			return report, err
		}
	}
	return report, nil
}

func (v *Validator) check(ctx context.Context, ds Dataset) (types.CheckResult, error) {
	res := types.CheckResult{
		Dataset:      ds.Name,
		File:         ds.Path,
		Table:        ds.Table.String(),
		ExpectedRows: ds.ExpectedRows,
	}

	info, err := v.files.Count(ctx, ds.Path, ds.Header)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, csvfile.ErrFileMissing) {
			msg = "local file missing: " + ds.Path
		}
		return withStatus(res, StatusError, msg), err
	}
	res.FileSize = info.Size
	res.FileRows = info.RowCount

	whRows, err := v.warehouse.RowCount(ctx, ds.Table)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return withStatus(res, StatusNotFound, MessageForStatus(StatusNotFound, res.Table, 0, 0, 0)), nil
		}
		return withStatus(res, StatusError, err.Error()), err
	}

	return Compare(res, whRows), nil
}

// Compare fills the warehouse side of res and decides its status.
func Compare(res types.CheckResult, warehouseRows int64) types.CheckResult {
	res.WarehouseRows = warehouseRows
	res.Delta = res.FileRows - warehouseRows
	res.Match = res.Delta == 0
	if warehouseRows != 0 {
		res.RowCountDeltaPct = float64(res.Delta) / float64(warehouseRows) * 100
	}

	switch {
	case !res.Match:
		return withStatus(res, StatusMismatch, MessageForStatus(StatusMismatch, res.Table, res.FileRows, warehouseRows, 0))
	case res.ExpectedRows != nil && *res.ExpectedRows != res.FileRows:
		return withStatus(res, StatusExpectedMismatch, MessageForStatus(StatusExpectedMismatch, res.Table, res.FileRows, warehouseRows, *res.ExpectedRows))
	default:
		return withStatus(res, StatusPass, MessageForStatus(StatusPass, res.Table, res.FileRows, warehouseRows, 0))
	}
}

func withStatus(res types.CheckResult, status, msg string) types.CheckResult {
	res.Status = status
	res.Severity = SeverityForStatus(status)
	res.Message = msg
	return res
}

func (v *Validator) logResult(res types.CheckResult) {
	fields := []zap.Field{
		zap.String("dataset", res.Dataset),
		zap.String("table", res.Table),
		zap.String("status", res.Status),
		zap.Int64("file_rows", res.FileRows),
		zap.Int64("warehouse_rows", res.WarehouseRows),
	}
	if res.Status == StatusMismatch {
		fields = append(fields,
			zap.Int64("difference", res.Delta),
			zap.Float64("difference_pct", res.RowCountDeltaPct),
		)
	}
	switch res.Severity {
	case SeverityBlock:
		v.logger.Error(res.Message, fields...)
	case SeverityWarn:
		v.logger.Warn(res.Message, fields...)
	default:
		v.logger.Info(res.Message, fields...)
	}
}
