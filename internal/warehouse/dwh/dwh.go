package dwh

import (
	"context"

	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
	"github.com/alexanderjulianmartinez/load-watch/internal/config"
	"github.com/alexanderjulianmartinez/load-watch/internal/warehouse"
	"github.com/alexanderjulianmartinez/load-watch/internal/warehouse/bigquery"
	"github.com/alexanderjulianmartinez/load-watch/internal/warehouse/sqldb"
)

// Open returns the warehouse counter selected by cfg.Type.
func Open(ctx context.Context, cfg config.WarehouseConfig, logger *zap.Logger) (warehouse.Counter, error) {
	switch cfg.Type {
	case "", "bigquery":
		bq, err := bigquery.New(ctx, bigquery.Options{
			Project:         cfg.Project,
			Dataset:         cfg.Dataset,
			Location:        cfg.Location,
			CredentialsFile: cfg.CredentialsFile,
			Timeout:         cfg.Timeout.Duration,
			Retries:         cfg.Retries,
		}, logger)
		if err != nil {
			return nil, err
		}
		return bq, nil
	}

	dialect, ok := sqldb.DialectFor(cfg.Type)
	if !ok {
		return nil, apperr.Newf(apperr.KindConfig, "unsupported warehouse type %q", cfg.Type)
	}
	if cfg.DSN == "" {
		return nil, apperr.Newf(apperr.KindConfig, "warehouse.dsn is required for %s", cfg.Type)
	}
	db, err := sqldb.Open(dialect, cfg.DSN, cfg.Schema, cfg.Timeout.Duration)
	if err != nil {
		return nil, err
	}
	return db, nil
}
