package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
	"github.com/alexanderjulianmartinez/load-watch/internal/warehouse"
)

const pingTimeout = 5 * time.Second

// Inspector counts rows in tables of a database/sql warehouse.
type Inspector struct {
	db      *sql.DB
	dialect Dialect
	schema  string
	timeout time.Duration
}

var _ warehouse.Counter = (*Inspector)(nil)

// Open connects with the dialect's driver and verifies the connection.
func Open(dialect Dialect, dsn, schema string, timeout time.Duration) (*Inspector, error) {
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, apperr.Wrapf(apperr.KindConfig, err, "open %s warehouse", dialect.Name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperr.Wrapf(apperr.KindNetwork, err, "%s ping failed", dialect.Name)
	}

	return New(db, dialect, schema, timeout), nil
}

// New wraps an already opened database.
func New(db *sql.DB, dialect Dialect, schema string, timeout time.Duration) *Inspector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Inspector{
		db:      db,
		dialect: dialect,
		schema:  schema,
		timeout: timeout,
	}
}

func (i *Inspector) Name() string {
	return i.dialect.Name
}

func (i *Inspector) Close() error {
	return i.db.Close()
}

// TableExists reports whether ref names an existing table or view.
func (i *Inspector) TableExists(ctx context.Context, ref warehouse.TableRef) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	ref = ref.WithDefaults("", i.schema)
	query, args := i.dialect.existsQuery(ref)

	var n int64
	if err := i.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// RowCount implements warehouse.Counter.
func (i *Inspector) RowCount(ctx context.Context, ref warehouse.TableRef) (int64, error) {
	ref = ref.WithDefaults("", i.schema)

	exists, err := i.TableExists(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("check table %s: %w", ref, err)
	}
	if !exists {
		return 0, apperr.Newf(apperr.KindNotFound, "table %s not found", ref)
	}

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", i.dialect.qualify(ref))
	if err := i.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		if i.dialect.isNoSuchTable(err) {
			return 0, apperr.Wrapf(apperr.KindNotFound, err, "table %s not found", ref)
		}
		return 0, fmt.Errorf("count rows in %s: %w", ref, err)
	}
	return count, nil
}
