package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
	"github.com/alexanderjulianmartinez/load-watch/internal/warehouse"
)

type Options struct {
	Project         string
	Dataset         string // default dataset for unqualified table names
	Location        string
	CredentialsFile string
	Timeout         time.Duration
	Retries         int
}

// tableAPI is the slice of the BigQuery client the inspector needs.
type tableAPI interface {
	metadata(ctx context.Context, ref warehouse.TableRef) error
	count(ctx context.Context, ref warehouse.TableRef) (int64, error)
	close() error
}

// Inspector counts rows in BigQuery tables.
type Inspector struct {
	api     tableAPI
	opts    Options
	logger  *zap.Logger
	backoff func() backoff.BackOff
}

var _ warehouse.Counter = (*Inspector)(nil)

// New creates a BigQuery client for opts.Project. Credentials come from
// opts.CredentialsFile when set, otherwise from application default
// credentials.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Inspector, error) {
	if opts.Project == "" {
		return nil, apperr.New(apperr.KindConfig, "bigquery project is required")
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		if _, err := os.Stat(opts.CredentialsFile); err != nil {
			return nil, apperr.Wrapf(apperr.KindConfig, err, "bigquery credentials file %s", opts.CredentialsFile)
		}
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, opts.Project, clientOpts...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, err, "create bigquery client")
	}
	if opts.Location != "" {
		client.Location = opts.Location
	}

	return newWithAPI(&clientAPI{client: client}, opts, logger), nil
}

func newWithAPI(api tableAPI, opts Options, logger *zap.Logger) *Inspector {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Inspector{
		api:    api,
		opts:   opts,
		logger: logger.Named("bigquery"),
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		},
	}
}

func (i *Inspector) Name() string {
	return "bigquery"
}

func (i *Inspector) Close() error {
	return i.api.close()
}

// RowCount implements warehouse.Counter. The table's metadata is fetched
// first so a missing table is reported as not found rather than as a query
// failure.
func (i *Inspector) RowCount(ctx context.Context, ref warehouse.TableRef) (int64, error) {
	ref = ref.WithDefaults(i.opts.Project, i.opts.Dataset)
	if ref.Dataset == "" {
		return 0, apperr.Newf(apperr.KindConfig, "table %s has no dataset and warehouse.dataset is not set", ref.Table)
	}

	if err := i.retry(ctx, ref, "metadata", func(ctx context.Context) error {
		return i.api.metadata(ctx, ref)
	}); err != nil {
		return 0, classify(err, ref)
	}

	var count int64
	if err := i.retry(ctx, ref, "count", func(ctx context.Context) error {
		n, err := i.api.count(ctx, ref)
		if err != nil {
			return err
		}
		count = n
		return nil
	}); err != nil {
		return 0, classify(err, ref)
	}
	return count, nil
}

func (i *Inspector) retry(ctx context.Context, ref warehouse.TableRef, op string, fn func(context.Context) error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(i.backoff(), uint64(i.opts.Retries)), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, i.opts.Timeout)
		defer cancel()

		err := fn(callCtx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		i.logger.Warn("bigquery call failed, retrying",
			zap.String("op", op),
			zap.String("table", ref.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return err
	}, b)
}

func retryable(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	switch gerr.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	for _, item := range gerr.Errors {
		if item.Reason == "rateLimitExceeded" || item.Reason == "backendError" {
			return true
		}
	}
	return false
}

func classify(err error, ref warehouse.TableRef) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return apperr.Wrapf(apperr.KindNotFound, err, "table %s not found", ref)
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperr.Wrapf(apperr.KindAuth, err, "bigquery access to %s denied", ref)
		}
	}
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	return fmt.Errorf("bigquery %s: %w", ref, err)
}

type clientAPI struct {
	client *bigquery.Client
}

func (c *clientAPI) metadata(ctx context.Context, ref warehouse.TableRef) error {
	_, err := c.client.DatasetInProject(ref.Project, ref.Dataset).Table(ref.Table).Metadata(ctx)
	return err
}

func (c *clientAPI) count(ctx context.Context, ref warehouse.TableRef) (int64, error) {
	q := c.client.Query(fmt.Sprintf("SELECT COUNT(*) AS row_count FROM `%s`", ref))
	it, err := q.Read(ctx)
	if err != nil {
		return 0, err
	}

	var row []bigquery.Value
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return 0, fmt.Errorf("count query returned no rows")
	}
	if err != nil {
		return 0, err
	}
	if len(row) != 1 {
		return 0, fmt.Errorf("count query returned %d columns", len(row))
	}
	n, ok := row[0].(int64)
	if !ok {
		return 0, fmt.Errorf("count query returned %T", row[0])
	}
	return n, nil
}

func (c *clientAPI) close() error {
	return c.client.Close()
}
