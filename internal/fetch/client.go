package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
)

const (
	RetryWaitTime    = 500 * time.Millisecond
	RetryWaitTimeMax = 10 * time.Second
	userAgent        = "loadwatch/1.0"
)

// ClientOptions configures the Kaggle API client.
type ClientOptions struct {
	BaseURL     string
	Credentials Credentials
	Timeout     time.Duration
	Retries     int

	// Transport replaces the default HTTP transport when set.
	Transport http.RoundTripper
}

// Client downloads dataset archives from the Kaggle API.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(opts ClientOptions, logger *zap.Logger) *Client {
	logger = logger.Named("kaggle")

	c := resty.New()
	if opts.Transport != nil {
		c.SetTransport(opts.Transport)
	}
	c.SetLogger(logger.Sugar())
	c.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	c.SetHeader("User-Agent", userAgent)
	c.SetBasicAuth(opts.Credentials.Username, opts.Credentials.Key)
	c.SetTimeout(opts.Timeout)
	c.SetRetryCount(opts.Retries)
	c.SetRetryWaitTime(RetryWaitTime)
	c.SetRetryMaxWaitTime(RetryWaitTimeMax)
	c.AddRetryCondition(func(response *resty.Response, err error) bool {
		if response == nil {
			return err != nil
		}
		switch response.StatusCode() {
		case
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	})
	c.AddRetryHook(func(response *resty.Response, err error) {
		status := 0
		if response != nil {
			status = response.StatusCode()
		}
		logger.Warn("retrying download", zap.Int("status", status), zap.Error(err))
	})

	return &Client{http: c, logger: logger}
}

// Download streams the archive of owner/dataset into w and returns the
// number of bytes written. progress, when non-nil, is called once with the
// expected size (-1 when unknown) and the returned writer receives a copy of
// the stream.
func (c *Client) Download(ctx context.Context, ref DatasetRef, w io.Writer, progress func(total int64) io.Writer) (int64, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetPathParams(map[string]string{
			"owner":   ref.Owner,
			"dataset": ref.Slug,
		}).
		Get("/datasets/download/{owner}/{dataset}")
	if err != nil {
		return 0, apperr.Wrapf(apperr.KindNetwork, err, "download %s", ref)
	}
	body := resp.RawBody()
	defer body.Close()

	switch status := resp.StatusCode(); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return 0, apperr.Newf(apperr.KindAuth, "download %s: kaggle rejected credentials (%d)", ref, status)
	case status == http.StatusNotFound:
		return 0, apperr.Newf(apperr.KindNotFound, "download %s: dataset not found", ref)
	case status < 200 || status > 299:
		return 0, apperr.Newf(apperr.KindNetwork, "download %s: unexpected status %d", ref, status)
	}

	dst := w
	if progress != nil {
		if pw := progress(resp.RawResponse.ContentLength); pw != nil {
			dst = io.MultiWriter(w, pw)
		}
	}

	n, err := io.Copy(dst, body)
	if err != nil {
		return n, apperr.Wrapf(apperr.KindNetwork, err, "download %s", ref)
	}
	c.logger.Debug("archive downloaded", zap.String("dataset", ref.String()), zap.Int64("bytes", n))
	return n, nil
}

// DatasetRef is a Kaggle dataset identifier, owner/slug.
type DatasetRef struct {
	Owner string
	Slug  string
}

func ParseDatasetRef(s string) (DatasetRef, error) {
	owner, slug, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || slug == "" || strings.Contains(slug, "/") {
		return DatasetRef{}, apperr.Newf(apperr.KindConfig, "invalid kaggle dataset %q, expected owner/dataset", s)
	}
	return DatasetRef{Owner: owner, Slug: slug}, nil
}

func (r DatasetRef) String() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Slug)
}
