package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
)

const (
	testBaseURL  = "https://kaggle.test/api/v1"
	testDataset  = "olistbr/brazilian-ecommerce"
	testDownload = testBaseURL + "/datasets/download/olistbr/brazilian-ecommerce"
)

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func testClient(t *testing.T, retries int) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	client := NewClient(ClientOptions{
		BaseURL:     testBaseURL,
		Credentials: Credentials{Username: "alice", Key: "secret"},
		Timeout:     5 * time.Second,
		Retries:     retries,
		Transport:   transport,
	}, zap.NewNop())
	client.http.SetRetryWaitTime(time.Millisecond)
	client.http.SetRetryMaxWaitTime(time.Millisecond)
	return client, transport
}

func TestFetchDownloadsAndExtracts(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"olist_orders_dataset.csv":  "order_id,status\n1,delivered\n2,shipped\n",
		"olist_sellers_dataset.csv": "seller_id\nA\n",
	})

	client, transport := testClient(t, 0)
	transport.RegisterResponder(http.MethodGet, testDownload, func(req *http.Request) (*http.Response, error) {
		user, key, ok := req.BasicAuth()
		if !ok || user != "alice" || key != "secret" {
			return httpmock.NewStringResponse(http.StatusUnauthorized, "unauthorized"), nil
		}
		return httpmock.NewBytesResponse(http.StatusOK, archive), nil
	})

	fs := afero.NewMemMapFs()
	var progressTotal int64 = -2
	var progress bytes.Buffer
	f := New(fs, client, "/data", zap.NewNop(), WithProgress(func(total int64) io.Writer {
		progressTotal = total
		return &progress
	}))

	res, err := f.Fetch(context.Background(), testDataset)
	require.NoError(t, err)
	assert.Equal(t, testDataset, res.Dataset)
	assert.Equal(t, []string{"olist_orders_dataset.csv", "olist_sellers_dataset.csv"}, res.Files)
	assert.Equal(t, int64(len(archive)), res.ArchiveSize)
	assert.Equal(t, int64(len(archive)), int64(progress.Len()))
	assert.NotEqual(t, int64(-2), progressTotal)
	assert.False(t, res.Skipped)

	content, err := afero.ReadFile(fs, "/data/olist_orders_dataset.csv")
	require.NoError(t, err)
	assert.Equal(t, "order_id,status\n1,delivered\n2,shipped\n", string(content))

	exists, err := afero.Exists(fs, ManifestPath("/data", DatasetRef{Owner: "olistbr", Slug: "brazilian-ecommerce"}))
	require.NoError(t, err)
	assert.True(t, exists, "manifest should be written")

	leftovers, err := afero.Glob(fs, "/data/.loadwatch-download-*")
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temporary archive should be removed")
}

type countingDownloader struct {
	archive []byte
	calls   int
}

func (d *countingDownloader) Download(_ context.Context, _ DatasetRef, w io.Writer, _ func(int64) io.Writer) (int64, error) {
	d.calls++
	n, err := w.Write(d.archive)
	return int64(n), err
}

func TestFetchSkipsExistingDataset(t *testing.T) {
	fs := afero.NewMemMapFs()
	dl := &countingDownloader{archive: zipArchive(t, map[string]string{"orders.csv": "id\n1\n"})}

	_, err := New(fs, dl, "/data", zap.NewNop()).Fetch(context.Background(), testDataset)
	require.NoError(t, err)

	res, err := New(fs, dl, "/data", zap.NewNop()).Fetch(context.Background(), testDataset)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, []string{"orders.csv"}, res.Files)
	assert.Equal(t, 1, dl.calls)

	// a file removed since the last fetch triggers a new download
	require.NoError(t, fs.Remove("/data/orders.csv"))
	res, err = New(fs, dl, "/data", zap.NewNop()).Fetch(context.Background(), testDataset)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, dl.calls)
}

func TestFetchForceOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/orders.csv", []byte("stale"), 0o644))

	dl := &countingDownloader{archive: zipArchive(t, map[string]string{"orders.csv": "id\n1\n"})}
	_, err := New(fs, dl, "/data", zap.NewNop()).Fetch(context.Background(), testDataset)
	require.NoError(t, err)

	dl.archive = zipArchive(t, map[string]string{"orders.csv": "id\n1\n2\n"})
	res, err := New(fs, dl, "/data", zap.NewNop(), WithForce(true)).Fetch(context.Background(), testDataset)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, dl.calls)

	content, err := afero.ReadFile(fs, "/data/orders.csv")
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n2\n", string(content))
}

func TestFetchErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   apperr.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, apperr.KindAuth},
		{"forbidden", http.StatusForbidden, apperr.KindAuth},
		{"not found", http.StatusNotFound, apperr.KindNotFound},
		{"server error", http.StatusInternalServerError, apperr.KindNetwork},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, transport := testClient(t, 0)
			transport.RegisterResponder(http.MethodGet, testDownload, httpmock.NewStringResponder(tc.status, "nope"))

			fs := afero.NewMemMapFs()
			_, err := New(fs, client, "/data", zap.NewNop()).Fetch(context.Background(), testDataset)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))

			files, _ := afero.ReadDir(fs, "/data")
			assert.Empty(t, files, "nothing should be left behind")
		})
	}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	archive := zipArchive(t, map[string]string{"orders.csv": "id\n1\n"})
	client, transport := testClient(t, 2)
	transport.RegisterResponder(http.MethodGet, testDownload, httpmock.ResponderFromMultipleResponses([]*http.Response{
		httpmock.NewStringResponse(http.StatusServiceUnavailable, "busy"),
		httpmock.NewStringResponse(http.StatusTooManyRequests, "slow down"),
		httpmock.NewBytesResponse(http.StatusOK, archive),
	}))

	res, err := New(afero.NewMemMapFs(), client, "/data", zap.NewNop()).Fetch(context.Background(), testDataset)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders.csv"}, res.Files)
	assert.Equal(t, 3, transport.GetTotalCallCount())
}

func TestFetchDoesNotRetryAuthFailures(t *testing.T) {
	client, transport := testClient(t, 3)
	transport.RegisterResponder(http.MethodGet, testDownload, httpmock.NewStringResponder(http.StatusUnauthorized, "no"))

	_, err := New(afero.NewMemMapFs(), client, "/data", zap.NewNop()).Fetch(context.Background(), testDataset)
	assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestFetchInvalidDataset(t *testing.T) {
	dl := &countingDownloader{}
	for _, ref := range []string{"", "olistbr", "/brazilian-ecommerce", "a/b/c"} {
		_, err := New(afero.NewMemMapFs(), dl, "/data", zap.NewNop()).Fetch(context.Background(), ref)
		assert.Equal(t, apperr.KindConfig, apperr.KindOf(err), ref)
	}
	assert.Zero(t, dl.calls)
}

func TestExtractZipNested(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"raw/orders.csv": "id\n1\n",
		"README.md":      "hello",
	})
	fs := afero.NewMemMapFs()
	files, size, err := ExtractZip(fs, bytes.NewReader(archive), int64(len(archive)), "/data")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", filepath.Join("raw", "orders.csv")}, files)
	assert.Equal(t, int64(len("id\n1\n")+len("hello")), size)

	ok, err := afero.Exists(fs, "/data/raw/orders.csv")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExtractZipRejectsTraversal(t *testing.T) {
	for _, name := range []string{"../evil.csv", "a/../../evil.csv"} {
		archive := zipArchive(t, map[string]string{name: "x"})
		fs := afero.NewMemMapFs()
		_, _, err := ExtractZip(fs, bytes.NewReader(archive), int64(len(archive)), "/data")
		require.Error(t, err, name)

		ok, _ := afero.Exists(fs, "/evil.csv")
		assert.False(t, ok, name)
	}
}

func TestResolveCredentials(t *testing.T) {
	fs := afero.NewMemMapFs()
	t.Setenv(envKaggleConfigDir, "/kaggle")
	t.Setenv("HOME", "/home/nobody")

	creds, err := ResolveCredentials(fs, "env-user", "env-key")
	require.NoError(t, err)
	assert.Equal(t, Credentials{Username: "env-user", Key: "env-key"}, creds)

	_, err = ResolveCredentials(fs, "", "")
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))

	require.NoError(t, afero.WriteFile(fs, "/home/nobody/.kaggle/kaggle.json", []byte(`{"username":"home","key":"k2"}`), 0o600))
	creds, err = ResolveCredentials(fs, "", "")
	require.NoError(t, err)
	assert.Equal(t, "home", creds.Username)

	require.NoError(t, afero.WriteFile(fs, "/kaggle/kaggle.json", []byte(`{"username":"file","key":"k1"}`), 0o600))
	creds, err = ResolveCredentials(fs, "only-user", "")
	require.NoError(t, err)
	assert.Equal(t, Credentials{Username: "file", Key: "k1"}, creds)

	require.NoError(t, afero.WriteFile(fs, "/kaggle/kaggle.json", []byte(`{`), 0o600))
	_, err = ResolveCredentials(fs, "", "")
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}
