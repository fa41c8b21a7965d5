package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
)

// Downloader fetches a dataset archive. Implemented by *Client.
type Downloader interface {
	Download(ctx context.Context, ref DatasetRef, w io.Writer, progress func(total int64) io.Writer) (int64, error)
}

// Result describes the files available locally after a fetch.
type Result struct {
	Dataset      string    `json:"dataset"`
	Dir          string    `json:"-"`
	Files        []string  `json:"files"`
	Size         int64     `json:"size"`
	ArchiveSize  int64     `json:"archiveSize"`
	DownloadedAt time.Time `json:"downloadedAt"`
	Skipped      bool      `json:"-"`
}

// Fetcher downloads a Kaggle dataset and unpacks it into a data directory.
type Fetcher struct {
	fs       afero.Fs
	client   Downloader
	dir      string
	force    bool
	progress func(total int64) io.Writer
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Fetcher)

// WithForce re-downloads even when a previous fetch is recorded.
func WithForce(force bool) Option {
	return func(f *Fetcher) { f.force = force }
}

// WithProgress reports download progress to the writer returned by fn.
func WithProgress(fn func(total int64) io.Writer) Option {
	return func(f *Fetcher) { f.progress = fn }
}

func New(fs afero.Fs, client Downloader, dir string, logger *zap.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		fs:     fs,
		client: client,
		dir:    dir,
		logger: logger.Named("fetch"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch makes the dataset's files available under the data directory.
// A dataset fetched before is left alone unless the fetcher was built
// with WithForce.
func (f *Fetcher) Fetch(ctx context.Context, dataset string) (*Result, error) {
	ref, err := ParseDatasetRef(dataset)
	if err != nil {
		return nil, err
	}
	logger := f.logger.With(zap.String("dataset", ref.String()), zap.String("dir", f.dir))

	if !f.force {
		if prev, ok := f.previous(ref); ok {
			logger.Info("dataset already present, skipping download", zap.Int("files", len(prev.Files)))
			return prev, nil
		}
	}

	if err := f.fs.MkdirAll(f.dir, 0o755); err != nil {
		return nil, apperr.Wrapf(apperr.KindInternal, err, "create %s", f.dir)
	}

	tmp, err := afero.TempFile(f.fs, f.dir, ".loadwatch-download-*.zip")
	if err != nil {
		return nil, apperr.Wrapf(apperr.KindInternal, err, "create temporary archive in %s", f.dir)
	}
	defer func() {
		_ = tmp.Close()
		_ = f.fs.Remove(tmp.Name())
	}()

	logger.Info("downloading dataset")
	n, err := f.client.Download(ctx, ref, tmp, f.progress)
	if err != nil {
		return nil, err
	}

	files, size, err := ExtractZip(f.fs, tmp, n, f.dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, apperr.Newf(apperr.KindInternal, "archive for %s contains no files", ref)
	}

	res := &Result{
		Dataset:      ref.String(),
		Dir:          f.dir,
		Files:        files,
		Size:         size,
		ArchiveSize:  n,
		DownloadedAt: f.now().UTC(),
	}
	if err := f.writeManifest(ref, res); err != nil {
		return nil, err
	}

	logger.Info("dataset extracted", zap.Int("files", len(files)), zap.Int64("bytes", size))
	return res, nil
}

// ManifestPath is where a completed fetch of ref is recorded.
func ManifestPath(dir string, ref DatasetRef) string {
	return filepath.Join(dir, fmt.Sprintf(".loadwatch-%s-%s.json", ref.Owner, ref.Slug))
}

func (f *Fetcher) previous(ref DatasetRef) (*Result, bool) {
	data, err := afero.ReadFile(f.fs, ManifestPath(f.dir, ref))
	if err != nil {
		return nil, false
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil || res.Dataset != ref.String() || len(res.Files) == 0 {
		return nil, false
	}
	for _, name := range res.Files {
		if ok, err := afero.Exists(f.fs, filepath.Join(f.dir, name)); err != nil || !ok {
			return nil, false
		}
	}
	res.Dir = f.dir
	res.Skipped = true
	return &res, true
}

func (f *Fetcher) writeManifest(ref DatasetRef, res *Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, err, "encode manifest")
	}
	path := ManifestPath(f.dir, ref)
	if err := afero.WriteFile(f.fs, path, data, 0o644); err != nil {
		return apperr.Wrapf(apperr.KindInternal, err, "write %s", path)
	}
	return nil
}
