package fetch

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
)

// ExtractZip unpacks the archive into dir and returns the extracted file
// paths relative to dir together with their total size. Entries that would
// land outside dir are rejected.
func ExtractZip(fs afero.Fs, archive io.ReaderAt, size int64, dir string) ([]string, int64, error) {
	zr, err := zip.NewReader(archive, size)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, err, "open archive")
	}

	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, 0, apperr.Wrapf(apperr.KindInternal, err, "create %s", dir)
	}

	var files []string
	var total int64
	for _, f := range zr.File {
		rel, err := entryPath(f.Name)
		if err != nil {
			return nil, 0, err
		}
		target := filepath.Join(dir, rel)

		if f.FileInfo().IsDir() {
			if err := fs.MkdirAll(target, 0o755); err != nil {
				return nil, 0, apperr.Wrapf(apperr.KindInternal, err, "create %s", target)
			}
			continue
		}

		n, err := extractFile(fs, f, target)
		if err != nil {
			return nil, 0, err
		}
		files = append(files, rel)
		total += n
	}

	sort.Strings(files)
	return files, total, nil
}

func entryPath(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", apperr.Newf(apperr.KindInternal, "archive entry %q escapes the data directory", name)
	}
	return clean, nil
}

func extractFile(fs afero.Fs, f *zip.File, target string) (int64, error) {
	if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, apperr.Wrapf(apperr.KindInternal, err, "create %s", filepath.Dir(target))
	}

	src, err := f.Open()
	if err != nil {
		return 0, apperr.Wrapf(apperr.KindInternal, err, "open archive entry %s", f.Name)
	}
	defer src.Close()

	dst, err := fs.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, apperr.Wrapf(apperr.KindInternal, err, "create %s", target)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, apperr.Wrapf(apperr.KindInternal, err, "extract %s", f.Name)
	}
	if uint64(n) != f.UncompressedSize64 {
		return n, apperr.Newf(apperr.KindInternal, "extract %s: wrote %d of %d bytes", f.Name, n, f.UncompressedSize64)
	}
	return n, nil
}
