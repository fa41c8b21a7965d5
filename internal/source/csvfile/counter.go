package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/alexanderjulianmartinez/load-watch/internal/source"
)

// ErrFileMissing is returned when the dataset file does not exist locally.
var ErrFileMissing = errors.New("dataset file missing")

// ErrUnterminatedQuote is returned when the input ends inside a quoted field.
var ErrUnterminatedQuote = errors.New("unterminated quoted field")

const ctxCheckEvery = 10000

// Counter counts data records in delimited files.
type Counter struct {
	fs    afero.Fs
	comma rune
}

func NewCounter(fs afero.Fs) *Counter {
	return &Counter{fs: fs, comma: ','}
}

// Count opens path and returns the number of data records, excluding the
// header line when header is true.
func (c *Counter) Count(ctx context.Context, path string, header bool) (*source.FileInfo, error) {
	info, err := c.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileMissing, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	n, err := countRecords(ctx, f, c.comma, header)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", path, err)
	}
	return &source.FileInfo{Path: path, Size: info.Size(), RowCount: n}, nil
}

// CountRecords counts CSV records read from r. Quoted fields spanning several
// lines count once; blank lines are skipped.
func CountRecords(ctx context.Context, r io.Reader, header bool) (int64, error) {
	return countRecords(ctx, r, ',', header)
}

func countRecords(ctx context.Context, r io.Reader, comma rune, header bool) (int64, error) {
	quotes := newQuoteTracker(byte(comma))
	reader := csv.NewReader(io.TeeReader(r, quotes))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	var records int64
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		records++
		if records%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
	}

	if quotes.unterminated() {
		return 0, fmt.Errorf("%w: quote opened on line %d is never closed", ErrUnterminatedQuote, quotes.openedAt)
	}

	if header && records > 0 {
		records--
	}
	return records, nil
}

// quoteTracker follows quoted fields with the same rules as a csv.Reader in
// LazyQuotes mode. The lazy reader silently runs an unclosed quote to EOF;
// the tracker remembers that it happened.
type quoteTracker struct {
	comma      byte
	line       int
	fieldStart bool
	inQuotes   bool
	quoteSeen  bool // a quote inside a quoted field; the next byte decides
	openedAt   int
}

func newQuoteTracker(comma byte) *quoteTracker {
	return &quoteTracker{comma: comma, line: 1, fieldStart: true}
}

func (q *quoteTracker) Write(p []byte) (int, error) {
	for _, b := range p {
		switch {
		case q.quoteSeen:
			q.quoteSeen = false
			if b == q.comma || b == '\n' || b == '\r' {
				q.inQuotes = false
				q.fieldStart = b != '\r'
			}
			// "" is an escaped quote, anything else a bare quote kept in the field
		case q.inQuotes:
			if b == '"' {
				q.quoteSeen = true
			}
		case q.fieldStart && b == '"':
			q.inQuotes = true
			q.fieldStart = false
			q.openedAt = q.line
		default:
			q.fieldStart = b == q.comma || b == '\n'
		}
		if b == '\n' {
			q.line++
		}
	}
	return len(p), nil
}

// unterminated reports whether the input ended inside a quoted field.
func (q *quoteTracker) unterminated() bool {
	return q.inQuotes && !q.quoteSeen
}
