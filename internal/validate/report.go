package validate

import (
	"fmt"
	"io"
	"strconv"

	"github.com/c2h5oh/datasize"
	"github.com/fatih/color"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
	"github.com/alexanderjulianmartinez/load-watch/internal/table"
	"github.com/alexanderjulianmartinez/load-watch/pkg/types"
)

type Report struct {
	Results []types.CheckResult
}

// Passed reports whether no result blocks the pipeline. With strict set,
// warnings block too.
func (r *Report) Passed(strict bool) bool {
	for _, res := range r.Results {
		if res.Severity == SeverityBlock || (strict && res.Severity == SeverityWarn) {
			return false
		}
	}
	return true
}

// Count returns how many results have the given status.
func (r *Report) Count(status string) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Err summarises a failed report as a single error, or nil when it passed.
// The error is a NotFound when every failure is a missing table, a Mismatch
// otherwise.
func (r *Report) Err(strict bool) error {
	if r.Passed(strict) {
		return nil
	}
	failed := len(r.Results) - r.Count(StatusPass)
	if !strict {
		failed -= r.Count(StatusExpectedMismatch)
	}
	kind := apperr.KindMismatch
	if failed == r.Count(StatusNotFound) {
		kind = apperr.KindNotFound
	}
	return apperr.Newf(kind, "%d of %d datasets failed validation", failed, len(r.Results))
}

// Print writes a table of results followed by a summary line.
func (r *Report) Print(w io.Writer, colored, strict bool) error {
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	for _, c := range []*color.Color{green, yellow, red} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	tbl := table.New(w, "STATUS", "DATASET", "TABLE", "FILE ROWS", "WAREHOUSE ROWS", "DIFF", "SIZE", "DETAILS")
	for _, res := range r.Results {
		var status string
		switch res.Severity {
		case SeverityBlock:
			status = red.Sprint(res.Status)
		case SeverityWarn:
			status = yellow.Sprint(res.Status)
		default:
			status = green.Sprint(res.Status)
		}
		tbl.Append([]string{
			status,
			res.Dataset,
			res.Table,
			strconv.FormatInt(res.FileRows, 10),
			strconv.FormatInt(res.WarehouseRows, 10),
			fmt.Sprintf("%+d", res.Delta),
			datasize.ByteSize(res.FileSize).HumanReadable(),
			res.Message,
		})
	}
	tbl.Render()

	summary := fmt.Sprintf("%d passed, %d mismatched, %d missing tables, %d errors, %d unexpected source counts",
		r.Count(StatusPass),
		r.Count(StatusMismatch),
		r.Count(StatusNotFound),
		r.Count(StatusError),
		r.Count(StatusExpectedMismatch),
	)
	if r.Passed(strict) {
		_, err := fmt.Fprintln(w, green.Sprint("OK")+" "+summary)
		return err
	}
	_, err := fmt.Fprintln(w, red.Sprint("FAILED")+" "+summary)
	return err
}
