// Package table renders the plain, borderless column layout used by every
// loadwatch listing.
package table

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

const padding = "  "

// New returns a left-aligned table without borders or separators. Cells may
// carry ANSI colour codes; they do not count towards column widths.
func New(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetCenterSeparator("")
	t.SetColumnSeparator("")
	t.SetRowSeparator("")
	t.SetTablePadding(padding)
	t.SetNoWhiteSpace(true)
	return t
}
