package validate

import "fmt"

// Severity rules:
// - BLOCK when the warehouse cannot be trusted for this dataset
// - WARN when the load is consistent but the source file is not the one expected
// - INFO when everything matches

const (
	SeverityInfo  = "INFO"
	SeverityWarn  = "WARN"
	SeverityBlock = "BLOCK"
)

// Statuses reported per dataset.
const (
	StatusPass             = "PASS"
	StatusMismatch         = "MISMATCH"
	StatusNotFound         = "NOT_FOUND"
	StatusExpectedMismatch = "EXPECTED_MISMATCH"
	StatusError            = "ERROR"
)

func SeverityForStatus(status string) string {
	switch status {
	case StatusMismatch, StatusNotFound, StatusError:
		return SeverityBlock
	case StatusExpectedMismatch:
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

// MessageForStatus returns a concise message for the given status.
func MessageForStatus(status, table string, fileRows, warehouseRows, expected int64) string {
	switch status {
	case StatusPass:
		return "row counts match"
	case StatusMismatch:
		return fmt.Sprintf("file has %d rows, %s has %d (difference %+d)", fileRows, table, warehouseRows, fileRows-warehouseRows)
	case StatusNotFound:
		return fmt.Sprintf("table %s not found in warehouse", table)
	case StatusExpectedMismatch:
		return fmt.Sprintf("file has %d rows, expected %d (difference %+d)", fileRows, expected, fileRows-expected)
	default:
		return ""
	}
}
