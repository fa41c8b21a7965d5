package types

// CheckResult is the outcome of comparing one dataset's local file against
// its warehouse table.
type CheckResult struct {
	Dataset          string
	File             string
	Table            string
	FileSize         int64
	FileRows         int64
	WarehouseRows    int64
	ExpectedRows     *int64
	Delta            int64 // FileRows - WarehouseRows
	RowCountDeltaPct float64
	Match            bool
	Status           string
	Severity         string
	Message          string
}
