package source

// FileInfo describes a local dataset file after its records were counted.
type FileInfo struct {
	Path     string
	Size     int64
	RowCount int64
}
