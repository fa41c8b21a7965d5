package warehouse

import (
	"context"
	"fmt"
	"strings"
)

// Counter reports row counts for warehouse tables.
//
// RowCount returns an apperr.KindNotFound error when the table does not
// exist, so callers can tell a missing table apart from a failed query.
type Counter interface {
	Name() string
	RowCount(ctx context.Context, ref TableRef) (int64, error)
	Close() error
}

// TableRef identifies a table. Project is only meaningful for BigQuery;
// Dataset maps to a BigQuery dataset or a SQL schema.
type TableRef struct {
	Project string
	Dataset string
	Table   string
}

// ParseTableRef accepts "table", "dataset.table" or "project.dataset.table".
func ParseTableRef(s string) (TableRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TableRef{}, fmt.Errorf("empty table reference")
	}
	if strings.ContainsAny(s, "`\"'; \t\n") {
		return TableRef{}, fmt.Errorf("invalid table reference %q", s)
	}

	parts := strings.Split(s, ".")
	for _, p := range parts {
		if p == "" {
			return TableRef{}, fmt.Errorf("invalid table reference %q", s)
		}
	}

	switch len(parts) {
	case 1:
		return TableRef{Table: parts[0]}, nil
	case 2:
		return TableRef{Dataset: parts[0], Table: parts[1]}, nil
	case 3:
		return TableRef{Project: parts[0], Dataset: parts[1], Table: parts[2]}, nil
	default:
		return TableRef{}, fmt.Errorf("invalid table reference %q: too many parts", s)
	}
}

// WithDefaults fills empty project and dataset parts.
func (r TableRef) WithDefaults(project, dataset string) TableRef {
	if r.Project == "" {
		r.Project = project
	}
	if r.Dataset == "" {
		r.Dataset = dataset
	}
	return r
}

func (r TableRef) String() string {
	var parts []string
	for _, p := range []string{r.Project, r.Dataset, r.Table} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}
