package sqldb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/alexanderjulianmartinez/load-watch/internal/warehouse"
)

// MySQL error number for ER_NO_SUCH_TABLE.
const mysqlNoSuchTable = 1146

// Dialect captures the per-database differences the inspector cares about.
type Dialect struct {
	Name   string
	Driver string

	existsQuery   func(ref warehouse.TableRef) (string, []any)
	qualify       func(ref warehouse.TableRef) string
	isNoSuchTable func(err error) bool
}

var MySQL = Dialect{
	Name:   "mysql",
	Driver: "mysql",
	existsQuery: func(ref warehouse.TableRef) (string, []any) {
		return `
		SELECT COUNT(*)
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
	`, []any{ref.Dataset, ref.Table}
	},
	qualify: func(ref warehouse.TableRef) string {
		return qualified(ref, quoteWith('`'))
	},
	isNoSuchTable: func(err error) bool {
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == mysqlNoSuchTable
	},
}

var SQLite = Dialect{
	Name:   "sqlite",
	Driver: "sqlite3",
	existsQuery: func(ref warehouse.TableRef) (string, []any) {
		master := "sqlite_master"
		if ref.Dataset != "" {
			master = quoteWith('"')(ref.Dataset) + ".sqlite_master"
		}
		return fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE type IN ('table', 'view') AND name = ?`, master), []any{ref.Table}
	},
	qualify: func(ref warehouse.TableRef) string {
		return qualified(ref, quoteWith('"'))
	},
	isNoSuchTable: func(err error) bool {
		var liteErr sqlite3.Error
		return errors.As(err, &liteErr) && strings.Contains(liteErr.Error(), "no such table")
	},
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, bool) {
	switch name {
	case MySQL.Name:
		return MySQL, true
	case SQLite.Name:
		return SQLite, true
	default:
		return Dialect{}, false
	}
}

func quoteWith(q rune) func(string) string {
	s := string(q)
	return func(ident string) string {
		return s + strings.ReplaceAll(ident, s, s+s) + s
	}
}

func qualified(ref warehouse.TableRef, quote func(string) string) string {
	if ref.Dataset == "" {
		return quote(ref.Table)
	}
	return quote(ref.Dataset) + "." + quote(ref.Table)
}
