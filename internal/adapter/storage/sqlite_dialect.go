package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rl1809/manifest-sync/internal/core/domain"
)

func init() {
	RegisterDialect(SQLiteDialect{})
}

// SQLiteDialect runs the sync tables on modernc.org/sqlite. Tables are
// declared STRICT so values that do not fit a column type are rejected the
// way MySQL strict mode rejects them. Foreign keys are only enforced when the
// DSN enables them (_pragma=foreign_keys(1)).
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string       { return "sqlite" }
func (SQLiteDialect) DriverName() string { return "sqlite" }

func (SQLiteDialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (SQLiteDialect) Placeholder(int) string { return "?" }

func (SQLiteDialect) ColumnType(typ columnType, _ int) string {
	switch typ {
	case colInt, colTinyInt:
		return "INTEGER"
	case colDecimal:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (SQLiteDialect) TableOptions() string { return " STRICT" }

func (SQLiteDialect) DescribeTable(ctx context.Context, q queryer, table string) (domain.TableSchema, error) {
	schema := domain.TableSchema{Name: table}

	rows, err := q.QueryContext(ctx, `SELECT name, pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return schema, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var pk int
		if err := rows.Scan(&name, &pk); err != nil {
			return schema, fmt.Errorf("scan column of %s: %w", table, err)
		}
		schema.Columns = append(schema.Columns, name)
		if pk == 1 {
			schema.PrimaryKey = name
		}
	}
	return schema, rows.Err()
}

func (d SQLiteDialect) UpsertSQL(schema domain.TableSchema, columns []string) string {
	return conflictUpsertSQL(d, schema, columns)
}

func (SQLiteDialect) ClassifyError(err error) string {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return ""
	}

	code := sqliteErr.Code()
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return "unique_violation"
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return "foreign_key_violation"
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return "not_null_violation"
	case sqlite3.SQLITE_CONSTRAINT_DATATYPE, sqlite3.SQLITE_MISMATCH:
		return "invalid_value"
	}
	if code&0xff == sqlite3.SQLITE_CONSTRAINT {
		return "constraint_violation"
	}
	return fmt.Sprintf("sqlite_%d", code)
}
