package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rl1809/manifest-sync/internal/core/domain"
)

func init() {
	RegisterDialect(PostgresDialect{})
}

type PostgresDialect struct{}

func (PostgresDialect) Name() string       { return "postgres" }
func (PostgresDialect) DriverName() string { return "pgx" }

func (PostgresDialect) QuoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (PostgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (PostgresDialect) ColumnType(typ columnType, size int) string {
	switch typ {
	case colKey, colVarchar:
		return fmt.Sprintf("VARCHAR(%d)", size)
	case colText:
		return "TEXT"
	case colInt:
		return "INTEGER"
	case colTinyInt:
		return "SMALLINT"
	case colDecimal:
		return "NUMERIC(10,2)"
	case colDate:
		return "DATE"
	default:
		return "TIMESTAMP"
	}
}

func (PostgresDialect) TableOptions() string { return "" }

func (PostgresDialect) DescribeTable(ctx context.Context, q queryer, table string) (domain.TableSchema, error) {
	schema := domain.TableSchema{Name: table}

	rows, err := q.QueryContext(ctx, `
		SELECT c.column_name,
		       EXISTS (
		           SELECT 1
		           FROM information_schema.table_constraints tc
		           JOIN information_schema.key_column_usage k
		             ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
		           WHERE tc.constraint_type = 'PRIMARY KEY'
		             AND tc.table_schema = c.table_schema AND tc.table_name = c.table_name
		             AND k.column_name = c.column_name
		       ) AS is_pk
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position`, table)
	if err != nil {
		return schema, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var isPK bool
		if err := rows.Scan(&name, &isPK); err != nil {
			return schema, fmt.Errorf("scan column of %s: %w", table, err)
		}
		schema.Columns = append(schema.Columns, name)
		if isPK && schema.PrimaryKey == "" {
			schema.PrimaryKey = name
		}
	}
	return schema, rows.Err()
}

func (d PostgresDialect) UpsertSQL(schema domain.TableSchema, columns []string) string {
	return conflictUpsertSQL(d, schema, columns)
}

func (PostgresDialect) ClassifyError(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}

	switch pgErr.Code {
	case "23505":
		return "unique_violation"
	case "23503":
		return "foreign_key_violation"
	case "23502":
		return "not_null_violation"
	case "22P02", "22003", "22007", "22008", "22001":
		return "invalid_value"
	case "42501":
		return "access_denied"
	case "42703":
		return "unknown_column"
	case "42P01":
		return "unknown_table"
	default:
		return "postgres_" + pgErr.Code
	}
}
