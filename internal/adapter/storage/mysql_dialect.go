package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/manifest-sync/internal/core/domain"
)

func init() {
	RegisterDialect(MySQLDialect{})
}

type MySQLDialect struct{}

func (MySQLDialect) Name() string       { return "mysql" }
func (MySQLDialect) DriverName() string { return "mysql" }

func (MySQLDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (MySQLDialect) Placeholder(int) string { return "?" }

func (MySQLDialect) ColumnType(typ columnType, size int) string {
	switch typ {
	case colKey, colVarchar:
		return fmt.Sprintf("VARCHAR(%d)", size)
	case colText:
		return "TEXT"
	case colInt:
		return "INT"
	case colTinyInt:
		return "TINYINT"
	case colDecimal:
		return "DECIMAL(10,2)"
	case colDate:
		return "DATE"
	default:
		return "DATETIME"
	}
}

func (MySQLDialect) TableOptions() string { return " ENGINE=InnoDB" }

func (MySQLDialect) DescribeTable(ctx context.Context, q queryer, table string) (domain.TableSchema, error) {
	schema := domain.TableSchema{Name: table}

	rows, err := q.QueryContext(ctx, `
		SELECT COLUMN_NAME, COLUMN_KEY
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, table)
	if err != nil {
		return schema, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, columnKey string
		if err := rows.Scan(&name, &columnKey); err != nil {
			return schema, fmt.Errorf("scan column of %s: %w", table, err)
		}
		schema.Columns = append(schema.Columns, name)
		if columnKey == "PRI" && schema.PrimaryKey == "" {
			schema.PrimaryKey = name
		}
	}
	return schema, rows.Err()
}

// UpsertSQL uses VALUES(col) so the statement also runs on MariaDB.
// A key-only row assigns the key to itself, which leaves an existing row untouched.
func (d MySQLDialect) UpsertSQL(schema domain.TableSchema, columns []string) string {
	var b strings.Builder
	b.WriteString(insertPrefix(d, schema.Name, columns))
	b.WriteString(" ON DUPLICATE KEY UPDATE ")

	updates := updateColumns(schema, columns)
	if len(updates) == 0 {
		k := d.QuoteIdent(keyColumn(schema))
		b.WriteString(k + "=" + k)
		return b.String()
	}

	for i, c := range updates {
		if i > 0 {
			b.WriteString(",")
		}
		q := d.QuoteIdent(c)
		b.WriteString(q + "=VALUES(" + q + ")")
	}
	return b.String()
}

const (
	mysqlErrDBAccessDenied     = 1044
	mysqlErrTableAccessDenied  = 1142
	mysqlErrColumnAccessDenied = 1143
)

func (MySQLDialect) ClassifyError(err error) string {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return ""
	}

	switch mysqlErr.Number {
	case mysqlErrDBAccessDenied, mysqlErrTableAccessDenied, mysqlErrColumnAccessDenied:
		return "access_denied"
	case 1062:
		return "unique_violation"
	case 1451, 1452:
		return "foreign_key_violation"
	case 1048, 1364:
		return "not_null_violation"
	case 1264, 1265, 1292, 1366:
		return "invalid_value"
	case 1054:
		return "unknown_column"
	case 1146:
		return "unknown_table"
	default:
		return fmt.Sprintf("mysql_%d", mysqlErr.Number)
	}
}

// MySQLDSN assembles a DSN for the go-sql-driver from its parts.
func MySQLDSN(host string, port int, user, password, dbName string) string {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.User = user
	cfg.Passwd = password
	cfg.DBName = dbName
	cfg.ParseTime = true
	return cfg.FormatDSN()
}
