package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rl1809/manifest-sync/internal/core/domain"
)

var ErrUnknownDialect = errors.New("unknown sql dialect")

// Dialect isolates the SQL that differs between backends.
type Dialect interface {
	// Name is the configuration name of the dialect
	Name() string

	// DriverName is the database/sql driver the dialect runs on
	DriverName() string

	QuoteIdent(name string) string

	// Placeholder returns the bind marker for the n-th (1-based) argument
	Placeholder(n int) string

	ColumnType(typ columnType, size int) string
	TableOptions() string

	// DescribeTable reads the live columns of table in declaration order
	DescribeTable(ctx context.Context, q queryer, table string) (domain.TableSchema, error)

	// UpsertSQL renders an insert that overwrites every non-key column on key conflict
	UpsertSQL(schema domain.TableSchema, columns []string) string

	// ClassifyError names the kind of a driver error, empty when unknown
	ClassifyError(err error) string
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{}
)

// RegisterDialect makes a dialect available by name.
func RegisterDialect(d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[strings.ToLower(d.Name())] = d
}

func LookupDialect(name string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownDialect, name, strings.Join(dialectNames(), ", "))
	}
	return d, nil
}

func dialectNames() []string {
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// placeholders renders n comma separated bind markers.
func placeholders(d Dialect, n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = d.Placeholder(i + 1)
	}
	return strings.Join(marks, ",")
}

func quoteAll(d Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return strings.Join(quoted, ",")
}

// updateColumns drops the primary key from columns.
func updateColumns(schema domain.TableSchema, columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if schema.IsKey(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func keyColumn(schema domain.TableSchema) string {
	if schema.PrimaryKey != "" {
		return schema.PrimaryKey
	}
	return domain.DefaultKeyColumn
}

// insertPrefix renders "INSERT INTO t (cols) VALUES (marks)".
func insertPrefix(d Dialect, table string, columns []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdent(table), quoteAll(d, columns), placeholders(d, len(columns)))
}

// conflictUpsertSQL is the ON CONFLICT form shared by SQLite and Postgres.
func conflictUpsertSQL(d Dialect, schema domain.TableSchema, columns []string) string {
	var b strings.Builder
	b.WriteString(insertPrefix(d, schema.Name, columns))
	b.WriteString(" ON CONFLICT (")
	b.WriteString(d.QuoteIdent(keyColumn(schema)))
	b.WriteString(")")

	updates := updateColumns(schema, columns)
	if len(updates) == 0 {
		b.WriteString(" DO NOTHING")
		return b.String()
	}

	b.WriteString(" DO UPDATE SET ")
	for i, c := range updates {
		if i > 0 {
			b.WriteString(",")
		}
		q := d.QuoteIdent(c)
		b.WriteString(q)
		b.WriteString("=excluded.")
		b.WriteString(q)
	}
	return b.String()
}
