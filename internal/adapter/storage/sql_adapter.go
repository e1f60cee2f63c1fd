package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/manifest-sync/internal/core/domain"
	"github.com/rl1809/manifest-sync/internal/port"
)

// SQLAdapter implements port.DatabaseRepository on database/sql.
type SQLAdapter struct {
	db              *sql.DB
	dialect         Dialect
	cacheStatements bool
}

type Option func(*SQLAdapter)

// WithStatementCache reuses one prepared statement per table and column list
// for the lifetime of a session.
func WithStatementCache(enabled bool) Option {
	return func(a *SQLAdapter) {
		a.cacheStatements = enabled
	}
}

func NewSQLAdapter(db *sql.DB, dialect Dialect, opts ...Option) *SQLAdapter {
	a := &SQLAdapter{db: db, dialect: dialect}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Open connects to dsn with the driver of the named dialect and pings it.
func Open(ctx context.Context, dialectName, dsn string) (*sql.DB, Dialect, error) {
	dialect, err := LookupDialect(dialectName)
	if err != nil {
		return nil, nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", dialect.Name(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping %s: %w", dialect.Name(), err)
	}
	return db, dialect, nil
}

func (a *SQLAdapter) Dialect() Dialect {
	return a.dialect
}

func (a *SQLAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *SQLAdapter) OpenSession(ctx context.Context) (port.SyncSession, error) {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}

	s := &sqlSession{conn: conn, dialect: a.dialect}
	if a.cacheStatements {
		s.stmts = make(map[string]*sql.Stmt)
	}
	return s, nil
}

// sqlSession holds one pooled connection for the duration of a sync request.
type sqlSession struct {
	conn    *sql.Conn
	dialect Dialect
	stmts   map[string]*sql.Stmt
}

// EnsureSchema runs every CREATE TABLE IF NOT EXISTS even when an earlier one fails.
func (s *sqlSession) EnsureSchema(ctx context.Context) error {
	var errs []error
	for _, stmt := range createStatements(s.dialect) {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *sqlSession) DescribeTable(ctx context.Context, table string) (domain.TableSchema, error) {
	return s.dialect.DescribeTable(ctx, s.conn, table)
}

func (s *sqlSession) UpsertRow(ctx context.Context, schema domain.TableSchema, row domain.Row) error {
	stmt, cached, err := s.prepare(ctx, schema, row)
	if err != nil {
		return &domain.RowError{
			Op:    domain.RowOpPrepare,
			Table: schema.Name,
			Kind:  s.dialect.ClassifyError(err),
			Err:   err,
		}
	}
	if !cached {
		defer stmt.Close()
	}

	if _, err := stmt.ExecContext(ctx, row.Args()...); err != nil {
		return &domain.RowError{
			Op:    domain.RowOpExecute,
			Table: schema.Name,
			Kind:  s.dialect.ClassifyError(err),
			Err:   err,
		}
	}
	return nil
}

func (s *sqlSession) prepare(ctx context.Context, schema domain.TableSchema, row domain.Row) (*sql.Stmt, bool, error) {
	query := s.dialect.UpsertSQL(schema, row.Columns)
	if s.stmts == nil {
		stmt, err := s.conn.PrepareContext(ctx, query)
		return stmt, false, err
	}

	cacheKey := schema.Name + "|" + row.Signature()
	if stmt, ok := s.stmts[cacheKey]; ok {
		return stmt, true, nil
	}
	stmt, err := s.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, false, err
	}
	s.stmts[cacheKey] = stmt
	return stmt, true, nil
}

func (s *sqlSession) Close() error {
	var errs []error
	for _, stmt := range s.stmts {
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.stmts = nil
	if err := s.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
