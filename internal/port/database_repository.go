package port

import (
	"context"

	"github.com/rl1809/manifest-sync/internal/core/domain"
)

type DatabaseRepository interface {
	// OpenSession acquires a dedicated connection for one sync request
	OpenSession(ctx context.Context) (SyncSession, error)

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}

// SyncSession is bound to one connection and must be closed by the caller.
type SyncSession interface {
	// EnsureSchema creates the sync tables that do not exist yet, never alters
	EnsureSchema(ctx context.Context) error

	// DescribeTable returns the live column set of a table, empty if it cannot be described
	DescribeTable(ctx context.Context, table string) (domain.TableSchema, error)

	// UpsertRow inserts the row or overwrites every non-key column of the existing one.
	// Failures are returned as *domain.RowError
	UpsertRow(ctx context.Context, schema domain.TableSchema, row domain.Row) error

	Close() error
}
