package port

import (
	"context"

	"github.com/rl1809/manifest-sync/internal/core/domain"
)

type SyncJournal interface {
	// Record stores a finished sync and adds its counts to the running totals
	Record(ctx context.Context, summary domain.SyncSummary) error

	// Totals returns the cumulative processed rows per table
	Totals(ctx context.Context) (map[string]int64, error)

	// Recent returns up to limit finished syncs, newest first
	Recent(ctx context.Context, limit int) ([]domain.SyncSummary, error)
}
