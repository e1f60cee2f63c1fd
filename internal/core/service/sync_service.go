package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/rl1809/manifest-sync/internal/core/domain"
	"github.com/rl1809/manifest-sync/internal/port"
)

var (
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrJournalDisabled = errors.New("sync journal disabled")
)

const recentSyncLimit = 20

type SyncService struct {
	db      port.DatabaseRepository
	journal port.SyncJournal
	timeout time.Duration
}

// NewSyncService creates the service. journal may be nil, timeout <= 0
// leaves the request context as is.
func NewSyncService(db port.DatabaseRepository, journal port.SyncJournal, timeout time.Duration) *SyncService {
	return &SyncService{
		db:      db,
		journal: journal,
		timeout: timeout,
	}
}

// DecodePayload parses a sync request body. Malformed JSON and falsy values
// (null, false, 0, "", "0", [] and {}) are rejected with ErrInvalidPayload.
// Any other value that is not an object carries no groups and decodes to an
// empty payload.
func DecodePayload(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrInvalidPayload)
	}

	if isEmpty(payload) {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return obj, nil
}

// Sync upserts every recognized group of payload. Store failures are
// reported in the summary; an error is returned only when no session could
// be opened.
func (s *SyncService) Sync(ctx context.Context, requestID string, payload map[string]any) (*domain.SyncSummary, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	summary := domain.NewSyncSummary(requestID)

	session, err := s.db.OpenSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Printf("sync %s: close session: %v", requestID, err)
		}
	}()

	if err := session.EnsureSchema(ctx); err != nil {
		log.Printf("sync %s: ensure schema: %v", requestID, err)
		summary.AddError("Schema ensure failed: " + err.Error())
	}

	for _, target := range domain.SyncTargets {
		raw, ok := payload[target.PayloadKey]
		if !ok || isEmpty(raw) {
			continue
		}

		records, ok := raw.([]any)
		if !ok {
			summary.AddError(fmt.Sprintf("Invalid payload for %s: expected array", target.PayloadKey))
			continue
		}

		summary.Merge(s.upsertTable(ctx, session, requestID, target.Table, records))
	}

	summary.FinishedAt = time.Now()
	log.Printf("sync %s: status=%s processed=%v errors=%d took=%s",
		requestID, summary.Status, summary.Processed, len(summary.Errors),
		summary.FinishedAt.Sub(summary.StartedAt))

	if s.journal != nil {
		if err := s.journal.Record(context.WithoutCancel(ctx), *summary); err != nil {
			log.Printf("sync %s: journal record failed: %v", requestID, err)
		}
	}

	return summary, nil
}

func (s *SyncService) upsertTable(ctx context.Context, session port.SyncSession, requestID, table string, records []any) domain.TableResult {
	result := domain.TableResult{Table: table}

	schema, err := session.DescribeTable(ctx, table)
	if err != nil {
		log.Printf("sync %s: describe %s: %v", requestID, table, err)
	}
	if err != nil || schema.Empty() {
		result.Errors = append(result.Errors, "Table does not exist or is not accessible: "+table)
		return result
	}

	for i, raw := range records {
		record, ok := raw.(map[string]any)
		if !ok {
			result.Errors = append(result.Errors,
				fmt.Sprintf("Invalid record for %s at index %d: expected object", table, i))
			continue
		}

		row := domain.FilterRecord(schema, record)
		if row.Empty() {
			continue
		}

		if err := session.UpsertRow(ctx, schema, row); err != nil {
			var rowErr *domain.RowError
			if errors.As(err, &rowErr) && rowErr.Kind != "" {
				log.Printf("sync %s: %s row %d rejected (%s): %v", requestID, table, i, rowErr.Kind, err)
			} else {
				log.Printf("sync %s: %s row %d rejected: %v", requestID, table, i, err)
			}
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Processed++
	}

	return result
}

// Stats returns the journal's running totals and latest syncs.
func (s *SyncService) Stats(ctx context.Context) (map[string]int64, []domain.SyncSummary, error) {
	if s.journal == nil {
		return nil, nil, ErrJournalDisabled
	}

	totals, err := s.journal.Totals(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("journal totals: %w", err)
	}
	recent, err := s.journal.Recent(ctx, recentSyncLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("journal recent: %w", err)
	}
	return totals, recent, nil
}

// Ready reports whether the store answers.
func (s *SyncService) Ready(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// isEmpty mirrors what a caller would consider an absent group: null,
// empty list, empty object, empty string, false or zero.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	case string:
		return t == "" || t == "0"
	case bool:
		return !t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	}
	return false
}
