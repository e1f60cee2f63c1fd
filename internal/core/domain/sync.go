package domain

import (
	"fmt"
	"time"
)

type SyncStatus string

const (
	SyncStatusOK      SyncStatus = "ok"
	SyncStatusPartial SyncStatus = "partial"
)

// RowOp names the statement stage a row failed in.
type RowOp string

const (
	RowOpPrepare RowOp = "Prepare"
	RowOpExecute RowOp = "Execute"
)

// RowError is a failed upsert of a single row. Kind is a store specific
// classification of Err used for logging, empty when unknown.
type RowError struct {
	Op    RowOp
	Table string
	Kind  string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Table, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// TableResult is the outcome of upserting one payload group.
type TableResult struct {
	Table     string
	Processed int
	Errors    []string
}

// SyncSummary is the outcome of a whole sync request.
type SyncSummary struct {
	RequestID  string         `json:"request_id,omitempty"`
	Status     SyncStatus     `json:"status"`
	Processed  map[string]int `json:"procesados"`
	Errors     []string       `json:"errors"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// NewSyncSummary returns a summary with a zero count for every target table.
func NewSyncSummary(requestID string) *SyncSummary {
	processed := make(map[string]int, len(SyncTargets))
	for _, t := range SyncTargets {
		processed[t.Table] = 0
	}
	return &SyncSummary{
		RequestID: requestID,
		Status:    SyncStatusOK,
		Processed: processed,
		Errors:    []string{},
		StartedAt: time.Now(),
	}
}

func (s *SyncSummary) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
	s.Status = SyncStatusPartial
}

// Merge folds a table result into the summary.
func (s *SyncSummary) Merge(r TableResult) {
	s.Processed[r.Table] += r.Processed
	for _, e := range r.Errors {
		s.AddError(e)
	}
}
