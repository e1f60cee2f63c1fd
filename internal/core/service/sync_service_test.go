package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rl1809/manifest-sync/internal/core/domain"
	"github.com/rl1809/manifest-sync/internal/port"
)

// Mock DatabaseRepository
type mockDB struct {
	session *mockSession
	openErr error
	pingErr error
	opened  int
}

func (m *mockDB) OpenSession(ctx context.Context) (port.SyncSession, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened++
	return m.session, nil
}

func (m *mockDB) Ping(ctx context.Context) error {
	return m.pingErr
}

// Mock SyncSession backed by in-memory tables
type mockSession struct {
	mu        sync.Mutex
	schemas   map[string]domain.TableSchema
	rows      map[string]map[string]domain.Row
	failOn    func(table string, row domain.Row) error
	ensured   int
	ensureErr error
	closed    bool
}

func newMockSession() *mockSession {
	return &mockSession{
		schemas: map[string]domain.TableSchema{
			domain.TableChamberReadings: {
				Name:       domain.TableChamberReadings,
				Columns:    []string{"uuid", "peso_neto", "estado", "observaciones"},
				PrimaryKey: "uuid",
			},
			domain.TableManifests: {
				Name:       domain.TableManifests,
				Columns:    []string{"uuid", "folio", "borrado"},
				PrimaryKey: "uuid",
			},
		},
		rows: make(map[string]map[string]domain.Row),
	}
}

func (m *mockSession) EnsureSchema(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensured++
	return m.ensureErr
}

func (m *mockSession) DescribeTable(ctx context.Context, table string) (domain.TableSchema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schemas[table], nil
}

func (m *mockSession) UpsertRow(ctx context.Context, schema domain.TableSchema, row domain.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failOn != nil {
		if err := m.failOn(schema.Name, row); err != nil {
			return &domain.RowError{Op: domain.RowOpExecute, Table: schema.Name, Err: err}
		}
	}

	if m.rows[schema.Name] == nil {
		m.rows[schema.Name] = make(map[string]domain.Row)
	}
	var key string
	for i, c := range row.Columns {
		if schema.IsKey(c) {
			key = row.Values[i].Text
		}
	}
	m.rows[schema.Name][key] = row
	return nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Mock SyncJournal
type mockJournal struct {
	mu       sync.Mutex
	recorded []domain.SyncSummary
}

func (m *mockJournal) Record(ctx context.Context, summary domain.SyncSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded = append(m.recorded, summary)
	return nil
}

func (m *mockJournal) Totals(ctx context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := make(map[string]int64)
	for _, s := range m.recorded {
		for table, n := range s.Processed {
			totals[table] += int64(n)
		}
	}
	return totals, nil
}

func (m *mockJournal) Recent(ctx context.Context, limit int) ([]domain.SyncSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.recorded) < limit {
		limit = len(m.recorded)
	}
	return m.recorded[:limit], nil
}

func mustDecode(t *testing.T, body string) map[string]any {
	t.Helper()
	payload, err := DecodePayload([]byte(body))
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return payload
}

func TestDecodePayload_Invalid(t *testing.T) {
	bodies := []string{"", "not json", "{", "{}", "[]", "null", "false", "0", "0.0", `""`, `"0"`, `{"a":1} {"b":2}`}
	for _, body := range bodies {
		if _, err := DecodePayload([]byte(body)); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("body %q: expected ErrInvalidPayload, got %v", body, err)
		}
	}
}

func TestDecodePayload_NonObjectHasNoGroups(t *testing.T) {
	for _, body := range []string{`[{"x":1}]`, `[1,2]`, "true", "5", `"abc"`} {
		payload, err := DecodePayload([]byte(body))
		if err != nil {
			t.Errorf("body %s: expected no error, got %v", body, err)
			continue
		}
		if len(payload) != 0 {
			t.Errorf("body %s: expected empty payload, got %v", body, payload)
		}
	}
}

func TestDecodePayload_KeepsNumberKinds(t *testing.T) {
	payload := mustDecode(t, `{"camaras_frigorifico":[{"uuid":"a1","peso_neto":10.5,"estado":1}]}`)

	rec := payload["camaras_frigorifico"].([]any)[0].(map[string]any)
	if v := domain.ClassifyValue(rec["estado"]); v.Kind != domain.KindInt || v.Int != 1 {
		t.Errorf("expected int 1, got %+v", v)
	}
	if v := domain.ClassifyValue(rec["peso_neto"]); v.Kind != domain.KindFloat || v.Float != 10.5 {
		t.Errorf("expected float 10.5, got %+v", v)
	}
}

func TestSync_Success(t *testing.T) {
	session := newMockSession()
	db := &mockDB{session: session}
	journal := &mockJournal{}
	svc := NewSyncService(db, journal, 0)

	payload := mustDecode(t, `{"camaras_frigorifico":[{"uuid":"a1","peso_neto":10.5,"estado":1}]}`)
	summary, err := svc.Sync(context.Background(), "req-1", payload)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if summary.Status != domain.SyncStatusOK {
		t.Errorf("expected status ok, got %s", summary.Status)
	}
	if summary.Processed[domain.TableChamberReadings] != 1 {
		t.Errorf("expected 1 processed, got %d", summary.Processed[domain.TableChamberReadings])
	}
	if len(summary.Processed) != len(domain.SyncTargets) {
		t.Errorf("expected counts for %d tables, got %d", len(domain.SyncTargets), len(summary.Processed))
	}
	if len(summary.Errors) != 0 {
		t.Errorf("expected no errors, got %v", summary.Errors)
	}
	if session.ensured != 1 {
		t.Errorf("expected schema ensured once, got %d", session.ensured)
	}
	if !session.closed {
		t.Error("expected session closed")
	}
	if len(journal.recorded) != 1 {
		t.Errorf("expected 1 journal entry, got %d", len(journal.recorded))
	}
}

func TestSync_UnknownFieldsDropped(t *testing.T) {
	session := newMockSession()
	svc := NewSyncService(&mockDB{session: session}, nil, 0)

	payload := mustDecode(t, `{"camaras_frigorifico":[{"uuid":"a1","estado":1,"color":"red"}]}`)
	summary, err := svc.Sync(context.Background(), "req-1", payload)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if summary.Status != domain.SyncStatusOK {
		t.Errorf("expected status ok, got %s (%v)", summary.Status, summary.Errors)
	}
	row := session.rows[domain.TableChamberReadings]["a1"]
	if got := row.Signature(); got != "uuid,estado" {
		t.Errorf("expected columns uuid,estado, got %s", got)
	}
}

func TestSync_SkipsRecordWithoutKnownColumns(t *testing.T) {
	session := newMockSession()
	svc := NewSyncService(&mockDB{session: session}, nil, 0)

	payload := mustDecode(t, `{"camaras_frigorifico":[{"color":"red"},{"uuid":"a2"}]}`)
	summary, err := svc.Sync(context.Background(), "req-1", payload)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if summary.Processed[domain.TableChamberReadings] != 1 {
		t.Errorf("expected 1 processed, got %d", summary.Processed[domain.TableChamberReadings])
	}
	if len(summary.Errors) != 0 {
		t.Errorf("expected no errors, got %v", summary.Errors)
	}
}

func TestSync_PartialFailure(t *testing.T) {
	session := newMockSession()
	session.failOn = func(table string, row domain.Row) error {
		for i, c := range row.Columns {
			if c == "estado" && row.Values[i].Kind == domain.KindText {
				return errors.New("Incorrect integer value")
			}
		}
		return nil
	}
	svc := NewSyncService(&mockDB{session: session}, nil, 0)

	payload := mustDecode(t, `{"camaras_frigorifico":[{"uuid":"bad","estado":"abc"},{"uuid":"good","estado":2}]}`)
	summary, err := svc.Sync(context.Background(), "req-1", payload)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if summary.Status != domain.SyncStatusPartial {
		t.Errorf("expected status partial, got %s", summary.Status)
	}
	if summary.Processed[domain.TableChamberReadings] != 1 {
		t.Errorf("expected 1 processed, got %d", summary.Processed[domain.TableChamberReadings])
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", summary.Errors)
	}
	if !strings.HasPrefix(summary.Errors[0], "Execute failed for py_camaras_frigorifico: ") {
		t.Errorf("unexpected error text: %s", summary.Errors[0])
	}
	if _, ok := session.rows[domain.TableChamberReadings]["good"]; !ok {
		t.Error("expected valid row to be stored")
	}
}

func TestSync_MissingTableSkipsGroup(t *testing.T) {
	session := newMockSession()
	svc := NewSyncService(&mockDB{session: session}, nil, 0)

	// py_remisiones_cabecera has no schema in the mock
	payload := mustDecode(t, `{
		"remisiones_cabecera":[{"uuid":"h1"},{"uuid":"h2"}],
		"remisiones_general":[{"uuid":"m1","folio":"F-1"}]
	}`)
	summary, err := svc.Sync(context.Background(), "req-1", payload)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if len(summary.Errors) != 1 || summary.Errors[0] != "Table does not exist or is not accessible: py_remisiones_cabecera" {
		t.Errorf("unexpected errors: %v", summary.Errors)
	}
	if summary.Processed[domain.TableManifests] != 1 {
		t.Errorf("expected manifest processed, got %d", summary.Processed[domain.TableManifests])
	}
	if summary.Processed[domain.TableManifestHeaders] != 0 {
		t.Errorf("expected no headers processed, got %d", summary.Processed[domain.TableManifestHeaders])
	}
}

func TestSync_EmptyAndUnknownGroupsIgnored(t *testing.T) {
	session := newMockSession()
	svc := NewSyncService(&mockDB{session: session}, nil, 0)

	payload := mustDecode(t, `{"camaras_frigorifico":[],"remisiones_general":null,"otra_cosa":[{"uuid":"x"}]}`)
	summary, err := svc.Sync(context.Background(), "req-1", payload)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if summary.Status != domain.SyncStatusOK {
		t.Errorf("expected status ok, got %s (%v)", summary.Status, summary.Errors)
	}
	for table, n := range summary.Processed {
		if n != 0 {
			t.Errorf("expected 0 processed for %s, got %d", table, n)
		}
	}
}

func TestSync_MalformedGroups(t *testing.T) {
	session := newMockSession()
	svc := NewSyncService(&mockDB{session: session}, nil, 0)

	payload := mustDecode(t, `{"camaras_frigorifico":[5,{"uuid":"a1"}],"remisiones_general":"oops"}`)
	summary, err := svc.Sync(context.Background(), "req-1", payload)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if summary.Status != domain.SyncStatusPartial {
		t.Errorf("expected status partial, got %s", summary.Status)
	}
	if len(summary.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %v", summary.Errors)
	}
	if summary.Errors[0] != "Invalid record for py_camaras_frigorifico at index 0: expected object" {
		t.Errorf("unexpected first error: %s", summary.Errors[0])
	}
	if summary.Errors[1] != "Invalid payload for remisiones_general: expected array" {
		t.Errorf("unexpected second error: %s", summary.Errors[1])
	}
	if summary.Processed[domain.TableChamberReadings] != 1 {
		t.Errorf("expected 1 processed, got %d", summary.Processed[domain.TableChamberReadings])
	}
}

func TestSync_EnsureSchemaFailureReported(t *testing.T) {
	session := newMockSession()
	session.ensureErr = errors.New("create command denied")
	svc := NewSyncService(&mockDB{session: session}, nil, 0)

	payload := mustDecode(t, `{"camaras_frigorifico":[{"uuid":"a1"}]}`)
	summary, err := svc.Sync(context.Background(), "req-1", payload)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if summary.Status != domain.SyncStatusPartial {
		t.Errorf("expected status partial, got %s", summary.Status)
	}
	if summary.Processed[domain.TableChamberReadings] != 1 {
		t.Errorf("expected row still processed, got %d", summary.Processed[domain.TableChamberReadings])
	}
}

func TestSync_OpenSessionFailure(t *testing.T) {
	db := &mockDB{openErr: errors.New("connection refused")}
	svc := NewSyncService(db, nil, 0)

	_, err := svc.Sync(context.Background(), "req-1", map[string]any{"camaras_frigorifico": []any{}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestStats_JournalDisabled(t *testing.T) {
	svc := NewSyncService(&mockDB{session: newMockSession()}, nil, 0)

	_, _, err := svc.Stats(context.Background())
	if !errors.Is(err, ErrJournalDisabled) {
		t.Errorf("expected ErrJournalDisabled, got: %v", err)
	}
}

func TestStats_AccumulatesAcrossSyncs(t *testing.T) {
	journal := &mockJournal{}
	svc := NewSyncService(&mockDB{session: newMockSession()}, journal, 0)

	payload := mustDecode(t, `{"camaras_frigorifico":[{"uuid":"a1"},{"uuid":"a2"}]}`)
	for i := 0; i < 2; i++ {
		if _, err := svc.Sync(context.Background(), "req", payload); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
	}

	totals, recent, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if totals[domain.TableChamberReadings] != 4 {
		t.Errorf("expected total 4, got %d", totals[domain.TableChamberReadings])
	}
	if len(recent) != 2 {
		t.Errorf("expected 2 recent syncs, got %d", len(recent))
	}
}
