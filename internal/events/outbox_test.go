package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/wolfman30/leaddesk/internal/leads"
)

func TestOutboxStoreFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	store := newOutboxStoreWithExec(mock)

	eventID := uuid.New()
	mock.ExpectExec("INSERT INTO lead_events").
		WithArgs(eventID, "co-1", "lead-1", TypeLeadCaptured, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	if err := store.Insert(context.Background(), eventID, "co-1", "lead-1", TypeLeadCaptured, map[string]string{"foo": "bar"}); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{"id", "company_id", "lead_id", "type", "payload", "created_at"}).
		AddRow(eventID, "co-1", "lead-1", TypeLeadCaptured, []byte(`{"foo":"bar"}`), now)
	mock.ExpectQuery("SELECT id, company_id").WithArgs(int32(10)).WillReturnRows(rows)

	entries, err := store.FetchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("fetch pending failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != eventID || entries[0].LeadID != "lead-1" {
		t.Fatalf("unexpected entries: %#v", entries)
	}

	mock.ExpectExec("UPDATE lead_events").WithArgs(eventID).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	ok, err := store.MarkDelivered(context.Background(), eventID)
	if err != nil {
		t.Fatalf("mark delivered failed: %v", err)
	}
	if !ok {
		t.Fatal("expected mark delivered to report success")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestOutboxStoreInsertError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO lead_events").WillReturnError(errors.New("relation does not exist"))
	err = newOutboxStoreWithExec(mock).Insert(context.Background(), uuid.New(), "co", "lead", TypeLeadCaptured, struct{}{})
	if err == nil {
		t.Fatal("expected error")
	}
}

type captureInserter struct {
	companyID string
	leadID    string
	eventType string
	payload   any
}

func (c *captureInserter) Insert(ctx context.Context, id uuid.UUID, companyID, leadID, eventType string, payload any) error {
	c.companyID, c.leadID, c.eventType, c.payload = companyID, leadID, eventType, payload
	return nil
}

func TestRecorderRecordLeadCaptured(t *testing.T) {
	store := &captureInserter{}
	rec := newRecorder(store)
	fixed := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	start := fixed.Add(-time.Hour)
	err := rec.RecordLeadCaptured(context.Background(), leads.Lead{
		ID:          "lead-1",
		CompanyID:   "co-1",
		Phone:       "5551234567",
		Email:       "c1@imported-lead.com",
		Source:      leads.SourceIncomingCall,
		CallDetails: &leads.CallDetails{ConversationID: "c1", CallStartTime: &start},
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if store.eventType != TypeLeadCaptured || store.companyID != "co-1" || store.leadID != "lead-1" {
		t.Fatalf("unexpected insert: %#v", store)
	}

	raw, _ := json.Marshal(store.payload)
	var evt LeadCapturedV1
	if err := json.Unmarshal(raw, &evt); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if evt.ConversationID != "c1" || !evt.HasPhone || evt.HasEmail {
		t.Errorf("unexpected payload %+v", evt)
	}
	if evt.CallStartedAt == nil || !evt.CallStartedAt.Equal(start) || !evt.CapturedAt.Equal(fixed) {
		t.Errorf("unexpected timestamps %+v", evt)
	}
}

type memoryPending struct {
	mu        sync.Mutex
	entries   []OutboxEntry
	delivered []uuid.UUID
}

func (m *memoryPending) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OutboxEntry(nil), m.entries...), nil
}

func (m *memoryPending) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, id)
	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	m.entries = kept
	return true, nil
}

func (m *memoryPending) deliveredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.delivered)
}

type flakyHandler struct {
	fail uuid.UUID
}

func (h flakyHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	if entry.ID == h.fail {
		return errors.New("tracker unavailable")
	}
	return nil
}

func TestDelivererDrainsOnTick(t *testing.T) {
	good, bad := uuid.New(), uuid.New()
	store := &memoryPending{entries: []OutboxEntry{{ID: good, Type: TypeLeadCaptured}, {ID: bad, Type: TypeLeadCaptured}}}
	tick := make(chan time.Time)
	d := newDeliverer(store, flakyHandler{fail: bad}, nil).WithTick(tick)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	tick <- time.Now()
	tick <- time.Now()
	cancel()
	<-done

	if got := store.deliveredCount(); got != 1 {
		t.Fatalf("expected only the good entry delivered once, got %d", got)
	}
	if store.delivered[0] != good {
		t.Fatalf("unexpected delivered id %v", store.delivered[0])
	}
}

func TestLogHandler(t *testing.T) {
	if err := NewLogHandler(nil).Handle(context.Background(), OutboxEntry{ID: uuid.New(), Type: TypeLeadCaptured}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
