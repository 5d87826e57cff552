package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/leaddesk/internal/leads"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

type inserter interface {
	Insert(ctx context.Context, id uuid.UUID, companyID, leadID, eventType string, payload any) error
}

// Recorder turns lead lifecycle moments into outbox rows.
type Recorder struct {
	store inserter
	now   func() time.Time
}

func NewRecorder(store *OutboxStore) *Recorder {
	return newRecorder(store)
}

func newRecorder(store inserter) *Recorder {
	if store == nil {
		panic("events: outbox store required")
	}
	return &Recorder{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// RecordLeadCaptured writes one lead.captured event for lead.
func (r *Recorder) RecordLeadCaptured(ctx context.Context, lead leads.Lead) error {
	id := uuid.New()
	evt := LeadCapturedV1{
		EventID:        id.String(),
		CompanyID:      lead.CompanyID,
		LeadID:         lead.ID,
		ConversationID: lead.ConversationID(),
		Source:         string(lead.Source),
		HasPhone:       lead.HasPhone(),
		HasEmail:       lead.Email != "" && !leads.IsPlaceholderEmail(lead.Email),
		CapturedAt:     r.now(),
	}
	if lead.CallDetails != nil && lead.CallDetails.CallStartTime != nil {
		started := *lead.CallDetails.CallStartTime
		evt.CallStartedAt = &started
	}
	if err := r.store.Insert(ctx, id, lead.CompanyID, lead.ID, TypeLeadCaptured, evt); err != nil {
		return fmt.Errorf("events: record lead captured: %w", err)
	}
	return nil
}

// LogHandler is the default DeliveryHandler: it logs each conversion so downstream collectors
// can pick it up from the structured log stream.
type LogHandler struct {
	logger *logging.Logger
}

func NewLogHandler(logger *logging.Logger) *LogHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogHandler{logger: logger}
}

func (h *LogHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	h.logger.Info("conversion event",
		"event_id", entry.ID.String(),
		"type", entry.Type,
		"company_id", entry.CompanyID,
		"lead_id", entry.LeadID,
		"payload", string(entry.Payload),
	)
	return nil
}
