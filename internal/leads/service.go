package leads

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

// ConversationDeleter removes a conversation from the call provider.
type ConversationDeleter interface {
	DeleteConversation(ctx context.Context, conversationID string) error
}

// DeletionArchiver keeps a copy of a lead after it is deleted.
type DeletionArchiver interface {
	ArchiveDeleted(ctx context.Context, lead Lead) error
}

// InsightGenerator produces AI insights for a lead.
type InsightGenerator interface {
	Generate(ctx context.Context, lead Lead) (*AIInsights, error)
}

// Service applies user mutations to leads. Every mutation edits the snapshot first
// and restores it when the store rejects the write.
type Service struct {
	repo     Repository
	snapshot *Snapshot
	deleter  ConversationDeleter
	archiver DeletionArchiver
	insights InsightGenerator
	logger   *logging.Logger
	now      func() time.Time
}

// NewService creates a lead service.
func NewService(repo Repository, snapshot *Snapshot, logger *logging.Logger) *Service {
	if repo == nil {
		panic("leads: repository required")
	}
	if snapshot == nil {
		snapshot = NewSnapshot()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:     repo,
		snapshot: snapshot,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithConversationDeleter enables upstream cleanup when a call lead is deleted.
func (s *Service) WithConversationDeleter(d ConversationDeleter) *Service {
	s.deleter = d
	return s
}

// WithArchiver archives leads after they are deleted.
func (s *Service) WithArchiver(a DeletionArchiver) *Service {
	s.archiver = a
	return s
}

// WithInsightGenerator enables RegenerateInsights.
func (s *Service) WithInsightGenerator(g InsightGenerator) *Service {
	s.insights = g
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Snapshot exposes the shared snapshot.
func (s *Service) Snapshot() *Snapshot {
	return s.snapshot
}

// Create stores a manual or web-form lead.
func (s *Service) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	lead, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.snapshot.Put(lead.CompanyID, *lead)
	s.logger.Info("lead created", "company_id", lead.CompanyID, "lead_id", lead.ID, "source", lead.Source)
	return lead, nil
}

// Get returns one lead from the store.
func (s *Service) Get(ctx context.Context, companyID, id string) (*Lead, error) {
	return s.repo.GetByID(ctx, companyID, id)
}

// List returns the company's leads from the snapshot, loading it from the store on first use.
func (s *Service) List(ctx context.Context, companyID string) ([]Lead, error) {
	if list, ok := s.snapshot.Get(companyID); ok {
		return list, nil
	}
	list, err := s.repo.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("leads: load company %s: %w", companyID, err)
	}
	s.snapshot.Replace(companyID, list)
	return list, nil
}

// UpdateStatus moves a lead to a new lifecycle status.
func (s *Service) UpdateStatus(ctx context.Context, companyID, id string, status LeadStatus) (*Lead, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.mutate(ctx, companyID, id, func(l *Lead) error {
		l.Status = status
		return nil
	})
}

// MarkContacted stamps the last contact time; new leads become contacted.
func (s *Service) MarkContacted(ctx context.Context, companyID, id string) (*Lead, error) {
	return s.mutate(ctx, companyID, id, func(l *Lead) error {
		now := s.now()
		l.LastContactTime = &now
		if l.Status == StatusNew {
			l.Status = StatusContacted
		}
		return nil
	})
}

// AddNote prepends a note.
func (s *Service) AddNote(ctx context.Context, companyID, id, text, author string) (*Lead, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyNote
	}
	return s.mutate(ctx, companyID, id, func(l *Lead) error {
		l.PrependNote(Note{ID: uuid.New().String(), Text: text, Author: author, CreatedAt: s.now()})
		return nil
	})
}

// RecordCall adds an outbound or inbound call to the lead's history.
func (s *Service) RecordCall(ctx context.Context, companyID, id string, rec CallRecord) (*Lead, error) {
	if rec.StartedAt.IsZero() {
		rec.StartedAt = s.now()
	}
	if rec.Direction == "" {
		rec.Direction = "outbound"
	}
	if rec.DurationSecs < 0 {
		return nil, fmt.Errorf("%w: duration_secs", ErrInvalidField)
	}
	return s.mutate(ctx, companyID, id, func(l *Lead) error {
		l.AppendCall(rec)
		started := rec.StartedAt
		if l.LastContactTime == nil || started.After(*l.LastContactTime) {
			l.LastContactTime = &started
		}
		if l.Status == StatusNew {
			l.Status = StatusContacted
		}
		return nil
	})
}

// RegenerateInsights replaces the lead's AI insights.
func (s *Service) RegenerateInsights(ctx context.Context, companyID, id string) (*Lead, error) {
	if s.insights == nil {
		return nil, ErrInsightsUnavailable
	}
	current, err := s.repo.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	generated, err := s.insights.Generate(ctx, *current)
	if err != nil {
		return nil, fmt.Errorf("leads: generate insights: %w", err)
	}
	return s.mutate(ctx, companyID, id, func(l *Lead) error {
		l.AIInsights = generated
		return nil
	})
}

// Delete removes a lead. Call leads also have their conversation removed upstream;
// an upstream failure is logged and the delete still succeeds.
func (s *Service) Delete(ctx context.Context, companyID, id string) error {
	current, err := s.repo.GetByID(ctx, companyID, id)
	if err != nil {
		return err
	}
	err = s.snapshot.WithOptimisticUpdate(companyID,
		func(list []Lead) []Lead { return RemoveByID(list, id) },
		func() error { return s.repo.Delete(ctx, companyID, id) },
	)
	if err != nil {
		s.logger.Error("lead delete failed", "company_id", companyID, "lead_id", id, "error", err)
		return err
	}

	convID := current.ConversationID()
	if current.Source == SourceIncomingCall && convID != "" && s.deleter != nil {
		if err := s.deleter.DeleteConversation(ctx, convID); err != nil {
			s.logger.Warn("upstream conversation delete failed",
				"company_id", companyID, "lead_id", id, "conversation_id", convID, "error", err)
		}
	}
	if s.archiver != nil {
		if err := s.archiver.ArchiveDeleted(ctx, *current); err != nil {
			s.logger.Warn("lead archive failed", "company_id", companyID, "lead_id", id, "error", err)
		}
	}
	s.logger.Info("lead deleted", "company_id", companyID, "lead_id", id)
	return nil
}

func (s *Service) mutate(ctx context.Context, companyID, id string, change func(*Lead) error) (*Lead, error) {
	current, err := s.repo.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	updated := current.Clone()
	if err := change(&updated); err != nil {
		return nil, err
	}

	err = s.snapshot.WithOptimisticUpdate(companyID,
		func(list []Lead) []Lead { return ReplaceByID(list, updated) },
		func() error { return s.repo.Update(ctx, &updated) },
	)
	if err != nil {
		s.logger.Error("lead update failed", "company_id", companyID, "lead_id", id, "error", err)
		return nil, err
	}
	out := updated.Clone()
	return &out, nil
}
