package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/wolfman30/leaddesk/internal/callprovider"
	"github.com/wolfman30/leaddesk/internal/leads"
	"github.com/wolfman30/leaddesk/internal/observability/metrics"
	"github.com/wolfman30/leaddesk/internal/tenancy"
	"github.com/wolfman30/leaddesk/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Mode says who asked for a pass.
type Mode string

const (
	// ModeBackground passes come from the periodic timer and never email anyone.
	ModeBackground Mode = "background"
	// ModeForeground passes were requested by a signed-in user.
	ModeForeground Mode = "foreground"
)

// ConversationLister fetches the provider's conversations.
type ConversationLister interface {
	ListConversations(ctx context.Context) ([]callprovider.Conversation, error)
}

// EventRecorder records a conversion-tracking event for a captured lead.
type EventRecorder interface {
	RecordLeadCaptured(ctx context.Context, lead leads.Lead) error
}

// Publisher pushes new leads to connected dashboards.
type Publisher interface {
	PublishNewLeads(ctx context.Context, companyID string, fresh []leads.Lead) error
}

// RecipientResolver finds the email address of a signed-in user.
type RecipientResolver interface {
	RecipientEmail(ctx context.Context, userID string) (string, error)
}

// Notifier emails a user about a new lead.
type Notifier interface {
	NotifyNewLead(ctx context.Context, recipient string, lead leads.Lead) error
}

// Result is the outcome of one pass.
type Result struct {
	// Leads is the full company list, new leads first.
	Leads []leads.Lead
	// NewLeads were materialized by this pass, most recent call first.
	NewLeads []leads.Lead
	// FetchErr is set when the provider could not be reached; Leads then holds stored leads only.
	FetchErr error
}

// Service runs reconciliation passes.
type Service struct {
	repo       leads.Repository
	lister     ConversationLister
	events     EventRecorder
	publisher  Publisher
	recipients RecipientResolver
	notifier   Notifier
	metrics    *metrics.SyncMetrics
	logger     *logging.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewService creates a reconcile service. lister may be nil when no provider is configured.
func NewService(repo leads.Repository, lister ConversationLister, logger *logging.Logger) *Service {
	if repo == nil {
		panic("reconcile: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:   repo,
		lister: lister,
		logger: logger,
		tracer: otel.Tracer("leaddesk/reconcile"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithEvents(r EventRecorder) *Service {
	s.events = r
	return s
}

func (s *Service) WithPublisher(p Publisher) *Service {
	s.publisher = p
	return s
}

// WithEmail enables per-lead emails on foreground passes.
func (s *Service) WithEmail(recipients RecipientResolver, notifier Notifier) *Service {
	s.recipients = recipients
	s.notifier = notifier
	return s
}

func (s *Service) WithMetrics(m *metrics.SyncMetrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Run loads stored leads, diffs them against the provider and upserts what is missing.
// A provider failure degrades to zero conversations. An upsert failure is returned along
// with the stored leads.
func (s *Service) Run(ctx context.Context, companyID string, mode Mode) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "reconcile.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("leaddesk.company_id", companyID),
		attribute.String("leaddesk.sync_mode", string(mode)),
	)
	started := time.Now()
	log := s.logger.With("company_id", companyID, "mode", string(mode))

	existing, err := s.repo.ListByCompany(ctx, companyID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load leads")
		s.metrics.ObservePass(string(mode), "error", time.Since(started).Seconds())
		return Result{}, fmt.Errorf("reconcile: load leads: %w", err)
	}
	res := Result{Leads: existing}

	convs, fetchErr := s.fetch(ctx)
	if fetchErr != nil {
		res.FetchErr = fetchErr
		span.RecordError(fetchErr)
		s.metrics.ObserveFetchFailure(string(mode))
		log.Warn("conversation fetch failed, serving stored leads", "error", fetchErr)
	}

	fresh := Reconcile(companyID, existing, convs, s.now())
	span.SetAttributes(
		attribute.Int("leaddesk.conversations", len(convs)),
		attribute.Int("leaddesk.new_leads", len(fresh)),
	)
	if len(fresh) == 0 {
		s.metrics.ObservePass(string(mode), outcome(fetchErr), time.Since(started).Seconds())
		return res, nil
	}

	stored, err := s.repo.UpsertByConversation(ctx, fresh)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert leads")
		log.Error("lead upsert failed", "error", err, "count", len(fresh))
		s.metrics.ObservePass(string(mode), "error", time.Since(started).Seconds())
		return res, fmt.Errorf("reconcile: upsert leads: %w", err)
	}

	sort.SliceStable(stored, func(i, j int) bool {
		return stored[i].ContactTime().After(stored[j].ContactTime())
	})
	res.NewLeads = stored
	res.Leads = leads.PrependNew(existing, stored)
	log.Info("new leads from conversations", "count", len(stored))

	s.afterNewLeads(ctx, companyID, mode, stored, log)

	s.metrics.AddNewLeads(string(mode), len(stored))
	s.metrics.ObservePass(string(mode), outcome(fetchErr), time.Since(started).Seconds())
	return res, nil
}

func (s *Service) fetch(ctx context.Context) ([]callprovider.Conversation, error) {
	if s.lister == nil {
		return nil, nil
	}
	convs, err := s.lister.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: list conversations: %w", err)
	}
	return convs, nil
}

// afterNewLeads fires side effects. Failures are logged only.
func (s *Service) afterNewLeads(ctx context.Context, companyID string, mode Mode, fresh []leads.Lead, log *logging.Logger) {
	if s.events != nil {
		for _, l := range fresh {
			if err := s.events.RecordLeadCaptured(ctx, l); err != nil {
				log.Warn("conversion event failed", "lead_id", l.ID, "error", err)
			}
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishNewLeads(ctx, companyID, fresh); err != nil {
			log.Warn("new lead push failed", "error", err)
		}
	}

	if mode != ModeForeground || s.notifier == nil || s.recipients == nil {
		return
	}
	userID, ok := tenancy.UserIDFromContext(ctx)
	if !ok {
		log.Debug("no signed-in user, skipping lead emails")
		return
	}
	recipient, err := s.recipients.RecipientEmail(ctx, userID)
	if err != nil || recipient == "" {
		log.Warn("lead email recipient lookup failed", "user_id", userID, "error", err)
		return
	}
	for _, l := range fresh {
		if err := s.notifier.NotifyNewLead(ctx, recipient, l); err != nil {
			log.Warn("lead email failed", "lead_id", l.ID, "error", err)
		}
	}
}

func outcome(fetchErr error) string {
	if fetchErr != nil {
		return "degraded"
	}
	return "ok"
}
