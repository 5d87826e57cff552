package leads

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for lead storage
type Repository interface {
	Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error)
	GetByID(ctx context.Context, companyID, id string) (*Lead, error)
	// ListByCompany returns every lead of the company, newest first.
	ListByCompany(ctx context.Context, companyID string) ([]Lead, error)
	Update(ctx context.Context, lead *Lead) error
	Delete(ctx context.Context, companyID, id string) error
	// UpsertByConversation inserts call-sourced leads keyed on company and conversation id.
	// A lead whose conversation already exists for its company only has its call details refreshed.
	UpsertByConversation(ctx context.Context, leads []Lead) ([]Lead, error)
}

// InMemoryRepository is a Repository backed by a map, used in tests and local runs
type InMemoryRepository struct {
	mu             sync.RWMutex
	leads          map[string]*Lead
	byConversation map[conversationKey]string
	now            func() time.Time
}

type conversationKey struct {
	companyID      string
	conversationID string
}

func keyFor(lead *Lead) conversationKey {
	return conversationKey{companyID: lead.CompanyID, conversationID: lead.ConversationID()}
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads:          make(map[string]*Lead),
		byConversation: make(map[conversationKey]string),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Create creates a new lead in memory
func (r *InMemoryRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lead := newLeadFromRequest(req, uuid.New().String(), r.now())

	r.mu.Lock()
	r.leads[lead.ID] = &lead
	r.mu.Unlock()

	out := lead.Clone()
	return &out, nil
}

// GetByID retrieves a lead by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, companyID, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok || lead.CompanyID != companyID {
		return nil, ErrLeadNotFound
	}
	out := lead.Clone()
	return &out, nil
}

// ListByCompany returns the company's leads, newest first.
func (r *InMemoryRepository) ListByCompany(ctx context.Context, companyID string) ([]Lead, error) {
	r.mu.RLock()
	out := make([]Lead, 0, len(r.leads))
	for _, lead := range r.leads {
		if lead.CompanyID == companyID {
			out = append(out, lead.Clone())
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update overwrites the mutable fields of an existing lead.
func (r *InMemoryRepository) Update(ctx context.Context, lead *Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.leads[lead.ID]
	if !ok || existing.CompanyID != lead.CompanyID {
		return ErrLeadNotFound
	}
	updated := lead.Clone()
	updated.Source = existing.Source
	updated.CreatedAt = existing.CreatedAt
	if convID := existing.ConversationID(); convID != "" {
		if updated.CallDetails == nil {
			updated.CallDetails = &CallDetails{}
		}
		updated.CallDetails.ConversationID = convID
	}
	r.leads[lead.ID] = &updated
	return nil
}

// Delete removes a lead.
func (r *InMemoryRepository) Delete(ctx context.Context, companyID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok || lead.CompanyID != companyID {
		return ErrLeadNotFound
	}
	if lead.ConversationID() != "" {
		delete(r.byConversation, keyFor(lead))
	}
	delete(r.leads, id)
	return nil
}

// UpsertByConversation mirrors the ON CONFLICT (company_id, source_conversation_id) behaviour of the SQL store.
func (r *InMemoryRepository) UpsertByConversation(ctx context.Context, batch []Lead) ([]Lead, error) {
	for _, lead := range batch {
		if lead.ConversationID() == "" {
			return nil, ErrMissingConversationID
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Lead, 0, len(batch))
	for _, lead := range batch {
		key := keyFor(&lead)
		if id, ok := r.byConversation[key]; ok {
			existing := r.leads[id]
			history := existing.CallDetails.CallHistory
			cd := *lead.Clone().CallDetails
			cd.CallHistory = history
			existing.CallDetails = &cd
			out = append(out, existing.Clone())
			continue
		}
		stored := lead.Clone()
		if strings.TrimSpace(stored.ID) == "" {
			stored.ID = uuid.New().String()
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = r.now()
		}
		r.leads[stored.ID] = &stored
		r.byConversation[key] = stored.ID
		out = append(out, stored.Clone())
	}
	return out, nil
}

func newLeadFromRequest(req *CreateLeadRequest, id string, now time.Time) Lead {
	source := req.Source
	if source == "" {
		source = SourceManual
	}
	status := req.Status
	if status == "" {
		status = StatusNew
	}
	lead := Lead{
		ID:        id,
		CompanyID: req.CompanyID,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Company:   strings.TrimSpace(req.Company),
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Status:    status,
		Source:    source,
		CreatedAt: now,
		Notes:     []Note{},
	}
	if text := strings.TrimSpace(req.Note); text != "" {
		lead.PrependNote(Note{ID: uuid.New().String(), Text: text, CreatedAt: now})
	}
	return lead
}
