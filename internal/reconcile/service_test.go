package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/leaddesk/internal/callprovider"
	"github.com/wolfman30/leaddesk/internal/leads"
	"github.com/wolfman30/leaddesk/internal/observability/metrics"
	"github.com/wolfman30/leaddesk/internal/tenancy"
)

type stubLister struct {
	convs []callprovider.Conversation
	err   error
}

func (s stubLister) ListConversations(ctx context.Context) ([]callprovider.Conversation, error) {
	return s.convs, s.err
}

type recorder struct {
	mu        sync.Mutex
	events    []string
	pushes    [][]leads.Lead
	emails    []string
	eventErr  error
	notifyErr error
}

func (r *recorder) RecordLeadCaptured(ctx context.Context, lead leads.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, lead.ConversationID())
	return r.eventErr
}

func (r *recorder) PublishNewLeads(ctx context.Context, companyID string, fresh []leads.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, fresh)
	return nil
}

func (r *recorder) RecipientEmail(ctx context.Context, userID string) (string, error) {
	return userID + "@example.com", nil
}

func (r *recorder) NotifyNewLead(ctx context.Context, recipient string, lead leads.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emails = append(r.emails, recipient+":"+lead.ConversationID())
	return r.notifyErr
}

type failingUpsertRepo struct {
	*leads.InMemoryRepository
}

func (failingUpsertRepo) UpsertByConversation(ctx context.Context, batch []leads.Lead) ([]leads.Lead, error) {
	return nil, errors.New("unique violation")
}

func unix(sec int64) *int64 { return &sec }

func newTestService(repo leads.Repository, lister ConversationLister, rec *recorder) *Service {
	return NewService(repo, lister, nil).
		WithEvents(rec).
		WithPublisher(rec).
		WithEmail(rec, rec).
		WithMetrics(metrics.NewSyncMetrics(prometheus.NewRegistry())).
		WithClock(func() time.Time { return now })
}

func TestRunBackgroundMaterializesNewLeads(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	manual, err := repo.Create(context.Background(), &leads.CreateLeadRequest{CompanyID: "co", FirstName: "Ann", Phone: "1"})
	require.NoError(t, err)

	rec := &recorder{}
	lister := stubLister{convs: []callprovider.Conversation{
		{ConversationID: "old", StartTimeUnixSecs: unix(1700000000)},
		{ConversationID: "new", StartTimeUnixSecs: unix(1700003600)},
	}}
	svc := newTestService(repo, lister, rec)

	res, err := svc.Run(context.Background(), "co", ModeBackground)
	require.NoError(t, err)
	assert.NoError(t, res.FetchErr)

	require.Len(t, res.NewLeads, 2)
	assert.Equal(t, "new", res.NewLeads[0].ConversationID(), "most recent call first")
	require.Len(t, res.Leads, 3)
	assert.Equal(t, manual.ID, res.Leads[2].ID)

	assert.ElementsMatch(t, []string{"old", "new"}, rec.events)
	require.Len(t, rec.pushes, 1, "one push per pass regardless of count")
	assert.Empty(t, rec.emails, "background passes never email")

	stored, err := repo.ListByCompany(context.Background(), "co")
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestRunSecondPassFindsNothing(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	rec := &recorder{}
	lister := stubLister{convs: []callprovider.Conversation{{ConversationID: "c1", SummaryTitle: "Mr. John Doe"}}}
	svc := newTestService(repo, lister, rec)

	_, err := svc.Run(context.Background(), "co", ModeBackground)
	require.NoError(t, err)
	res, err := svc.Run(context.Background(), "co", ModeBackground)
	require.NoError(t, err)

	assert.Empty(t, res.NewLeads)
	assert.Len(t, res.Leads, 1)
	assert.Len(t, rec.pushes, 1)
}

func TestRunKeepsCompaniesApart(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	rec := &recorder{}
	lister := stubLister{convs: []callprovider.Conversation{{ConversationID: "c1", SummaryTitle: "Mr. John Doe"}}}
	svc := newTestService(repo, lister, rec)

	first, err := svc.Run(context.Background(), "company-a", ModeBackground)
	require.NoError(t, err)
	require.Len(t, first.NewLeads, 1)

	for pass := 0; pass < 2; pass++ {
		res, err := svc.Run(context.Background(), "company-b", ModeBackground)
		require.NoError(t, err)
		for _, l := range res.Leads {
			assert.Equal(t, "company-b", l.CompanyID, "pass %d", pass)
		}
		if pass == 0 {
			require.Len(t, res.NewLeads, 1)
			assert.NotEqual(t, first.NewLeads[0].ID, res.NewLeads[0].ID)
		} else {
			assert.Empty(t, res.NewLeads, "second pass for the same company finds nothing")
		}
	}
	assert.Equal(t, []string{"c1", "c1"}, rec.events, "one event per company")

	a, err := repo.ListByCompany(context.Background(), "company-a")
	require.NoError(t, err)
	assert.Len(t, a, 1)
	b, err := repo.ListByCompany(context.Background(), "company-b")
	require.NoError(t, err)
	assert.Len(t, b, 1)
}

func TestRunForegroundEmailsSignedInUser(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	rec := &recorder{notifyErr: errors.New("smtp down")}
	lister := stubLister{convs: []callprovider.Conversation{{ConversationID: "c1"}, {ConversationID: "c2"}}}
	svc := newTestService(repo, lister, rec)

	ctx := tenancy.WithUserID(context.Background(), "user-1")
	res, err := svc.Run(ctx, "co", ModeForeground)
	require.NoError(t, err, "email failures are not returned")
	assert.Len(t, res.NewLeads, 2)
	assert.ElementsMatch(t, []string{"user-1@example.com:c1", "user-1@example.com:c2"}, rec.emails)
}

func TestRunForegroundWithoutUserSkipsEmail(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(leads.NewInMemoryRepository(), stubLister{convs: []callprovider.Conversation{{ConversationID: "c1"}}}, rec)

	_, err := svc.Run(context.Background(), "co", ModeForeground)
	require.NoError(t, err)
	assert.Empty(t, rec.emails)
}

func TestRunFetchFailureServesStoredLeads(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	_, err := repo.Create(context.Background(), &leads.CreateLeadRequest{CompanyID: "co", FirstName: "Ann", Phone: "1"})
	require.NoError(t, err)

	rec := &recorder{}
	svc := newTestService(repo, stubLister{err: errors.New("502 bad gateway")}, rec)

	res, err := svc.Run(context.Background(), "co", ModeForeground)
	require.NoError(t, err)
	require.Error(t, res.FetchErr)
	assert.Len(t, res.Leads, 1)
	assert.Empty(t, res.NewLeads)
	assert.Empty(t, rec.pushes)
}

func TestRunUpsertFailureIsReturned(t *testing.T) {
	repo := failingUpsertRepo{leads.NewInMemoryRepository()}
	rec := &recorder{}
	svc := newTestService(repo, stubLister{convs: []callprovider.Conversation{{ConversationID: "c1"}}}, rec)

	res, err := svc.Run(context.Background(), "co", ModeBackground)
	require.Error(t, err)
	assert.Empty(t, res.NewLeads)
	assert.Empty(t, rec.events)
	assert.Empty(t, rec.pushes)
}

func TestRunWithoutProvider(t *testing.T) {
	svc := NewService(leads.NewInMemoryRepository(), nil, nil)
	res, err := svc.Run(context.Background(), "co", ModeBackground)
	require.NoError(t, err)
	assert.Empty(t, res.Leads)
	assert.NoError(t, res.FetchErr)
}

func TestRunSideEffectErrorsAreSwallowed(t *testing.T) {
	rec := &recorder{eventErr: errors.New("outbox full")}
	svc := newTestService(leads.NewInMemoryRepository(), stubLister{convs: []callprovider.Conversation{{ConversationID: "c1"}}}, rec)

	res, err := svc.Run(context.Background(), "co", ModeBackground)
	require.NoError(t, err)
	assert.Len(t, res.NewLeads, 1)
	assert.Len(t, rec.pushes, 1)
}
