package leadsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/leaddesk/internal/leads"
	"github.com/wolfman30/leaddesk/internal/reconcile"
	"github.com/wolfman30/leaddesk/internal/tenancy"
)

type fakeRunner struct {
	mu     sync.Mutex
	calls  int
	modes  []reconcile.Mode
	users  []string
	result reconcile.Result
	err    error
	panic  bool
	block  chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, companyID string, mode reconcile.Mode) (reconcile.Result, error) {
	f.mu.Lock()
	f.calls++
	f.modes = append(f.modes, mode)
	user, _ := tenancy.UserIDFromContext(ctx)
	f.users = append(f.users, user)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if f.panic {
		panic("boom")
	}
	return f.result, f.err
}

func (f *fakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var syncNow = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

func newTestSyncer(t *testing.T, runner Runner, cache SyncCache, snapshot *leads.Snapshot) *Syncer {
	t.Helper()
	s, err := NewSyncer(Config{
		Runner:      runner,
		Cache:       cache,
		Snapshot:    snapshot,
		MinInterval: 5 * time.Minute,
		Now:         func() time.Time { return syncNow },
	})
	require.NoError(t, err)
	return s
}

func TestNewSyncerRequiresRunner(t *testing.T) {
	_, err := NewSyncer(Config{})
	require.Error(t, err)
}

func TestRefreshRunsPassAndStampsCache(t *testing.T) {
	lead := leads.Lead{ID: "l1", CompanyID: "co"}
	runner := &fakeRunner{result: reconcile.Result{Leads: []leads.Lead{lead}, NewLeads: []leads.Lead{lead}}}
	cache := NewMemoryCache()
	snapshot := leads.NewSnapshot()
	s := newTestSyncer(t, runner, cache, snapshot)

	var hooked atomic.Int32
	s.OnRefresh(func(companyID string) { hooked.Add(1) })

	res, err := s.Refresh(context.Background(), "co", RefreshOptions{UserID: "user-1"})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Len(t, res.Leads, 1)
	assert.Len(t, res.NewLeads, 1)
	assert.Equal(t, syncNow, res.LastFetch)
	assert.Equal(t, int32(1), hooked.Load())
	assert.Equal(t, []reconcile.Mode{reconcile.ModeForeground}, runner.modes)
	assert.Equal(t, []string{"user-1"}, runner.users)

	at, ok, _ := cache.Get(context.Background(), "co")
	require.True(t, ok)
	assert.Equal(t, syncNow, at)

	cached, ok := snapshot.Get("co")
	require.True(t, ok)
	assert.Len(t, cached, 1)
}

func TestRefreshServesSnapshotWhenFresh(t *testing.T) {
	runner := &fakeRunner{}
	cache := NewMemoryCache()
	snapshot := leads.NewSnapshot()
	snapshot.Replace("co", []leads.Lead{{ID: "l1"}})
	require.NoError(t, cache.Set(context.Background(), "co", syncNow.Add(-time.Minute)))
	s := newTestSyncer(t, runner, cache, snapshot)

	res, err := s.Refresh(context.Background(), "co", RefreshOptions{})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Len(t, res.Leads, 1)
	assert.Empty(t, res.NewLeads)
	assert.Equal(t, 0, runner.Calls())

	_, err = s.Refresh(context.Background(), "co", RefreshOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, runner.Calls(), "force bypasses the freshness window")
}

func TestRefreshRunsWhenSnapshotMissing(t *testing.T) {
	runner := &fakeRunner{}
	cache := NewMemoryCache()
	require.NoError(t, cache.Set(context.Background(), "co", syncNow))
	s := newTestSyncer(t, runner, cache, leads.NewSnapshot())

	res, err := s.Refresh(context.Background(), "co", RefreshOptions{})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.NotNil(t, res.Leads)
	assert.Equal(t, 1, runner.Calls())
}

func TestRefreshWhilePassInFlight(t *testing.T) {
	block := make(chan struct{})
	runner := &fakeRunner{block: block}
	snapshot := leads.NewSnapshot()
	snapshot.Replace("co", []leads.Lead{{ID: "l1"}})
	s := newTestSyncer(t, runner, NewMemoryCache(), snapshot)

	done := make(chan struct{})
	go func() {
		s.Background(context.Background(), "co")
		close(done)
	}()
	waitFor(t, 250*time.Millisecond, func() bool { return s.InFlight("co") && runner.Calls() == 1 })

	res, err := s.Refresh(context.Background(), "co", RefreshOptions{Force: true})
	require.NoError(t, err)
	assert.True(t, res.InProgress)
	assert.Len(t, res.Leads, 1)

	s.Background(context.Background(), "co")
	assert.Equal(t, 1, runner.Calls(), "overlapping passes are dropped")

	close(block)
	<-done
	assert.False(t, s.InFlight("co"))
}

func TestRefreshFetchFailureKeepsCacheStale(t *testing.T) {
	runner := &fakeRunner{result: reconcile.Result{Leads: []leads.Lead{{ID: "l1"}}, FetchErr: errors.New("502")}}
	cache := NewMemoryCache()
	s := newTestSyncer(t, runner, cache, leads.NewSnapshot())

	res, err := s.Refresh(context.Background(), "co", RefreshOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warning)
	assert.Len(t, res.Leads, 1)

	_, ok, _ := cache.Get(context.Background(), "co")
	assert.False(t, ok)
}

func TestRefreshReturnsPassError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("upsert failed")}
	cache := NewMemoryCache()
	s := newTestSyncer(t, runner, cache, leads.NewSnapshot())

	_, err := s.Refresh(context.Background(), "co", RefreshOptions{})
	require.Error(t, err)
	_, ok, _ := cache.Get(context.Background(), "co")
	assert.False(t, ok)
	assert.False(t, s.InFlight("co"))
}

func TestRefreshRequiresCompany(t *testing.T) {
	s := newTestSyncer(t, &fakeRunner{}, nil, nil)
	_, err := s.Refresh(context.Background(), " ", RefreshOptions{})
	require.Error(t, err)
}

func TestBackgroundRecoversPanics(t *testing.T) {
	runner := &fakeRunner{panic: true}
	s := newTestSyncer(t, runner, NewMemoryCache(), leads.NewSnapshot())

	assert.NotPanics(t, func() { s.Background(context.Background(), "co") })
	assert.False(t, s.InFlight("co"))
	assert.Equal(t, []reconcile.Mode{reconcile.ModeBackground}, runner.modes)
}
