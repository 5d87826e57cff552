package callers

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/leaddesk/internal/leads"
)

var now = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

func lead(id, phone string, at time.Time) leads.Lead {
	return leads.Lead{ID: id, Phone: phone, CreatedAt: at, Status: leads.StatusNew}
}

func callLead(id, phone string, created, callStart time.Time) leads.Lead {
	l := lead(id, phone, created)
	l.CallDetails = &leads.CallDetails{ConversationID: "conv-" + id, CallStartTime: &callStart}
	return l
}

func TestComputeCallerTracking_ReturningCaller(t *testing.T) {
	t1 := now.Add(-3 * 24 * time.Hour)
	t2 := now.Add(-2 * time.Hour)
	target := lead("L", "5551234567", now.Add(-5*24*time.Hour))
	all := []leads.Lead{
		target,
		lead("a", "5551234567", t1),
		lead("b", "5551234567", t2),
		lead("c", "555-123-4567", now),
	}

	got := ComputeCallerTracking(all, target, now)

	assert.Equal(t, 3, got.TotalCalls)
	assert.Equal(t, 1, got.CallsToday)
	assert.Equal(t, 2, got.CallsThisWeek)
	assert.True(t, got.IsReturning)
	assert.True(t, got.LastContactTime.Equal(t2))
}

func TestComputeCallerTracking_OwnTimeIsLatest(t *testing.T) {
	target := lead("L", "5550000000", now.Add(-time.Minute))
	other := lead("a", "5550000000", now.Add(-10*24*time.Hour))

	got := ComputeCallerTracking([]leads.Lead{target, other}, target, now)

	assert.Equal(t, 2, got.TotalCalls)
	assert.Equal(t, 0, got.CallsToday)
	assert.Equal(t, 0, got.CallsThisWeek)
	assert.True(t, got.LastContactTime.Equal(target.CreatedAt))
}

func TestComputeCallerTracking_UsesCallStartTime(t *testing.T) {
	target := lead("L", "5550000000", now.Add(-10*24*time.Hour))
	other := callLead("a", "5550000000", now.Add(-10*24*time.Hour), now.Add(-time.Hour))

	got := ComputeCallerTracking([]leads.Lead{target, other}, target, now)

	assert.Equal(t, 1, got.CallsToday)
	assert.True(t, got.LastContactTime.Equal(now.Add(-time.Hour)))
}

func TestComputeCallerTracking_NoPhone(t *testing.T) {
	for _, phone := range []string{"", "  ", leads.NoPhone} {
		target := lead("L", phone, now.Add(-time.Hour))
		all := []leads.Lead{target, lead("a", phone, now)}

		got := ComputeCallerTracking(all, target, now)

		assert.Equal(t, CallerTracking{
			TotalCalls:      1,
			CallsToday:      1,
			CallsThisWeek:   1,
			IsReturning:     false,
			LastContactTime: target.CreatedAt,
		}, got, "phone %q", phone)
	}
}

func TestComputeCallerTracking_StartOfDayUsesNowLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	localNow := time.Date(2024, 5, 10, 1, 0, 0, 0, loc)
	target := lead("L", "1", localNow)
	yesterdayLocal := lead("a", "1", time.Date(2024, 5, 9, 23, 30, 0, 0, loc))

	got := ComputeCallerTracking([]leads.Lead{target, yesterdayLocal}, target, localNow)
	assert.Equal(t, 0, got.CallsToday)
	assert.Equal(t, 1, got.CallsThisWeek)
}

func TestClassify(t *testing.T) {
	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}
	cases := []struct {
		name string
		last *time.Time
		want TimeBasedStatus
	}{
		{"never", nil, NeverContacted},
		{"just now", at(0), JustCalled},
		{"exactly one hour", at(60 * time.Minute), JustCalled},
		{"sixty one minutes", at(61 * time.Minute), Hours5},
		{"five hours", at(5 * time.Hour), Hours5},
		{"six hours", at(6 * time.Hour), Hours10},
		{"ten hours", at(10 * time.Hour), Hours10},
		{"twenty hours", at(20 * time.Hour), Hours24},
		{"twenty four hours", at(24 * time.Hour), Hours24},
		{"thirty hours", at(30 * time.Hour), Hours48},
		{"forty eight hours", at(48 * time.Hour), Hours48},
		{"three days", at(72 * time.Hour), NeverContacted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.last, now))
		})
	}
}

func TestClassifyLead_FallsBackToCallStart(t *testing.T) {
	l := callLead("a", "1", now.Add(-72*time.Hour), now.Add(-3*time.Hour))
	assert.Equal(t, Hours5, ClassifyLead(l, now))

	contacted := now.Add(-30 * time.Minute)
	l.LastContactTime = &contacted
	assert.Equal(t, JustCalled, ClassifyLead(l, now))

	assert.Equal(t, NeverContacted, ClassifyLead(lead("b", "1", now), now))
}

func TestColorClassFor(t *testing.T) {
	cases := []struct {
		status TimeBasedStatus
		label  string
		want   StyleToken
	}{
		{JustCalled, "", StyleJustCalled},
		{Hours48, "", Style48h},
		{NeverContacted, "", StyleNever},
		{JustCalled, "Client", StyleClient},
		{Hours5, "Lost", StyleLost},
		{NeverContacted, "Archive", StyleArchive},
		{Hours10, string(leads.StatusClosedWon), Style10h},
		{TimeBasedStatus("bogus"), "", StyleNeutral},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ColorClassFor(tc.status, tc.label), "%s/%s", tc.status, tc.label)
	}
}

func TestLeadStatusesNeverMatchPipelineLabels(t *testing.T) {
	for _, s := range []leads.LeadStatus{
		leads.StatusNew, leads.StatusContacted, leads.StatusQualified,
		leads.StatusUnqualified, leads.StatusClosedWon, leads.StatusClosedLost,
	} {
		_, ok := labelStyles[PipelineLabel(s)]
		assert.False(t, ok, "status %s", s)
	}
}

func TestGroupReturningCallers(t *testing.T) {
	list := []leads.Lead{
		lead("a1", "111", now.Add(-3*time.Hour)),
		lead("b1", "222", now.Add(-2*time.Hour)),
		lead("n1", "", now),
		lead("a2", "111", now.Add(-1*time.Hour)),
		lead("n2", leads.NoPhone, now),
		callLead("a3", "111", now.Add(-48*time.Hour), now.Add(-10*time.Minute)),
		lead("c1", "333", now.Add(-5*time.Hour)),
		lead("c2", "333", now.Add(-4*time.Hour)),
	}

	got := GroupReturningCallers(list)

	require.Len(t, got.ReturningGroups, 2)
	assert.Equal(t, []string{"a3", "a2", "a1"}, ids(got.ReturningGroups[0]))
	assert.Equal(t, []string{"c2", "c1"}, ids(got.ReturningGroups[1]))
	assert.ElementsMatch(t, []string{"n1", "n2", "b1"}, ids(got.SingleCallers))
}

func TestGroupReturningCallers_Completeness(t *testing.T) {
	for size := 0; size < 40; size += 7 {
		list := make([]leads.Lead, 0, size)
		for i := 0; i < size; i++ {
			phone := fmt.Sprintf("555%d", i%5)
			if i%6 == 0 {
				phone = ""
			}
			list = append(list, lead(fmt.Sprintf("l%d", i), phone, now.Add(-time.Duration(i*37)*time.Minute)))
		}

		got := GroupReturningCallers(list)

		seen := map[string]int{}
		total := len(got.SingleCallers)
		for _, l := range got.SingleCallers {
			seen[l.ID]++
		}
		for _, g := range got.ReturningGroups {
			total += len(g)
			require.Greater(t, len(g), 1)
			for _, l := range g {
				seen[l.ID]++
				assert.False(t, l.ContactTime().After(g[0].ContactTime()), "group head is most recent")
			}
		}
		assert.Equal(t, size, total)
		for _, l := range list {
			assert.Equal(t, 1, seen[l.ID], "lead %s", l.ID)
		}
	}
}

func TestGroupReturningCallers_StableOnTies(t *testing.T) {
	list := []leads.Lead{lead("x", "1", now), lead("y", "1", now)}
	got := GroupReturningCallers(list)
	require.Len(t, got.ReturningGroups, 1)
	assert.Equal(t, []string{"x", "y"}, ids(got.ReturningGroups[0]))
}

func TestSortByPriority(t *testing.T) {
	stamp := func(l leads.Lead, ago time.Duration) leads.Lead {
		ts := now.Add(-ago)
		l.LastContactTime = &ts
		return l
	}
	list := []leads.Lead{
		lead("never", "1", now.Add(-time.Hour)),
		stamp(lead("h10", "2", now), 8*time.Hour),
		stamp(lead("just", "3", now), 10*time.Minute),
		stamp(lead("h5", "4", now), 3*time.Hour),
	}
	SortByPriority(list, now)
	assert.Equal(t, []string{"just", "h5", "h10", "never"}, ids(list))
}

func TestDescribeAll(t *testing.T) {
	all := []leads.Lead{lead("a", "1", now), lead("b", "1", now.Add(-time.Hour))}
	views := DescribeAll(all, all[:1], now)
	require.Len(t, views, 1)
	assert.Equal(t, 2, views[0].Tracking.TotalCalls)
	assert.Equal(t, NeverContacted, views[0].TimeStatus)
	assert.Equal(t, StyleNever, views[0].Style)
}

func ids(list []leads.Lead) []string {
	out := make([]string, len(list))
	for i, l := range list {
		out[i] = l.ID
	}
	return out
}
