package callers

import (
	"time"

	"github.com/wolfman30/leaddesk/internal/leads"
)

// LeadView is a lead plus the state derived for its dashboard card.
type LeadView struct {
	leads.Lead
	Tracking   CallerTracking  `json:"tracking"`
	TimeStatus TimeBasedStatus `json:"time_status"`
	Style      StyleToken      `json:"style"`
}

// Describe derives the card state for target against the full company list.
// label is an optional PipelineLabel chosen by the dashboard.
func Describe(all []leads.Lead, target leads.Lead, label string, now time.Time) LeadView {
	status := ClassifyLead(target, now)
	return LeadView{
		Lead:       target,
		Tracking:   ComputeCallerTracking(all, target, now),
		TimeStatus: status,
		Style:      ColorClassFor(status, label),
	}
}

// DescribeAll derives card state for page, counting calls across all.
func DescribeAll(all, page []leads.Lead, now time.Time) []LeadView {
	out := make([]LeadView, 0, len(page))
	for _, l := range page {
		out = append(out, Describe(all, l, "", now))
	}
	return out
}
