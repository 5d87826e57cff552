// Package callers derives presentation state from a lead list: per-caller call counts,
// time-decay buckets and returning-caller groups. Nothing here is persisted.
package callers

import (
	"time"

	"github.com/wolfman30/leaddesk/internal/leads"
)

// CallerTracking summarizes how often a lead's phone number has called.
type CallerTracking struct {
	TotalCalls      int       `json:"total_calls"`
	CallsToday      int       `json:"calls_today"`
	CallsThisWeek   int       `json:"calls_this_week"`
	IsReturning     bool      `json:"is_returning"`
	LastContactTime time.Time `json:"last_contact_time"`
}

// ComputeCallerTracking scans all for other leads sharing target's exact phone string.
// Leads without a phone (empty or N/A) count as a single first-time call.
// Today starts at midnight in now's location; the week is the trailing seven days.
func ComputeCallerTracking(all []leads.Lead, target leads.Lead, now time.Time) CallerTracking {
	own := target.ContactTime()
	if !target.HasPhone() {
		return CallerTracking{
			TotalCalls:      1,
			CallsToday:      1,
			CallsThisWeek:   1,
			LastContactTime: own,
		}
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := now.Add(-7 * 24 * time.Hour)

	out := CallerTracking{LastContactTime: own}
	matches := 0
	for _, other := range all {
		if other.ID == target.ID || other.Phone != target.Phone {
			continue
		}
		matches++
		at := other.ContactTime()
		if !at.Before(startOfDay) {
			out.CallsToday++
		}
		if !at.Before(weekAgo) {
			out.CallsThisWeek++
		}
		if at.After(out.LastContactTime) {
			out.LastContactTime = at
		}
	}
	out.TotalCalls = matches + 1
	out.IsReturning = matches > 0
	return out
}
