package callers

import (
	"sort"
	"time"

	"github.com/wolfman30/leaddesk/internal/leads"
)

// Groups splits a lead list into returning callers and one-off callers.
type Groups struct {
	ReturningGroups [][]leads.Lead `json:"returning_groups"`
	SingleCallers   []leads.Lead   `json:"single_callers"`
}

// GroupReturningCallers buckets leads by exact phone string. Buckets with more than one
// lead become returning groups ordered most recent contact first; the rest are single callers.
// Leads without a phone are always single callers. Every input lead appears exactly once.
//
// Grouping on the raw phone string merges unrelated people who share a line.
func GroupReturningCallers(list []leads.Lead) Groups {
	out := Groups{
		ReturningGroups: [][]leads.Lead{},
		SingleCallers:   []leads.Lead{},
	}

	var order []string
	byPhone := make(map[string][]leads.Lead)
	for _, l := range list {
		if !l.HasPhone() {
			out.SingleCallers = append(out.SingleCallers, l)
			continue
		}
		if _, seen := byPhone[l.Phone]; !seen {
			order = append(order, l.Phone)
		}
		byPhone[l.Phone] = append(byPhone[l.Phone], l)
	}

	for _, phone := range order {
		bucket := byPhone[phone]
		if len(bucket) == 1 {
			out.SingleCallers = append(out.SingleCallers, bucket[0])
			continue
		}
		sortByContactDesc(bucket)
		out.ReturningGroups = append(out.ReturningGroups, bucket)
	}
	return out
}

// SortByPriority orders leads by time-decay urgency, newest contact first within a bucket.
func SortByPriority(list []leads.Lead, now time.Time) {
	sort.SliceStable(list, func(i, j int) bool {
		pi := PriorityFor(ClassifyLead(list[i], now))
		pj := PriorityFor(ClassifyLead(list[j], now))
		if pi != pj {
			return pi < pj
		}
		return list[i].ContactTime().After(list[j].ContactTime())
	})
}

// SortByRecent orders leads by contact time, newest first.
func SortByRecent(list []leads.Lead) {
	sortByContactDesc(list)
}

func sortByContactDesc(list []leads.Lead) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].ContactTime().After(list[j].ContactTime())
	})
}
