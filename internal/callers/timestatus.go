package callers

import (
	"time"

	"github.com/wolfman30/leaddesk/internal/leads"
)

// TimeBasedStatus is a recency bucket derived from the last contact time.
type TimeBasedStatus string

const (
	JustCalled     TimeBasedStatus = "just-called"
	Hours5         TimeBasedStatus = "5h"
	Hours10        TimeBasedStatus = "10h"
	Hours24        TimeBasedStatus = "24h"
	Hours48        TimeBasedStatus = "48h"
	NeverContacted TimeBasedStatus = "never-contacted"
)

// bucket upper bounds in ascending order; the first bound that holds wins.
var buckets = []struct {
	upTo   time.Duration
	status TimeBasedStatus
}{
	{time.Hour, JustCalled},
	{5 * time.Hour, Hours5},
	{10 * time.Hour, Hours10},
	{24 * time.Hour, Hours24},
	{48 * time.Hour, Hours48},
}

// Classify buckets the time since lastContact. Bounds are inclusive.
// Contacts older than 48h fall back to NeverContacted.
func Classify(lastContact *time.Time, now time.Time) TimeBasedStatus {
	if lastContact == nil || lastContact.IsZero() {
		return NeverContacted
	}
	elapsed := now.Sub(*lastContact)
	for _, b := range buckets {
		if elapsed <= b.upTo {
			return b.status
		}
	}
	return NeverContacted
}

// ClassifyLead uses the lead's last contact time, falling back to its call start time.
func ClassifyLead(l leads.Lead, now time.Time) TimeBasedStatus {
	if l.LastContactTime != nil {
		return Classify(l.LastContactTime, now)
	}
	if l.CallDetails != nil && l.CallDetails.CallStartTime != nil {
		return Classify(l.CallDetails.CallStartTime, now)
	}
	return NeverContacted
}

// PipelineLabel is the long-term pipeline vocabulary. It is separate from leads.LeadStatus;
// no LeadStatus value is a PipelineLabel.
type PipelineLabel string

const (
	LabelClient  PipelineLabel = "Client"
	LabelLost    PipelineLabel = "Lost"
	LabelArchive PipelineLabel = "Archive"
)

// StyleToken names a presentation color class.
type StyleToken string

const (
	StyleJustCalled StyleToken = "status-just-called"
	Style5h         StyleToken = "status-5h"
	Style10h        StyleToken = "status-10h"
	Style24h        StyleToken = "status-24h"
	Style48h        StyleToken = "status-48h"
	StyleNever      StyleToken = "status-never-contacted"
	StyleClient     StyleToken = "status-client"
	StyleLost       StyleToken = "status-lost"
	StyleArchive    StyleToken = "status-archive"
	StyleNeutral    StyleToken = "status-neutral"
)

var labelStyles = map[PipelineLabel]StyleToken{
	LabelClient:  StyleClient,
	LabelLost:    StyleLost,
	LabelArchive: StyleArchive,
}

var bucketStyles = map[TimeBasedStatus]StyleToken{
	JustCalled:     StyleJustCalled,
	Hours5:         Style5h,
	Hours10:        Style10h,
	Hours24:        Style24h,
	Hours48:        Style48h,
	NeverContacted: StyleNever,
}

// ColorClassFor returns the style for a bucket. A pipeline label overrides the bucket.
// Unknown input maps to StyleNeutral.
func ColorClassFor(status TimeBasedStatus, label string) StyleToken {
	if tok, ok := labelStyles[PipelineLabel(label)]; ok {
		return tok
	}
	if tok, ok := bucketStyles[status]; ok {
		return tok
	}
	return StyleNeutral
}

// PriorityFor ranks buckets for sorting: lower is more urgent.
func PriorityFor(status TimeBasedStatus) int {
	switch status {
	case JustCalled:
		return 0
	case Hours5:
		return 1
	case Hours10:
		return 2
	case Hours24:
		return 3
	case Hours48:
		return 4
	case NeverContacted:
		return 5
	default:
		return 6
	}
}
