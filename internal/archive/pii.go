package archive

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wolfman30/leaddesk/internal/leads"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

// HashPhone returns the hex-encoded SHA-256 hash of a phone number.
// Leads without a real phone hash to "".
func HashPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" || phone == leads.NoPhone {
		return ""
	}
	h := sha256.Sum256([]byte(phone))
	return fmt.Sprintf("%x", h)
}

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
// Names are kept.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}

// NewLeadRecord builds the archived form of lead. Free text is scrubbed and the phone is hashed.
func NewLeadRecord(lead leads.Lead, deletedAt time.Time) *LeadRecord {
	rec := &LeadRecord{
		Version:   recordVersion,
		LeadID:    lead.ID,
		CompanyID: lead.CompanyID,
		PhoneHash: HashPhone(lead.Phone),
		Status:    string(lead.Status),
		Source:    string(lead.Source),
		CreatedAt: lead.CreatedAt,
		DeletedAt: deletedAt,
	}
	if cd := lead.CallDetails; cd != nil {
		rec.ConversationID = cd.ConversationID
		rec.CallCount = len(cd.CallHistory)
		rec.Summary = ScrubPII(cd.TranscriptSummary)
	}
	for _, n := range lead.Notes {
		rec.Notes = append(rec.Notes, ScrubPII(n.Text))
	}
	if lead.AIInsights != nil {
		rec.InsightSummary = ScrubPII(lead.AIInsights.Summary)
	}
	return rec
}
