// Package reconcile turns provider conversations into call-sourced leads.
package reconcile

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/leaddesk/internal/callprovider"
	"github.com/wolfman30/leaddesk/internal/leads"
)

const (
	defaultCompany           = "Unknown"
	defaultSummaryTitle      = "Incoming Call"
	defaultTranscriptSummary = "No summary available"
)

// KnownConversationIDs returns the conversation ids already materialized as incoming-call leads.
func KnownConversationIDs(existing []leads.Lead) map[string]struct{} {
	known := make(map[string]struct{}, len(existing))
	for _, l := range existing {
		if l.Source != leads.SourceIncomingCall {
			continue
		}
		if id := l.ConversationID(); id != "" {
			known[id] = struct{}{}
		}
	}
	return known
}

// Reconcile synthesizes one lead per conversation that has no incoming-call lead yet.
// Conversations with empty ids and repeats within convs are skipped. The result keeps convs order.
func Reconcile(companyID string, existing []leads.Lead, convs []callprovider.Conversation, now time.Time) []leads.Lead {
	known := KnownConversationIDs(existing)
	out := make([]leads.Lead, 0)
	for _, c := range convs {
		id := c.ID()
		if id == "" {
			continue
		}
		if _, dup := known[id]; dup {
			continue
		}
		known[id] = struct{}{}
		out = append(out, BuildLead(companyID, c, now))
	}
	return out
}

// BuildLead synthesizes a new incoming-call lead from a conversation.
func BuildLead(companyID string, c callprovider.Conversation, now time.Time) leads.Lead {
	convID := c.ID()
	name := ExtractName(c)

	phone := ExtractPhone(c)
	if phone == "" {
		phone = leads.NoPhone
	}
	email := ExtractEmail(c)
	if email == "" {
		email = convID + leads.PlaceholderEmailDomain
	}

	title := strings.TrimSpace(c.SummaryTitle)
	if title == "" {
		title = defaultSummaryTitle
	}
	summary := strings.TrimSpace(c.TranscriptSummary)
	if summary == "" {
		summary = defaultTranscriptSummary
	}

	return leads.Lead{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		FirstName: name.First,
		LastName:  name.Last,
		Company:   defaultCompany,
		Email:     email,
		Phone:     phone,
		Status:    leads.StatusNew,
		Source:    leads.SourceIncomingCall,
		CreatedAt: now,
		Notes:     []leads.Note{},
		CallDetails: &leads.CallDetails{
			ConversationID:    convID,
			SummaryTitle:      title,
			TranscriptSummary: summary,
			CallStartTime:     c.StartTime(),
			CallDurationSecs:  c.CallDurationSecs,
		},
	}
}
