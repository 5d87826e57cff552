// Package notify emails dashboard users about newly captured leads.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/wolfman30/leaddesk/internal/leads"
	"github.com/wolfman30/leaddesk/pkg/logging"
)

const newLeadCategory = "new-lead"

// Service renders lead notifications and hands them to an EmailSender.
type Service struct {
	email  EmailSender
	region string
	logger *logging.Logger
}

// NewService creates a notification service. region is the ISO country used to format phone
// numbers that carry no country code; empty means US.
func NewService(email EmailSender, region string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = "US"
	}
	return &Service{email: email, region: region, logger: logger}
}

// NotifyNewLead sends one email about lead to recipient.
func (s *Service) NotifyNewLead(ctx context.Context, recipient string, lead leads.Lead) error {
	if s.email == nil {
		s.logger.Debug("notify: email sender not configured, skipping", "lead_id", lead.ID)
		return nil
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return fmt.Errorf("notify: recipient is required")
	}

	msg := EmailMessage{
		To:       recipient,
		Subject:  fmt.Sprintf("New lead: %s", displayName(lead)),
		Body:     s.renderText(lead),
		HTML:     s.renderHTML(lead),
		Category: newLeadCategory,
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: new lead %s: %w", lead.ID, err)
	}
	return nil
}

func (s *Service) renderText(lead leads.Lead) string {
	var b strings.Builder
	b.WriteString("A new lead just came in.\n\n")
	for _, f := range s.fields(lead) {
		fmt.Fprintf(&b, "%s: %s\n", f.label, f.value)
	}
	if summary := callSummary(lead); summary != "" {
		fmt.Fprintf(&b, "\n%s\n", summary)
	}
	return b.String()
}

func (s *Service) renderHTML(lead leads.Lead) string {
	var b strings.Builder
	b.WriteString("<p>A new lead just came in.</p><table>")
	for _, f := range s.fields(lead) {
		fmt.Fprintf(&b, "<tr><td><strong>%s</strong></td><td>%s</td></tr>", html.EscapeString(f.label), html.EscapeString(f.value))
	}
	b.WriteString("</table>")
	if summary := callSummary(lead); summary != "" {
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(summary))
	}
	return b.String()
}

type field struct {
	label string
	value string
}

func (s *Service) fields(lead leads.Lead) []field {
	out := []field{
		{"Name", displayName(lead)},
		{"Phone", s.FormatPhone(lead.Phone)},
		{"Email", lead.DisplayEmail()},
	}
	if c := strings.TrimSpace(lead.Company); c != "" && c != "Unknown" {
		out = append(out, field{"Company", c})
	}
	out = append(out,
		field{"Source", string(lead.Source)},
		field{"Received", lead.ContactTime().Format(time.RFC1123)},
	)
	return out
}

// FormatPhone renders a stored phone in national format for the configured region, or
// international format for numbers from elsewhere. Unparseable values are returned as is.
func (s *Service) FormatPhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == leads.NoPhone {
		return "None"
	}
	parsed, err := phonenumbers.Parse(raw, s.region)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return raw
	}
	if phonenumbers.GetRegionCodeForNumber(parsed) == s.region {
		return phonenumbers.Format(parsed, phonenumbers.NATIONAL)
	}
	return phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL)
}

func displayName(lead leads.Lead) string {
	if name := strings.TrimSpace(lead.FullName()); name != "" {
		return name
	}
	return "Unknown caller"
}

func callSummary(lead leads.Lead) string {
	if lead.CallDetails == nil {
		return ""
	}
	summary := strings.TrimSpace(lead.CallDetails.TranscriptSummary)
	if summary == "" || summary == "No summary available" {
		return ""
	}
	return truncate(summary, 500)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
