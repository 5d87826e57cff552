package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/leaddesk/internal/leads"
)

type mockEmailSender struct {
	sent    []EmailMessage
	callErr error
}

func (m *mockEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	if m.callErr != nil {
		return m.callErr
	}
	m.sent = append(m.sent, msg)
	return nil
}

func callLead() leads.Lead {
	start := time.Date(2024, 5, 10, 14, 30, 0, 0, time.UTC)
	return leads.Lead{
		ID:        "lead-1",
		FirstName: "Jane",
		LastName:  "Doe",
		Company:   "Unknown",
		Email:     "c1@imported-lead.com",
		Phone:     "6502530000",
		Source:    leads.SourceIncomingCall,
		CreatedAt: start.Add(time.Minute),
		CallDetails: &leads.CallDetails{
			ConversationID:    "c1",
			TranscriptSummary: "Asked about <pricing> for the premium plan.",
			CallStartTime:     &start,
		},
	}
}

func TestService_NotifyNewLead(t *testing.T) {
	sender := &mockEmailSender{}
	svc := NewService(sender, "us", nil)

	if err := svc.NotifyNewLead(context.Background(), " owner@example.com ", callLead()); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}

	msg := sender.sent[0]
	if msg.To != "owner@example.com" {
		t.Errorf("unexpected recipient %q", msg.To)
	}
	if msg.Subject != "New lead: Jane Doe" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	if msg.Category != "new-lead" {
		t.Errorf("unexpected category %q", msg.Category)
	}
	for _, want := range []string{"Phone: (650) 253-0000", "Email: None", "Source: Incoming Call", "premium plan"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body missing %q:\n%s", want, msg.Body)
		}
	}
	if strings.Contains(msg.Body, "Company:") {
		t.Error("placeholder company should be omitted")
	}
	if !strings.Contains(msg.HTML, "&lt;pricing&gt;") {
		t.Errorf("expected escaped html, got %s", msg.HTML)
	}
}

func TestService_NotifyNewLead_NoSender(t *testing.T) {
	svc := NewService(nil, "", nil)
	if err := svc.NotifyNewLead(context.Background(), "owner@example.com", callLead()); err != nil {
		t.Errorf("expected no error without sender, got: %v", err)
	}
}

func TestService_NotifyNewLead_Errors(t *testing.T) {
	svc := NewService(&mockEmailSender{}, "US", nil)
	if err := svc.NotifyNewLead(context.Background(), "  ", callLead()); err == nil {
		t.Error("expected error for empty recipient")
	}

	failing := NewService(&mockEmailSender{callErr: errors.New("quota")}, "US", nil)
	err := failing.NotifyNewLead(context.Background(), "owner@example.com", callLead())
	if err == nil || !strings.Contains(err.Error(), "quota") {
		t.Errorf("expected wrapped sender error, got %v", err)
	}
}

func TestService_FormatPhone(t *testing.T) {
	svc := NewService(nil, "US", nil)
	tests := []struct {
		in   string
		want string
	}{
		{"", "None"},
		{"N/A", "None"},
		{"+1 650 253 0000", "(650) 253-0000"},
		{"+442070313000", "+44 20 7031 3000"},
		{"call me maybe", "call me maybe"},
	}
	for _, tt := range tests {
		if got := svc.FormatPhone(tt.in); got != tt.want {
			t.Errorf("FormatPhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayNameFallback(t *testing.T) {
	if got := displayName(leads.Lead{}); got != "Unknown caller" {
		t.Errorf("unexpected fallback %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("unexpected %q", got)
	}
	if got := truncate("hello world", 5); got != "hello..." {
		t.Errorf("unexpected %q", got)
	}
}
