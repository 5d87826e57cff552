package callprovider

import (
	"strings"
	"time"
)

// Metadata carries caller identity the provider captured outside the top-level fields.
type Metadata struct {
	CallerNumber string `json:"caller_number,omitempty"`
	CallerEmail  string `json:"caller_email,omitempty"`
}

// Conversation is one recorded phone interaction as returned by the provider.
type Conversation struct {
	ConversationID    string    `json:"conversation_id"`
	SummaryTitle      string    `json:"summary_title,omitempty"`
	TranscriptSummary string    `json:"transcript_summary,omitempty"`
	CallerNumber      string    `json:"caller_number,omitempty"`
	PhoneNumber       string    `json:"phone_number,omitempty"`
	FromNumber        string    `json:"from_number,omitempty"`
	CallerEmail       string    `json:"caller_email,omitempty"`
	EmailAddress      string    `json:"email_address,omitempty"`
	Email             string    `json:"email,omitempty"`
	Metadata          *Metadata `json:"metadata,omitempty"`
	StartTimeUnixSecs *int64    `json:"start_time_unix_secs,omitempty"`
	CallDurationSecs  int       `json:"call_duration_secs,omitempty"`
}

// ID returns the trimmed conversation id.
func (c Conversation) ID() string {
	return strings.TrimSpace(c.ConversationID)
}

// StartTime converts start_time_unix_secs to a UTC time at millisecond precision.
func (c Conversation) StartTime() *time.Time {
	if c.StartTimeUnixSecs == nil {
		return nil
	}
	t := time.UnixMilli(*c.StartTimeUnixSecs * 1000).UTC()
	return &t
}

type listConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type deleteConversationRequest struct {
	ConversationID string `json:"conversationId"`
}
