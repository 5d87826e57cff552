// Package events records conversion-tracking events in a transactional outbox.
package events

import "time"

// TypeLeadCaptured is emitted once per lead created from a provider conversation.
const TypeLeadCaptured = "lead.captured"

type LeadCapturedV1 struct {
	EventID        string     `json:"event_id"`
	CompanyID      string     `json:"company_id"`
	LeadID         string     `json:"lead_id"`
	ConversationID string     `json:"conversation_id,omitempty"`
	Source         string     `json:"source"`
	HasPhone       bool       `json:"has_phone"`
	HasEmail       bool       `json:"has_email"`
	CallStartedAt  *time.Time `json:"call_started_at,omitempty"`
	CapturedAt     time.Time  `json:"captured_at"`
}
