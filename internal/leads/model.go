package leads

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// LeadStatus is the lifecycle status of a lead.
type LeadStatus string

const (
	StatusNew         LeadStatus = "New"
	StatusContacted   LeadStatus = "Contacted"
	StatusQualified   LeadStatus = "Qualified"
	StatusUnqualified LeadStatus = "Unqualified"
	StatusClosedWon   LeadStatus = "Closed-Won"
	StatusClosedLost  LeadStatus = "Closed-Lost"
)

var allStatuses = []LeadStatus{StatusNew, StatusContacted, StatusQualified, StatusUnqualified, StatusClosedWon, StatusClosedLost}

// Valid reports whether s is one of the known statuses.
func (s LeadStatus) Valid() bool {
	for _, known := range allStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseLeadStatus accepts a status label, ignoring surrounding whitespace.
func ParseLeadStatus(raw string) (LeadStatus, error) {
	s := LeadStatus(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// LeadSource records how a lead entered the system. It never changes after creation.
type LeadSource string

const (
	SourceManual       LeadSource = "Manual"
	SourceIncomingCall LeadSource = "Incoming Call"
	SourceBot          LeadSource = "Bot"
	SourceWebForm      LeadSource = "Web Form"
)

// Valid reports whether s is one of the known sources.
func (s LeadSource) Valid() bool {
	switch s {
	case SourceManual, SourceIncomingCall, SourceBot, SourceWebForm:
		return true
	}
	return false
}

const (
	// PlaceholderEmailDomain marks addresses synthesized for leads imported from calls.
	PlaceholderEmailDomain = "@imported-lead.com"
	// NoPhone is stored when a call carried no usable phone number.
	NoPhone = "N/A"
	// MaxCallHistory bounds CallDetails.CallHistory.
	MaxCallHistory = 10
)

// CallRecord is one entry of a lead's call history.
type CallRecord struct {
	ConversationID string    `json:"conversation_id,omitempty"`
	Direction      string    `json:"direction"`
	StartedAt      time.Time `json:"started_at"`
	DurationSecs   int       `json:"duration_secs"`
	Summary        string    `json:"summary,omitempty"`
	Outcome        string    `json:"outcome,omitempty"`
}

// CallDetails holds call metadata for call-sourced leads or leads that were called.
type CallDetails struct {
	ConversationID    string       `json:"conversation_id,omitempty"`
	SummaryTitle      string       `json:"summary_title,omitempty"`
	TranscriptSummary string       `json:"transcript_summary,omitempty"`
	CallStartTime     *time.Time   `json:"call_start_time,omitempty"`
	CallDurationSecs  int          `json:"call_duration_secs,omitempty"`
	CallHistory       []CallRecord `json:"call_history,omitempty"`
}

// Note is a free-text annotation on a lead.
type Note struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AIInsights is a structured analysis of a lead. It is replaced wholesale when regenerated.
type AIInsights struct {
	Summary            string    `json:"summary"`
	Sentiment          string    `json:"sentiment"`
	Intent             string    `json:"intent"`
	Urgency            string    `json:"urgency"`
	KeyPoints          []string  `json:"key_points"`
	RecommendedActions []string  `json:"recommended_actions"`
	Fallback           bool      `json:"fallback,omitempty"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// Lead is a prospective customer record.
type Lead struct {
	ID              string       `json:"id"`
	CompanyID       string       `json:"company_id"`
	FirstName       string       `json:"first_name"`
	LastName        string       `json:"last_name"`
	Company         string       `json:"company"`
	Email           string       `json:"email"`
	Phone           string       `json:"phone"`
	Status          LeadStatus   `json:"status"`
	Source          LeadSource   `json:"source"`
	CreatedAt       time.Time    `json:"created_at"`
	LastContactTime *time.Time   `json:"last_contact_time,omitempty"`
	CallDetails     *CallDetails `json:"call_details,omitempty"`
	Notes           []Note       `json:"notes"`
	AIInsights      *AIInsights  `json:"ai_insights"`
}

// FullName joins first and last name.
func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// ConversationID returns the external conversation key, if any.
func (l Lead) ConversationID() string {
	if l.CallDetails == nil {
		return ""
	}
	return strings.TrimSpace(l.CallDetails.ConversationID)
}

// ContactTime is the call start time when known, else the creation time.
func (l Lead) ContactTime() time.Time {
	if l.CallDetails != nil && l.CallDetails.CallStartTime != nil {
		return *l.CallDetails.CallStartTime
	}
	return l.CreatedAt
}

// HasPhone reports whether the lead carries a real phone number.
func (l Lead) HasPhone() bool {
	p := strings.TrimSpace(l.Phone)
	return p != "" && p != NoPhone
}

// DisplayEmail hides synthesized addresses.
func (l Lead) DisplayEmail() string {
	if IsPlaceholderEmail(l.Email) || strings.TrimSpace(l.Email) == "" {
		return "None"
	}
	return l.Email
}

// IsPlaceholderEmail reports whether addr was synthesized rather than captured.
func IsPlaceholderEmail(addr string) bool {
	addr = strings.ToLower(strings.TrimSpace(addr))
	return strings.Contains(addr, PlaceholderEmailDomain) || strings.HasPrefix(addr, "conv_")
}

// Clone returns a deep copy so snapshot readers never share slices with writers.
func (l Lead) Clone() Lead {
	out := l
	if l.LastContactTime != nil {
		t := *l.LastContactTime
		out.LastContactTime = &t
	}
	if l.CallDetails != nil {
		cd := *l.CallDetails
		if cd.CallStartTime != nil {
			t := *cd.CallStartTime
			cd.CallStartTime = &t
		}
		cd.CallHistory = append([]CallRecord(nil), cd.CallHistory...)
		out.CallDetails = &cd
	}
	out.Notes = append([]Note(nil), l.Notes...)
	if l.AIInsights != nil {
		ai := *l.AIInsights
		ai.KeyPoints = append([]string(nil), ai.KeyPoints...)
		ai.RecommendedActions = append([]string(nil), ai.RecommendedActions...)
		out.AIInsights = &ai
	}
	return out
}

// PrependNote adds a note at the head of the list.
func (l *Lead) PrependNote(n Note) {
	l.Notes = append([]Note{n}, l.Notes...)
}

// AppendCall records a call at the head of the history, keeping the newest MaxCallHistory entries.
func (l *Lead) AppendCall(rec CallRecord) {
	if l.CallDetails == nil {
		l.CallDetails = &CallDetails{}
	}
	history := append([]CallRecord{rec}, l.CallDetails.CallHistory...)
	if len(history) > MaxCallHistory {
		history = history[:MaxCallHistory]
	}
	l.CallDetails.CallHistory = history
}

// CreateLeadRequest represents the request body for creating a lead
type CreateLeadRequest struct {
	CompanyID string     `json:"-"`
	FirstName string     `json:"first_name" validate:"max=100"`
	LastName  string     `json:"last_name" validate:"max=100"`
	Company   string     `json:"company" validate:"max=200"`
	Email     string     `json:"email" validate:"omitempty,email"`
	Phone     string     `json:"phone" validate:"omitempty,max=32"`
	Source    LeadSource `json:"source"`
	Status    LeadStatus `json:"status"`
	Note      string     `json:"note" validate:"max=4000"`
}

var validate = validator.New()

// Validate validates the create lead request
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.CompanyID) == "" {
		return ErrMissingCompanyID
	}
	if strings.TrimSpace(r.FirstName) == "" && strings.TrimSpace(r.LastName) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.Email) == "" && strings.TrimSpace(r.Phone) == "" {
		return ErrMissingContact
	}
	if r.Source != "" && (!r.Source.Valid() || r.Source == SourceIncomingCall) {
		return ErrInvalidSource
	}
	if r.Status != "" && !r.Status.Valid() {
		return ErrInvalidStatus
	}
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			if verrs[0].Field() == "Email" {
				return ErrInvalidEmail
			}
			return fmt.Errorf("%w: %s", ErrInvalidField, strings.ToLower(verrs[0].Field()))
		}
		return fmt.Errorf("leads: validate request: %w", err)
	}
	return nil
}
