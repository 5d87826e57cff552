package archive

import "time"

const recordVersion = "1.0"

// LeadRecord is the scrubbed copy of a deleted lead kept in the archive bucket.
type LeadRecord struct {
	Version   string    `json:"version"`
	LeadID    string    `json:"lead_id"`
	CompanyID string    `json:"company_id"`
	PhoneHash string    `json:"phone_hash,omitempty"` // sha256 of phone
	Status    string    `json:"status"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	DeletedAt time.Time `json:"deleted_at"`

	ConversationID string   `json:"conversation_id,omitempty"`
	CallCount      int      `json:"call_count"`
	Summary        string   `json:"summary,omitempty"`
	Notes          []string `json:"notes,omitempty"`
	InsightSummary string   `json:"insight_summary,omitempty"`
}

// ManifestEntry is one JSONL line in a company's monthly manifest file.
type ManifestEntry struct {
	LeadID     string `json:"lead_id"`
	S3Key      string `json:"s3_key"`
	Source     string `json:"source"`
	Status     string `json:"status"`
	DeletedAt  string `json:"deleted_at"`
	HasSummary bool   `json:"has_summary"`
}
