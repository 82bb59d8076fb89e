package model

import "time"

// EventAction classifies a pipeline audit event.
type EventAction string

const (
	EventTransition      EventAction = "transition"
	EventRestoreOverride EventAction = "restore_override"
	EventPurge           EventAction = "purge"
)

// PipelineEvent is an append-only audit record of a status change.
type PipelineEvent struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	CompanyID  string         `json:"company_id"`
	Action     EventAction    `json:"action"`
	FromStatus PipelineStatus `json:"from_status"`
	ToStatus   PipelineStatus `json:"to_status"`
	Actor      string         `json:"actor,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// CallInsight is the analysis of a recorded sales call.
type CallInsight struct {
	ID              string         `json:"id"`
	TenantID        string         `json:"tenant_id"`
	LeadID          string         `json:"lead_id,omitempty"`
	CompanyID       string         `json:"company_id,omitempty"`
	ExternalID      string         `json:"external_id,omitempty"`
	Summary         string         `json:"summary"`
	Sentiment       string         `json:"sentiment"`
	NextSteps       []string       `json:"next_steps,omitempty"`
	KeywordCounts   map[string]int `json:"keyword_counts,omitempty"`
	DurationSeconds int            `json:"duration_seconds,omitempty"`
	RecordedAt      time.Time      `json:"recorded_at"`
	CreatedAt       time.Time      `json:"created_at"`
}
