package model

import (
	"math"
	"time"
)

// LeadStatus tracks a lead after conversion from an approved prospect.
type LeadStatus string

const (
	LeadOpen      LeadStatus = "open"
	LeadConverted LeadStatus = "converted"
	LeadLost      LeadStatus = "lost"
)

// Lead is created when a qualified prospect is approved.
type Lead struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	CompanyID       string     `json:"company_id"`
	QualificationID string     `json:"qualification_id"`
	Name            string     `json:"name"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Status          LeadStatus `json:"status"`
	LastContactAt   *time.Time `json:"last_contact_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Deal is an opportunity moving through the sales stages.
type Deal struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	CompanyID       string     `json:"company_id"`
	LeadID          string     `json:"lead_id"`
	QualificationID string     `json:"qualification_id"`
	Title           string     `json:"title"`
	Stage           DealStage  `json:"stage"`
	Value           float64    `json:"value"`
	Probability     float64    `json:"probability"`
	StageChangedAt  time.Time  `json:"stage_changed_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	ExternalID      string     `json:"external_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Status returns the deal's pipeline status.
func (d *Deal) Status() PipelineStatus {
	return d.Stage.Status()
}

// DaysInStage returns the whole days elapsed since the last stage change.
func (d *Deal) DaysInStage(now time.Time) int {
	if d.StageChangedAt.IsZero() || now.Before(d.StageChangedAt) {
		return 0
	}
	return int(math.Floor(now.Sub(d.StageChangedAt).Hours() / 24))
}

// StageProbability is the default win probability assigned on entering a stage.
var StageProbability = map[DealStage]float64{
	StageDiscovery:     10,
	StageQualification: 25,
	StageProposal:      50,
	StageNegotiation:   75,
	StageClosedWon:     100,
	StageClosedLost:    0,
}

// ProposalStatus tracks a commercial proposal.
type ProposalStatus string

const (
	ProposalDraft    ProposalStatus = "draft"
	ProposalSent     ProposalStatus = "sent"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
)

// Proposal is an offer sent for a deal.
type Proposal struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	DealID         string         `json:"deal_id"`
	Title          string         `json:"title"`
	RecipientName  string         `json:"recipient_name,omitempty"`
	RecipientEmail string         `json:"recipient_email,omitempty"`
	Status         ProposalStatus `json:"status"`
	ExpiresAt      time.Time      `json:"expires_at"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Task is a to-do attached to a pipeline entity.
type Task struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	EntityType  string     `json:"entity_type,omitempty"`
	EntityID    string     `json:"entity_id,omitempty"`
	RuleID      string     `json:"rule_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	DueAt       time.Time  `json:"due_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Notification is a user-visible alert.
type Notification struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	RuleID     string     `json:"rule_id,omitempty"`
	EntityType string     `json:"entity_type,omitempty"`
	EntityID   string     `json:"entity_id,omitempty"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
