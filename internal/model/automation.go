package model

import "time"

// ReminderType selects which entities an automation rule watches.
type ReminderType string

const (
	ReminderFollowupInactive ReminderType = "followup_inactive"
	ReminderProposalExpiring ReminderType = "proposal_expiring"
	ReminderTaskOverdue      ReminderType = "task_overdue"
)

// ActionType selects what an automation rule does for each match.
type ActionType string

const (
	ActionNotification ActionType = "notification"
	ActionEmail        ActionType = "email"
	ActionTask         ActionType = "task"
)

// Action config keys. Values are templates unless noted.
const (
	ConfigTitle       = "title"
	ConfigBody        = "body"
	ConfigSubject     = "subject"
	ConfigRecipient   = "recipient"
	ConfigDescription = "description"
	ConfigDueDays     = "due_days" // integer, not a template
	ConfigAssignee    = "assignee"
)

// AutomationRule is an admin-defined trigger/action pair.
type AutomationRule struct {
	ID           string            `json:"id"`
	TenantID     string            `json:"tenant_id"`
	Name         string            `json:"name"`
	ReminderType ReminderType      `json:"reminder_type"`
	TriggerDays  int               `json:"trigger_days"`
	ActionType   ActionType        `json:"action_type"`
	ActionConfig map[string]string `json:"action_config"`
	IsActive     bool              `json:"is_active"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// MarkerStatus is the delivery state of a fire marker.
type MarkerStatus string

const (
	MarkerPending MarkerStatus = "pending"
	MarkerFired   MarkerStatus = "fired"
	MarkerFailed  MarkerStatus = "failed"
)

// FireMarker records that a rule has actioned an entity. The (RuleID,
// EntityID) pair is unique; e-mail markers carry the rendered message until
// delivery succeeds.
type FireMarker struct {
	RuleID            string       `json:"rule_id"`
	EntityID          string       `json:"entity_id"`
	TenantID          string       `json:"tenant_id"`
	ActionType        ActionType   `json:"action_type"`
	Status            MarkerStatus `json:"status"`
	FiredAt           time.Time    `json:"fired_at"`
	Attempts          int          `json:"attempts"`
	NextAttemptAt     *time.Time   `json:"next_attempt_at,omitempty"`
	LastError         string       `json:"last_error,omitempty"`
	ProviderMessageID string       `json:"provider_message_id,omitempty"`
	Recipient         string       `json:"recipient,omitempty"`
	Subject           string       `json:"subject,omitempty"`
	Body              string       `json:"body,omitempty"`
}

// Key returns the idempotency key for the marker.
func (m *FireMarker) Key() string {
	return m.RuleID + ":" + m.EntityID
}

// Match is an entity selected by a rule's trigger condition. At is the date
// the condition was evaluated against (last contact, expiry or due date) and
// Vars feed the action templates.
type Match struct {
	EntityType string
	EntityID   string
	TenantID   string
	At         time.Time
	Vars       map[string]string
}
