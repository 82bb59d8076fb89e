// Package store persists companies, qualification results, CRM records and
// automation state.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/olvconsultores/stratevo/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a guarded update finds the row no longer in
// the expected state because a concurrent transaction moved it first.
var ErrConflict = errors.New("store: concurrent update")

// CompanyFilter narrows company listings.
type CompanyFilter struct {
	Status model.PipelineStatus
	IDs    []string
	Limit  int
	Offset int
}

// ResultFilter narrows qualification result listings.
type ResultFilter struct {
	Status model.PipelineStatus
	ICPID  string
	Limit  int
}

// MarkerCounts summarises fire markers by status.
type MarkerCounts struct {
	Pending int
	Fired   int
	Failed  int
}

// Tx is the set of writes that must commit together. Lifecycle transitions
// and automation firings each run inside one Tx.
type Tx interface {
	GetCompany(ctx context.Context, tenantID, id string) (*model.Company, error)
	SetCompanyStatus(ctx context.Context, tenantID, id string, status model.PipelineStatus) error

	GetResult(ctx context.Context, tenantID, id string) (*model.QualificationResult, error)
	InsertResult(ctx context.Context, r *model.QualificationResult) error
	// UpdateResult and UpdateDeal are compare-and-set on the current
	// status or stage and return ErrConflict when it has changed.
	UpdateResult(ctx context.Context, r *model.QualificationResult, from model.PipelineStatus) error
	DeleteResult(ctx context.Context, tenantID, id string) error

	InsertLead(ctx context.Context, l *model.Lead) error
	SetLeadStatus(ctx context.Context, tenantID, id string, status model.LeadStatus) error
	InsertDeal(ctx context.Context, d *model.Deal) error
	GetDeal(ctx context.Context, tenantID, id string) (*model.Deal, error)
	UpdateDeal(ctx context.Context, d *model.Deal, from model.DealStage) error

	InsertEvent(ctx context.Context, e *model.PipelineEvent) error

	// InsertMarker inserts the marker unless one already exists for the
	// (rule, entity) pair. It reports whether the row was inserted.
	InsertMarker(ctx context.Context, m *model.FireMarker) (bool, error)
	InsertNotification(ctx context.Context, n *model.Notification) error
	InsertTask(ctx context.Context, t *model.Task) error
}

// Store defines the persistence interface.
type Store interface {
	// WithTx runs fn in a single transaction, committing only if fn
	// returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Companies
	UpsertCompanies(ctx context.Context, companies []model.Company) (int, error)
	GetCompany(ctx context.Context, tenantID, id string) (*model.Company, error)
	ListCompanies(ctx context.Context, tenantID string, filter CompanyFilter) ([]model.Company, error)
	UpdateCompanyEnrichment(ctx context.Context, c *model.Company) error

	// ICPs
	SaveICP(ctx context.Context, icp *model.ICP) error
	GetICP(ctx context.Context, tenantID, id string) (*model.ICP, error)

	// Qualification results
	GetResult(ctx context.Context, tenantID, id string) (*model.QualificationResult, error)
	LatestResult(ctx context.Context, tenantID, companyID, icpID string) (*model.QualificationResult, error)
	ListResults(ctx context.Context, tenantID string, filter ResultFilter) ([]model.QualificationResult, error)
	ListEvents(ctx context.Context, tenantID, entityID string) ([]model.PipelineEvent, error)
	CountStaleQuarantine(ctx context.Context, olderThan time.Time) (int, error)

	// CRM
	GetDeal(ctx context.Context, tenantID, id string) (*model.Deal, error)
	ListLeads(ctx context.Context, tenantID, companyID string) ([]model.Lead, error)
	ListDeals(ctx context.Context, tenantID, companyID string) ([]model.Deal, error)
	ListUnsyncedWonDeals(ctx context.Context, limit int) ([]model.Deal, error)
	SetDealExternalID(ctx context.Context, tenantID, id, externalID string) error
	TouchLead(ctx context.Context, tenantID, id string, at time.Time) error
	SaveLead(ctx context.Context, l *model.Lead) error
	SaveProposal(ctx context.Context, p *model.Proposal) error
	SaveTask(ctx context.Context, t *model.Task) error
	ListTasks(ctx context.Context, tenantID string) ([]model.Task, error)
	ListNotifications(ctx context.Context, tenantID string) ([]model.Notification, error)
	SaveCallInsight(ctx context.Context, ci *model.CallInsight) error

	// Automation
	SaveRule(ctx context.Context, r *model.AutomationRule) error
	ListActiveRules(ctx context.Context) ([]model.AutomationRule, error)
	// Finders skip entities that already carry a marker for ruleID.
	FindInactiveLeads(ctx context.Context, tenantID, ruleID string, cutoff time.Time) ([]model.Match, error)
	FindExpiringProposals(ctx context.Context, tenantID, ruleID string, from, until time.Time) ([]model.Match, error)
	FindOverdueTasks(ctx context.Context, tenantID, ruleID string, now time.Time) ([]model.Match, error)
	ListDueDeliveries(ctx context.Context, now time.Time, limit int) ([]model.FireMarker, error)
	// ClaimDelivery leases a due pending marker until the given time. It
	// reports false when another deliverer holds or already settled it.
	ClaimDelivery(ctx context.Context, ruleID, entityID string, now, until time.Time) (bool, error)
	MarkDelivered(ctx context.Context, ruleID, entityID, providerMessageID string) error
	MarkDeliveryFailed(ctx context.Context, ruleID, entityID string, attempts int, lastErr string, next *time.Time, final bool) error
	ListFailedMarkers(ctx context.Context, tenantID string) ([]model.FireMarker, error)
	GetMarker(ctx context.Context, ruleID, entityID string) (*model.FireMarker, error)
	RetriggerMarker(ctx context.Context, tenantID, ruleID, entityID string) error
	CountMarkers(ctx context.Context) (MarkerCounts, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
