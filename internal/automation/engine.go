// Package automation evaluates reminder rules on an externally scheduled
// tick. Each match is actioned at most once per rule: the (rule, entity)
// marker and the action intent commit in one transaction, and e-mail is
// delivered afterwards, keyed by the marker.
package automation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/model"
	"github.com/olvconsultores/stratevo/internal/resilience"
	"github.com/olvconsultores/stratevo/internal/store"
)

// ErrDelivery is matched by every *DeliveryError.
var ErrDelivery = errors.New("automation: delivery failed")

// ErrNotClaimed is returned by DeliverOne when another deliverer holds the
// marker's lease or has already settled it. Nothing was sent.
var ErrNotClaimed = errors.New("automation: delivery claimed elsewhere")

// DeliveryError records one failed send of a marker's e-mail.
type DeliveryError struct {
	Key      string
	Attempts int
	Final    bool
	Err      error
}

func (e *DeliveryError) Error() string {
	state := "will retry"
	if e.Final {
		state = "marked failed"
	}
	return fmt.Sprintf("automation: deliver %s attempt %d (%s): %v", e.Key, e.Attempts, state, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }

// Message is an e-mail handed to a Sender.
type Message struct {
	// IdempotencyKey is the marker key; providers deduplicate on it.
	IdempotencyKey string
	To             string
	Subject        string
	Body           string
}

// Sender delivers e-mail and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Store is the persistence the engine needs.
type Store interface {
	WithTx(ctx context.Context, fn func(tx store.Tx) error) error
	ListActiveRules(ctx context.Context) ([]model.AutomationRule, error)
	FindInactiveLeads(ctx context.Context, tenantID, ruleID string, cutoff time.Time) ([]model.Match, error)
	FindExpiringProposals(ctx context.Context, tenantID, ruleID string, from, until time.Time) ([]model.Match, error)
	FindOverdueTasks(ctx context.Context, tenantID, ruleID string, now time.Time) ([]model.Match, error)
	ListDueDeliveries(ctx context.Context, now time.Time, limit int) ([]model.FireMarker, error)
	ClaimDelivery(ctx context.Context, ruleID, entityID string, now, until time.Time) (bool, error)
	MarkDelivered(ctx context.Context, ruleID, entityID, providerMessageID string) error
	MarkDeliveryFailed(ctx context.Context, ruleID, entityID string, attempts int, lastErr string, next *time.Time, final bool) error
	ListFailedMarkers(ctx context.Context, tenantID string) ([]model.FireMarker, error)
	RetriggerMarker(ctx context.Context, tenantID, ruleID, entityID string) error
}

// Config tunes the engine.
type Config struct {
	// MaxAttempts bounds e-mail sends per marker before it is marked failed.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	// Backoff paces redelivery between ticks.
	Backoff resilience.RetryConfig `yaml:"backoff" mapstructure:"backoff"`
	// BatchSize caps the e-mails sent per Deliver call.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
	// DefaultDueDays applies to task actions without a due_days setting.
	DefaultDueDays int `yaml:"default_due_days" mapstructure:"default_due_days"`
	// SendTimeout bounds a single send.
	SendTimeout time.Duration `yaml:"send_timeout" mapstructure:"send_timeout"`
	// Lease is how long a claimed marker is hidden from other deliverers.
	// It must outlive SendTimeout.
	Lease time.Duration `yaml:"lease" mapstructure:"lease"`
}

// Engine evaluates rules and delivers their e-mail.
type Engine struct {
	store  Store
	sender Sender
	cfg    Config
	log    *zap.Logger
}

// New creates an Engine. sender may be nil when e-mail is not configured;
// e-mail markers then stay pending until an engine with a sender delivers them.
func New(st Store, sender Sender, cfg Config) *Engine {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.DefaultDueDays <= 0 {
		cfg.DefaultDueDays = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 5 * time.Minute
	}
	if cfg.Lease <= cfg.SendTimeout {
		cfg.Lease = 2 * cfg.SendTimeout
	}
	if cfg.Backoff.InitialBackoff <= 0 {
		cfg.Backoff.InitialBackoff = time.Minute
	}
	if cfg.Backoff.MaxBackoff <= 0 {
		cfg.Backoff.MaxBackoff = 6 * time.Hour
	}
	return &Engine{
		store:  st,
		sender: sender,
		cfg:    cfg,
		log:    zap.L().With(zap.String("component", "automation")),
	}
}

// TickSummary counts what one Tick did.
type TickSummary struct {
	Rules   int
	Matched int
	Fired   int
	// Skipped matches already carried a marker when the transaction ran.
	Skipped int
	Errors  int
}

// Tick evaluates every active rule at now. A failing rule or match is logged
// and counted; the rest of the tick continues.
func (e *Engine) Tick(ctx context.Context, now time.Time) (TickSummary, error) {
	now = now.UTC()
	var sum TickSummary

	rules, err := e.store.ListActiveRules(ctx)
	if err != nil {
		return sum, eris.Wrap(err, "automation: list rules")
	}

	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "automation: tick cancelled")
		}
		sum.Rules++

		matches, err := e.matches(ctx, rule, now)
		if err != nil {
			sum.Errors++
			e.log.Error("automation: evaluate rule", zap.String("rule_id", rule.ID), zap.Error(err))
			continue
		}
		sum.Matched += len(matches)

		for _, m := range matches {
			fired, err := e.fire(ctx, rule, m, now)
			switch {
			case err != nil:
				sum.Errors++
				e.log.Error("automation: fire",
					zap.String("rule_id", rule.ID),
					zap.String("entity_id", m.EntityID),
					zap.Error(err),
				)
			case fired:
				sum.Fired++
			default:
				sum.Skipped++
			}
		}
	}

	e.log.Info("automation: tick complete",
		zap.Time("now", now),
		zap.Int("rules", sum.Rules),
		zap.Int("matched", sum.Matched),
		zap.Int("fired", sum.Fired),
		zap.Int("skipped", sum.Skipped),
		zap.Int("errors", sum.Errors),
	)
	return sum, nil
}

// matches runs the rule's trigger query over its window.
func (e *Engine) matches(ctx context.Context, rule model.AutomationRule, now time.Time) ([]model.Match, error) {
	days := rule.TriggerDays
	if days < 0 {
		return nil, eris.Errorf("automation: rule %s has negative trigger_days", rule.ID)
	}
	span := time.Duration(days) * 24 * time.Hour

	switch rule.ReminderType {
	case model.ReminderFollowupInactive:
		return e.store.FindInactiveLeads(ctx, rule.TenantID, rule.ID, now.Add(-span))
	case model.ReminderProposalExpiring:
		return e.store.FindExpiringProposals(ctx, rule.TenantID, rule.ID, now, now.Add(span))
	case model.ReminderTaskOverdue:
		// trigger_days is a grace period; zero fires as soon as a task is late.
		return e.store.FindOverdueTasks(ctx, rule.TenantID, rule.ID, now.Add(-span))
	default:
		return nil, eris.Errorf("automation: rule %s has unknown reminder type %q", rule.ID, rule.ReminderType)
	}
}

// fire inserts the marker and the action intent in one transaction. It
// reports false when another tick already actioned the pair.
func (e *Engine) fire(ctx context.Context, rule model.AutomationRule, m model.Match, now time.Time) (bool, error) {
	vars := templateVars(rule, m, now)
	cfg := rule.ActionConfig

	marker := &model.FireMarker{
		RuleID:     rule.ID,
		EntityID:   m.EntityID,
		TenantID:   rule.TenantID,
		ActionType: rule.ActionType,
		Status:     model.MarkerFired,
		FiredAt:    now,
	}

	var intent func(ctx context.Context, tx store.Tx) error
	switch rule.ActionType {
	case model.ActionNotification:
		n := &model.Notification{
			TenantID:   rule.TenantID,
			RuleID:     rule.ID,
			EntityType: m.EntityType,
			EntityID:   m.EntityID,
			Title:      Render(withDefault(cfg[model.ConfigTitle], rule.Name), vars),
			Body:       Render(cfg[model.ConfigBody], vars),
			CreatedAt:  now,
		}
		intent = func(ctx context.Context, tx store.Tx) error { return tx.InsertNotification(ctx, n) }

	case model.ActionTask:
		dueDays, err := dueDaysOf(cfg, e.cfg.DefaultDueDays)
		if err != nil {
			return false, eris.Wrapf(err, "automation: rule %s", rule.ID)
		}
		t := &model.Task{
			TenantID:    rule.TenantID,
			EntityType:  m.EntityType,
			EntityID:    m.EntityID,
			RuleID:      rule.ID,
			Title:       Render(withDefault(cfg[model.ConfigTitle], rule.Name), vars),
			Description: Render(cfg[model.ConfigDescription], vars),
			Assignee:    Render(cfg[model.ConfigAssignee], vars),
			DueAt:       now.AddDate(0, 0, dueDays),
			CreatedAt:   now,
		}
		intent = func(ctx context.Context, tx store.Tx) error { return tx.InsertTask(ctx, t) }

	case model.ActionEmail:
		marker.Recipient = strings.TrimSpace(Render(withDefault(cfg[model.ConfigRecipient], "{{email}}"), vars))
		marker.Subject = Render(withDefault(cfg[model.ConfigSubject], rule.Name), vars)
		marker.Body = Render(cfg[model.ConfigBody], vars)
		marker.Status = model.MarkerPending
		if marker.Recipient == "" {
			// Nothing to send to; surface it in the failed queue right away.
			marker.Status = model.MarkerFailed
			marker.LastError = "no recipient for " + m.EntityType + " " + m.EntityID
		}

	default:
		return false, eris.Errorf("automation: rule %s has unknown action type %q", rule.ID, rule.ActionType)
	}

	var fired bool
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		inserted, err := tx.InsertMarker(ctx, marker)
		if err != nil || !inserted {
			return err
		}
		fired = true
		if intent == nil {
			return nil
		}
		return intent(ctx, tx)
	})
	if err != nil {
		return false, eris.Wrapf(err, "automation: fire %s", marker.Key())
	}
	return fired, nil
}

// DeliverySummary counts what one Deliver call did.
type DeliverySummary struct {
	Sent     int
	Retrying int
	Failed   int
	// Deferred sends were not attempted because the provider breaker is open.
	Deferred int
	// Skipped markers were claimed by a concurrent Deliver after listing.
	Skipped int
}

// Deliver sends the pending e-mail markers that are due at now. A failed
// send keeps the marker pending with a backoff until MaxAttempts, then marks
// it failed for the admin queue.
func (e *Engine) Deliver(ctx context.Context, now time.Time) (DeliverySummary, error) {
	now = now.UTC()
	var sum DeliverySummary
	if e.sender == nil {
		return sum, nil
	}

	due, err := e.store.ListDueDeliveries(ctx, now, e.cfg.BatchSize)
	if err != nil {
		return sum, eris.Wrap(err, "automation: list due deliveries")
	}

	for i := range due {
		if err := ctx.Err(); err != nil {
			return sum, eris.Wrap(err, "automation: delivery cancelled")
		}
		m := &due[i]
		err := e.DeliverOne(ctx, m, now)
		var de *DeliveryError
		switch {
		case err == nil:
			sum.Sent++
		case errors.Is(err, ErrNotClaimed):
			sum.Skipped++
		case errors.Is(err, resilience.ErrCircuitOpen):
			sum.Deferred = len(due) - i
			e.log.Warn("automation: e-mail provider unavailable, deferring", zap.Int("pending", sum.Deferred))
			return sum, nil
		case errors.As(err, &de) && de.Final:
			sum.Failed++
		case errors.As(err, &de):
			sum.Retrying++
		default:
			return sum, err
		}
	}
	return sum, nil
}

// DeliverOne claims a single pending marker, sends it and records the
// outcome. It returns ErrNotClaimed when the marker is leased or settled
// elsewhere and a *DeliveryError when the send failed and was recorded. A
// send deferred by an open breaker keeps the lease until it expires.
func (e *Engine) DeliverOne(ctx context.Context, m *model.FireMarker, now time.Time) error {
	now = now.UTC()
	claimed, err := e.store.ClaimDelivery(ctx, m.RuleID, m.EntityID, now, now.Add(e.cfg.Lease))
	if err != nil {
		return eris.Wrapf(err, "automation: claim %s", m.Key())
	}
	if !claimed {
		return ErrNotClaimed
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.SendTimeout)
	id, sendErr := e.sender.Send(sendCtx, Message{
		IdempotencyKey: m.Key(),
		To:             m.Recipient,
		Subject:        m.Subject,
		Body:           m.Body,
	})
	cancel()

	if sendErr == nil {
		if err := e.store.MarkDelivered(ctx, m.RuleID, m.EntityID, id); err != nil {
			return eris.Wrapf(err, "automation: record delivery %s", m.Key())
		}
		m.Status = model.MarkerFired
		m.ProviderMessageID = id
		return nil
	}
	if errors.Is(sendErr, resilience.ErrCircuitOpen) {
		return sendErr
	}

	attempts := m.Attempts + 1
	final := attempts >= e.cfg.MaxAttempts
	var next *time.Time
	if !final {
		at := now.Add(resilience.Backoff(attempts-1, e.cfg.Backoff))
		next = &at
	}
	if err := e.store.MarkDeliveryFailed(ctx, m.RuleID, m.EntityID, attempts, sendErr.Error(), next, final); err != nil {
		return eris.Wrapf(err, "automation: record failed delivery %s", m.Key())
	}

	m.Attempts = attempts
	m.LastError = sendErr.Error()
	m.NextAttemptAt = next
	if final {
		m.Status = model.MarkerFailed
		e.log.Error("automation: delivery failed permanently",
			zap.String("marker", m.Key()),
			zap.String("tenant_id", m.TenantID),
			zap.Int("attempts", attempts),
			zap.Error(sendErr),
		)
	} else {
		e.log.Warn("automation: delivery failed, will retry",
			zap.String("marker", m.Key()),
			zap.Int("attempts", attempts),
			zap.Error(sendErr),
		)
	}
	return &DeliveryError{Key: m.Key(), Attempts: attempts, Final: final, Err: sendErr}
}

// ListFailed returns the tenant's permanently failed markers.
func (e *Engine) ListFailed(ctx context.Context, tenantID string) ([]model.FireMarker, error) {
	out, err := e.store.ListFailedMarkers(ctx, tenantID)
	return out, eris.Wrap(err, "automation: list failed")
}

// Retrigger returns a failed marker to the delivery queue with a fresh
// attempt budget.
func (e *Engine) Retrigger(ctx context.Context, tenantID, ruleID, entityID string) error {
	if err := e.store.RetriggerMarker(ctx, tenantID, ruleID, entityID); err != nil {
		return eris.Wrapf(err, "automation: retrigger %s:%s", ruleID, entityID)
	}
	e.log.Info("automation: retriggered",
		zap.String("tenant_id", tenantID),
		zap.String("marker", ruleID+":"+entityID),
	)
	return nil
}

// templateVars extends the match vars with rule-level values. dias is the
// whole number of days between now and the match date.
func templateVars(rule model.AutomationRule, m model.Match, now time.Time) map[string]string {
	vars := make(map[string]string, len(m.Vars)+3)
	for k, v := range m.Vars {
		vars[k] = v
	}
	vars["dias"] = strconv.Itoa(daysBetween(m.At, now))
	vars["regra"] = rule.Name
	vars["prazo"] = strconv.Itoa(rule.TriggerDays)
	return vars
}

func daysBetween(a, b time.Time) int {
	if a.IsZero() {
		return 0
	}
	return int(math.Floor(math.Abs(b.Sub(a).Hours()) / 24))
}

func dueDaysOf(cfg map[string]string, def int) (int, error) {
	raw := strings.TrimSpace(cfg[model.ConfigDueDays])
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, eris.Errorf("invalid due_days %q", raw)
	}
	return n, nil
}

func withDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
