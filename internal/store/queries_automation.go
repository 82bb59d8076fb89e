package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/olvconsultores/stratevo/internal/model"
)

const dateLayout = "02/01/2006"

// --- rules ---

const ruleCols = `id, tenant_id, name, reminder_type, trigger_days, action_type, action_config,
	is_active, created_at, updated_at`

func (s *queries) SaveRule(ctx context.Context, r *model.AutomationRule) error {
	ensureID(&r.ID)
	now := nowUTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	cfg := r.ActionConfig
	if cfg == nil {
		cfg = map[string]string{}
	}
	cfgJSON, err := toJSON(cfg)
	if err != nil {
		return err
	}
	_, err = s.q.exec(ctx, `INSERT INTO automation_rules (`+ruleCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name,
		reminder_type = excluded.reminder_type, trigger_days = excluded.trigger_days,
		action_type = excluded.action_type, action_config = excluded.action_config,
		is_active = excluded.is_active, updated_at = excluded.updated_at`,
		r.ID, r.TenantID, r.Name, string(r.ReminderType), r.TriggerDays, string(r.ActionType),
		cfgJSON, r.IsActive, utc(r.CreatedAt), r.UpdatedAt)
	return eris.Wrapf(err, "store: save rule %s", r.ID)
}

func (s *queries) ListActiveRules(ctx context.Context) ([]model.AutomationRule, error) {
	rows, err := s.q.query(ctx, `SELECT `+ruleCols+` FROM automation_rules
		WHERE is_active = ? ORDER BY tenant_id, created_at, id`, true)
	if err != nil {
		return nil, eris.Wrap(err, "store: list active rules")
	}
	defer rows.Close()

	var out []model.AutomationRule
	for rows.Next() {
		var r model.AutomationRule
		var reminder, action, cfg string
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &reminder, &r.TriggerDays, &action,
			&cfg, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan rule")
		}
		r.ReminderType = model.ReminderType(reminder)
		r.ActionType = model.ActionType(action)
		if err := fromJSON(cfg, &r.ActionConfig); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate rules")
}

// --- trigger finders ---

// notMarkedFor excludes rows that already carry a marker for the rule bound
// to the trailing placeholder.
func notMarkedFor(col string) string {
	return `NOT EXISTS (SELECT 1 FROM automation_markers m WHERE m.rule_id = ? AND m.entity_id = ` + col + `)`
}

func (s *queries) FindInactiveLeads(ctx context.Context, tenantID, ruleID string, cutoff time.Time) ([]model.Match, error) {
	cutoff = utc(cutoff)
	rows, err := s.q.query(ctx, `SELECT l.id, l.name, l.email, l.phone, l.last_contact_at,
		l.created_at, c.name
		FROM leads l JOIN companies c ON c.id = l.company_id
		WHERE l.tenant_id = ? AND l.status = ?
		AND ((l.last_contact_at IS NOT NULL AND l.last_contact_at <= ?)
			OR (l.last_contact_at IS NULL AND l.created_at <= ?))
		AND `+notMarkedFor("l.id")+`
		ORDER BY l.id`,
		tenantID, string(model.LeadOpen), cutoff, cutoff, ruleID)
	if err != nil {
		return nil, eris.Wrap(err, "store: find inactive leads")
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		var id, name, email, phone, company string
		var lastContact sql.NullTime
		var created time.Time
		if err := rows.Scan(&id, &name, &email, &phone, &lastContact, &created, &company); err != nil {
			return nil, eris.Wrap(err, "store: scan inactive lead")
		}
		at := created
		if lastContact.Valid {
			at = lastContact.Time
		}
		out = append(out, model.Match{
			EntityType: "lead",
			EntityID:   id,
			TenantID:   tenantID,
			At:         at.UTC(),
			Vars: map[string]string{
				"nome":           name,
				"email":          email,
				"telefone":       phone,
				"empresa":        company,
				"ultimo_contato": at.Format(dateLayout),
			},
		})
	}
	return out, eris.Wrap(rows.Err(), "store: iterate inactive leads")
}

func (s *queries) FindExpiringProposals(ctx context.Context, tenantID, ruleID string, from, until time.Time) ([]model.Match, error) {
	rows, err := s.q.query(ctx, `SELECT p.id, p.title, p.recipient_name, p.recipient_email,
		p.expires_at, c.name
		FROM proposals p
		JOIN deals d ON d.id = p.deal_id
		JOIN companies c ON c.id = d.company_id
		WHERE p.tenant_id = ? AND p.status = ? AND p.expires_at >= ? AND p.expires_at <= ?
		AND `+notMarkedFor("p.id")+`
		ORDER BY p.expires_at, p.id`,
		tenantID, string(model.ProposalSent), utc(from), utc(until), ruleID)
	if err != nil {
		return nil, eris.Wrap(err, "store: find expiring proposals")
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		var id, title, name, email, company string
		var expires time.Time
		if err := rows.Scan(&id, &title, &name, &email, &expires, &company); err != nil {
			return nil, eris.Wrap(err, "store: scan expiring proposal")
		}
		out = append(out, model.Match{
			EntityType: "proposal",
			EntityID:   id,
			TenantID:   tenantID,
			At:         expires.UTC(),
			Vars: map[string]string{
				"nome":       name,
				"email":      email,
				"empresa":    company,
				"titulo":     title,
				"vencimento": expires.Format(dateLayout),
			},
		})
	}
	return out, eris.Wrap(rows.Err(), "store: iterate expiring proposals")
}

func (s *queries) FindOverdueTasks(ctx context.Context, tenantID, ruleID string, now time.Time) ([]model.Match, error) {
	rows, err := s.q.query(ctx, `SELECT t.id, t.title, t.assignee, t.due_at
		FROM tasks t
		WHERE t.tenant_id = ? AND t.completed_at IS NULL AND t.due_at < ?
		AND `+notMarkedFor("t.id")+`
		ORDER BY t.due_at, t.id`,
		tenantID, utc(now), ruleID)
	if err != nil {
		return nil, eris.Wrap(err, "store: find overdue tasks")
	}
	defer rows.Close()

	var out []model.Match
	for rows.Next() {
		var id, title, assignee string
		var due time.Time
		if err := rows.Scan(&id, &title, &assignee, &due); err != nil {
			return nil, eris.Wrap(err, "store: scan overdue task")
		}
		vars := map[string]string{
			"nome":        assignee,
			"titulo":      title,
			"responsavel": assignee,
			"vencimento":  due.Format(dateLayout),
		}
		if strings.Contains(assignee, "@") {
			vars["email"] = assignee
		}
		out = append(out, model.Match{
			EntityType: "task",
			EntityID:   id,
			TenantID:   tenantID,
			At:         due.UTC(),
			Vars:       vars,
		})
	}
	return out, eris.Wrap(rows.Err(), "store: iterate overdue tasks")
}

// --- fire markers ---

const markerCols = `rule_id, entity_id, tenant_id, action_type, status, fired_at, attempts,
	next_attempt_at, last_error, provider_message_id, recipient, subject, body`

func scanMarker(row scannable) (*model.FireMarker, error) {
	var m model.FireMarker
	var action, status string
	var next sql.NullTime
	if err := row.Scan(&m.RuleID, &m.EntityID, &m.TenantID, &action, &status, &m.FiredAt,
		&m.Attempts, &next, &m.LastError, &m.ProviderMessageID, &m.Recipient, &m.Subject,
		&m.Body); err != nil {
		return nil, err
	}
	m.ActionType = model.ActionType(action)
	m.Status = model.MarkerStatus(status)
	m.NextAttemptAt = nullTime(next)
	return &m, nil
}

func (s *queries) InsertMarker(ctx context.Context, m *model.FireMarker) (bool, error) {
	if m.FiredAt.IsZero() {
		m.FiredAt = nowUTC()
	}
	n, err := s.q.exec(ctx, `INSERT INTO automation_markers (`+markerCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (rule_id, entity_id) DO NOTHING`,
		m.RuleID, m.EntityID, m.TenantID, string(m.ActionType), string(m.Status), utc(m.FiredAt),
		m.Attempts, utcPtr(m.NextAttemptAt), m.LastError, m.ProviderMessageID, m.Recipient,
		m.Subject, m.Body)
	if err != nil {
		return false, eris.Wrapf(err, "store: insert marker %s", m.Key())
	}
	return n == 1, nil
}

func (s *queries) GetMarker(ctx context.Context, ruleID, entityID string) (*model.FireMarker, error) {
	m, err := scanMarker(s.q.queryRow(ctx, `SELECT `+markerCols+` FROM automation_markers
		WHERE rule_id = ? AND entity_id = ?`, ruleID, entityID))
	if err != nil {
		return nil, notFound(err, "marker", ruleID+":"+entityID)
	}
	return m, nil
}

func (s *queries) listMarkers(ctx context.Context, query string, args ...any) ([]model.FireMarker, error) {
	rows, err := s.q.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list markers")
	}
	defer rows.Close()

	var out []model.FireMarker
	for rows.Next() {
		m, err := scanMarker(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan marker")
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate markers")
}

// ListDueDeliveries returns pending e-mail markers whose next attempt is due.
func (s *queries) ListDueDeliveries(ctx context.Context, now time.Time, limit int) ([]model.FireMarker, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.listMarkers(ctx, `SELECT `+markerCols+` FROM automation_markers
		WHERE status = ? AND action_type = ?
		AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY fired_at, rule_id, entity_id LIMIT ?`,
		string(model.MarkerPending), string(model.ActionEmail), utc(now), limit)
}

func (s *queries) ListFailedMarkers(ctx context.Context, tenantID string) ([]model.FireMarker, error) {
	return s.listMarkers(ctx, `SELECT `+markerCols+` FROM automation_markers
		WHERE tenant_id = ? AND status = ? ORDER BY fired_at, rule_id, entity_id`,
		tenantID, string(model.MarkerFailed))
}

// ClaimDelivery pushes next_attempt_at of a due pending marker to until so
// concurrent Deliver runs skip it while this one sends.
func (s *queries) ClaimDelivery(ctx context.Context, ruleID, entityID string, now, until time.Time) (bool, error) {
	n, err := s.q.exec(ctx, `UPDATE automation_markers SET next_attempt_at = ?
		WHERE rule_id = ? AND entity_id = ? AND status = ?
		AND (next_attempt_at IS NULL OR next_attempt_at <= ?)`,
		utc(until), ruleID, entityID, string(model.MarkerPending), utc(now))
	if err != nil {
		return false, eris.Wrapf(err, "store: claim delivery %s:%s", ruleID, entityID)
	}
	return n == 1, nil
}

func (s *queries) MarkDelivered(ctx context.Context, ruleID, entityID, providerMessageID string) error {
	n, err := s.q.exec(ctx, `UPDATE automation_markers SET status = ?, provider_message_id = ?,
		attempts = attempts + 1, next_attempt_at = NULL, last_error = ''
		WHERE rule_id = ? AND entity_id = ? AND status = ?`,
		string(model.MarkerFired), providerMessageID, ruleID, entityID, string(model.MarkerPending))
	if err != nil {
		return eris.Wrapf(err, "store: mark delivered %s:%s", ruleID, entityID)
	}
	return checkAffected(n, "pending marker", ruleID+":"+entityID)
}

// MarkDeliveryFailed records a failed attempt. With final set the marker
// becomes permanently failed; otherwise it stays pending until next.
func (s *queries) MarkDeliveryFailed(ctx context.Context, ruleID, entityID string, attempts int, lastErr string, next *time.Time, final bool) error {
	status := model.MarkerPending
	if final {
		status = model.MarkerFailed
		next = nil
	}
	n, err := s.q.exec(ctx, `UPDATE automation_markers SET status = ?, attempts = ?,
		last_error = ?, next_attempt_at = ?
		WHERE rule_id = ? AND entity_id = ? AND status = ?`,
		string(status), attempts, lastErr, utcPtr(next), ruleID, entityID, string(model.MarkerPending))
	if err != nil {
		return eris.Wrapf(err, "store: mark delivery failed %s:%s", ruleID, entityID)
	}
	return checkAffected(n, "pending marker", ruleID+":"+entityID)
}

// RetriggerMarker puts a permanently failed marker back in the delivery
// queue with a fresh attempt budget.
func (s *queries) RetriggerMarker(ctx context.Context, tenantID, ruleID, entityID string) error {
	n, err := s.q.exec(ctx, `UPDATE automation_markers SET status = ?, attempts = 0,
		next_attempt_at = NULL WHERE tenant_id = ? AND rule_id = ? AND entity_id = ? AND status = ?`,
		string(model.MarkerPending), tenantID, ruleID, entityID, string(model.MarkerFailed))
	if err != nil {
		return eris.Wrapf(err, "store: retrigger marker %s:%s", ruleID, entityID)
	}
	return checkAffected(n, "failed marker", ruleID+":"+entityID)
}

func (s *queries) CountMarkers(ctx context.Context) (MarkerCounts, error) {
	var counts MarkerCounts
	rows, err := s.q.query(ctx, `SELECT status, COUNT(*) FROM automation_markers GROUP BY status`)
	if err != nil {
		return counts, eris.Wrap(err, "store: count markers")
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return counts, eris.Wrap(err, "store: scan marker count")
		}
		switch model.MarkerStatus(status) {
		case model.MarkerPending:
			counts.Pending = n
		case model.MarkerFired:
			counts.Fired = n
		case model.MarkerFailed:
			counts.Failed = n
		}
	}
	return counts, eris.Wrap(rows.Err(), "store: iterate marker counts")
}
