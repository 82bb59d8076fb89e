package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"

	"github.com/olvconsultores/stratevo/internal/model"
)

// --- leads ---

const leadCols = `id, tenant_id, company_id, qualification_id, name, email, phone, status,
	last_contact_at, created_at`

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var status string
	var lastContact sql.NullTime
	if err := row.Scan(&l.ID, &l.TenantID, &l.CompanyID, &l.QualificationID, &l.Name, &l.Email,
		&l.Phone, &status, &lastContact, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Status = model.LeadStatus(status)
	l.LastContactAt = nullTime(lastContact)
	return &l, nil
}

func (s *queries) InsertLead(ctx context.Context, l *model.Lead) error {
	ensureID(&l.ID)
	if l.CreatedAt.IsZero() {
		l.CreatedAt = nowUTC()
	}
	if l.Status == "" {
		l.Status = model.LeadOpen
	}
	_, err := s.q.exec(ctx, `INSERT INTO leads (`+leadCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.TenantID, l.CompanyID, l.QualificationID, l.Name, l.Email, l.Phone,
		string(l.Status), utcPtr(l.LastContactAt), utc(l.CreatedAt))
	return eris.Wrapf(err, "store: insert lead %s", l.ID)
}

// SaveLead inserts a lead outside of a lifecycle transition.
func (s *queries) SaveLead(ctx context.Context, l *model.Lead) error {
	return s.InsertLead(ctx, l)
}

func (s *queries) SetLeadStatus(ctx context.Context, tenantID, id string, status model.LeadStatus) error {
	n, err := s.q.exec(ctx, `UPDATE leads SET status = ? WHERE tenant_id = ? AND id = ?`,
		string(status), tenantID, id)
	if err != nil {
		return eris.Wrapf(err, "store: set lead status %s", id)
	}
	return checkAffected(n, "lead", id)
}

func (s *queries) TouchLead(ctx context.Context, tenantID, id string, at time.Time) error {
	n, err := s.q.exec(ctx, `UPDATE leads SET last_contact_at = ? WHERE tenant_id = ? AND id = ?`,
		utc(at), tenantID, id)
	if err != nil {
		return eris.Wrapf(err, "store: touch lead %s", id)
	}
	return checkAffected(n, "lead", id)
}

func (s *queries) ListLeads(ctx context.Context, tenantID, companyID string) ([]model.Lead, error) {
	rows, err := s.q.query(ctx, `SELECT `+leadCols+` FROM leads
		WHERE tenant_id = ? AND company_id = ? ORDER BY created_at, id`, tenantID, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list leads")
	}
	defer rows.Close()

	var out []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan lead")
		}
		out = append(out, *l)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate leads")
}

// --- deals ---

const dealCols = `id, tenant_id, company_id, lead_id, qualification_id, title, stage, value,
	probability, stage_changed_at, closed_at, external_id, created_at`

func scanDeal(row scannable) (*model.Deal, error) {
	var d model.Deal
	var stage string
	var closed sql.NullTime
	if err := row.Scan(&d.ID, &d.TenantID, &d.CompanyID, &d.LeadID, &d.QualificationID, &d.Title,
		&stage, &d.Value, &d.Probability, &d.StageChangedAt, &closed, &d.ExternalID,
		&d.CreatedAt); err != nil {
		return nil, err
	}
	d.Stage = model.DealStage(stage)
	d.ClosedAt = nullTime(closed)
	return &d, nil
}

func (s *queries) InsertDeal(ctx context.Context, d *model.Deal) error {
	ensureID(&d.ID)
	now := nowUTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.StageChangedAt.IsZero() {
		d.StageChangedAt = now
	}
	_, err := s.q.exec(ctx, `INSERT INTO deals (`+dealCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.TenantID, d.CompanyID, d.LeadID, d.QualificationID, d.Title, string(d.Stage),
		d.Value, d.Probability, utc(d.StageChangedAt), utcPtr(d.ClosedAt), d.ExternalID,
		utc(d.CreatedAt))
	return eris.Wrapf(err, "store: insert deal %s", d.ID)
}

func (s *queries) GetDeal(ctx context.Context, tenantID, id string) (*model.Deal, error) {
	d, err := scanDeal(s.q.queryRow(ctx,
		`SELECT `+dealCols+` FROM deals WHERE tenant_id = ? AND id = ?`, tenantID, id))
	if err != nil {
		return nil, notFound(err, "deal", id)
	}
	return d, nil
}

// UpdateDeal writes a deal only while it is still at stage from. Zero
// matched rows is ErrConflict.
func (s *queries) UpdateDeal(ctx context.Context, d *model.Deal, from model.DealStage) error {
	n, err := s.q.exec(ctx, `UPDATE deals SET stage = ?, value = ?, probability = ?,
		stage_changed_at = ?, closed_at = ?, external_id = ?
		WHERE tenant_id = ? AND id = ? AND stage = ?`,
		string(d.Stage), d.Value, d.Probability, utc(d.StageChangedAt), utcPtr(d.ClosedAt),
		d.ExternalID, d.TenantID, d.ID, string(from))
	if err != nil {
		return eris.Wrapf(err, "store: update deal %s", d.ID)
	}
	return checkCurrent(n, "deal", d.ID)
}

func (s *queries) ListDeals(ctx context.Context, tenantID, companyID string) ([]model.Deal, error) {
	return s.listDeals(ctx, `SELECT `+dealCols+` FROM deals
		WHERE tenant_id = ? AND company_id = ? ORDER BY created_at, id`, tenantID, companyID)
}

// ListUnsyncedWonDeals returns won deals of every tenant that have not been
// exported to the CRM yet.
func (s *queries) ListUnsyncedWonDeals(ctx context.Context, limit int) ([]model.Deal, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.listDeals(ctx, `SELECT `+dealCols+` FROM deals
		WHERE stage = ? AND external_id = '' ORDER BY closed_at, id LIMIT ?`,
		string(model.StageClosedWon), limit)
}

func (s *queries) listDeals(ctx context.Context, query string, args ...any) ([]model.Deal, error) {
	rows, err := s.q.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list deals")
	}
	defer rows.Close()

	var out []model.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan deal")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate deals")
}

func (s *queries) SetDealExternalID(ctx context.Context, tenantID, id, externalID string) error {
	n, err := s.q.exec(ctx, `UPDATE deals SET external_id = ? WHERE tenant_id = ? AND id = ?`,
		externalID, tenantID, id)
	if err != nil {
		return eris.Wrapf(err, "store: set deal external id %s", id)
	}
	return checkAffected(n, "deal", id)
}

// --- proposals ---

func (s *queries) SaveProposal(ctx context.Context, p *model.Proposal) error {
	ensureID(&p.ID)
	if p.CreatedAt.IsZero() {
		p.CreatedAt = nowUTC()
	}
	if p.Status == "" {
		p.Status = model.ProposalDraft
	}
	_, err := s.q.exec(ctx, `INSERT INTO proposals (id, tenant_id, deal_id, title, recipient_name,
		recipient_email, status, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title,
		recipient_name = excluded.recipient_name, recipient_email = excluded.recipient_email,
		status = excluded.status, expires_at = excluded.expires_at`,
		p.ID, p.TenantID, p.DealID, p.Title, p.RecipientName, p.RecipientEmail, string(p.Status),
		utc(p.ExpiresAt), utc(p.CreatedAt))
	return eris.Wrapf(err, "store: save proposal %s", p.ID)
}

// --- tasks ---

const taskCols = `id, tenant_id, entity_type, entity_id, rule_id, title, description, assignee,
	due_at, completed_at, created_at`

func (s *queries) InsertTask(ctx context.Context, t *model.Task) error {
	ensureID(&t.ID)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = nowUTC()
	}
	_, err := s.q.exec(ctx, `INSERT INTO tasks (`+taskCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.TenantID, t.EntityType, t.EntityID, t.RuleID, t.Title, t.Description, t.Assignee,
		utc(t.DueAt), utcPtr(t.CompletedAt), utc(t.CreatedAt))
	return eris.Wrapf(err, "store: insert task %s", t.ID)
}

// SaveTask inserts or updates a task.
func (s *queries) SaveTask(ctx context.Context, t *model.Task) error {
	ensureID(&t.ID)
	if t.CreatedAt.IsZero() {
		t.CreatedAt = nowUTC()
	}
	_, err := s.q.exec(ctx, `INSERT INTO tasks (`+taskCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, description = excluded.description,
		assignee = excluded.assignee, due_at = excluded.due_at, completed_at = excluded.completed_at`,
		t.ID, t.TenantID, t.EntityType, t.EntityID, t.RuleID, t.Title, t.Description, t.Assignee,
		utc(t.DueAt), utcPtr(t.CompletedAt), utc(t.CreatedAt))
	return eris.Wrapf(err, "store: save task %s", t.ID)
}

func (s *queries) ListTasks(ctx context.Context, tenantID string) ([]model.Task, error) {
	rows, err := s.q.query(ctx, `SELECT `+taskCols+` FROM tasks WHERE tenant_id = ?
		ORDER BY due_at, id`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list tasks")
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		var t model.Task
		var completed sql.NullTime
		if err := rows.Scan(&t.ID, &t.TenantID, &t.EntityType, &t.EntityID, &t.RuleID, &t.Title,
			&t.Description, &t.Assignee, &t.DueAt, &completed, &t.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan task")
		}
		t.CompletedAt = nullTime(completed)
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate tasks")
}

// --- notifications ---

const notificationCols = `id, tenant_id, rule_id, entity_type, entity_id, title, body, read_at, created_at`

func (s *queries) InsertNotification(ctx context.Context, n *model.Notification) error {
	ensureID(&n.ID)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = nowUTC()
	}
	_, err := s.q.exec(ctx, `INSERT INTO notifications (`+notificationCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.TenantID, n.RuleID, n.EntityType, n.EntityID, n.Title, n.Body,
		utcPtr(n.ReadAt), utc(n.CreatedAt))
	return eris.Wrapf(err, "store: insert notification %s", n.ID)
}

func (s *queries) ListNotifications(ctx context.Context, tenantID string) ([]model.Notification, error) {
	rows, err := s.q.query(ctx, `SELECT `+notificationCols+` FROM notifications
		WHERE tenant_id = ? ORDER BY created_at, id`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list notifications")
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		var read sql.NullTime
		if err := rows.Scan(&n.ID, &n.TenantID, &n.RuleID, &n.EntityType, &n.EntityID, &n.Title,
			&n.Body, &read, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan notification")
		}
		n.ReadAt = nullTime(read)
		out = append(out, n)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate notifications")
}

// --- call insights ---

func (s *queries) SaveCallInsight(ctx context.Context, ci *model.CallInsight) error {
	ensureID(&ci.ID)
	if ci.CreatedAt.IsZero() {
		ci.CreatedAt = nowUTC()
	}
	if ci.RecordedAt.IsZero() {
		ci.RecordedAt = ci.CreatedAt
	}
	steps, err := toJSON(emptyIfNil(ci.NextSteps))
	if err != nil {
		return err
	}
	counts := ci.KeywordCounts
	if counts == nil {
		counts = map[string]int{}
	}
	countsJSON, err := toJSON(counts)
	if err != nil {
		return err
	}
	_, err = s.q.exec(ctx, `INSERT INTO call_insights (id, tenant_id, lead_id, company_id,
		external_id, summary, sentiment, next_steps, keyword_counts, duration_seconds,
		recorded_at, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ci.ID, ci.TenantID, ci.LeadID, ci.CompanyID, ci.ExternalID, ci.Summary, ci.Sentiment,
		steps, countsJSON, ci.DurationSeconds, utc(ci.RecordedAt), utc(ci.CreatedAt))
	return eris.Wrapf(err, "store: save call insight %s", ci.ID)
}
