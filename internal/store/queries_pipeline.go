package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/olvconsultores/stratevo/internal/model"
)

// queries holds every statement shared by the SQLite and Postgres stores.
// The same value serves plain reads (bound to the pool) and transactions
// (bound to the tx).
type queries struct {
	q querier
}

func utc(t time.Time) time.Time { return t.UTC() }

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func notFound(err error, entity, id string) error {
	if isNoRows(err) {
		return eris.Wrapf(ErrNotFound, "store: %s %s", entity, id)
	}
	return eris.Wrapf(err, "store: get %s %s", entity, id)
}

func checkAffected(n int64, entity, id string) error {
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "store: %s %s", entity, id)
	}
	return nil
}

// checkCurrent reports a compare-and-set update that matched no row.
func checkCurrent(n int64, entity, id string) error {
	if n == 0 {
		return eris.Wrapf(ErrConflict, "store: %s %s", entity, id)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// --- companies ---

const companyCols = `id, tenant_id, name, tax_id, tax_id_validated, sector, state, city,
	employees_min, employees_max, capital, digital_maturity, technologies, source,
	source_meta, pipeline_status, created_at, updated_at`

func scanCompany(row scannable) (*model.Company, error) {
	var c model.Company
	var techs, meta, source, status string
	var maturity sql.NullFloat64

	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.TaxID, &c.TaxIDValidated, &c.Sector,
		&c.State, &c.City, &c.EmployeesMin, &c.EmployeesMax, &c.Capital, &maturity, &techs,
		&source, &meta, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if maturity.Valid {
		v := maturity.Float64
		c.DigitalMaturity = &v
	}
	c.Source = model.CompanySource(source)
	c.PipelineStatus = model.PipelineStatus(status)
	if err := fromJSON(techs, &c.Technologies); err != nil {
		return nil, err
	}
	if err := fromJSON(meta, &c.SourceMeta); err != nil {
		return nil, err
	}
	return &c, nil
}

func companyArgs(c *model.Company) ([]any, error) {
	techs, err := toJSON(emptyIfNil(c.Technologies))
	if err != nil {
		return nil, err
	}
	meta := c.SourceMeta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := toJSON(meta)
	if err != nil {
		return nil, err
	}
	var maturity any
	if c.DigitalMaturity != nil {
		maturity = *c.DigitalMaturity
	}
	return []any{
		c.ID, c.TenantID, c.Name, c.TaxID, c.TaxIDValidated, c.Sector, c.State, c.City,
		c.EmployeesMin, c.EmployeesMax, c.Capital, maturity, techs, string(c.Source),
		metaJSON, string(c.PipelineStatus), dedupeKey(c), utc(c.CreatedAt), utc(c.UpdatedAt),
	}, nil
}

// prepareCompany assigns defaults before an insert.
func prepareCompany(c *model.Company) {
	ensureID(&c.ID)
	now := nowUTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.PipelineStatus == "" {
		c.PipelineStatus = model.StatusNew
	}
}

const upsertCompanySQL = `INSERT INTO companies (id, tenant_id, name, tax_id, tax_id_validated, sector,
	state, city, employees_min, employees_max, capital, digital_maturity, technologies, source,
	source_meta, pipeline_status, dedupe_key, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (tenant_id, dedupe_key) DO UPDATE SET
	name = excluded.name, tax_id = excluded.tax_id, sector = excluded.sector,
	state = excluded.state, city = excluded.city, employees_min = excluded.employees_min,
	employees_max = excluded.employees_max, capital = excluded.capital,
	digital_maturity = excluded.digital_maturity, technologies = excluded.technologies,
	source = excluded.source, source_meta = excluded.source_meta, updated_at = excluded.updated_at
	RETURNING id`

func (s *queries) upsertCompany(ctx context.Context, c *model.Company) error {
	prepareCompany(c)
	args, err := companyArgs(c)
	if err != nil {
		return err
	}
	// On conflict the existing row keeps its id; hand it back to the caller.
	err = s.q.queryRow(ctx, upsertCompanySQL, args...).Scan(&c.ID)
	return eris.Wrapf(err, "store: upsert company %s", c.Name)
}

func (s *queries) GetCompany(ctx context.Context, tenantID, id string) (*model.Company, error) {
	c, err := scanCompany(s.q.queryRow(ctx,
		`SELECT `+companyCols+` FROM companies WHERE tenant_id = ? AND id = ?`, tenantID, id))
	if err != nil {
		return nil, notFound(err, "company", id)
	}
	return c, nil
}

func (s *queries) SetCompanyStatus(ctx context.Context, tenantID, id string, status model.PipelineStatus) error {
	n, err := s.q.exec(ctx,
		`UPDATE companies SET pipeline_status = ?, updated_at = ? WHERE tenant_id = ? AND id = ?`,
		string(status), nowUTC(), tenantID, id)
	if err != nil {
		return eris.Wrapf(err, "store: set company status %s", id)
	}
	return checkAffected(n, "company", id)
}

func (s *queries) ListCompanies(ctx context.Context, tenantID string, filter CompanyFilter) ([]model.Company, error) {
	query := `SELECT ` + companyCols + ` FROM companies WHERE tenant_id = ?`
	args := []any{tenantID}
	if filter.Status != "" {
		query += ` AND pipeline_status = ?`
		args = append(args, string(filter.Status))
	}
	if len(filter.IDs) > 0 {
		query += ` AND id IN (` + placeholders(len(filter.IDs)) + `)`
		for _, id := range filter.IDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.q.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate companies")
}

func (s *queries) UpdateCompanyEnrichment(ctx context.Context, c *model.Company) error {
	techs, err := toJSON(emptyIfNil(c.Technologies))
	if err != nil {
		return err
	}
	meta := c.SourceMeta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := toJSON(meta)
	if err != nil {
		return err
	}
	var maturity any
	if c.DigitalMaturity != nil {
		maturity = *c.DigitalMaturity
	}
	c.UpdatedAt = nowUTC()

	n, err := s.q.exec(ctx, `UPDATE companies SET tax_id = ?, tax_id_validated = ?, sector = ?,
		state = ?, city = ?, employees_min = ?, employees_max = ?, capital = ?,
		digital_maturity = ?, technologies = ?, source_meta = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?`,
		c.TaxID, c.TaxIDValidated, c.Sector, c.State, c.City, c.EmployeesMin, c.EmployeesMax,
		c.Capital, maturity, techs, metaJSON, c.UpdatedAt, c.TenantID, c.ID)
	if err != nil {
		return eris.Wrapf(err, "store: update company enrichment %s", c.ID)
	}
	return checkAffected(n, "company", c.ID)
}

// --- ICPs ---

func (s *queries) SaveICP(ctx context.Context, icp *model.ICP) error {
	ensureID(&icp.ID)
	now := nowUTC()
	if icp.CreatedAt.IsZero() {
		icp.CreatedAt = now
	}
	icp.UpdatedAt = now
	def, err := toJSON(icp)
	if err != nil {
		return err
	}
	_, err = s.q.exec(ctx, `INSERT INTO icps (id, tenant_id, name, definition, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, definition = excluded.definition,
		updated_at = excluded.updated_at`,
		icp.ID, icp.TenantID, icp.Name, def, icp.CreatedAt, icp.UpdatedAt)
	return eris.Wrapf(err, "store: save icp %s", icp.ID)
}

func (s *queries) GetICP(ctx context.Context, tenantID, id string) (*model.ICP, error) {
	var def string
	err := s.q.queryRow(ctx, `SELECT definition FROM icps WHERE tenant_id = ? AND id = ?`, tenantID, id).Scan(&def)
	if err != nil {
		return nil, notFound(err, "icp", id)
	}
	var icp model.ICP
	if err := fromJSON(def, &icp); err != nil {
		return nil, err
	}
	return &icp, nil
}

// --- qualification results ---

const resultCols = `id, tenant_id, company_id, icp_id, fit_score, grade, sector_fit_score,
	geo_fit_score, capital_fit_score, maturity_score, product_similarity_score, criteria,
	pipeline_status, discard_reason, restore_count, created_at, approved_at, discarded_at, updated_at`

func scanResult(row scannable) (*model.QualificationResult, error) {
	var r model.QualificationResult
	var grade, criteria, status string
	var approved, discarded sql.NullTime

	err := row.Scan(&r.ID, &r.TenantID, &r.CompanyID, &r.ICPID, &r.FitScore, &grade,
		&r.SectorFit, &r.GeoFit, &r.CapitalFit, &r.MaturityFit, &r.ProductSimilarity,
		&criteria, &status, &r.DiscardReason, &r.RestoreCount, &r.CreatedAt, &approved,
		&discarded, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Grade = model.Grade(grade)
	r.Status = model.PipelineStatus(status)
	r.ApprovedAt = nullTime(approved)
	r.DiscardedAt = nullTime(discarded)
	if err := fromJSON(criteria, &r.Criteria); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *queries) GetResult(ctx context.Context, tenantID, id string) (*model.QualificationResult, error) {
	r, err := scanResult(s.q.queryRow(ctx,
		`SELECT `+resultCols+` FROM qualification_results WHERE tenant_id = ? AND id = ?`, tenantID, id))
	if err != nil {
		return nil, notFound(err, "qualification result", id)
	}
	return r, nil
}

func (s *queries) InsertResult(ctx context.Context, r *model.QualificationResult) error {
	ensureID(&r.ID)
	now := nowUTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	criteria := r.Criteria
	if criteria == nil {
		criteria = []model.Criterion{}
	}
	critJSON, err := toJSON(criteria)
	if err != nil {
		return err
	}
	_, err = s.q.exec(ctx, `INSERT INTO qualification_results (`+resultCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TenantID, r.CompanyID, r.ICPID, r.FitScore, string(r.Grade), r.SectorFit,
		r.GeoFit, r.CapitalFit, r.MaturityFit, r.ProductSimilarity, critJSON, string(r.Status),
		r.DiscardReason, r.RestoreCount, utc(r.CreatedAt), utcPtr(r.ApprovedAt),
		utcPtr(r.DiscardedAt), r.UpdatedAt)
	return eris.Wrapf(err, "store: insert qualification result %s", r.ID)
}

// UpdateResult writes the mutable lifecycle fields of a result only while
// it is still in status from. Zero matched rows is ErrConflict.
func (s *queries) UpdateResult(ctx context.Context, r *model.QualificationResult, from model.PipelineStatus) error {
	r.UpdatedAt = nowUTC()
	n, err := s.q.exec(ctx, `UPDATE qualification_results SET pipeline_status = ?, discard_reason = ?,
		restore_count = ?, approved_at = ?, discarded_at = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND pipeline_status = ?`,
		string(r.Status), r.DiscardReason, r.RestoreCount, utcPtr(r.ApprovedAt),
		utcPtr(r.DiscardedAt), r.UpdatedAt, r.TenantID, r.ID, string(from))
	if err != nil {
		return eris.Wrapf(err, "store: update qualification result %s", r.ID)
	}
	return checkCurrent(n, "qualification result", r.ID)
}

func (s *queries) DeleteResult(ctx context.Context, tenantID, id string) error {
	n, err := s.q.exec(ctx, `DELETE FROM qualification_results WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return eris.Wrapf(err, "store: delete qualification result %s", id)
	}
	return checkAffected(n, "qualification result", id)
}

func (s *queries) LatestResult(ctx context.Context, tenantID, companyID, icpID string) (*model.QualificationResult, error) {
	r, err := scanResult(s.q.queryRow(ctx, `SELECT `+resultCols+` FROM qualification_results
		WHERE tenant_id = ? AND company_id = ? AND icp_id = ?
		ORDER BY created_at DESC LIMIT 1`, tenantID, companyID, icpID))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: latest result")
	}
	return r, nil
}

func (s *queries) ListResults(ctx context.Context, tenantID string, filter ResultFilter) ([]model.QualificationResult, error) {
	query := `SELECT ` + resultCols + ` FROM qualification_results WHERE tenant_id = ?`
	args := []any{tenantID}
	if filter.Status != "" {
		query += ` AND pipeline_status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ICPID != "" {
		query += ` AND icp_id = ?`
		args = append(args, filter.ICPID)
	}
	query += ` ORDER BY fit_score DESC, created_at`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.q.query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list results")
	}
	defer rows.Close()

	var out []model.QualificationResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan result")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate results")
}

func (s *queries) CountStaleQuarantine(ctx context.Context, olderThan time.Time) (int, error) {
	var n int
	err := s.q.queryRow(ctx, `SELECT COUNT(*) FROM qualification_results
		WHERE pipeline_status = ? AND updated_at <= ?`,
		string(model.StatusInQuarantine), utc(olderThan)).Scan(&n)
	return n, eris.Wrap(err, "store: count stale quarantine")
}

// --- audit events ---

const eventCols = `id, tenant_id, entity_type, entity_id, company_id, action, from_status,
	to_status, actor, reason, created_at`

func (s *queries) InsertEvent(ctx context.Context, e *model.PipelineEvent) error {
	ensureID(&e.ID)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = nowUTC()
	}
	_, err := s.q.exec(ctx, `INSERT INTO pipeline_events (`+eventCols+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.EntityType, e.EntityID, e.CompanyID, string(e.Action),
		string(e.FromStatus), string(e.ToStatus), e.Actor, e.Reason, utc(e.CreatedAt))
	return eris.Wrap(err, "store: insert pipeline event")
}

func (s *queries) ListEvents(ctx context.Context, tenantID, entityID string) ([]model.PipelineEvent, error) {
	rows, err := s.q.query(ctx, `SELECT `+eventCols+` FROM pipeline_events
		WHERE tenant_id = ? AND entity_id = ? ORDER BY created_at, id`, tenantID, entityID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list events")
	}
	defer rows.Close()

	var out []model.PipelineEvent
	for rows.Next() {
		var e model.PipelineEvent
		var action, from, to string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.EntityType, &e.EntityID, &e.CompanyID,
			&action, &from, &to, &e.Actor, &e.Reason, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan event")
		}
		e.Action = model.EventAction(action)
		e.FromStatus = model.PipelineStatus(from)
		e.ToStatus = model.PipelineStatus(to)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate events")
}
