// Package lifecycle is the single authority for pipeline status changes of
// qualification results and deals. Every operation runs in one store
// transaction: the status change, its side-effect rows and the audit event
// commit together or not at all.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/model"
	"github.com/olvconsultores/stratevo/internal/store"
)

const (
	entityQualification = "qualification"
	entityDeal          = "deal"
)

// Transactor runs fn inside one store transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx store.Tx) error) error
}

// Config tunes the machine.
type Config struct {
	// OpTimeout bounds each operation including its transaction.
	OpTimeout time.Duration `yaml:"op_timeout" mapstructure:"op_timeout"`
}

// Machine applies lifecycle transitions.
type Machine struct {
	store   Transactor
	timeout time.Duration
	now     func() time.Time
	log     *zap.Logger
}

// New creates a Machine.
func New(st Transactor, cfg Config) *Machine {
	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Machine{
		store:   st,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
		log:     zap.L().With(zap.String("component", "lifecycle")),
	}
}

type actorKey struct{}

// WithActor attaches the acting user to ctx for audit events.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the acting user recorded by WithActor.
func ActorFrom(ctx context.Context) string {
	a, _ := ctx.Value(actorKey{}).(string)
	return a
}

// run executes fn in a transaction bounded by the operation timeout.
// Writes are never retried.
func (m *Machine) run(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.store.WithTx(ctx, func(tx store.Tx) error {
		return fn(ctx, tx)
	})
	if err != nil {
		m.log.Warn("lifecycle: operation rejected", zap.String("op", op), zap.Error(err))
		return eris.Wrapf(err, "lifecycle: %s", op)
	}
	return nil
}

func (m *Machine) event(ctx context.Context, tx store.Tx, e model.PipelineEvent) error {
	e.Actor = ActorFrom(ctx)
	e.CreatedAt = m.now()
	if e.Action == "" {
		e.Action = model.EventTransition
	}
	return tx.InsertEvent(ctx, &e)
}

// loadResult reads a result and checks that from -> to is legal.
func loadResult(ctx context.Context, tx store.Tx, tenantID, id string, to model.PipelineStatus) (*model.QualificationResult, error) {
	r, err := tx.GetResult(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !Allowed(r.Status, to) {
		return nil, &TransitionError{From: r.Status, To: to}
	}
	return r, nil
}

// conflict turns a lost compare-and-set into the transition the caller
// attempted; the row moved under a concurrent transaction.
func conflict(err error, from, to model.PipelineStatus) error {
	if errors.Is(err, store.ErrConflict) {
		return &TransitionError{From: from, To: to}
	}
	return err
}

// pastReview reports whether the company already holds a deal. Its status is
// then driven by the deal and no other result may enter or leave review.
func pastReview(c *model.Company) bool {
	return c.PipelineStatus == model.StatusApproved || c.PipelineStatus.IsDeal()
}

// loadOpenCompany reads the company behind a result and rejects the move to
// when the company already holds a deal.
func loadOpenCompany(ctx context.Context, tx store.Tx, tenantID, id string, to model.PipelineStatus) (*model.Company, error) {
	c, err := tx.GetCompany(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if pastReview(c) {
		return nil, &TransitionError{From: c.PipelineStatus, To: to}
	}
	return c, nil
}

// Qualify records a freshly scored result (new -> qualified). The company
// only follows when it has not moved past new with an earlier result, and
// a company that already holds a deal is not qualified again.
func (m *Machine) Qualify(ctx context.Context, company *model.Company, result *model.QualificationResult) error {
	return m.run(ctx, "qualify", func(ctx context.Context, tx store.Tx) error {
		c, err := loadOpenCompany(ctx, tx, company.TenantID, company.ID, model.StatusQualified)
		if err != nil {
			return err
		}
		result.TenantID = c.TenantID
		result.CompanyID = c.ID
		result.Status = model.StatusQualified
		result.CreatedAt = m.now()
		if err := tx.InsertResult(ctx, result); err != nil {
			return err
		}
		if c.PipelineStatus == model.StatusNew {
			if err := tx.SetCompanyStatus(ctx, c.TenantID, c.ID, model.StatusQualified); err != nil {
				return err
			}
			company.PipelineStatus = model.StatusQualified
		}
		return m.event(ctx, tx, model.PipelineEvent{
			TenantID:   c.TenantID,
			EntityType: entityQualification,
			EntityID:   result.ID,
			CompanyID:  c.ID,
			FromStatus: model.StatusNew,
			ToStatus:   model.StatusQualified,
		})
	})
}

// Quarantine moves a result to human review (qualified -> in_quarantine).
func (m *Machine) Quarantine(ctx context.Context, tenantID, resultID string) (*model.QualificationResult, error) {
	var out *model.QualificationResult
	err := m.run(ctx, "quarantine", func(ctx context.Context, tx store.Tx) error {
		r, err := loadResult(ctx, tx, tenantID, resultID, model.StatusInQuarantine)
		if err != nil {
			return err
		}
		c, err := loadOpenCompany(ctx, tx, tenantID, r.CompanyID, model.StatusInQuarantine)
		if err != nil {
			return err
		}
		from := r.Status
		r.Status = model.StatusInQuarantine
		if err := m.updateResult(ctx, tx, c, r, from); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// updateResult persists r, mirrors its status onto the company when that
// is a legal move for the company itself, and audits the edge from -> r.Status.
func (m *Machine) updateResult(ctx context.Context, tx store.Tx, c *model.Company, r *model.QualificationResult, from model.PipelineStatus) error {
	if err := tx.UpdateResult(ctx, r, from); err != nil {
		return conflict(err, from, r.Status)
	}
	if Allowed(c.PipelineStatus, r.Status) {
		if err := tx.SetCompanyStatus(ctx, c.TenantID, c.ID, r.Status); err != nil {
			return err
		}
	}
	return m.event(ctx, tx, model.PipelineEvent{
		TenantID:   r.TenantID,
		EntityType: entityQualification,
		EntityID:   r.ID,
		CompanyID:  r.CompanyID,
		FromStatus: from,
		ToStatus:   r.Status,
		Reason:     r.DiscardReason,
	})
}

// ApproveInput overrides the defaults of the rows created on approval.
type ApproveInput struct {
	LeadName  string
	Email     string
	Phone     string
	DealTitle string
	DealValue float64
}

// Approval is the outcome of Approve.
type Approval struct {
	Result *model.QualificationResult
	Lead   *model.Lead
	Deal   *model.Deal
}

// Approve converts a reviewed result into a Lead and a Deal at discovery
// (in_quarantine -> approved -> deal.discovery). Either the result, lead and
// deal all change or none do.
func (m *Machine) Approve(ctx context.Context, tenantID, resultID string, in ApproveInput) (*Approval, error) {
	var out *Approval
	err := m.run(ctx, "approve", func(ctx context.Context, tx store.Tx) error {
		r, err := loadResult(ctx, tx, tenantID, resultID, model.StatusApproved)
		if err != nil {
			return err
		}
		c, err := loadOpenCompany(ctx, tx, tenantID, r.CompanyID, model.StatusApproved)
		if err != nil {
			return err
		}

		now := m.now()
		from := r.Status
		r.Status = model.StatusApproved
		r.ApprovedAt = &now
		if err := tx.UpdateResult(ctx, r, from); err != nil {
			return conflict(err, from, model.StatusApproved)
		}

		lead := &model.Lead{
			TenantID:        tenantID,
			CompanyID:       c.ID,
			QualificationID: r.ID,
			Name:            firstNonEmpty(in.LeadName, c.Name),
			Email:           in.Email,
			Phone:           in.Phone,
			Status:          model.LeadOpen,
			LastContactAt:   &now,
			CreatedAt:       now,
		}
		if err := sideEffect("create lead", tx.InsertLead(ctx, lead)); err != nil {
			return err
		}

		deal := &model.Deal{
			TenantID:        tenantID,
			CompanyID:       c.ID,
			LeadID:          lead.ID,
			QualificationID: r.ID,
			Title:           firstNonEmpty(in.DealTitle, c.Name),
			Stage:           model.StageDiscovery,
			Value:           in.DealValue,
			Probability:     model.StageProbability[model.StageDiscovery],
			StageChangedAt:  now,
			CreatedAt:       now,
		}
		if err := sideEffect("create deal", tx.InsertDeal(ctx, deal)); err != nil {
			return err
		}
		if err := sideEffect("link company", tx.SetCompanyStatus(ctx, tenantID, c.ID, deal.Status())); err != nil {
			return err
		}

		if err := m.event(ctx, tx, model.PipelineEvent{
			TenantID: tenantID, EntityType: entityQualification, EntityID: r.ID, CompanyID: c.ID,
			FromStatus: from, ToStatus: model.StatusApproved,
		}); err != nil {
			return err
		}
		if err := m.event(ctx, tx, model.PipelineEvent{
			TenantID: tenantID, EntityType: entityDeal, EntityID: deal.ID, CompanyID: c.ID,
			FromStatus: model.StatusApproved, ToStatus: deal.Status(),
		}); err != nil {
			return err
		}

		out = &Approval{Result: r, Lead: lead, Deal: deal}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("lifecycle: approved",
		zap.String("tenant_id", tenantID),
		zap.String("result_id", resultID),
		zap.String("deal_id", out.Deal.ID),
	)
	return out, nil
}

// Discard rejects a reviewed result (in_quarantine -> discarded). The
// reason is mandatory and stored on the result.
func (m *Machine) Discard(ctx context.Context, tenantID, resultID, reason string) (*model.QualificationResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrDiscardReasonRequired
	}
	var out *model.QualificationResult
	err := m.run(ctx, "discard", func(ctx context.Context, tx store.Tx) error {
		r, err := loadResult(ctx, tx, tenantID, resultID, model.StatusDiscarded)
		if err != nil {
			return err
		}
		c, err := tx.GetCompany(ctx, tenantID, r.CompanyID)
		if err != nil {
			return err
		}
		now := m.now()
		from := r.Status
		r.Status = model.StatusDiscarded
		r.DiscardReason = reason
		r.DiscardedAt = &now
		if err := m.updateResult(ctx, tx, c, r, from); err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}

// Restore is the administrative override that returns a discarded result to
// review (discarded -> in_quarantine). It is allowed once per result and is
// audited as a restore_override event, never as a regular transition.
func (m *Machine) Restore(ctx context.Context, tenantID, resultID, reason string) (*model.QualificationResult, error) {
	var out *model.QualificationResult
	err := m.run(ctx, "restore", func(ctx context.Context, tx store.Tx) error {
		r, err := tx.GetResult(ctx, tenantID, resultID)
		if err != nil {
			return err
		}
		if r.Status != model.StatusDiscarded {
			return &TransitionError{From: r.Status, To: model.StatusInQuarantine}
		}
		if r.RestoreCount > 0 {
			return ErrRestoreExhausted
		}

		prevReason := r.DiscardReason
		r.Status = model.StatusInQuarantine
		r.RestoreCount++
		r.DiscardReason = ""
		r.DiscardedAt = nil
		if err := tx.UpdateResult(ctx, r, model.StatusDiscarded); err != nil {
			return conflict(err, model.StatusDiscarded, model.StatusInQuarantine)
		}
		// The company only follows when this discard was what it mirrored.
		c, err := tx.GetCompany(ctx, tenantID, r.CompanyID)
		if err != nil {
			return err
		}
		if c.PipelineStatus == model.StatusDiscarded {
			if err := tx.SetCompanyStatus(ctx, tenantID, c.ID, r.Status); err != nil {
				return err
			}
		}
		if reason = strings.TrimSpace(reason); reason == "" {
			reason = "discarded: " + prevReason
		}
		if err := m.event(ctx, tx, model.PipelineEvent{
			TenantID: tenantID, EntityType: entityQualification, EntityID: r.ID, CompanyID: r.CompanyID,
			Action:     model.EventRestoreOverride,
			FromStatus: model.StatusDiscarded,
			ToStatus:   model.StatusInQuarantine,
			Reason:     reason,
		}); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("lifecycle: restore override",
		zap.String("tenant_id", tenantID),
		zap.String("result_id", resultID),
		zap.String("actor", ActorFrom(ctx)),
	)
	return out, nil
}

// Purge irreversibly deletes a discarded result. The audit trail is kept.
func (m *Machine) Purge(ctx context.Context, tenantID, resultID string) error {
	return m.run(ctx, "purge", func(ctx context.Context, tx store.Tx) error {
		r, err := tx.GetResult(ctx, tenantID, resultID)
		if err != nil {
			return err
		}
		if r.Status != model.StatusDiscarded {
			return &TransitionError{From: r.Status, To: statusPurged}
		}
		if err := tx.DeleteResult(ctx, tenantID, resultID); err != nil {
			return err
		}
		return m.event(ctx, tx, model.PipelineEvent{
			TenantID: tenantID, EntityType: entityQualification, EntityID: r.ID, CompanyID: r.CompanyID,
			Action:     model.EventPurge,
			FromStatus: model.StatusDiscarded,
			ToStatus:   statusPurged,
			Reason:     r.DiscardReason,
		})
	})
}

// AdvanceDeal moves an open deal to the following stage.
func (m *Machine) AdvanceDeal(ctx context.Context, tenantID, dealID string) (*model.Deal, error) {
	return m.moveDeal(ctx, "advance deal", tenantID, dealID, func(d *model.Deal) model.DealStage {
		next, _ := NextStage(d.Stage)
		return next
	})
}

// CloseDeal ends an open deal as won or lost. Closed stages are terminal and
// the deal's lead follows as converted or lost.
func (m *Machine) CloseDeal(ctx context.Context, tenantID, dealID string, won bool) (*model.Deal, error) {
	to := model.StageClosedLost
	if won {
		to = model.StageClosedWon
	}
	return m.moveDeal(ctx, "close deal", tenantID, dealID, func(*model.Deal) model.DealStage { return to })
}

// MoveDeal moves a deal to an explicit stage, subject to the transition table.
func (m *Machine) MoveDeal(ctx context.Context, tenantID, dealID string, to model.DealStage) (*model.Deal, error) {
	return m.moveDeal(ctx, "move deal", tenantID, dealID, func(*model.Deal) model.DealStage { return to })
}

func (m *Machine) moveDeal(ctx context.Context, op, tenantID, dealID string, target func(*model.Deal) model.DealStage) (*model.Deal, error) {
	var out *model.Deal
	err := m.run(ctx, op, func(ctx context.Context, tx store.Tx) error {
		d, err := tx.GetDeal(ctx, tenantID, dealID)
		if err != nil {
			return err
		}
		from := d.Status()
		to := target(d)
		if to == "" || !Allowed(from, to.Status()) {
			toStatus := to.Status()
			if to == "" {
				toStatus = from
			}
			return &TransitionError{From: from, To: toStatus}
		}

		now := m.now()
		d.Stage = to
		d.StageChangedAt = now
		d.Probability = model.StageProbability[to]
		closing := to.Status().IsTerminal()
		if closing {
			d.ClosedAt = &now
		}
		fromStage, _ := model.StageOf(from)
		if err := tx.UpdateDeal(ctx, d, fromStage); err != nil {
			return conflict(err, from, d.Status())
		}
		if closing && d.LeadID != "" {
			status := model.LeadLost
			if to == model.StageClosedWon {
				status = model.LeadConverted
			}
			if err := sideEffect("update lead", tx.SetLeadStatus(ctx, tenantID, d.LeadID, status)); err != nil {
				return err
			}
		}
		if err := tx.SetCompanyStatus(ctx, tenantID, d.CompanyID, d.Status()); err != nil {
			return err
		}
		if err := m.event(ctx, tx, model.PipelineEvent{
			TenantID: tenantID, EntityType: entityDeal, EntityID: d.ID, CompanyID: d.CompanyID,
			FromStatus: from, ToStatus: d.Status(),
		}); err != nil {
			return err
		}
		out = d
		return nil
	})
	return out, err
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
