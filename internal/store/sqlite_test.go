package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olvconsultores/stratevo/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func seedCompany(t *testing.T, s *SQLiteStore, tenantID, name string) model.Company {
	t.Helper()
	companies := []model.Company{{TenantID: tenantID, Name: name, Sector: "Agronegócio", State: "SP"}}
	_, err := s.UpsertCompanies(context.Background(), companies)
	require.NoError(t, err)
	return companies[0]
}

func TestSQLite_UpsertCompanies_DedupesByTaxID(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	first := []model.Company{{TenantID: "t1", Name: "Agro Sul", TaxID: "11.222.333/0001-81", State: "SP"}}
	_, err := s.UpsertCompanies(ctx, first)
	require.NoError(t, err)
	require.NotEmpty(t, first[0].ID)

	second := []model.Company{{TenantID: "t1", Name: "Agro Sul Ltda", TaxID: "11222333000181", State: "PR"}}
	_, err = s.UpsertCompanies(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, first[0].ID, second[0].ID)

	all, err := s.ListCompanies(ctx, "t1", CompanyFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Agro Sul Ltda", all[0].Name)
	assert.Equal(t, "PR", all[0].State)
	assert.Equal(t, model.StatusNew, all[0].PipelineStatus)
}

func TestSQLite_TenantIsolation(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	c := seedCompany(t, s, "t1", "Agro Sul")

	_, err := s.GetCompany(ctx, "t2", c.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.GetCompany(ctx, "t1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Agro Sul", got.Name)

	err = s.SetCompanyStatus(ctx, "t2", c.ID, model.StatusQualified)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ICP_RoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	icp := &model.ICP{
		TenantID:      "t1",
		Name:          "Agro Sudeste",
		TargetSectors: []string{"Agronegócio"},
		TargetStates:  []string{"SP", "MG"},
		EmployeeRange: &model.Range{Min: 50, Max: 500},
	}
	require.NoError(t, s.SaveICP(ctx, icp))

	got, err := s.GetICP(ctx, "t1", icp.ID)
	require.NoError(t, err)
	assert.Equal(t, icp.TargetStates, got.TargetStates)
	assert.Equal(t, 500.0, got.EmployeeRange.Max)

	_, err = s.GetICP(ctx, "t2", icp.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Results(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	c := seedCompany(t, s, "t1", "Agro Sul")

	latest, err := s.LatestResult(ctx, "t1", c.ID, "icp-1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	r := &model.QualificationResult{
		TenantID: "t1", CompanyID: c.ID, ICPID: "icp-1", FitScore: 91.5, Grade: model.GradeAPlus,
		Criteria: []model.Criterion{model.CriterionSector, model.CriterionGeo},
		Status:   model.StatusQualified,
	}
	err = s.WithTx(ctx, func(tx Tx) error { return tx.InsertResult(ctx, r) })
	require.NoError(t, err)

	got, err := s.GetResult(ctx, "t1", r.ID)
	require.NoError(t, err)
	assert.Equal(t, 91.5, got.FitScore)
	assert.Equal(t, model.GradeAPlus, got.Grade)
	assert.Equal(t, r.Criteria, got.Criteria)

	latest, err = s.LatestResult(ctx, "t1", c.ID, "icp-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, r.ID, latest.ID)

	got.Status = model.StatusInQuarantine
	require.NoError(t, s.WithTx(ctx, func(tx Tx) error { return tx.UpdateResult(ctx, got, model.StatusQualified) }))

	// The row is no longer qualified, so a second writer holding the old
	// status must lose.
	stale := *got
	stale.Status = model.StatusInQuarantine
	err = s.WithTx(ctx, func(tx Tx) error { return tx.UpdateResult(ctx, &stale, model.StatusQualified) })
	assert.ErrorIs(t, err, ErrConflict)

	list, err := s.ListResults(ctx, "t1", ResultFilter{Status: model.StatusInQuarantine})
	require.NoError(t, err)
	require.Len(t, list, 1)

	n, err := s.CountStaleQuarantine(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_DiscardWithoutReasonRejected(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	c := seedCompany(t, s, "t1", "Agro Sul")

	r := &model.QualificationResult{
		TenantID: "t1", CompanyID: c.ID, ICPID: "icp-1", Grade: model.GradeD,
		Status: model.StatusDiscarded,
	}
	err := s.WithTx(ctx, func(tx Tx) error { return tx.InsertResult(ctx, r) })
	assert.Error(t, err)
}

func TestSQLite_WithTx_RollsBackAllWrites(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	c := seedCompany(t, s, "t1", "Agro Sul")

	boom := errors.New("deal insert failed")
	err := s.WithTx(ctx, func(tx Tx) error {
		if err := tx.InsertLead(ctx, &model.Lead{TenantID: "t1", CompanyID: c.ID, Name: "Ana"}); err != nil {
			return err
		}
		if err := tx.SetCompanyStatus(ctx, "t1", c.ID, model.StatusDealDiscovery); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	leads, err := s.ListLeads(ctx, "t1", c.ID)
	require.NoError(t, err)
	assert.Empty(t, leads)

	got, err := s.GetCompany(ctx, "t1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, got.PipelineStatus)
}

func TestSQLite_Deals(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	c := seedCompany(t, s, "t1", "Agro Sul")

	d := &model.Deal{TenantID: "t1", CompanyID: c.ID, Title: "Agro Sul", Stage: model.StageDiscovery, Probability: 10}
	require.NoError(t, s.WithTx(ctx, func(tx Tx) error { return tx.InsertDeal(ctx, d) }))

	closed := time.Now().UTC()
	d.Stage = model.StageClosedWon
	d.ClosedAt = &closed
	require.NoError(t, s.WithTx(ctx, func(tx Tx) error { return tx.UpdateDeal(ctx, d, model.StageDiscovery) }))

	lost := *d
	lost.Stage = model.StageClosedLost
	err := s.WithTx(ctx, func(tx Tx) error { return tx.UpdateDeal(ctx, &lost, model.StageDiscovery) })
	assert.ErrorIs(t, err, ErrConflict)
	got, err := s.GetDeal(ctx, "t1", d.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageClosedWon, got.Stage)

	unsynced, err := s.ListUnsyncedWonDeals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	assert.Equal(t, d.ID, unsynced[0].ID)

	require.NoError(t, s.SetDealExternalID(ctx, "t1", d.ID, "006XYZ"))
	unsynced, err = s.ListUnsyncedWonDeals(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unsynced)
}

func TestSQLite_InsertMarker_Idempotent(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	m := &model.FireMarker{RuleID: "r1", EntityID: "lead-1", TenantID: "t1",
		ActionType: model.ActionNotification, Status: model.MarkerFired}
	ok, err := s.InsertMarker(ctx, m)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.InsertMarker(ctx, m)
	require.NoError(t, err)
	assert.False(t, ok)

	counts, err := s.CountMarkers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Fired)
}

func TestSQLite_FindInactiveLeads(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	c := seedCompany(t, s, "t1", "Agro Sul")
	now := time.Now().UTC()

	stale := now.AddDate(0, 0, -8)
	recent := now.AddDate(0, 0, -3)
	leadA := &model.Lead{TenantID: "t1", CompanyID: c.ID, Name: "Ana", Email: "ana@agrosul.com.br", LastContactAt: &stale}
	leadB := &model.Lead{TenantID: "t1", CompanyID: c.ID, Name: "Bruno", LastContactAt: &recent}
	require.NoError(t, s.SaveLead(ctx, leadA))
	require.NoError(t, s.SaveLead(ctx, leadB))

	matches, err := s.FindInactiveLeads(ctx, "t1", "r1", now.AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, leadA.ID, matches[0].EntityID)
	assert.Equal(t, "Ana", matches[0].Vars["nome"])
	assert.Equal(t, "Agro Sul", matches[0].Vars["empresa"])
	assert.Equal(t, stale.Format("02/01/2006"), matches[0].Vars["ultimo_contato"])

	_, err = s.InsertMarker(ctx, &model.FireMarker{RuleID: "r1", EntityID: leadA.ID, TenantID: "t1",
		ActionType: model.ActionNotification, Status: model.MarkerFired})
	require.NoError(t, err)

	matches, err = s.FindInactiveLeads(ctx, "t1", "r1", now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Empty(t, matches)

	// A different rule still sees the lead.
	matches, err = s.FindInactiveLeads(ctx, "t1", "r2", now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	// Other tenants never match.
	matches, err = s.FindInactiveLeads(ctx, "t2", "r2", now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSQLite_FindExpiringProposals(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	c := seedCompany(t, s, "t1", "Agro Sul")
	now := time.Now().UTC()

	d := &model.Deal{TenantID: "t1", CompanyID: c.ID, Stage: model.StageProposal}
	require.NoError(t, s.WithTx(ctx, func(tx Tx) error { return tx.InsertDeal(ctx, d) }))

	soon := &model.Proposal{TenantID: "t1", DealID: d.ID, Title: "Plano anual", RecipientEmail: "compras@agrosul.com.br",
		Status: model.ProposalSent, ExpiresAt: now.AddDate(0, 0, 2)}
	draft := &model.Proposal{TenantID: "t1", DealID: d.ID, Title: "Rascunho",
		Status: model.ProposalDraft, ExpiresAt: now.AddDate(0, 0, 1)}
	later := &model.Proposal{TenantID: "t1", DealID: d.ID, Title: "Plano bienal",
		Status: model.ProposalSent, ExpiresAt: now.AddDate(0, 0, 10)}
	for _, p := range []*model.Proposal{soon, draft, later} {
		require.NoError(t, s.SaveProposal(ctx, p))
	}

	matches, err := s.FindExpiringProposals(ctx, "t1", "r1", now, now.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, soon.ID, matches[0].EntityID)
	assert.Equal(t, "compras@agrosul.com.br", matches[0].Vars["email"])
	assert.Equal(t, "Plano anual", matches[0].Vars["titulo"])
}

func TestSQLite_FindOverdueTasks(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	done := now.Add(-time.Hour)
	overdue := &model.Task{TenantID: "t1", Title: "Ligar", Assignee: "vendas@olv.com.br", DueAt: now.AddDate(0, 0, -1)}
	completed := &model.Task{TenantID: "t1", Title: "Enviar deck", DueAt: now.AddDate(0, 0, -2), CompletedAt: &done}
	future := &model.Task{TenantID: "t1", Title: "Reunião", DueAt: now.AddDate(0, 0, 1)}
	for _, task := range []*model.Task{overdue, completed, future} {
		require.NoError(t, s.SaveTask(ctx, task))
	}

	matches, err := s.FindOverdueTasks(ctx, "t1", "r1", now)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, overdue.ID, matches[0].EntityID)
	assert.Equal(t, "vendas@olv.com.br", matches[0].Vars["email"])
}

func TestSQLite_DeliveryLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	m := &model.FireMarker{RuleID: "r1", EntityID: "lead-1", TenantID: "t1",
		ActionType: model.ActionEmail, Status: model.MarkerPending,
		Recipient: "ana@agrosul.com.br", Subject: "Olá", Body: "Oi Ana"}
	ok, err := s.InsertMarker(ctx, m)
	require.NoError(t, err)
	require.True(t, ok)

	due, err := s.ListDueDeliveries(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "ana@agrosul.com.br", due[0].Recipient)

	next := now.Add(time.Minute)
	require.NoError(t, s.MarkDeliveryFailed(ctx, "r1", "lead-1", 1, "timeout", &next, false))
	due, err = s.ListDueDeliveries(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, s.MarkDeliveryFailed(ctx, "r1", "lead-1", 2, "timeout", nil, true))
	failed, err := s.ListFailedMarkers(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].Attempts)
	assert.Equal(t, "timeout", failed[0].LastError)

	assert.ErrorIs(t, s.RetriggerMarker(ctx, "t2", "r1", "lead-1"), ErrNotFound)
	require.NoError(t, s.RetriggerMarker(ctx, "t1", "r1", "lead-1"))
	due, err = s.ListDueDeliveries(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Zero(t, due[0].Attempts)

	require.NoError(t, s.MarkDelivered(ctx, "r1", "lead-1", "msg-123"))
	got, err := s.GetMarker(ctx, "r1", "lead-1")
	require.NoError(t, err)
	assert.Equal(t, model.MarkerFired, got.Status)
	assert.Equal(t, "msg-123", got.ProviderMessageID)

	// Delivered markers are not pending any more.
	assert.ErrorIs(t, s.MarkDelivered(ctx, "r1", "lead-1", "msg-456"), ErrNotFound)
}

func TestSQLite_ClaimDelivery(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC()

	m := &model.FireMarker{RuleID: "r1", EntityID: "lead-1", TenantID: "t1",
		ActionType: model.ActionEmail, Status: model.MarkerPending, Recipient: "ana@agrosul.com.br"}
	ok, err := s.InsertMarker(ctx, m)
	require.NoError(t, err)
	require.True(t, ok)

	lease := now.Add(5 * time.Minute)
	claimed, err := s.ClaimDelivery(ctx, "r1", "lead-1", now, lease)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.ClaimDelivery(ctx, "r1", "lead-1", now, lease)
	require.NoError(t, err)
	assert.False(t, claimed, "a held lease cannot be claimed again")

	due, err := s.ListDueDeliveries(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	// An expired lease is claimable again.
	claimed, err = s.ClaimDelivery(ctx, "r1", "lead-1", lease.Add(time.Second), lease.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, s.MarkDelivered(ctx, "r1", "lead-1", "msg-1"))
	claimed, err = s.ClaimDelivery(ctx, "r1", "lead-1", lease.Add(2*time.Hour), lease.Add(3*time.Hour))
	require.NoError(t, err)
	assert.False(t, claimed, "delivered markers are never claimed")
}

func TestSQLite_OneDealPerQualification(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	c := seedCompany(t, s, "t1", "Agro Sul")

	first := &model.Deal{TenantID: "t1", CompanyID: c.ID, QualificationID: "q1", Stage: model.StageDiscovery}
	require.NoError(t, s.WithTx(ctx, func(tx Tx) error { return tx.InsertDeal(ctx, first) }))

	second := &model.Deal{TenantID: "t1", CompanyID: c.ID, QualificationID: "q1", Stage: model.StageDiscovery}
	err := s.WithTx(ctx, func(tx Tx) error { return tx.InsertDeal(ctx, second) })
	assert.Error(t, err)

	// Deals created outside an approval carry no qualification and may repeat.
	for range 2 {
		d := &model.Deal{TenantID: "t1", CompanyID: c.ID, Stage: model.StageDiscovery}
		require.NoError(t, s.WithTx(ctx, func(tx Tx) error { return tx.InsertDeal(ctx, d) }))
	}

	deals, err := s.ListDeals(ctx, "t1", c.ID)
	require.NoError(t, err)
	assert.Len(t, deals, 3)
}

func TestSQLite_ListActiveRules(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	active := &model.AutomationRule{TenantID: "t1", Name: "Follow-up", ReminderType: model.ReminderFollowupInactive,
		TriggerDays: 7, ActionType: model.ActionNotification, IsActive: true,
		ActionConfig: map[string]string{model.ConfigTitle: "Retomar contato com {{nome}}"}}
	inactive := &model.AutomationRule{TenantID: "t1", Name: "Old", ReminderType: model.ReminderTaskOverdue,
		TriggerDays: 1, ActionType: model.ActionTask}
	require.NoError(t, s.SaveRule(ctx, active))
	require.NoError(t, s.SaveRule(ctx, inactive))

	rules, err := s.ListActiveRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, active.ID, rules[0].ID)
	assert.Equal(t, "Retomar contato com {{nome}}", rules[0].ActionConfig[model.ConfigTitle])
}

func TestSQLite_Events(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx Tx) error {
		return tx.InsertEvent(ctx, &model.PipelineEvent{
			TenantID: "t1", EntityType: "qualification", EntityID: "r1", Action: model.EventTransition,
			FromStatus: model.StatusNew, ToStatus: model.StatusQualified, Actor: "ana",
		})
	})
	require.NoError(t, err)

	events, err := s.ListEvents(ctx, "t1", "r1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.StatusQualified, events[0].ToStatus)
}
