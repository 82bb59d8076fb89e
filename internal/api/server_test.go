package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olvconsultores/stratevo/internal/automation"
	"github.com/olvconsultores/stratevo/internal/insights"
	"github.com/olvconsultores/stratevo/internal/lifecycle"
	"github.com/olvconsultores/stratevo/internal/model"
	"github.com/olvconsultores/stratevo/internal/qualify"
	"github.com/olvconsultores/stratevo/internal/store"
)

const tenant = "t1"

type fakeAutomation struct {
	failed    []model.FireMarker
	retrigger []string
	err       error
}

func (f *fakeAutomation) ListFailed(context.Context, string) ([]model.FireMarker, error) {
	return f.failed, f.err
}

func (f *fakeAutomation) Retrigger(_ context.Context, _ string, ruleID, entityID string) error {
	if f.err != nil {
		return f.err
	}
	f.retrigger = append(f.retrigger, ruleID+":"+entityID)
	return nil
}

type fakeInsights struct {
	got insights.Call
}

func (f *fakeInsights) Analyze(_ context.Context, call insights.Call) (*model.CallInsight, error) {
	if call.Transcript == "" {
		return nil, insights.ErrEmptyTranscript
	}
	f.got = call
	return &model.CallInsight{TenantID: call.TenantID, LeadID: call.LeadID, Summary: "ok"}, nil
}

type env struct {
	store *store.SQLiteStore
	auto  *fakeAutomation
	calls *fakeInsights
	srv   *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() }) //nolint:errcheck

	machine := lifecycle.New(s, lifecycle.Config{})
	runner := qualify.NewRunner(s, machine, qualify.RunnerConfig{FreshnessWindow: time.Hour})
	e := &env{store: s, auto: &fakeAutomation{}, calls: &fakeInsights{}}

	srv := NewServer(Deps{
		Store:      s,
		Qualifier:  runner,
		Lifecycle:  machine,
		Automation: e.auto,
		Insights:   e.calls,
	}, Options{AllowedOrigins: []string{"*"}, WebhookSecret: "s3cret"})
	e.srv = httptest.NewServer(srv.Handler())
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) do(t *testing.T, method, path string, body any, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(TenantHeader, tenant)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func (e *env) seedCompany(t *testing.T) model.Company {
	t.Helper()
	companies := []model.Company{{
		TenantID: tenant, Name: "Agro Sul", Sector: "Agronegócio", State: "PR",
		EmployeesMin: 50, EmployeesMax: 199, Technologies: []string{"SAP"},
	}}
	_, err := e.store.UpsertCompanies(context.Background(), companies)
	require.NoError(t, err)
	return companies[0]
}

func (e *env) createICP(t *testing.T) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/v1/icps", map[string]any{
		"name":                "Agro Sul",
		"target_sectors":      []string{"agronegocio"},
		"target_states":       []string{"PR", "SC"},
		"target_technologies": []string{"SAP"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	resp, err := http.Get(e.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMissingTenant(t *testing.T) {
	e := newEnv(t)
	resp, err := http.Post(e.srv.URL+"/v1/automation/failures/retrigger", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateICP_NoCriteria(t *testing.T) {
	e := newEnv(t)
	resp, body := e.do(t, http.MethodPost, "/v1/icps", map[string]any{"name": "Vazio"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["error"], "no target criteria set")
}

func TestCreateICP_BadWeights(t *testing.T) {
	e := newEnv(t)
	resp, body := e.do(t, http.MethodPost, "/v1/icps", map[string]any{
		"name":           "Pesos",
		"target_sectors": []string{"varejo"},
		"weights":        map[string]float64{"sector": -1},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["error"], "sector weight must be >= 0")
}

func TestQualifyApproveFlow(t *testing.T) {
	e := newEnv(t)
	c := e.seedCompany(t)
	icpID := e.createICP(t)

	resp, body := e.do(t, http.MethodPost, "/v1/companies/"+c.ID+"/qualify", map[string]string{"icp_id": icpID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	result := body["result"].(map[string]any)
	resultID := result["id"].(string)
	assert.Equal(t, string(model.StatusQualified), result["pipeline_status"])
	assert.Equal(t, false, body["reused"])

	// Scoring again inside the freshness window reuses the stored result.
	resp, body = e.do(t, http.MethodPost, "/v1/companies/"+c.ID+"/qualify", map[string]string{"icp_id": icpID})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["reused"])

	// Approving straight from qualified skips review and is refused.
	resp, body = e.do(t, http.MethodPost, "/v1/results/"+resultID+"/approve", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "illegal transition")

	resp, body = e.do(t, http.MethodPost, "/v1/results/"+resultID+"/quarantine", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(model.StatusInQuarantine), body["pipeline_status"])

	resp, body = e.do(t, http.MethodPost, "/v1/results/"+resultID+"/approve",
		map[string]any{"email": "compras@agrosul.com.br", "deal_value": 120000}, ActorHeader, "ana")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	deal := body["deal"].(map[string]any)
	assert.Equal(t, string(model.StageDiscovery), deal["stage"])
	dealID := deal["id"].(string)

	resp, body = e.do(t, http.MethodPost, "/v1/deals/"+dealID+"/advance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(model.StageQualification), body["stage"])

	resp, _ = e.do(t, http.MethodPost, "/v1/deals/"+dealID+"/close", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = e.do(t, http.MethodPost, "/v1/deals/"+dealID+"/close", map[string]any{"won": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(model.StageClosedWon), body["stage"])

	resp, _ = e.do(t, http.MethodPost, "/v1/deals/"+dealID+"/advance", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDiscardRestorePurge(t *testing.T) {
	e := newEnv(t)
	c := e.seedCompany(t)
	icpID := e.createICP(t)

	_, body := e.do(t, http.MethodPost, "/v1/companies/"+c.ID+"/qualify", map[string]string{"icp_id": icpID})
	resultID := body["result"].(map[string]any)["id"].(string)
	e.do(t, http.MethodPost, "/v1/results/"+resultID+"/quarantine", nil)

	resp, body := e.do(t, http.MethodPost, "/v1/results/"+resultID+"/discard", map[string]string{"reason": " "})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["error"], "non-empty reason")

	resp, body = e.do(t, http.MethodPost, "/v1/results/"+resultID+"/discard", map[string]string{"reason": "fora do perfil"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(model.StatusDiscarded), body["pipeline_status"])

	resp, body = e.do(t, http.MethodPost, "/v1/results/"+resultID+"/restore", map[string]string{"reason": "revisão"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(model.StatusInQuarantine), body["pipeline_status"])

	e.do(t, http.MethodPost, "/v1/results/"+resultID+"/discard", map[string]string{"reason": "de novo"})
	resp, _ = e.do(t, http.MethodPost, "/v1/results/"+resultID+"/restore", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = e.do(t, http.MethodDelete, "/v1/results/"+resultID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/v1/results/"+resultID+"/quarantine", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQualify_UnknownCompany(t *testing.T) {
	e := newEnv(t)
	icpID := e.createICP(t)
	resp, _ := e.do(t, http.MethodPost, "/v1/companies/nope/qualify", map[string]string{"icp_id": icpID})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQualify_BadBody(t *testing.T) {
	e := newEnv(t)
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+"/v1/companies/x/qualify", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	req.Header.Set(TenantHeader, tenant)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateRule(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/v1/automation/rules", map[string]any{
		"name":          "Follow-up",
		"reminder_type": model.ReminderFollowupInactive,
		"trigger_days":  7,
		"action_type":   model.ActionTask,
		"action_config": map[string]string{model.ConfigTitle: "Ligar para {{nome}}", model.ConfigDueDays: "2"},
		"is_active":     true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, tenant, body["tenant_id"])

	resp, body = e.do(t, http.MethodPost, "/v1/automation/rules", map[string]any{
		"name":          "Ruim",
		"reminder_type": "birthday",
		"action_type":   model.ActionTask,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body["error"], "unknown reminder_type")
}

func TestAutomationFailures(t *testing.T) {
	e := newEnv(t)
	e.auto.failed = []model.FireMarker{{RuleID: "r1", EntityID: "l1", Status: model.MarkerFailed, Attempts: 5}}

	resp, err := e.getWithTenant("/v1/automation/failures")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var markers []model.FireMarker
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&markers))
	require.Len(t, markers, 1)
	assert.Equal(t, "r1", markers[0].RuleID)

	r, _ := e.do(t, http.MethodPost, "/v1/automation/failures/retrigger", map[string]string{"rule_id": "r1"})
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	r, _ = e.do(t, http.MethodPost, "/v1/automation/failures/retrigger", map[string]string{"rule_id": "r1", "entity_id": "l1"})
	assert.Equal(t, http.StatusAccepted, r.StatusCode)
	assert.Equal(t, []string{"r1:l1"}, e.auto.retrigger)

	e.auto.err = store.ErrNotFound
	r, _ = e.do(t, http.MethodPost, "/v1/automation/failures/retrigger", map[string]string{"rule_id": "r9", "entity_id": "l9"})
	assert.Equal(t, http.StatusNotFound, r.StatusCode)
}

func (e *env) getWithTenant(path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, e.srv.URL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(TenantHeader, tenant)
	return http.DefaultClient.Do(req)
}

func TestCallWebhook(t *testing.T) {
	e := newEnv(t)
	call := map[string]any{"lead_id": "l1", "transcript": "cliente pediu proposta"}

	resp, _ := e.do(t, http.MethodPost, "/v1/webhooks/calls", call)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := e.do(t, http.MethodPost, "/v1/webhooks/calls", call, WebhookSecretHeader, "s3cret")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ok", body["summary"])
	assert.Equal(t, tenant, e.calls.got.TenantID)

	resp, _ = e.do(t, http.MethodPost, "/v1/webhooks/calls", map[string]any{"lead_id": "l1"}, WebhookSecretHeader, "s3cret")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{badRequest("x"), http.StatusBadRequest},
		{store.ErrNotFound, http.StatusNotFound},
		{&lifecycle.TransitionError{From: model.StatusNew, To: model.StatusApproved}, http.StatusConflict},
		{lifecycle.ErrRestoreExhausted, http.StatusConflict},
		{qualify.ErrInvalidICP, http.StatusUnprocessableEntity},
		{automation.ErrInvalidRule, http.StatusUnprocessableEntity},
		{lifecycle.ErrSideEffect, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapHTTPStatus(tt.err), tt.err.Error())
	}
}
