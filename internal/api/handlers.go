package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/olvconsultores/stratevo/internal/automation"
	"github.com/olvconsultores/stratevo/internal/insights"
	"github.com/olvconsultores/stratevo/internal/lifecycle"
	"github.com/olvconsultores/stratevo/internal/model"
	"github.com/olvconsultores/stratevo/internal/qualify"
)

func (s *Server) createICP(w http.ResponseWriter, r *http.Request) {
	var icp model.ICP
	if err := decode(r, &icp); err != nil {
		RespondError(w, s.log, err)
		return
	}
	icp.TenantID = tenantFrom(r.Context())
	if strings.TrimSpace(icp.Name) == "" {
		RespondError(w, s.log, badRequest("api: icp name is required"))
		return
	}
	if !icp.HasCriteria() {
		RespondError(w, s.log, qualify.ErrInvalidICP)
		return
	}
	if icp.Weights != nil {
		if err := qualify.ValidateWeights(*icp.Weights); err != nil {
			RespondError(w, s.log, eris.Wrap(qualify.ErrInvalidICP, err.Error()))
			return
		}
	}
	if err := s.deps.Store.SaveICP(r.Context(), &icp); err != nil {
		RespondError(w, s.log, err)
		return
	}
	RespondJSON(w, http.StatusCreated, icp)
}

type qualifyRequest struct {
	ICPID string `json:"icp_id"`
}

type qualifyResponse struct {
	Result *model.QualificationResult `json:"result"`
	Reused bool                       `json:"reused"`
}

func (s *Server) qualifyCompany(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenant := tenantFrom(ctx)

	var req qualifyRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, s.log, err)
		return
	}
	if req.ICPID == "" {
		RespondError(w, s.log, badRequest("api: icp_id is required"))
		return
	}

	icp, err := s.deps.Store.GetICP(ctx, tenant, req.ICPID)
	if err != nil {
		RespondError(w, s.log, err)
		return
	}
	company, err := s.deps.Store.GetCompany(ctx, tenant, chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, s.log, err)
		return
	}

	out, err := s.deps.Qualifier.QualifyOne(ctx, icp, company)
	if err != nil {
		RespondError(w, s.log, err)
		return
	}
	status := http.StatusCreated
	if out.Reused {
		status = http.StatusOK
	}
	RespondJSON(w, status, qualifyResponse{Result: out.Result, Reused: out.Reused})
}

func (s *Server) quarantine(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Lifecycle.Quarantine(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, s.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

type approveRequest struct {
	LeadName  string  `json:"lead_name"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	DealTitle string  `json:"deal_title"`
	DealValue float64 `json:"deal_value"`
}

type approveResponse struct {
	Result *model.QualificationResult `json:"result"`
	Lead   *model.Lead                `json:"lead"`
	Deal   *model.Deal                `json:"deal"`
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			RespondError(w, s.log, err)
			return
		}
	}
	out, err := s.deps.Lifecycle.Approve(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"), lifecycle.ApproveInput{
		LeadName:  req.LeadName,
		Email:     req.Email,
		Phone:     req.Phone,
		DealTitle: req.DealTitle,
		DealValue: req.DealValue,
	})
	if err != nil {
		RespondError(w, s.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, approveResponse{Result: out.Result, Lead: out.Lead, Deal: out.Deal})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) discard(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, s.log, err)
		return
	}
	res, err := s.deps.Lifecycle.Discard(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		RespondError(w, s.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

func (s *Server) restore(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			RespondError(w, s.log, err)
			return
		}
	}
	res, err := s.deps.Lifecycle.Restore(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		RespondError(w, s.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

func (s *Server) purge(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Lifecycle.Purge(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		RespondError(w, s.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) advanceDeal(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Lifecycle.AdvanceDeal(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, s.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, d)
}

type closeRequest struct {
	Won *bool `json:"won"`
}

func (s *Server) closeDeal(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, s.log, err)
		return
	}
	if req.Won == nil {
		RespondError(w, s.log, badRequest("api: won is required"))
		return
	}
	d, err := s.deps.Lifecycle.CloseDeal(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "id"), *req.Won)
	if err != nil {
		RespondError(w, s.log, err)
		return
	}
	RespondJSON(w, http.StatusOK, d)
}

func (s *Server) createRule(w http.ResponseWriter, r *http.Request) {
	var rule model.AutomationRule
	if err := decode(r, &rule); err != nil {
		RespondError(w, s.log, err)
		return
	}
	rule.TenantID = tenantFrom(r.Context())
	if err := automation.ValidateRule(&rule); err != nil {
		RespondError(w, s.log, err)
		return
	}
	if err := s.deps.Store.SaveRule(r.Context(), &rule); err != nil {
		RespondError(w, s.log, err)
		return
	}
	RespondJSON(w, http.StatusCreated, rule)
}

func (s *Server) listFailures(w http.ResponseWriter, r *http.Request) {
	markers, err := s.deps.Automation.ListFailed(r.Context(), tenantFrom(r.Context()))
	if err != nil {
		RespondError(w, s.log, err)
		return
	}
	if markers == nil {
		markers = []model.FireMarker{}
	}
	RespondJSON(w, http.StatusOK, markers)
}

type retriggerRequest struct {
	RuleID   string `json:"rule_id"`
	EntityID string `json:"entity_id"`
}

func (s *Server) retrigger(w http.ResponseWriter, r *http.Request) {
	var req retriggerRequest
	if err := decode(r, &req); err != nil {
		RespondError(w, s.log, err)
		return
	}
	if req.RuleID == "" || req.EntityID == "" {
		RespondError(w, s.log, badRequest("api: rule_id and entity_id are required"))
		return
	}
	if err := s.deps.Automation.Retrigger(r.Context(), tenantFrom(r.Context()), req.RuleID, req.EntityID); err != nil {
		RespondError(w, s.log, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
}

func (s *Server) callWebhook(w http.ResponseWriter, r *http.Request) {
	var call insights.Call
	if err := decode(r, &call); err != nil {
		RespondError(w, s.log, err)
		return
	}
	call.TenantID = tenantFrom(r.Context())
	ci, err := s.deps.Insights.Analyze(r.Context(), call)
	if err != nil {
		RespondError(w, s.log, err)
		return
	}
	RespondJSON(w, http.StatusCreated, ci)
}
