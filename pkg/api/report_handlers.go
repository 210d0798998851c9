package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/meridiancrm/meridian/pkg/apperr"
	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/crm"
	"github.com/meridiancrm/meridian/pkg/httputil"
)

func (s *Server) reportRoutes(router *mux.Router) {
	router.Handle("/reports/sales", s.requireRoles(s.handleSalesReport,
		auth.RoleSalesManager, auth.RoleSystemAdmin, auth.RoleSalesExecutive)).Methods(http.MethodGet)
	router.HandleFunc("/reports/leads", s.handleLeadsReport).Methods(http.MethodGet)
	router.Handle("/reports/productivity", s.requireRoles(s.handleProductivityReport,
		auth.RoleSalesManager, auth.RoleSystemAdmin)).Methods(http.MethodGet)
	router.Handle("/reports/campaigns", s.requireRoles(s.handleCampaignReport,
		auth.RoleMarketingExecutive, auth.RoleSystemAdmin)).Methods(http.MethodGet)
}

// reportFilter builds the date window from start_date/end_date and
// applies the actor's row scope
func (s *Server) reportFilter(r *http.Request, act *auth.User) (crm.ReportFilter, error) {
	var filter crm.ReportFilter

	if raw := httputil.ParseQueryString(r, "start_date", ""); raw != "" {
		from, err := parseReportDate(raw)
		if err != nil {
			return filter, err
		}
		filter.From = &from
	}
	if raw := httputil.ParseQueryString(r, "end_date", ""); raw != "" {
		to, err := parseReportDate(raw)
		if err != nil {
			return filter, err
		}
		filter.To = &to
	}

	filter.AssignedTo = crm.ScopeAssignee(s.cfg.Policy, act, nil)
	return filter, nil
}

// parseReportDate accepts RFC 3339 or a bare calendar date
func parseReportDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperr.InvalidInput("invalid report date: %s", raw)
	}
	return t, nil
}

func (s *Server) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	filter, err := s.reportFilter(r, act)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	report, err := s.cfg.Reports.Sales(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, report)
}

func (s *Server) handleLeadsReport(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	filter, err := s.reportFilter(r, act)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	report, err := s.cfg.Reports.Leads(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, report)
}

func (s *Server) handleProductivityReport(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	filter, err := s.reportFilter(r, act)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	report, err := s.cfg.Reports.Productivity(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"productivity": report})
}

func (s *Server) handleCampaignReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.cfg.Reports.Campaigns(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"campaign_performance": report})
}
