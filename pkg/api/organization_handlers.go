package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridiancrm/meridian/pkg/audit"
	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/crm"
	"github.com/meridiancrm/meridian/pkg/httputil"
)

func (s *Server) organizationRoutes(router *mux.Router) {
	router.HandleFunc("/organization", s.handleGetOrganization).Methods(http.MethodGet)
	router.Handle("/organization",
		s.requireRoles(s.handleUpdateOrganization, auth.RoleSystemAdmin)).Methods(http.MethodPut)
}

func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := s.cfg.Org.Get(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"organization": org})
}

func (s *Server) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var update crm.OrganizationUpdate
	if err := httputil.ParseJSON(r, &update); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	org, err := s.cfg.Org.Update(r.Context(), update)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionUpdate, audit.EntityOrganization, org.ID,
		audit.NewUpdateDetails(update))

	httputil.WriteMessage(w, http.StatusOK, "Organization updated successfully",
		map[string]interface{}{"organization": org})
}
