package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridiancrm/meridian/pkg/audit"
	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/crm"
	"github.com/meridiancrm/meridian/pkg/httputil"
)

func (s *Server) campaignRoutes(router *mux.Router) {
	router.HandleFunc("/campaigns", s.handleListCampaigns).Methods(http.MethodGet)
	router.Handle("/campaigns",
		s.requireRoles(s.handleCreateCampaign, auth.RoleMarketingExecutive, auth.RoleSystemAdmin)).Methods(http.MethodPost)
	router.HandleFunc("/campaigns/{id:[0-9]+}", s.handleGetCampaign).Methods(http.MethodGet)
	router.Handle("/campaigns/{id:[0-9]+}",
		s.requireRoles(s.handleUpdateCampaign, auth.RoleMarketingExecutive, auth.RoleSystemAdmin)).Methods(http.MethodPut)
	router.Handle("/campaigns/{id:[0-9]+}",
		s.requireRoles(s.handleDeleteCampaign, auth.RoleMarketingExecutive, auth.RoleSystemAdmin)).Methods(http.MethodDelete)
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	search, limit, offset, err := listParams(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	filter := crm.CampaignFilter{Search: search, Limit: limit, Offset: offset}
	if raw := httputil.ParseQueryString(r, "status", ""); raw != "" {
		filter.Status = &raw
	}
	if raw := httputil.ParseQueryString(r, "type", ""); raw != "" {
		filter.Type = &raw
	}

	campaigns, err := s.cfg.Campaigns.List(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteList(w, map[string]interface{}{"campaigns": campaigns}, len(campaigns))
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	campaign, err := s.cfg.Campaigns.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"campaign": campaign})
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var campaign crm.Campaign
	if err := httputil.ParseJSON(r, &campaign); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := httputil.RequireNonEmpty(campaign.Name, "name"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	campaign.CreatedBy = &act.ID

	created, err := s.cfg.Campaigns.Create(r.Context(), &campaign)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionCreate, audit.EntityCampaign, created.ID,
		audit.NewCreateDetails(map[string]interface{}{
			"name": created.Name,
			"type": created.Type,
		}))

	httputil.WriteMessage(w, http.StatusCreated, "Campaign created successfully",
		map[string]interface{}{"campaign": created})
}

func (s *Server) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var update crm.CampaignUpdate
	if err := httputil.ParseJSON(r, &update); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	updated, err := s.cfg.Campaigns.Update(r.Context(), id, update)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionUpdate, audit.EntityCampaign, id, audit.NewUpdateDetails(update))

	httputil.WriteMessage(w, http.StatusOK, "Campaign updated successfully",
		map[string]interface{}{"campaign": updated})
}

func (s *Server) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	existing, err := s.cfg.Campaigns.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	if err := s.cfg.Campaigns.Delete(r.Context(), id); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionDelete, audit.EntityCampaign, id,
		audit.NewDeleteDetails(existing.Name))

	httputil.WriteMessage(w, http.StatusOK, "Campaign deleted successfully", nil)
}
