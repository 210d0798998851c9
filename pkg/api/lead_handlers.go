package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridiancrm/meridian/pkg/audit"
	"github.com/meridiancrm/meridian/pkg/crm"
	"github.com/meridiancrm/meridian/pkg/httputil"
	"github.com/meridiancrm/meridian/pkg/notifications"
)

func (s *Server) leadRoutes(router *mux.Router) {
	router.HandleFunc("/leads", s.handleListLeads).Methods(http.MethodGet)
	router.HandleFunc("/leads", s.handleCreateLead).Methods(http.MethodPost)
	router.HandleFunc("/leads/{id:[0-9]+}", s.handleGetLead).Methods(http.MethodGet)
	router.HandleFunc("/leads/{id:[0-9]+}", s.handleUpdateLead).Methods(http.MethodPut)
	router.HandleFunc("/leads/{id:[0-9]+}", s.handleDeleteLead).Methods(http.MethodDelete)
	router.HandleFunc("/leads/{id:[0-9]+}/convert", s.handleConvertLead).Methods(http.MethodPost)
}

func leadEntity(l *crm.Lead) notifications.Entity {
	return notifications.Entity{Kind: "lead", ID: l.ID, Label: l.FirstName + " " + l.LastName}
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	search, limit, offset, err := listParams(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	requested, err := queryAssignee(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	filter := crm.LeadFilter{
		Search:     search,
		Limit:      limit,
		Offset:     offset,
		AssignedTo: crm.ScopeAssignee(s.cfg.Policy, act, requested),
	}
	if raw := httputil.ParseQueryString(r, "status", ""); raw != "" {
		status, err := crm.ParseLeadStatus(raw)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.Status = &status
	}

	leads, err := s.cfg.Leads.List(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteList(w, map[string]interface{}{"leads": leads}, len(leads))
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
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

	lead, err := s.cfg.Leads.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, lead.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"lead": lead})
}

func (s *Server) handleCreateLead(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var lead crm.Lead
	if err := httputil.ParseJSON(r, &lead); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := httputil.RequireNonEmpty(lead.FirstName, "first_name"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := httputil.RequireNonEmpty(lead.LastName, "last_name"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if lead.Status != "" {
		if _, err := crm.ParseLeadStatus(string(lead.Status)); err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
	}

	explicitAssignee := lead.AssignedTo
	lead.AssignedTo = crm.DefaultAssignee(act, lead.AssignedTo)

	created, err := s.cfg.Leads.Create(r.Context(), &lead)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.cfg.Fanout.Created(r.Context(), act, leadEntity(created), explicitAssignee)
	s.record(r, act, audit.ActionCreate, audit.EntityLead, created.ID,
		audit.NewCreateDetails(map[string]interface{}{
			"name":    created.FirstName + " " + created.LastName,
			"company": created.Company,
			"status":  created.Status,
		}))

	httputil.WriteMessage(w, http.StatusCreated, "Lead created successfully",
		map[string]interface{}{"lead": created})
}

func (s *Server) handleUpdateLead(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.cfg.Leads.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, existing.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var update crm.LeadUpdate
	if err := httputil.ParseJSON(r, &update); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if update.Status != nil {
		if _, err := crm.ParseLeadStatus(string(*update.Status)); err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
	}

	updated, err := s.cfg.Leads.Update(r.Context(), id, update)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	if update.AssignedTo != nil {
		s.cfg.Fanout.Reassigned(r.Context(), act, leadEntity(updated), existing.AssignedTo, update.AssignedTo)
	}
	if update.Status != nil {
		s.cfg.Fanout.StatusChanged(r.Context(), act, leadEntity(updated), updated.AssignedTo,
			string(existing.Status), string(updated.Status))
	}
	s.record(r, act, audit.ActionUpdate, audit.EntityLead, id, audit.NewUpdateDetails(update))

	httputil.WriteMessage(w, http.StatusOK, "Lead updated successfully",
		map[string]interface{}{"lead": updated})
}

func (s *Server) handleDeleteLead(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.cfg.Leads.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, existing.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	if err := s.cfg.Leads.Delete(r.Context(), id); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionDelete, audit.EntityLead, id,
		audit.NewDeleteDetails(existing.FirstName+" "+existing.LastName))

	httputil.WriteMessage(w, http.StatusOK, "Lead deleted successfully", nil)
}

type convertRequest struct {
	ConvertTo []string `json:"convertTo"`
}

func (s *Server) handleConvertLead(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.cfg.Leads.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, existing.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var req convertRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	result, err := s.cfg.Converter.Convert(r.Context(), id, req.ConvertTo)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionConvert, audit.EntityLead, id,
		audit.NewConvertDetails(result.Converted.ContactID, result.Converted.AccountID, result.Converted.DealID))

	httputil.WriteMessage(w, http.StatusOK, "Lead converted successfully", map[string]interface{}{
		"lead":      result.Lead,
		"converted": result.Converted,
	})
}
