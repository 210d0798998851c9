package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridiancrm/meridian/pkg/audit"
	"github.com/meridiancrm/meridian/pkg/crm"
	"github.com/meridiancrm/meridian/pkg/httputil"
	"github.com/meridiancrm/meridian/pkg/notifications"
)

func (s *Server) dealRoutes(router *mux.Router) {
	router.HandleFunc("/deals", s.handleListDeals).Methods(http.MethodGet)
	router.HandleFunc("/deals", s.handleCreateDeal).Methods(http.MethodPost)
	router.HandleFunc("/deals/{id:[0-9]+}", s.handleGetDeal).Methods(http.MethodGet)
	router.HandleFunc("/deals/{id:[0-9]+}", s.handleUpdateDeal).Methods(http.MethodPut)
	router.HandleFunc("/deals/{id:[0-9]+}", s.handleDeleteDeal).Methods(http.MethodDelete)
}

func dealEntity(d *crm.Deal) notifications.Entity {
	return notifications.Entity{Kind: "deal", ID: d.ID, Label: d.Name}
}

func (s *Server) handleListDeals(w http.ResponseWriter, r *http.Request) {
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

	filter := crm.DealFilter{
		Search:     search,
		Limit:      limit,
		Offset:     offset,
		AssignedTo: crm.ScopeAssignee(s.cfg.Policy, act, requested),
	}
	if raw := httputil.ParseQueryString(r, "stage", ""); raw != "" {
		stage, err := crm.ParseDealStage(raw)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.Stage = &stage
	}
	if accountID, err := httputil.ParseQueryInt64(r, "account_id", 0); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	} else if accountID > 0 {
		filter.AccountID = &accountID
	}

	deals, err := s.cfg.Deals.List(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteList(w, map[string]interface{}{"deals": deals}, len(deals))
}

func (s *Server) handleGetDeal(w http.ResponseWriter, r *http.Request) {
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

	deal, err := s.cfg.Deals.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, deal.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"deal": deal})
}

func (s *Server) handleCreateDeal(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var deal crm.Deal
	if err := httputil.ParseJSON(r, &deal); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := httputil.RequireNonEmpty(deal.Name, "name"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if deal.Stage != "" {
		if _, err := crm.ParseDealStage(string(deal.Stage)); err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
	}

	explicitAssignee := deal.AssignedTo
	deal.AssignedTo = crm.DefaultAssignee(act, deal.AssignedTo)

	created, err := s.cfg.Deals.Create(r.Context(), &deal)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.cfg.Fanout.Created(r.Context(), act, dealEntity(created), explicitAssignee)
	s.record(r, act, audit.ActionCreate, audit.EntityDeal, created.ID,
		audit.NewCreateDetails(map[string]interface{}{
			"name":  created.Name,
			"stage": created.Stage,
			"value": created.Value,
		}))

	httputil.WriteMessage(w, http.StatusCreated, "Deal created successfully",
		map[string]interface{}{"deal": created})
}

func (s *Server) handleUpdateDeal(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.cfg.Deals.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, existing.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var update crm.DealUpdate
	if err := httputil.ParseJSON(r, &update); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if update.Stage != nil {
		if _, err := crm.ParseDealStage(string(*update.Stage)); err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
	}

	updated, err := s.cfg.Deals.Update(r.Context(), id, update)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	if update.AssignedTo != nil {
		s.cfg.Fanout.Reassigned(r.Context(), act, dealEntity(updated), existing.AssignedTo, update.AssignedTo)
	}
	if update.Stage != nil {
		s.cfg.Fanout.StatusChanged(r.Context(), act, dealEntity(updated), updated.AssignedTo,
			string(existing.Stage), string(updated.Stage))
	}
	s.record(r, act, audit.ActionUpdate, audit.EntityDeal, id, audit.NewUpdateDetails(update))

	httputil.WriteMessage(w, http.StatusOK, "Deal updated successfully",
		map[string]interface{}{"deal": updated})
}

func (s *Server) handleDeleteDeal(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.cfg.Deals.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, existing.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	if err := s.cfg.Deals.Delete(r.Context(), id); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionDelete, audit.EntityDeal, id,
		audit.NewDeleteDetails(existing.Name))

	httputil.WriteMessage(w, http.StatusOK, "Deal deleted successfully", nil)
}
