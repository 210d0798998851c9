package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridiancrm/meridian/pkg/audit"
	"github.com/meridiancrm/meridian/pkg/crm"
	"github.com/meridiancrm/meridian/pkg/httputil"
	"github.com/meridiancrm/meridian/pkg/notifications"
)

func (s *Server) accountRoutes(router *mux.Router) {
	router.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	router.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	router.HandleFunc("/accounts/{id:[0-9]+}", s.handleGetAccount).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{id:[0-9]+}", s.handleUpdateAccount).Methods(http.MethodPut)
	router.HandleFunc("/accounts/{id:[0-9]+}", s.handleDeleteAccount).Methods(http.MethodDelete)
}

func accountEntity(a *crm.Account) notifications.Entity {
	return notifications.Entity{Kind: "account", ID: a.ID, Label: a.Name}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
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

	filter := crm.AccountFilter{
		Search:     search,
		Limit:      limit,
		Offset:     offset,
		AssignedTo: crm.ScopeAssignee(s.cfg.Policy, act, requested),
	}
	if raw := httputil.ParseQueryString(r, "type", ""); raw != "" {
		accountType, err := crm.ParseAccountType(raw)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.Type = &accountType
	}

	accounts, err := s.cfg.Accounts.List(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteList(w, map[string]interface{}{"accounts": accounts}, len(accounts))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
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

	account, err := s.cfg.Accounts.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, account.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"account": account})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var account crm.Account
	if err := httputil.ParseJSON(r, &account); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := httputil.RequireNonEmpty(account.Name, "name"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if account.Type != "" {
		if _, err := crm.ParseAccountType(string(account.Type)); err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
	}

	explicitAssignee := account.AssignedTo
	account.AssignedTo = crm.DefaultAssignee(act, account.AssignedTo)

	created, err := s.cfg.Accounts.Create(r.Context(), &account)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.cfg.Fanout.Created(r.Context(), act, accountEntity(created), explicitAssignee)
	s.record(r, act, audit.ActionCreate, audit.EntityAccount, created.ID,
		audit.NewCreateDetails(map[string]interface{}{
			"name": created.Name,
			"type": created.Type,
		}))

	httputil.WriteMessage(w, http.StatusCreated, "Account created successfully",
		map[string]interface{}{"account": created})
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.cfg.Accounts.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, existing.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var update crm.AccountUpdate
	if err := httputil.ParseJSON(r, &update); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if update.Type != nil {
		if _, err := crm.ParseAccountType(string(*update.Type)); err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
	}

	updated, err := s.cfg.Accounts.Update(r.Context(), id, update)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	if update.AssignedTo != nil {
		s.cfg.Fanout.Reassigned(r.Context(), act, accountEntity(updated), existing.AssignedTo, update.AssignedTo)
	}
	s.record(r, act, audit.ActionUpdate, audit.EntityAccount, id, audit.NewUpdateDetails(update))

	httputil.WriteMessage(w, http.StatusOK, "Account updated successfully",
		map[string]interface{}{"account": updated})
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.cfg.Accounts.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, existing.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	if err := s.cfg.Accounts.Delete(r.Context(), id); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionDelete, audit.EntityAccount, id,
		audit.NewDeleteDetails(existing.Name))

	httputil.WriteMessage(w, http.StatusOK, "Account deleted successfully", nil)
}
