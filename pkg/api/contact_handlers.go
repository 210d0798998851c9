package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridiancrm/meridian/pkg/audit"
	"github.com/meridiancrm/meridian/pkg/crm"
	"github.com/meridiancrm/meridian/pkg/httputil"
	"github.com/meridiancrm/meridian/pkg/notifications"
)

func (s *Server) contactRoutes(router *mux.Router) {
	router.HandleFunc("/contacts", s.handleListContacts).Methods(http.MethodGet)
	router.HandleFunc("/contacts", s.handleCreateContact).Methods(http.MethodPost)
	router.HandleFunc("/contacts/{id:[0-9]+}", s.handleGetContact).Methods(http.MethodGet)
	router.HandleFunc("/contacts/{id:[0-9]+}", s.handleUpdateContact).Methods(http.MethodPut)
	router.HandleFunc("/contacts/{id:[0-9]+}", s.handleDeleteContact).Methods(http.MethodDelete)
}

func contactEntity(c *crm.Contact) notifications.Entity {
	return notifications.Entity{Kind: "contact", ID: c.ID, Label: c.FirstName + " " + c.LastName}
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
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

	filter := crm.ContactFilter{
		Search:     search,
		Limit:      limit,
		Offset:     offset,
		AssignedTo: crm.ScopeAssignee(s.cfg.Policy, act, requested),
	}
	if accountID, err := httputil.ParseQueryInt64(r, "account_id", 0); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	} else if accountID > 0 {
		filter.AccountID = &accountID
	}

	contacts, err := s.cfg.Contacts.List(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteList(w, map[string]interface{}{"contacts": contacts}, len(contacts))
}

func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
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

	contact, err := s.cfg.Contacts.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, contact.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"contact": contact})
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var contact crm.Contact
	if err := httputil.ParseJSON(r, &contact); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := httputil.RequireNonEmpty(contact.FirstName, "first_name"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := httputil.RequireNonEmpty(contact.LastName, "last_name"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	explicitAssignee := contact.AssignedTo
	contact.AssignedTo = crm.DefaultAssignee(act, contact.AssignedTo)

	created, err := s.cfg.Contacts.Create(r.Context(), &contact)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.cfg.Fanout.Created(r.Context(), act, contactEntity(created), explicitAssignee)
	s.record(r, act, audit.ActionCreate, audit.EntityContact, created.ID,
		audit.NewCreateDetails(map[string]interface{}{
			"name":  created.FirstName + " " + created.LastName,
			"email": created.Email,
		}))

	httputil.WriteMessage(w, http.StatusCreated, "Contact created successfully",
		map[string]interface{}{"contact": created})
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.cfg.Contacts.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, existing.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var update crm.ContactUpdate
	if err := httputil.ParseJSON(r, &update); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	updated, err := s.cfg.Contacts.Update(r.Context(), id, update)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	if update.AssignedTo != nil {
		s.cfg.Fanout.Reassigned(r.Context(), act, contactEntity(updated), existing.AssignedTo, update.AssignedTo)
	}
	s.record(r, act, audit.ActionUpdate, audit.EntityContact, id, audit.NewUpdateDetails(update))

	httputil.WriteMessage(w, http.StatusOK, "Contact updated successfully",
		map[string]interface{}{"contact": updated})
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.cfg.Contacts.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := crm.CheckOwnership(s.cfg.Policy, act, existing.AssignedTo); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	if err := s.cfg.Contacts.Delete(r.Context(), id); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionDelete, audit.EntityContact, id,
		audit.NewDeleteDetails(existing.FirstName+" "+existing.LastName))

	httputil.WriteMessage(w, http.StatusOK, "Contact deleted successfully", nil)
}
