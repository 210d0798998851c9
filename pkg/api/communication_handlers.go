package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridiancrm/meridian/pkg/audit"
	"github.com/meridiancrm/meridian/pkg/crm"
	"github.com/meridiancrm/meridian/pkg/httputil"
)

func (s *Server) communicationRoutes(router *mux.Router) {
	router.HandleFunc("/communications", s.handleListCommunications).Methods(http.MethodGet)
	router.HandleFunc("/communications", s.handleCreateCommunication).Methods(http.MethodPost)
	router.HandleFunc("/communications/{entityType}/{entityId:[0-9]+}", s.handleListRelatedCommunications).Methods(http.MethodGet)
	router.HandleFunc("/communications/{id:[0-9]+}", s.handleUpdateCommunication).Methods(http.MethodPut)
	router.HandleFunc("/communications/{id:[0-9]+}", s.handleDeleteCommunication).Methods(http.MethodDelete)
}

func (s *Server) handleListCommunications(w http.ResponseWriter, r *http.Request) {
	search, limit, offset, err := listParams(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	filter := crm.CommunicationFilter{Search: search, Limit: limit, Offset: offset}
	if raw := httputil.ParseQueryString(r, "type", ""); raw != "" {
		commType := crm.CommunicationType(raw)
		filter.Type = &commType
	}

	comms, err := s.cfg.Comms.List(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteList(w, map[string]interface{}{"communications": comms}, len(comms))
}

// handleListRelatedCommunications lists the timeline for one record,
// e.g. GET /api/communications/lead/42
func (s *Server) handleListRelatedCommunications(w http.ResponseWriter, r *http.Request) {
	entityType, err := httputil.ParsePathString(r, "entityType")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	entityID, err := httputil.ParsePathInt64(r, "entityId")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	_, limit, offset, err := listParams(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	comms, err := s.cfg.Comms.List(r.Context(), crm.CommunicationFilter{
		RelatedKind: &entityType,
		RelatedID:   &entityID,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteList(w, map[string]interface{}{"communications": comms}, len(comms))
}

func (s *Server) handleCreateCommunication(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var comm crm.Communication
	if err := httputil.ParseJSON(r, &comm); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := httputil.RequireNonEmpty(comm.Subject, "subject"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := httputil.RequireNonEmpty(string(comm.Type), "type"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	comm.CreatedBy = &act.ID

	created, err := s.cfg.Comms.Create(r.Context(), &comm)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionCreate, audit.EntityCommunication, created.ID,
		audit.NewCreateDetails(map[string]interface{}{
			"subject": created.Subject,
			"type":    created.Type,
		}))

	httputil.WriteMessage(w, http.StatusCreated, "Communication logged successfully",
		map[string]interface{}{"communication": created})
}

func (s *Server) handleUpdateCommunication(w http.ResponseWriter, r *http.Request) {
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

	var update crm.CommunicationUpdate
	if err := httputil.ParseJSON(r, &update); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	updated, err := s.cfg.Comms.Update(r.Context(), id, update)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionUpdate, audit.EntityCommunication, id, audit.NewUpdateDetails(update))

	httputil.WriteMessage(w, http.StatusOK, "Communication updated successfully",
		map[string]interface{}{"communication": updated})
}

func (s *Server) handleDeleteCommunication(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.cfg.Comms.GetByID(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	if err := s.cfg.Comms.Delete(r.Context(), id); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionDelete, audit.EntityCommunication, id,
		audit.NewDeleteDetails(existing.Subject))

	httputil.WriteMessage(w, http.StatusOK, "Communication deleted successfully", nil)
}
