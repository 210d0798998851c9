package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridiancrm/meridian/pkg/audit"
	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/httputil"
)

func (s *Server) userRoutes(router *mux.Router) {
	router.Handle("/users",
		s.requireRoles(s.handleListUsers, auth.RoleSystemAdmin, auth.RoleSalesManager)).Methods(http.MethodGet)
	router.Handle("/users",
		s.requireRoles(s.handleCreateUser, auth.RoleSystemAdmin)).Methods(http.MethodPost)
	router.HandleFunc("/users/{id:[0-9]+}", s.handleGetUser).Methods(http.MethodGet)
	router.HandleFunc("/users/{id:[0-9]+}", s.handleUpdateUser).Methods(http.MethodPut)
	router.Handle("/users/{id:[0-9]+}",
		s.requireRoles(s.handleDeleteUser, auth.RoleSystemAdmin)).Methods(http.MethodDelete)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	search, limit, offset, err := listParams(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	filter := auth.UserFilter{Search: search, Limit: limit, Offset: offset}
	if role := httputil.ParseQueryString(r, "role", ""); role != "" {
		parsed, err := auth.ParseRole(role)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.Role = &parsed
	}
	if raw := httputil.ParseQueryString(r, "is_active", ""); raw != "" {
		isActive, err := httputil.ParseQueryBool(r, "is_active", true)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.IsActive = &isActive
	}

	users, err := s.cfg.Auth.ListUsers(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteList(w, map[string]interface{}{"users": users}, len(users))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	user, err := s.cfg.Auth.GetUser(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"user": user})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	var req auth.RegisterRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	user, err := s.cfg.Auth.CreateUser(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionCreate, audit.EntityUser, user.ID,
		audit.NewCreateDetails(map[string]interface{}{"email": user.Email, "role": user.Role}))

	httputil.WriteMessage(w, http.StatusCreated, "User created successfully",
		map[string]interface{}{"user": user})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
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

	var update auth.UserUpdate
	if err := httputil.ParseJSON(r, &update); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	user, err := s.cfg.Auth.UpdateUser(r.Context(), act, id, update)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionUpdate, audit.EntityUser, user.ID, audit.NewUpdateDetails(update))

	httputil.WriteMessage(w, http.StatusOK, "User updated successfully",
		map[string]interface{}{"user": user})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
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

	user, err := s.cfg.Auth.DeleteUser(r.Context(), act, id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionDelete, audit.EntityUser, id, audit.NewDeleteDetails(user.Email))

	httputil.WriteMessage(w, http.StatusOK, "User deleted successfully", nil)
}
