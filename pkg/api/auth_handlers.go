package api

import (
	"net/http"

	"github.com/meridiancrm/meridian/pkg/audit"
	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/httputil"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	user, err := s.cfg.Auth.Register(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, user, audit.ActionCreate, audit.EntityUser, user.ID,
		audit.NewCreateDetails(map[string]interface{}{"email": user.Email, "role": user.Role}))

	httputil.WriteMessage(w, http.StatusCreated, "User registered successfully",
		map[string]interface{}{"user": user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	user, pair, err := s.cfg.Auth.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, user, audit.ActionLogin, audit.EntityUser, user.ID, nil)

	httputil.WriteMessage(w, http.StatusOK, "Login successful", map[string]interface{}{
		"user":   user,
		"tokens": pair,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	pair, err := s.cfg.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"tokens": pair})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	// body is optional; logout still revokes the access token alone
	var req logoutRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := httputil.ParseJSON(r, &req); err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
	}

	if err := s.cfg.Auth.Logout(r.Context(), auth.BearerToken(r), req.RefreshToken); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	s.record(r, act, audit.ActionLogout, audit.EntityUser, act.ID, nil)

	httputil.WriteMessage(w, http.StatusOK, "Logged out successfully", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"user": act})
}
