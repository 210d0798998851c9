package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridiancrm/meridian/pkg/httputil"
	"github.com/meridiancrm/meridian/pkg/notifications"
)

func (s *Server) notificationRoutes(router *mux.Router) {
	router.HandleFunc("/notifications", s.handleListNotifications).Methods(http.MethodGet)
	router.HandleFunc("/notifications/read-all", s.handleMarkAllNotificationsRead).Methods(http.MethodPut)
	router.HandleFunc("/notifications/{id:[0-9]+}/read", s.handleMarkNotificationRead).Methods(http.MethodPut)
	router.HandleFunc("/notifications/{id:[0-9]+}", s.handleDeleteNotification).Methods(http.MethodDelete)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	filter := notifications.ListFilter{Limit: limit}
	if raw := httputil.ParseQueryString(r, "is_read", ""); raw != "" {
		isRead, err := httputil.ParseQueryBool(r, "is_read", false)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.IsRead = &isRead
	}
	if raw := httputil.ParseQueryString(r, "type", ""); raw != "" {
		parsed, err := notifications.ParseType(raw)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.Type = &parsed
	}

	list, err := s.cfg.Notifications.ListForUser(r.Context(), act.ID, filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	unread, err := s.cfg.Notifications.CountUnread(r.Context(), act.ID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteList(w, map[string]interface{}{
		"notifications": list,
		"unread_count":  unread,
	}, len(list))
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
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

	n, err := s.cfg.Notifications.MarkRead(r.Context(), id, act.ID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "Notification marked as read",
		map[string]interface{}{"notification": n})
}

func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	act, err := actor(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	if err := s.cfg.Notifications.MarkAllRead(r.Context(), act.ID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "All notifications marked as read", nil)
}

func (s *Server) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
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

	if err := s.cfg.Notifications.Delete(r.Context(), id, act.ID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, "Notification deleted successfully", nil)
}
