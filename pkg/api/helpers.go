package api

import (
	"net"
	"net/http"
	"strings"

	"github.com/meridiancrm/meridian/pkg/apperr"
	"github.com/meridiancrm/meridian/pkg/audit"
	"github.com/meridiancrm/meridian/pkg/auth"
	"github.com/meridiancrm/meridian/pkg/httputil"
)

// actor returns the authenticated user; handlers behind the auth
// middleware can rely on it being present
func actor(r *http.Request) (*auth.User, error) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		return nil, apperr.Unauthenticated("authentication required")
	}
	return user, nil
}

// record writes the audit entry for a completed mutation
func (s *Server) record(r *http.Request, act *auth.User, action audit.Action, entityType audit.EntityType, entityID int64, details interface{}) {
	s.cfg.Recorder.Record(r.Context(), audit.Event{
		Actor:      act,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
	})
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// listParams pulls the shared pagination and search parameters
func listParams(r *http.Request) (search string, limit, offset int, err error) {
	search = httputil.ParseQueryString(r, "search", "")
	limit, err = httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		return "", 0, 0, err
	}
	offset, err = httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		return "", 0, 0, err
	}
	return search, limit, offset, nil
}

// queryAssignee parses an optional assigned_to filter
func queryAssignee(r *http.Request) (*int64, error) {
	id, err := httputil.ParseQueryInt64(r, "assigned_to", 0)
	if err != nil {
		return nil, err
	}
	if id == 0 {
		return nil, nil
	}
	return &id, nil
}
