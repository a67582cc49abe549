package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"shgbook/internal/core"
)

func (s *Server) sessionRoutes(r chi.Router) {
	r.Get("/me", s.handleMe)
	r.Post("/session/login", s.handleSession(core.ActivityLogin))
	r.Post("/session/logout", s.handleSession(core.ActivityLogout))
	r.Get("/activity", s.handleActivity)
	r.Get("/activity/events", s.handleActivityEvents)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	a := actor(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"uid":      a.UID,
		"username": a.Username,
		"role":     a.Role,
		"status":   a.Status,
		"isAdmin":  a.IsAdmin(),
	})
}

func (s *Server) handleSession(kind core.ActivityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.svc.Users.RecordSession(r.Context(), actor(r), kind); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	count, err := queryInt(r, "count", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.svc.Audit.Recent(r.Context(), count)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Activity{}
	}
	writeJSON(w, http.StatusOK, items)
}
