package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"shgbook/internal/core"
)

func (s *Server) groupRoutes(r chi.Router) {
	r.Get("/group", s.handleGroup)
	r.Patch("/group", s.handleUpdateGroup)
	r.Post("/group/close", s.handleSetClosed(true))
	r.Post("/group/reopen", s.handleSetClosed(false))
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.svc.Group.GroupInfo(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var patch core.GroupPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.svc.Group.UpdateGroupInfo(r.Context(), actor(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Rate changes only reach stored years through recalculation, but the
	// cached views are cheap to rebuild.
	s.invalidateAll()
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleSetClosed(closed bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			g   core.GroupInfo
			err error
		)
		if closed {
			g, err = s.svc.Group.CloseGroup(r.Context(), actor(r))
		} else {
			g, err = s.svc.Group.ReopenGroup(r.Context(), actor(r))
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}
