package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"shgbook/internal/core"
)

type memberRequest struct {
	Name   string `json:"name"`
	NameTA string `json:"nameTA"`
}

func (s *Server) memberRoutes(r chi.Router) {
	r.Get("/members", s.handleMembers)
	r.Post("/members", s.handleAddMember)
	r.Get("/members/events", s.handleMemberEvents)
	r.Get("/members/{id}", s.handleMember)
	r.Patch("/members/{id}", s.handleEditMember)
	r.Delete("/members/{id}", s.handleRemoveMember)
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.Members.Members(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if members == nil {
		members = []core.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Members.Member(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Members.AddMember(r.Context(), actor(r), req.Name, req.NameTA)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAll()
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleEditMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Members.EditMember(r.Context(), actor(r), id, req.Name, req.NameTA)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Members.RemoveMember(r.Context(), actor(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAll()
	w.WriteHeader(http.StatusNoContent)
}
