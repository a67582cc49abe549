package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"shgbook/internal/core"
)

type createUserRequest struct {
	UID string `json:"uid"`
	core.UserPatch
}

func (s *Server) userRoutes(r chi.Router) {
	r.Get("/users", s.handleUsers)
	r.Post("/users", s.handleCreateUser)
	r.Get("/users/{uid}", s.handleUser)
	r.Patch("/users/{uid}", s.handleUpdateUser)
	r.Delete("/users/{uid}", s.handleDeleteUser)
	r.Post("/users/{uid}/deactivate", s.handleUserStatus(false))
	r.Post("/users/{uid}/reactivate", s.handleUserStatus(true))
}

func pathUID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "uid"))
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.Users(r.Context(), actor(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if users == nil {
		users = []core.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Users.User(r.Context(), actor(r), pathUID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.svc.Users.CreateUser(r.Context(), actor(r), strings.TrimSpace(req.UID), req.UserPatch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var patch core.UserPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.svc.Users.UpdateUser(r.Context(), actor(r), pathUID(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUserStatus(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			u   core.User
			err error
		)
		if active {
			u, err = s.svc.Users.ReactivateUser(r.Context(), actor(r), pathUID(r))
		} else {
			u, err = s.svc.Users.DeactivateUser(r.Context(), actor(r), pathUID(r))
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Users.DeleteUser(r.Context(), actor(r), pathUID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
