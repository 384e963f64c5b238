package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/labflow/pkg/model"
)

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	opts := listOptions(r)

	projects, total, err := s.catalog.FetchProjects(r.Context(), opts)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondList(w, reqID, projects, model.NewPagination(opts, total))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	p, err := s.catalog.GetProject(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if p == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("project", id))
		return
	}
	respondOK(w, reqID, p)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req model.Project
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.catalog.CreateProject(r.Context(), &req)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var patch model.ProjectPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	p, err := s.catalog.UpdateProject(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, p)
}
