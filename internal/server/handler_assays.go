package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/labflow/internal/formula"
	"github.com/me/labflow/pkg/model"
)

func (s *Server) handleListAssays(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	opts := listOptions(r)

	assays, total, err := s.catalog.FetchAssays(r.Context(), opts)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondList(w, reqID, assays, model.NewPagination(opts, total))
}

// loadAssay fetches the {id} assay, writing a 404 or 500 on failure.
func (s *Server) loadAssay(w http.ResponseWriter, r *http.Request) (*model.Assay, bool) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	a, err := s.catalog.GetAssay(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return nil, false
	}
	if a == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("assay", id))
		return nil, false
	}
	return a, true
}

func (s *Server) handleGetAssay(w http.ResponseWriter, r *http.Request) {
	if a, ok := s.loadAssay(w, r); ok {
		respondOK(w, RequestIDFromContext(r.Context()), a)
	}
}

func (s *Server) handleCreateAssay(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req model.Assay
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := s.catalog.CreateAssay(r.Context(), &req)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, a)
}

// importedAssay is an assay with the steps created alongside it.
type importedAssay struct {
	*model.Assay
	Steps []*model.Step `json:"steps"`
}

// handleImportAssay creates an assay and its inline steps.
// POST /api/v1/assays/import
func (s *Server) handleImportAssay(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var def model.AssayDefinition
	if !decodeJSON(w, r, &def) {
		return
	}
	a, steps, err := s.catalog.ImportAssay(r.Context(), "", &def)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, importedAssay{Assay: a, Steps: steps})
}

func (s *Server) handleUpdateAssay(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var patch model.AssayPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	a, err := s.catalog.UpdateAssay(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, a)
}

func (s *Server) handleDeleteAssay(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if err := s.catalog.DeleteAssay(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"deleted": true})
}

type quantitiesResponse struct {
	Parameters map[string]any              `json:"parameters"`
	Quantities map[string]formula.Quantity `json:"quantities"`
}

// handleAssayQuantities evaluates every step formula of the assay with
// parameter values from the query string, falling back to declared defaults.
// GET /api/v1/assays/{id}/quantities?sampleCount=4
func (s *Server) handleAssayQuantities(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	a, ok := s.loadAssay(w, r)
	if !ok {
		return
	}
	steps, err := s.catalog.FetchSteps(r.Context(), a.ID)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	params, _ := model.ResolveParameters(a.Parameters, formula.ParseValues(r.URL.Query()))
	respondOK(w, reqID, quantitiesResponse{
		Parameters: params,
		Quantities: s.evaluator.ComputeStepQuantities(steps, params),
	})
}

// --- Steps ---

func (s *Server) handleListSteps(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	a, ok := s.loadAssay(w, r)
	if !ok {
		return
	}
	steps, err := s.catalog.FetchSteps(r.Context(), a.ID)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, steps)
}

func (s *Server) handleCreateStep(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req model.Step
	if !decodeJSON(w, r, &req) {
		return
	}
	req.AssayID = chi.URLParam(r, "id")
	st, err := s.catalog.CreateStep(r.Context(), &req)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, st)
}

func (s *Server) handleGetStep(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	st, err := s.catalog.GetStep(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if st == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("step", id))
		return
	}
	respondOK(w, reqID, st)
}

func (s *Server) handleUpdateStep(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var patch model.StepPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	st, err := s.catalog.UpdateStep(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, st)
}

func (s *Server) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if err := s.catalog.DeleteStep(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"deleted": true})
}
