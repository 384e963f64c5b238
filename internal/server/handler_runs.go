package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/labflow/internal/catalog"
	"github.com/me/labflow/pkg/model"
)

// runDetail is a run with its position in the workflow.
type runDetail struct {
	*model.UserWorkflow
	Progress catalog.RunProgress `json:"progress"`
}

// handleListRuns lists the caller's runs. Admins may pass user_id to see
// another user's runs, or omit it to see everyone's.
// GET /api/v1/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess := SessionFromContext(r.Context())

	opts := listOptions(r)
	opts.UserID = sess.UserID
	if sess.IsAdmin() {
		opts.UserID = r.URL.Query().Get("user_id")
	}

	runs, total, err := s.catalog.FetchUserWorkflows(r.Context(), opts)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondList(w, reqID, runs, model.NewPagination(opts, total))
}

// handleStartRun starts the caller on a workflow.
// POST /api/v1/runs
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess := SessionFromContext(r.Context())

	var req struct {
		WorkflowID string         `json:"workflow_id"`
		ProjectID  string         `json:"project_id"`
		Parameters map[string]any `json:"parameters"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.WorkflowID == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("missing required field",
				model.FieldError{Field: "workflow_id", Message: "workflow_id is required"}))
		return
	}

	wf, err := s.catalog.GetWorkflow(r.Context(), req.WorkflowID)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if wf == nil || (!wf.IsPublished() && !sess.IsAdmin()) {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("workflow", req.WorkflowID))
		return
	}

	uw, err := s.catalog.StartWorkflow(r.Context(), req.ProjectID, req.WorkflowID, sess.UserID, req.Parameters)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, s.detail(r.Context(), uw))
}

// loadRun fetches the {id} run and checks the caller may see it.
func (s *Server) loadRun(w http.ResponseWriter, r *http.Request) (*model.UserWorkflow, bool) {
	reqID := RequestIDFromContext(r.Context())
	sess := SessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	uw, err := s.catalog.GetUserWorkflow(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return nil, false
	}
	if uw == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return nil, false
	}
	if uw.UserID != sess.UserID && !sess.IsAdmin() {
		respondError(w, reqID, http.StatusForbidden, &model.APIError{
			Code:    model.ErrForbidden,
			Message: "run belongs to another user",
		})
		return nil, false
	}
	return uw, true
}

func (s *Server) detail(ctx context.Context, uw *model.UserWorkflow) runDetail {
	p, err := s.catalog.Progress(ctx, uw)
	if err != nil {
		s.logger.Warn("run progress unavailable", "id", uw.ID, "error", err)
	}
	return runDetail{UserWorkflow: uw, Progress: p}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if uw, ok := s.loadRun(w, r); ok {
		respondOK(w, RequestIDFromContext(r.Context()), s.detail(r.Context(), uw))
	}
}

func (s *Server) handleUpdateRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if _, ok := s.loadRun(w, r); !ok {
		return
	}

	var patch model.UserWorkflowPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	uw, err := s.catalog.UpdateUserWorkflow(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, s.detail(r.Context(), uw))
}

// runAction wraps a lifecycle call in the ownership check.
func (s *Server) runAction(fn func(ctx context.Context, id string) (*model.UserWorkflow, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := RequestIDFromContext(r.Context())
		if _, ok := s.loadRun(w, r); !ok {
			return
		}
		uw, err := fn(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			respondErr(w, reqID, err)
			return
		}
		respondOK(w, reqID, s.detail(r.Context(), uw))
	}
}

func (s *Server) handleAdvanceRun(w http.ResponseWriter, r *http.Request) {
	s.runAction(s.catalog.AdvanceUserWorkflow)(w, r)
}

func (s *Server) handleCompleteRun(w http.ResponseWriter, r *http.Request) {
	s.runAction(s.catalog.CompleteUserWorkflow)(w, r)
}

func (s *Server) handleAbandonRun(w http.ResponseWriter, r *http.Request) {
	s.runAction(s.catalog.AbandonUserWorkflow)(w, r)
}
