package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/labflow/internal/assaygraph"
	"github.com/me/labflow/pkg/model"
)

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	opts := listOptions(r)
	if !isAdmin(r) {
		opts.Status = string(model.StatusPublished)
	}

	workflows, total, err := s.catalog.FetchWorkflows(r.Context(), opts)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondList(w, reqID, workflows, model.NewPagination(opts, total))
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	wf, ok := s.loadWorkflow(w, r)
	if !ok {
		return
	}
	respondOK(w, reqID, wf)
}

// loadWorkflow fetches the {id} workflow, writing a 404 or 500 on failure.
// Unpublished workflows are only visible to admins.
func (s *Server) loadWorkflow(w http.ResponseWriter, r *http.Request) (*model.Workflow, bool) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	wf, err := s.catalog.GetWorkflow(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return nil, false
	}
	if wf == nil || (!wf.IsPublished() && !isAdmin(r)) {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("workflow", id))
		return nil, false
	}
	return wf, true
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req model.Workflow
	if !decodeJSON(w, r, &req) {
		return
	}
	if sess := SessionFromContext(r.Context()); sess != nil {
		req.CreatedBy = sess.UserID
	}

	wf, err := s.catalog.CreateWorkflow(r.Context(), &req)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, wf)
}

// handleImportWorkflow creates a workflow together with its inline assays
// and steps.
// POST /api/v1/workflows/import
func (s *Server) handleImportWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var def model.WorkflowDefinition
	if !decodeJSON(w, r, &def) {
		return
	}
	var createdBy string
	if sess := SessionFromContext(r.Context()); sess != nil {
		createdBy = sess.UserID
	}

	wf, err := s.catalog.ImportWorkflow(r.Context(), &def, createdBy)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, wf)
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var patch model.WorkflowPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	wf, err := s.catalog.UpdateWorkflow(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, wf)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if err := s.catalog.DeleteWorkflow(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"deleted": true})
}

// handleListWorkflowAssays returns the workflow's assays in the order a run
// visits them.
// GET /api/v1/workflows/{id}/assays
func (s *Server) handleListWorkflowAssays(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	wf, ok := s.loadWorkflow(w, r)
	if !ok {
		return
	}
	assays, err := s.catalog.WorkflowAssays(r.Context(), wf)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, assays)
}

type graphResponse struct {
	*assaygraph.Graph
	Order []string `json:"order"`
}

// handleGetWorkflowGraph renders the workflow as editor nodes and edges.
// GET /api/v1/workflows/{id}/graph
func (s *Server) handleGetWorkflowGraph(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	wf, ok := s.loadWorkflow(w, r)
	if !ok {
		return
	}
	assays, err := s.catalog.WorkflowAssays(r.Context(), wf)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	labels := make(map[string]string, len(assays))
	for _, a := range assays {
		labels[a.ID] = a.Title
	}

	g, err := assaygraph.FromWorkflow(wf, labels)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	order, err := g.Order()
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, graphResponse{Graph: g, Order: order})
}

type graphValidation struct {
	Valid        bool                    `json:"valid"`
	Errors       []string                `json:"errors"`
	AssayIDs     []string                `json:"assay_ids"`
	Dependencies []model.AssayDependency `json:"dependencies"`
	Order        []string                `json:"order"`
}

// handleValidateGraph replays an editor canvas through the graph rules and
// reports the workflow fields it would produce.
// POST /api/v1/workflows/graph/validate
func (s *Server) handleValidateGraph(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req assaygraph.Graph
	if !decodeJSON(w, r, &req) {
		return
	}

	res := graphValidation{Errors: []string{}}
	g := assaygraph.New()
	for _, n := range req.Nodes {
		assayID := n.AssayID
		if assayID == "" {
			assayID = assaygraph.AssayIDOf(n.ID)
		}
		if _, err := g.AddNode(assayID, n.Label, n.Position); err != nil {
			res.Errors = append(res.Errors, n.ID+": "+err.Error())
		}
	}
	for _, e := range req.Edges {
		if _, err := g.Connect(e.Source, e.Target); err != nil {
			res.Errors = append(res.Errors, e.Source+" -> "+e.Target+": "+err.Error())
		}
	}

	res.AssayIDs = g.AssayIDs()
	res.Dependencies = g.Dependencies()
	order, err := g.Order()
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		order = []string{}
	}
	res.Order = order
	res.Valid = len(res.Errors) == 0
	respondOK(w, reqID, res)
}
