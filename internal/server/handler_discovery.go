package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "LabFlow API",
		Version:     "v1",
		Description: "LabFlow lab workflow catalog: workflows, assays, steps, and tracked runs",
		Endpoints: []endpointInfo{
			{"/api/v1/auth/signup", []string{"POST"}, "Create an account and open a session"},
			{"/api/v1/auth/login", []string{"POST"}, "Open a session; returns a bearer token"},
			{"/api/v1/auth/logout", []string{"POST"}, "End the current session"},
			{"/api/v1/auth/me", []string{"GET"}, "Current user"},
			{"/api/v1/projects", []string{"GET", "POST"}, "Project management"},
			{"/api/v1/projects/{id}", []string{"GET", "PUT"}, "Single Project operations"},
			{"/api/v1/workflows", []string{"GET", "POST"}, "Workflow catalog. GET without project_id or status lists published workflows"},
			{"/api/v1/workflows/{id}", []string{"GET", "PUT", "DELETE"}, "Single Workflow operations"},
			{"/api/v1/workflows/{id}/assays", []string{"GET"}, "Workflow assays in dependency order"},
			{"/api/v1/workflows/{id}/graph", []string{"GET"}, "Workflow as an editor graph of assay nodes and edges"},
			{"/api/v1/workflows/graph/validate", []string{"POST"}, "Check an editor graph for cycles and return its order"},
			{"/api/v1/workflows/import", []string{"POST"}, "Create a workflow with inline assays and steps"},
			{"/api/v1/assays/import", []string{"POST"}, "Create an assay with inline steps"},
			{"/api/v1/assays", []string{"GET", "POST"}, "Assay management. Filter with workflow_id"},
			{"/api/v1/assays/{id}", []string{"GET", "PUT", "DELETE"}, "Single Assay operations"},
			{"/api/v1/assays/{id}/steps", []string{"GET", "POST"}, "Steps of an Assay in order"},
			{"/api/v1/assays/{id}/quantities", []string{"GET"}, "Step quantities computed from query parameters"},
			{"/api/v1/steps/{id}", []string{"GET", "PUT", "DELETE"}, "Single Step operations"},
			{"/api/v1/runs", []string{"GET", "POST"}, "Tracked workflow runs of the current user"},
			{"/api/v1/runs/{id}", []string{"GET", "PUT"}, "Single run detail and progress"},
			{"/api/v1/runs/{id}/advance", []string{"POST"}, "Move a run to its next step"},
			{"/api/v1/runs/{id}/complete", []string{"POST"}, "Mark a run completed"},
			{"/api/v1/runs/{id}/abandon", []string{"POST"}, "Mark a run abandoned"},
			{"/api/v1/formula/evaluate", []string{"POST"}, "Evaluate a calculation formula against parameters"},
			{"/api/v1/admin/users", []string{"GET"}, "List users (admin)"},
			{"/api/v1/admin/users/{id}/role", []string{"PUT"}, "Change a user's role (admin)"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
