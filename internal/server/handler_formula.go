package server

import (
	"net/http"
	"strings"

	"github.com/me/labflow/internal/formula"
	"github.com/me/labflow/pkg/model"
)

type evaluateRequest struct {
	Formula    string         `json:"formula"`
	Parameters map[string]any `json:"parameters"`
}

type evaluateResponse struct {
	Formula      string   `json:"formula"`
	Expression   string   `json:"expression"`
	Dependencies []string `json:"dependencies"`
	Value        float64  `json:"value"`
	Error        string   `json:"error,omitempty"`
}

// handleEvaluateFormula previews a step formula. Evaluation failures are
// reported in the body with value 0, not as an HTTP error.
// POST /api/v1/formula/evaluate
func (s *Server) handleEvaluateFormula(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req evaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Formula) == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("missing required field",
				model.FieldError{Field: "formula", Message: "formula is required"}))
		return
	}

	res := evaluateResponse{
		Formula:      req.Formula,
		Expression:   formula.Substitute(req.Formula, req.Parameters),
		Dependencies: formula.Dependencies(req.Formula),
	}
	v, err := s.evaluator.Evaluate(req.Formula, req.Parameters)
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Value = v
	}
	respondOK(w, reqID, res)
}
