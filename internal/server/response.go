package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/me/labflow/internal/assaygraph"
	"github.com/me/labflow/internal/auth"
	"github.com/me/labflow/internal/catalog"
	"github.com/me/labflow/internal/store"
	"github.com/me/labflow/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil, nil)
}

// respondCreated writes a 201 response with the standard envelope.
func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil, nil)
}

// respondList writes a success response with pagination.
func respondList(w http.ResponseWriter, reqID string, data any, pg *model.Pagination) {
	respondJSON(w, http.StatusOK, reqID, data, pg, nil)
}

// respondError writes an error response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, apiErr *model.APIError) {
	respondJSON(w, status, reqID, nil, nil, apiErr)
}

// respondErr maps a domain error to a status code and API error.
func respondErr(w http.ResponseWriter, reqID string, err error) {
	var verr *model.ValidationError
	var terr *model.InvalidTransitionError
	var cerr *assaygraph.CycleError
	switch {
	case errors.As(err, &verr):
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(verr.Error(), verr.Fields...))
	case errors.As(err, &cerr):
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError(cerr.Error(),
			model.FieldError{Field: "dependencies", Message: cerr.Error()}))
	case errors.Is(err, store.ErrNotFound), errors.Is(err, catalog.ErrWorkflowNotFound):
		respondError(w, reqID, http.StatusNotFound, &model.APIError{Code: model.ErrNotFound, Message: err.Error()})
	case errors.As(err, &terr), errors.Is(err, catalog.ErrRunClosed),
		errors.Is(err, store.ErrDuplicate), errors.Is(err, auth.ErrEmailTaken):
		respondError(w, reqID, http.StatusConflict, &model.APIError{Code: model.ErrConflict, Message: err.Error()})
	case errors.Is(err, catalog.ErrNoAssays), errors.Is(err, catalog.ErrNoSteps):
		respondError(w, reqID, http.StatusUnprocessableEntity, &model.APIError{Code: model.ErrValidation, Message: err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, reqID, http.StatusUnauthorized, &model.APIError{Code: model.ErrUnauthorized, Message: err.Error()})
	default:
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
	}
}

// decodeJSON decodes the request body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, RequestIDFromContext(r.Context()), http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return false
	}
	return true
}

// listOptions reads limit, offset, and the common filters from the query.
func listOptions(r *http.Request) model.ListOptions {
	q := r.URL.Query()
	opts := model.DefaultListOptions()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = v
	}
	opts.Clamp()
	opts.ProjectID = q.Get("project_id")
	opts.WorkflowID = q.Get("workflow_id")
	opts.Status = q.Get("status")
	opts.Search = q.Get("q")
	return opts
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, pg *model.Pagination, apiErr *model.APIError) {
	resp := model.Response{
		RequestID:  reqID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
		Pagination: pg,
		Error:      apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
