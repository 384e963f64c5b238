package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/labflow/pkg/model"
)

// handleListUsers returns all registered users.
// GET /api/v1/admin/users
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			model.NewInternalError(err.Error()))
		return
	}

	respondOK(w, reqID, users)
}

// handleSetUserRole updates a user's role. Existing sessions keep the role
// they were opened with until they expire.
// PUT /api/v1/admin/users/{id}/role
func (s *Server) handleSetUserRole(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req struct {
		Role string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	role := model.UserRole(req.Role)
	if role != model.RoleUser && role != model.RoleAdmin {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "role must be 'user' or 'admin'",
		})
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			model.NewInternalError(err.Error()))
		return
	}
	if user == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("user", id))
		return
	}

	// Admins cannot demote themselves.
	if sess := SessionFromContext(r.Context()); sess != nil && sess.UserID == id && role != model.RoleAdmin {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "cannot remove your own admin role",
		})
		return
	}

	user.Role = role
	if err := s.store.UpdateUser(r.Context(), user); err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			model.NewInternalError(err.Error()))
		return
	}

	s.logger.Info("user role updated", "user_id", id, "role", role)
	respondOK(w, reqID, user)
}
