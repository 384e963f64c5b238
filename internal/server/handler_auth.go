package server

import (
	"net/http"
	"time"

	"github.com/me/labflow/pkg/model"
)

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// sessionResponse carries the bearer token for API clients.
type sessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

func newSessionResponse(u *model.User, sess *model.Session) sessionResponse {
	return sessionResponse{Token: sess.ID, ExpiresAt: sess.ExpiresAt.UTC(), User: u}
}

// handleSignup creates an account.
// POST /api/v1/auth/signup
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	u, sess, err := s.accounts.Signup(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, newSessionResponse(u, sess))
}

// handleLogin opens a session.
// POST /api/v1/auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}
	u, sess, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, newSessionResponse(u, sess))
}

// handleLogout ends the caller's session.
// POST /api/v1/auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess := SessionFromContext(r.Context())

	if err := s.accounts.Logout(r.Context(), sess.ID); err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"logged_out": true})
}

// handleMe returns the signed-in user.
// GET /api/v1/auth/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess := SessionFromContext(r.Context())

	u, err := s.accounts.CurrentUser(r.Context(), sess)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if u == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("user", sess.UserID))
		return
	}
	respondOK(w, reqID, u)
}
