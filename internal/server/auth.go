package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/me/labflow/internal/auth"
	"github.com/me/labflow/pkg/model"
)

// SessionFromContext returns the session attached by sessionMiddleware, or nil.
func SessionFromContext(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(ctxKeySession).(*model.Session)
	return sess
}

// sessionMiddleware resolves a Bearer token (or the UI session cookie) and
// attaches the session to the context. Requests without credentials pass
// through anonymously; an unknown or expired token is rejected.
func sessionMiddleware(sm *auth.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := RequestIDFromContext(r.Context())

			lookup := sm.GetSessionFromRequest
			if r.Header.Get("Authorization") != "" {
				lookup = sm.GetSessionFromBearer
			}
			sess, err := lookup(r)
			if err != nil {
				logger.Error("session lookup failed", "error", err, "request_id", reqID)
				respondError(w, reqID, http.StatusInternalServerError, &model.APIError{
					Code:    model.ErrInternal,
					Message: "authentication error",
				})
				return
			}
			if sess == nil && r.Header.Get("Authorization") != "" {
				respondError(w, reqID, http.StatusUnauthorized, &model.APIError{
					Code:    model.ErrUnauthorized,
					Message: "invalid or expired session token",
				})
				return
			}
			if sess != nil {
				r = r.WithContext(context.WithValue(r.Context(), ctxKeySession, sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireUser rejects anonymous requests.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFromContext(r.Context()) == nil {
			respondError(w, RequestIDFromContext(r.Context()), http.StatusUnauthorized, &model.APIError{
				Code:    model.ErrUnauthorized,
				Message: "authentication required",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin is middleware that checks if the user has admin role.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := RequestIDFromContext(r.Context())
		sess := SessionFromContext(r.Context())

		if sess == nil {
			respondError(w, reqID, http.StatusUnauthorized, &model.APIError{
				Code:    model.ErrUnauthorized,
				Message: "authentication required",
			})
			return
		}

		if !sess.IsAdmin() {
			respondError(w, reqID, http.StatusForbidden, &model.APIError{
				Code:    model.ErrForbidden,
				Message: "admin access required",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isAdmin reports whether the request carries an admin session.
func isAdmin(r *http.Request) bool {
	sess := SessionFromContext(r.Context())
	return sess != nil && sess.IsAdmin()
}
