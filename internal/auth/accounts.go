// Package auth implements LabFlow accounts: password hashing, signup and
// login, and the sessions shared by the API and the web UI.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/me/labflow/internal/config"
	"github.com/me/labflow/internal/store"
	"github.com/me/labflow/pkg/model"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 8

var (
	// ErrInvalidCredentials is returned when the email or password is wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")
)

// Accounts registers and authenticates users.
type Accounts struct {
	store    store.Store
	sessions *SessionManager
	isAdmin  func(email string) bool
	params   PasswordParams
	logger   *slog.Logger
	now      func() time.Time
}

// NewAccounts creates an account service. Emails listed in cfg.Admins get
// the admin role.
func NewAccounts(st store.Store, sessions *SessionManager, cfg config.ServerConfig, logger *slog.Logger) *Accounts {
	return &Accounts{
		store:    st,
		sessions: sessions,
		isAdmin:  cfg.IsAdmin,
		params:   DefaultPasswordParams(),
		logger:   logger.With("component", "auth"),
		now:      time.Now,
	}
}

// SetPasswordParams overrides the argon2 cost of new hashes.
func (a *Accounts) SetPasswordParams(p PasswordParams) {
	a.params = p
}

// Sessions returns the session manager.
func (a *Accounts) Sessions() *SessionManager {
	return a.sessions
}

// Signup creates a user and opens a session for it.
func (a *Accounts) Signup(ctx context.Context, email, password, displayName string) (*model.User, *model.Session, error) {
	email = normalizeEmail(email)
	var fields []model.FieldError
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		fields = append(fields, model.FieldError{Field: "email", Message: "a valid email is required"})
	}
	if len(password) < MinPasswordLength {
		fields = append(fields, model.FieldError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", MinPasswordLength)})
	}
	if len(fields) > 0 {
		return nil, nil, &model.ValidationError{Entity: "user", Fields: fields}
	}

	hash, err := HashPassword(password, a.params)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	if strings.TrimSpace(displayName) == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}
	u := &model.User{
		ID:           "user_" + uuid.New().String(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		Role:         model.RoleUser,
		PasswordHash: hash,
		CreatedAt:    a.now(),
	}
	if a.isAdmin(email) {
		u.Role = model.RoleAdmin
	}
	if err := a.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, nil, ErrEmailTaken
		}
		return nil, nil, err
	}

	sess, err := a.sessions.CreateSession(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info("user signed up", "user_id", u.ID, "role", u.Role)
	return u, sess, nil
}

// Login checks the password and opens a session. A user whose email has
// since been configured as an admin is promoted.
func (a *Accounts) Login(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
	u, err := a.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, nil, err
	}
	if u == nil {
		return nil, nil, ErrInvalidCredentials
	}
	ok, err := VerifyPassword(password, u.PasswordHash)
	if err != nil {
		a.logger.Warn("unreadable password hash", "user_id", u.ID, "error", err)
		return nil, nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, nil, ErrInvalidCredentials
	}

	if !u.IsAdmin() && a.isAdmin(u.Email) {
		u.Role = model.RoleAdmin
		if err := a.store.UpdateUser(ctx, u); err != nil {
			return nil, nil, fmt.Errorf("promote user: %w", err)
		}
		a.logger.Info("user promoted to admin", "user_id", u.ID)
	}

	sess, err := a.sessions.CreateSession(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("user logged in", "user_id", u.ID)
	return u, sess, nil
}

// Logout ends the session.
func (a *Accounts) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return a.sessions.DeleteSession(ctx, sessionID)
}

// CurrentUser returns the user that owns sess, or nil.
func (a *Accounts) CurrentUser(ctx context.Context, sess *model.Session) (*model.User, error) {
	if sess == nil {
		return nil, nil
	}
	return a.store.GetUser(ctx, sess.UserID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
