package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/me/labflow/internal/config"
	"github.com/me/labflow/pkg/model"
)

// ErrNotFound is returned by update and delete operations on missing rows.
// Get operations return (nil, nil) instead.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique value (such as a user email) is
// already taken.
var ErrDuplicate = errors.New("already exists")

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// Store defines the persistence layer for LabFlow entities.
type Store interface {
	// Project CRUD
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context, opts model.ListOptions) ([]*model.Project, int, error)
	UpdateProject(ctx context.Context, p *model.Project) error
	DeleteProject(ctx context.Context, id string) error

	// Workflow CRUD. Assay membership and dependency edges are stored with
	// the workflow and replaced as a whole on update.
	CreateWorkflow(ctx context.Context, wf *model.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*model.Workflow, error)
	ListWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.Workflow, int, error)
	UpdateWorkflow(ctx context.Context, wf *model.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error

	// Assay CRUD
	CreateAssay(ctx context.Context, a *model.Assay) error
	GetAssay(ctx context.Context, id string) (*model.Assay, error)
	ListAssays(ctx context.Context, opts model.ListOptions) ([]*model.Assay, int, error)
	UpdateAssay(ctx context.Context, a *model.Assay) error
	DeleteAssay(ctx context.Context, id string) error

	// Step CRUD. Steps list in ascending Order.
	CreateStep(ctx context.Context, s *model.Step) error
	GetStep(ctx context.Context, id string) (*model.Step, error)
	ListSteps(ctx context.Context, assayID string) ([]*model.Step, error)
	UpdateStep(ctx context.Context, s *model.Step) error
	DeleteStep(ctx context.Context, id string) error

	// UserWorkflow (run) CRUD
	CreateUserWorkflow(ctx context.Context, uw *model.UserWorkflow) error
	GetUserWorkflow(ctx context.Context, id string) (*model.UserWorkflow, error)
	ListUserWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.UserWorkflow, int, error)
	UpdateUserWorkflow(ctx context.Context, uw *model.UserWorkflow) error
	DeleteUserWorkflow(ctx context.Context, id string) error

	// Users
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error

	// Sessions
	CreateSession(ctx context.Context, sess *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}

// Open returns the store selected by cfg.Backend. The caller must Migrate
// before use.
func Open(cfg config.ServerConfig, dbPath string, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryStore(logger), nil
	case config.BackendSQLite, "":
		return NewSQLiteStore(dbPath, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// ListAll pages through list until every row matching opts has been read.
// Limit and Offset in opts are ignored.
func ListAll[T any](ctx context.Context, opts model.ListOptions, list func(context.Context, model.ListOptions) ([]*T, int, error)) ([]*T, error) {
	opts.Limit = model.MaxLimit
	opts.Offset = 0
	var all []*T
	for {
		items, total, err := list(ctx, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		opts.Offset += len(items)
		if len(items) == 0 || opts.Offset >= total {
			return all, nil
		}
	}
}
