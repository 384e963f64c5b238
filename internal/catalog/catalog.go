// Package catalog is the LabFlow state container. It wraps a store.Store
// with the create/update/delete rules for every entity, keeps the most
// recently fetched rows in memory, and tracks loading and error flags
// around each action.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/me/labflow/internal/store"
	"github.com/me/labflow/pkg/model"
)

// ErrNotFound is returned when an update, delete, or lifecycle action
// targets a missing row. It is the store's sentinel, so errors.Is works
// across both layers.
var ErrNotFound = store.ErrNotFound

// Errors returned by StartWorkflow.
var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrNoAssays         = errors.New("no assays found for workflow")
	ErrNoSteps          = errors.New("no steps found for first assay")
)

// State is a snapshot of the container.
type State struct {
	Projects      []*model.Project      `json:"projects"`
	Workflows     []*model.Workflow     `json:"workflows"`
	Assays        []*model.Assay        `json:"assays"`
	Steps         []*model.Step         `json:"steps"`
	UserWorkflows []*model.UserWorkflow `json:"user_workflows"`
	Loading       bool                  `json:"loading"`
	Error         string                `json:"error,omitempty"`
}

// Catalog is safe for concurrent use. Loading stays true while any action
// is in flight.
type Catalog struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	inflight int
	state    State
}

// New creates a Catalog backed by st.
func New(st store.Store, logger *slog.Logger) *Catalog {
	return &Catalog{
		store:  st,
		logger: logger.With("component", "catalog"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Tests use it to pin timestamps.
func (c *Catalog) SetClock(now func() time.Time) {
	c.now = now
}

// Store returns the underlying store.
func (c *Catalog) Store() store.Store {
	return c.store
}

// State returns a copy of the current state.
func (c *Catalog) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Projects:      cloneAll(c.state.Projects),
		Workflows:     cloneAll(c.state.Workflows),
		Assays:        cloneAll(c.state.Assays),
		Steps:         cloneAll(c.state.Steps),
		UserWorkflows: cloneAll(c.state.UserWorkflows),
		Loading:       c.state.Loading,
		Error:         c.state.Error,
	}
}

// begin marks an action as started: loading on, error cleared.
func (c *Catalog) begin() {
	c.mu.Lock()
	c.inflight++
	c.state.Loading = true
	c.state.Error = ""
	c.mu.Unlock()
}

// finish marks an action as done, recording err, and runs apply under the
// lock when the action succeeded.
func (c *Catalog) finish(err error, apply func(s *State)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	c.state.Loading = c.inflight > 0
	if err != nil {
		c.state.Error = err.Error()
		return err
	}
	if apply != nil {
		apply(&c.state)
	}
	return nil
}

// fail records err as the last error outside of begin and finish. Cleanup
// actions run after a failure use it to restore the original cause.
func (c *Catalog) fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Error = err.Error()
	return err
}

func newID(prefix string) string {
	return prefix + uuid.New().String()
}

func validationError(entity string, fields []model.FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return &model.ValidationError{Entity: entity, Fields: fields}
}

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

func cloneAll[T any](in []*T) []*T {
	if in == nil {
		return nil
	}
	out := make([]*T, len(in))
	for i, p := range in {
		v := *p
		out[i] = &v
	}
	return out
}

// replace swaps the row with the same id if it is present.
func replace[T any](rows []*T, v *T, id func(*T) string) []*T {
	for i, r := range rows {
		if id(r) == id(v) {
			rows[i] = v
		}
	}
	return rows
}

func drop[T any](rows []*T, target string, id func(*T) string) []*T {
	out := rows[:0]
	for _, r := range rows {
		if id(r) != target {
			out = append(out, r)
		}
	}
	return out
}

func projectID(p *model.Project) string { return p.ID }
func workflowID(w *model.Workflow) string { return w.ID }
func assayID(a *model.Assay) string { return a.ID }
func stepID(s *model.Step) string { return s.ID }
func runID(r *model.UserWorkflow) string { return r.ID }
