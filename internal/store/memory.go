package store

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/me/labflow/pkg/model"
)

// MemoryStore implements Store with maps guarded by a single RWMutex.
// Values are copied on the way in and out so callers never share state
// with the store. It backs demo mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	logger *slog.Logger

	projects  map[string]model.Project
	workflows map[string]model.Workflow
	assays    map[string]model.Assay
	steps     map[string]model.Step
	runs      map[string]model.UserWorkflow
	users     map[string]model.User
	sessions  map[string]model.Session
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		logger:    logger.With("component", "store", "backend", "memory"),
		projects:  make(map[string]model.Project),
		workflows: make(map[string]model.Workflow),
		assays:    make(map[string]model.Assay),
		steps:     make(map[string]model.Step),
		runs:      make(map[string]model.UserWorkflow),
		users:     make(map[string]model.User),
		sessions:  make(map[string]model.Session),
	}
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// Migrate is a no-op.
func (m *MemoryStore) Migrate(context.Context) error { return nil }

func cloneWorkflow(wf model.Workflow) *model.Workflow {
	wf.AssayIDs = append([]string{}, wf.AssayIDs...)
	wf.Dependencies = append([]model.AssayDependency{}, wf.Dependencies...)
	return &wf
}

func cloneAssay(a model.Assay) *model.Assay {
	a.Materials = append([]model.AssayMaterial{}, a.Materials...)
	a.Parameters = append([]model.AssayParameter{}, a.Parameters...)
	for i := range a.Parameters {
		a.Parameters[i].Options = slices.Clone(a.Parameters[i].Options)
	}
	return &a
}

func cloneStep(st model.Step) *model.Step {
	st.CalculationDependencies = slices.Clone(st.CalculationDependencies)
	return &st
}

func cloneRun(uw model.UserWorkflow) *model.UserWorkflow {
	if uw.Parameters == nil {
		uw.Parameters = map[string]any{}
	} else {
		uw.Parameters = maps.Clone(uw.Parameters)
	}
	if uw.CompletedAt != nil {
		t := *uw.CompletedAt
		uw.CompletedAt = &t
	}
	return &uw
}

// page applies offset and limit to an already filtered and sorted slice.
func page[T any](items []*T, opts model.ListOptions) []*T {
	if opts.Offset >= len(items) {
		return nil
	}
	end := opts.Offset + opts.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[opts.Offset:end]
}

func matchesSearch(title, search string) bool {
	return search == "" || strings.Contains(strings.ToLower(title), strings.ToLower(search))
}

// newestFirst orders by time descending, then ID for stable pages.
func newestFirst(ti, tj time.Time, idi, idj string) bool {
	if !ti.Equal(tj) {
		return ti.After(tj)
	}
	return idi < idj
}

// --- Projects ---

func (m *MemoryStore) CreateProject(_ context.Context, p *model.Project) error {
	m.logger.Debug("mem", "op", "insert", "table", "projects", "id", p.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; ok {
		return fmt.Errorf("project %s: %w", p.ID, ErrDuplicate)
	}
	m.projects[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetProject(_ context.Context, id string) (*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStore) ListProjects(_ context.Context, opts model.ListOptions) ([]*model.Project, int, error) {
	opts.Clamp()
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Project
	for _, p := range m.projects {
		if opts.Status != "" && string(p.Status) != opts.Status {
			continue
		}
		if !matchesSearch(p.Title, opts.Search) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return page(out, opts), len(out), nil
}

func (m *MemoryStore) UpdateProject(_ context.Context, p *model.Project) error {
	m.logger.Debug("mem", "op", "update", "table", "projects", "id", p.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.projects[p.ID]
	if !ok {
		return notFound("project", p.ID)
	}
	p.CreatedAt = existing.CreatedAt
	m.projects[p.ID] = *p
	return nil
}

func (m *MemoryStore) DeleteProject(_ context.Context, id string) error {
	m.logger.Debug("mem", "op", "delete", "table", "projects", "id", id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return notFound("project", id)
	}
	delete(m.projects, id)
	return nil
}

// --- Workflows ---

func (m *MemoryStore) CreateWorkflow(_ context.Context, wf *model.Workflow) error {
	m.logger.Debug("mem", "op", "insert", "table", "workflows", "id", wf.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[wf.ID]; ok {
		return fmt.Errorf("workflow %s: %w", wf.ID, ErrDuplicate)
	}
	m.workflows[wf.ID] = *cloneWorkflow(*wf)
	return nil
}

func (m *MemoryStore) GetWorkflow(_ context.Context, id string) (*model.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wf, ok := m.workflows[id]
	if !ok {
		return nil, nil
	}
	return cloneWorkflow(wf), nil
}

func (m *MemoryStore) ListWorkflows(_ context.Context, opts model.ListOptions) ([]*model.Workflow, int, error) {
	opts.Clamp()
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Workflow
	for _, wf := range m.workflows {
		if opts.ProjectID != "" && wf.ProjectID != opts.ProjectID {
			continue
		}
		if opts.Status != "" && string(wf.Status) != opts.Status {
			continue
		}
		if !matchesSearch(wf.Title, opts.Search) {
			continue
		}
		out = append(out, cloneWorkflow(wf))
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return page(out, opts), len(out), nil
}

func (m *MemoryStore) UpdateWorkflow(_ context.Context, wf *model.Workflow) error {
	m.logger.Debug("mem", "op", "update", "table", "workflows", "id", wf.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.workflows[wf.ID]
	if !ok {
		return notFound("workflow", wf.ID)
	}
	updated := cloneWorkflow(*wf)
	updated.CreatedAt = existing.CreatedAt
	updated.CreatedBy = existing.CreatedBy
	m.workflows[wf.ID] = *updated
	return nil
}

func (m *MemoryStore) DeleteWorkflow(_ context.Context, id string) error {
	m.logger.Debug("mem", "op", "delete", "table", "workflows", "id", id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workflows[id]; !ok {
		return notFound("workflow", id)
	}
	delete(m.workflows, id)
	return nil
}

// --- Assays ---

func (m *MemoryStore) CreateAssay(_ context.Context, a *model.Assay) error {
	m.logger.Debug("mem", "op", "insert", "table", "assays", "id", a.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assays[a.ID]; ok {
		return fmt.Errorf("assay %s: %w", a.ID, ErrDuplicate)
	}
	m.assays[a.ID] = *cloneAssay(*a)
	return nil
}

func (m *MemoryStore) GetAssay(_ context.Context, id string) (*model.Assay, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assays[id]
	if !ok {
		return nil, nil
	}
	return cloneAssay(a), nil
}

func (m *MemoryStore) ListAssays(_ context.Context, opts model.ListOptions) ([]*model.Assay, int, error) {
	opts.Clamp()
	m.mu.RLock()
	defer m.mu.RUnlock()

	var linked map[string]bool
	if opts.WorkflowID != "" {
		linked = make(map[string]bool)
		if wf, ok := m.workflows[opts.WorkflowID]; ok {
			for _, id := range wf.AssayIDs {
				linked[id] = true
			}
		}
	}

	var out []*model.Assay
	for _, a := range m.assays {
		if opts.WorkflowID != "" && a.WorkflowID != opts.WorkflowID && !linked[a.ID] {
			continue
		}
		if !matchesSearch(a.Title, opts.Search) {
			continue
		}
		out = append(out, cloneAssay(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, opts), len(out), nil
}

func (m *MemoryStore) UpdateAssay(_ context.Context, a *model.Assay) error {
	m.logger.Debug("mem", "op", "update", "table", "assays", "id", a.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.assays[a.ID]
	if !ok {
		return notFound("assay", a.ID)
	}
	updated := cloneAssay(*a)
	updated.CreatedAt = existing.CreatedAt
	m.assays[a.ID] = *updated
	return nil
}

// DeleteAssay removes the assay with its steps and every workflow link
// or dependency edge that mentions it.
func (m *MemoryStore) DeleteAssay(_ context.Context, id string) error {
	m.logger.Debug("mem", "op", "delete", "table", "assays", "id", id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assays[id]; !ok {
		return notFound("assay", id)
	}
	delete(m.assays, id)
	for sid, st := range m.steps {
		if st.AssayID == id {
			delete(m.steps, sid)
		}
	}
	for wid, wf := range m.workflows {
		wf.AssayIDs = slices.DeleteFunc(slices.Clone(wf.AssayIDs), func(a string) bool { return a == id })
		wf.Dependencies = slices.DeleteFunc(slices.Clone(wf.Dependencies), func(d model.AssayDependency) bool {
			return d.FromAssayID == id || d.ToAssayID == id
		})
		m.workflows[wid] = wf
	}
	return nil
}

// --- Steps ---

func (m *MemoryStore) CreateStep(_ context.Context, st *model.Step) error {
	m.logger.Debug("mem", "op", "insert", "table", "steps", "id", st.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.steps[st.ID]; ok {
		return fmt.Errorf("step %s: %w", st.ID, ErrDuplicate)
	}
	m.steps[st.ID] = *cloneStep(*st)
	return nil
}

func (m *MemoryStore) GetStep(_ context.Context, id string) (*model.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.steps[id]
	if !ok {
		return nil, nil
	}
	return cloneStep(st), nil
}

func (m *MemoryStore) ListSteps(_ context.Context, assayID string) ([]*model.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Step
	for _, st := range m.steps {
		if st.AssayID == assayID {
			out = append(out, cloneStep(st))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) UpdateStep(_ context.Context, st *model.Step) error {
	m.logger.Debug("mem", "op", "update", "table", "steps", "id", st.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.steps[st.ID]
	if !ok {
		return notFound("step", st.ID)
	}
	updated := cloneStep(*st)
	updated.CreatedAt = existing.CreatedAt
	m.steps[st.ID] = *updated
	return nil
}

func (m *MemoryStore) DeleteStep(_ context.Context, id string) error {
	m.logger.Debug("mem", "op", "delete", "table", "steps", "id", id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.steps[id]; !ok {
		return notFound("step", id)
	}
	delete(m.steps, id)
	return nil
}

// --- UserWorkflows ---

func (m *MemoryStore) CreateUserWorkflow(_ context.Context, uw *model.UserWorkflow) error {
	m.logger.Debug("mem", "op", "insert", "table", "user_workflows", "id", uw.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[uw.ID]; ok {
		return fmt.Errorf("run %s: %w", uw.ID, ErrDuplicate)
	}
	m.runs[uw.ID] = *cloneRun(*uw)
	return nil
}

func (m *MemoryStore) GetUserWorkflow(_ context.Context, id string) (*model.UserWorkflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	uw, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return cloneRun(uw), nil
}

func (m *MemoryStore) ListUserWorkflows(_ context.Context, opts model.ListOptions) ([]*model.UserWorkflow, int, error) {
	opts.Clamp()
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.UserWorkflow
	for _, uw := range m.runs {
		if opts.UserID != "" && uw.UserID != opts.UserID {
			continue
		}
		if opts.ProjectID != "" && uw.ProjectID != opts.ProjectID {
			continue
		}
		if opts.WorkflowID != "" && uw.WorkflowID != opts.WorkflowID {
			continue
		}
		if opts.Status != "" && string(uw.Status) != opts.Status {
			continue
		}
		out = append(out, cloneRun(uw))
	}
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].StartedAt, out[j].StartedAt, out[i].ID, out[j].ID)
	})
	return page(out, opts), len(out), nil
}

func (m *MemoryStore) UpdateUserWorkflow(_ context.Context, uw *model.UserWorkflow) error {
	m.logger.Debug("mem", "op", "update", "table", "user_workflows", "id", uw.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.runs[uw.ID]
	if !ok {
		return notFound("run", uw.ID)
	}
	updated := cloneRun(*uw)
	updated.StartedAt = existing.StartedAt
	updated.UserID = existing.UserID
	updated.WorkflowID = existing.WorkflowID
	updated.ProjectID = existing.ProjectID
	m.runs[uw.ID] = *updated
	return nil
}

func (m *MemoryStore) DeleteUserWorkflow(_ context.Context, id string) error {
	m.logger.Debug("mem", "op", "delete", "table", "user_workflows", "id", id)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[id]; !ok {
		return notFound("run", id)
	}
	delete(m.runs, id)
	return nil
}

// --- Users ---

func (m *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	m.logger.Debug("mem", "op", "insert", "table", "users", "id", u.ID)
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(u.Email)
	for _, existing := range m.users {
		if existing.Email == email {
			return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
		}
	}
	stored := *u
	stored.Email = email
	m.users[u.ID] = stored
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = strings.ToLower(email)
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListUsers(_ context.Context) ([]*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.User, 0, len(m.users))
	for _, u := range m.users {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[u.ID]
	if !ok {
		return notFound("user", u.ID)
	}
	existing.DisplayName = u.DisplayName
	existing.Role = u.Role
	existing.PasswordHash = u.PasswordHash
	m.users[u.ID] = existing
	return nil
}

// --- Sessions ---

func (m *MemoryStore) CreateSession(_ context.Context, sess *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = *sess
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteExpiredSessions(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var n int64
	for id, sess := range m.sessions {
		if now.After(sess.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}
