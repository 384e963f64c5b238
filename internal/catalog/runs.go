package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/me/labflow/pkg/model"
)

// ErrRunClosed is returned when a completed or abandoned run is modified.
var ErrRunClosed = errors.New("run is no longer in progress")

// FetchUserWorkflows loads runs matching opts (typically opts.UserID) into
// state.
func (c *Catalog) FetchUserWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.UserWorkflow, int, error) {
	c.begin()
	runs, total, err := c.store.ListUserWorkflows(ctx, opts)
	return runs, total, c.finish(err, func(s *State) {
		s.UserWorkflows = cloneAll(runs)
	})
}

// GetUserWorkflow returns the run with id, or nil.
func (c *Catalog) GetUserWorkflow(ctx context.Context, id string) (*model.UserWorkflow, error) {
	c.begin()
	uw, err := c.store.GetUserWorkflow(ctx, id)
	return uw, c.finish(err, nil)
}

// StartWorkflow creates an in-progress run positioned on the first step of
// the first assay in dependency order. params are checked against the
// parameters declared by the workflow's assays; defaults fill missing
// values. An empty projectID falls back to the workflow's project.
func (c *Catalog) StartWorkflow(ctx context.Context, projectID, workflowID, userID string, params map[string]any) (*model.UserWorkflow, error) {
	c.begin()
	uw, err := c.startWorkflow(ctx, projectID, workflowID, userID, params)
	if err := c.finish(err, func(s *State) {
		v := *uw
		s.UserWorkflows = append(s.UserWorkflows, &v)
	}); err != nil {
		c.logger.Debug("start workflow failed", "workflow_id", workflowID, "user_id", userID, "error", err)
		return nil, err
	}
	c.logger.Info("run started", "id", uw.ID, "workflow_id", workflowID, "user_id", userID)
	return uw, nil
}

func (c *Catalog) startWorkflow(ctx context.Context, projectID, workflowID, userID string, params map[string]any) (*model.UserWorkflow, error) {
	wf, err := c.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, ErrWorkflowNotFound
	}

	assays, err := c.WorkflowAssays(ctx, wf)
	if err != nil {
		return nil, err
	}
	if len(assays) == 0 {
		return nil, ErrNoAssays
	}
	steps, err := c.store.ListSteps(ctx, assays[0].ID)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}

	resolved := params
	var fields []model.FieldError
	for _, a := range assays {
		var errs []model.FieldError
		resolved, errs = model.ResolveParameters(a.Parameters, resolved)
		fields = append(fields, errs...)
	}
	if err := validationError("run", fields); err != nil {
		return nil, err
	}
	resolved = declaredOnly(resolved, assays)

	if projectID == "" {
		projectID = wf.ProjectID
	}
	uw := &model.UserWorkflow{
		ID:             newID("run_"),
		ProjectID:      projectID,
		WorkflowID:     wf.ID,
		UserID:         userID,
		StartedAt:      c.now(),
		CurrentAssayID: assays[0].ID,
		CurrentStepID:  steps[0].ID,
		Parameters:     resolved,
		Status:         model.RunInProgress,
	}
	if err := c.store.CreateUserWorkflow(ctx, uw); err != nil {
		return nil, err
	}
	return uw, nil
}

// UpdateUserWorkflow applies patch to an in-progress run. A new current
// step must belong to the (possibly new) current assay.
func (c *Catalog) UpdateUserWorkflow(ctx context.Context, id string, patch model.UserWorkflowPatch) (*model.UserWorkflow, error) {
	return c.mutateRun(ctx, id, func(uw *model.UserWorkflow) error {
		patch.Apply(uw)
		if patch.CurrentAssayID == nil && patch.CurrentStepID == nil {
			return nil
		}
		st, err := c.store.GetStep(ctx, uw.CurrentStepID)
		if err != nil {
			return err
		}
		if st == nil || st.AssayID != uw.CurrentAssayID {
			return validationError("run", []model.FieldError{{
				Field:   "current_step_id",
				Message: fmt.Sprintf("step %s is not part of assay %s", uw.CurrentStepID, uw.CurrentAssayID),
			}})
		}
		return nil
	})
}

// CompleteUserWorkflow marks the run completed and sets completed_at.
func (c *Catalog) CompleteUserWorkflow(ctx context.Context, id string) (*model.UserWorkflow, error) {
	return c.transitionRun(ctx, id, model.RunCompleted)
}

// AbandonUserWorkflow marks the run abandoned.
func (c *Catalog) AbandonUserWorkflow(ctx context.Context, id string) (*model.UserWorkflow, error) {
	return c.transitionRun(ctx, id, model.RunAbandoned)
}

func (c *Catalog) transitionRun(ctx context.Context, id string, next model.RunStatus) (*model.UserWorkflow, error) {
	c.begin()
	uw, err := c.store.GetUserWorkflow(ctx, id)
	if err == nil && uw == nil {
		err = notFound("run", id)
	}
	if err == nil {
		err = c.applyTransition(ctx, uw, next)
	}
	if err := c.finish(err, func(s *State) {
		v := *uw
		s.UserWorkflows = replace(s.UserWorkflows, &v, runID)
	}); err != nil {
		return nil, err
	}
	c.logger.Info("run status changed", "id", id, "status", next)
	return uw, nil
}

func (c *Catalog) applyTransition(ctx context.Context, uw *model.UserWorkflow, next model.RunStatus) error {
	if !uw.Status.CanTransitionTo(next) {
		return &model.InvalidTransitionError{Entity: "run", ID: uw.ID, From: string(uw.Status), To: string(next)}
	}
	uw.Status = next
	if next == model.RunCompleted {
		now := c.now()
		uw.CompletedAt = &now
	}
	return c.store.UpdateUserWorkflow(ctx, uw)
}

// AdvanceUserWorkflow moves the run to the next step. After the last step
// of an assay it moves to the first step of the next assay (in dependency
// order) that has steps; after the final step it completes the run.
func (c *Catalog) AdvanceUserWorkflow(ctx context.Context, id string) (*model.UserWorkflow, error) {
	c.begin()
	uw, err := c.advance(ctx, id)
	if err := c.finish(err, func(s *State) {
		v := *uw
		s.UserWorkflows = replace(s.UserWorkflows, &v, runID)
	}); err != nil {
		return nil, err
	}
	c.logger.Debug("run advanced", "id", id, "assay_id", uw.CurrentAssayID, "step_id", uw.CurrentStepID, "status", uw.Status)
	return uw, nil
}

func (c *Catalog) advance(ctx context.Context, id string) (*model.UserWorkflow, error) {
	uw, err := c.store.GetUserWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if uw == nil {
		return nil, notFound("run", id)
	}
	if uw.Status.IsTerminal() {
		return nil, fmt.Errorf("run %s: %w", id, ErrRunClosed)
	}

	steps, err := c.store.ListSteps(ctx, uw.CurrentAssayID)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(steps, func(s *model.Step) bool { return s.ID == uw.CurrentStepID })
	if idx >= 0 && idx+1 < len(steps) {
		uw.CurrentStepID = steps[idx+1].ID
		return uw, c.store.UpdateUserWorkflow(ctx, uw)
	}

	wf, err := c.store.GetWorkflow(ctx, uw.WorkflowID)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, ErrWorkflowNotFound
	}
	assays, err := c.WorkflowAssays(ctx, wf)
	if err != nil {
		return nil, err
	}
	pos := slices.IndexFunc(assays, func(a *model.Assay) bool { return a.ID == uw.CurrentAssayID })
	if pos < 0 {
		return nil, fmt.Errorf("run %s: current assay %s is not part of workflow %s", id, uw.CurrentAssayID, wf.ID)
	}
	for _, a := range assays[pos+1:] {
		next, err := c.store.ListSteps(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if len(next) > 0 {
			uw.CurrentAssayID = a.ID
			uw.CurrentStepID = next[0].ID
			return uw, c.store.UpdateUserWorkflow(ctx, uw)
		}
	}

	return uw, c.applyTransition(ctx, uw, model.RunCompleted)
}

// mutateRun loads an in-progress run, applies fn, and stores the result.
func (c *Catalog) mutateRun(ctx context.Context, id string, fn func(uw *model.UserWorkflow) error) (*model.UserWorkflow, error) {
	c.begin()
	uw, err := c.store.GetUserWorkflow(ctx, id)
	switch {
	case err != nil:
	case uw == nil:
		err = notFound("run", id)
	case uw.Status.IsTerminal():
		err = fmt.Errorf("run %s: %w", id, ErrRunClosed)
	default:
		if err = fn(uw); err == nil {
			err = c.store.UpdateUserWorkflow(ctx, uw)
		}
	}
	if err := c.finish(err, func(s *State) {
		v := *uw
		s.UserWorkflows = replace(s.UserWorkflows, &v, runID)
	}); err != nil {
		return nil, err
	}
	return uw, nil
}

// RunProgress summarises how far a run has got.
type RunProgress struct {
	AssayIndex int `json:"assay_index"` // zero-based position of the current assay
	AssayCount int `json:"assay_count"`
	StepIndex  int `json:"step_index"` // zero-based position within the current assay
	StepCount  int `json:"step_count"`
}

// Progress reports the position of uw within its workflow.
func (c *Catalog) Progress(ctx context.Context, uw *model.UserWorkflow) (RunProgress, error) {
	var p RunProgress
	wf, err := c.store.GetWorkflow(ctx, uw.WorkflowID)
	if err != nil || wf == nil {
		return p, err
	}
	assays, err := c.WorkflowAssays(ctx, wf)
	if err != nil {
		return p, err
	}
	p.AssayCount = len(assays)
	p.AssayIndex = slices.IndexFunc(assays, func(a *model.Assay) bool { return a.ID == uw.CurrentAssayID })
	steps, err := c.store.ListSteps(ctx, uw.CurrentAssayID)
	if err != nil {
		return p, err
	}
	p.StepCount = len(steps)
	p.StepIndex = slices.IndexFunc(steps, func(s *model.Step) bool { return s.ID == uw.CurrentStepID })
	return p, nil
}

// declaredOnly drops values that no assay of the workflow declares as a
// parameter.
func declaredOnly(values map[string]any, assays []*model.Assay) map[string]any {
	declared := make(map[string]bool)
	for _, a := range assays {
		for _, p := range a.Parameters {
			declared[p.Name] = true
		}
	}
	out := make(map[string]any, len(declared))
	for k, v := range values {
		if declared[k] {
			out[k] = v
		}
	}
	return out
}
