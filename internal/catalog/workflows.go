package catalog

import (
	"context"
	"fmt"

	"github.com/me/labflow/internal/assaygraph"
	"github.com/me/labflow/internal/store"
	"github.com/me/labflow/pkg/model"
)

// FetchWorkflows loads workflows into state. With no project and no status
// filter only published workflows are returned, which is what researchers
// browse.
func (c *Catalog) FetchWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.Workflow, int, error) {
	if opts.ProjectID == "" && opts.Status == "" {
		opts.Status = string(model.StatusPublished)
	}
	c.begin()
	workflows, total, err := c.store.ListWorkflows(ctx, opts)
	return workflows, total, c.finish(err, func(s *State) {
		s.Workflows = cloneAll(workflows)
	})
}

// GetWorkflow returns the workflow with id, or nil.
func (c *Catalog) GetWorkflow(ctx context.Context, id string) (*model.Workflow, error) {
	c.begin()
	wf, err := c.store.GetWorkflow(ctx, id)
	return wf, c.finish(err, nil)
}

// CreateWorkflow assigns an id and timestamps, validates the fields and the
// assay graph, and stores wf. New workflows default to draft.
func (c *Catalog) CreateWorkflow(ctx context.Context, wf *model.Workflow) (*model.Workflow, error) {
	c.begin()
	created := *wf
	now := c.now()
	created.ID = newID("wf_")
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Status == "" {
		created.Status = model.StatusDraft
	}
	if created.AssayIDs == nil {
		created.AssayIDs = []string{}
	}
	if created.Dependencies == nil {
		created.Dependencies = []model.AssayDependency{}
	}

	err := c.checkWorkflow(ctx, &created)
	if err == nil {
		err = c.store.CreateWorkflow(ctx, &created)
	}
	if err := c.finish(err, func(s *State) {
		v := created
		s.Workflows = append(s.Workflows, &v)
	}); err != nil {
		return nil, err
	}
	c.logger.Info("workflow created", "id", created.ID, "title", created.Title, "assays", len(created.AssayIDs))
	return &created, nil
}

// checkWorkflow runs field validation, confirms every linked assay exists,
// and rejects dependency cycles.
func (c *Catalog) checkWorkflow(ctx context.Context, wf *model.Workflow) error {
	fields := wf.Validate()
	for i, id := range wf.AssayIDs {
		if id == "" {
			continue
		}
		a, err := c.store.GetAssay(ctx, id)
		if err != nil {
			return err
		}
		if a == nil {
			fields = append(fields, model.FieldError{
				Field:   fmt.Sprintf("assay_ids[%d]", i),
				Message: "unknown assay " + id,
			})
		}
	}
	if len(fields) > 0 {
		return validationError("workflow", fields)
	}

	g, err := assaygraph.FromWorkflow(wf, nil)
	if err == nil {
		err = g.Validate()
	}
	if err != nil {
		return validationError("workflow", []model.FieldError{{Field: "dependencies", Message: err.Error()}})
	}
	return nil
}

// UpdateWorkflow applies patch and bumps updated_at. A patch that sets
// assay ids or dependencies replaces them as a whole.
func (c *Catalog) UpdateWorkflow(ctx context.Context, id string, patch model.WorkflowPatch) (*model.Workflow, error) {
	c.begin()
	wf, err := c.updateWorkflow(ctx, id, patch)
	if err := c.finish(err, func(s *State) {
		v := *wf
		s.Workflows = replace(s.Workflows, &v, workflowID)
	}); err != nil {
		return nil, err
	}
	return wf, nil
}

func (c *Catalog) updateWorkflow(ctx context.Context, id string, patch model.WorkflowPatch) (*model.Workflow, error) {
	wf, err := c.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if wf == nil {
		return nil, notFound("workflow", id)
	}
	patch.Apply(wf)
	wf.UpdatedAt = c.now()
	if err := c.checkWorkflow(ctx, wf); err != nil {
		return nil, err
	}
	if err := c.store.UpdateWorkflow(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// DeleteWorkflow removes the workflow with its assay links and
// dependency edges.
func (c *Catalog) DeleteWorkflow(ctx context.Context, id string) error {
	c.begin()
	err := c.store.DeleteWorkflow(ctx, id)
	if err == nil {
		c.logger.Info("workflow deleted", "id", id)
	}
	return c.finish(err, func(s *State) {
		s.Workflows = drop(s.Workflows, id, workflowID)
	})
}

// WorkflowAssays returns the assays of wf in the order a run visits them:
// linked assays in dependency order, then assays that name wf as their
// workflow without being linked, oldest first.
func (c *Catalog) WorkflowAssays(ctx context.Context, wf *model.Workflow) ([]*model.Assay, error) {
	order, err := assaygraph.WorkflowOrder(wf)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", wf.ID, err)
	}

	assays, err := store.ListAll(ctx, model.ListOptions{WorkflowID: wf.ID}, c.store.ListAssays)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Assay, len(assays))
	for _, a := range assays {
		byID[a.ID] = a
	}

	out := make([]*model.Assay, 0, len(assays))
	seen := make(map[string]bool, len(assays))
	for _, id := range order {
		if a, ok := byID[id]; ok {
			out = append(out, a)
			seen[id] = true
		}
	}
	for _, a := range assays {
		if !seen[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}
