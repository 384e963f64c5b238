package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/me/labflow/pkg/model"
)

// FetchAssays loads assays into state. opts.WorkflowID narrows the list to
// one workflow; empty lists every assay.
func (c *Catalog) FetchAssays(ctx context.Context, opts model.ListOptions) ([]*model.Assay, int, error) {
	c.begin()
	assays, total, err := c.store.ListAssays(ctx, opts)
	return assays, total, c.finish(err, func(s *State) {
		s.Assays = cloneAll(assays)
	})
}

// GetAssay returns the assay with id, or nil.
func (c *Catalog) GetAssay(ctx context.Context, id string) (*model.Assay, error) {
	c.begin()
	a, err := c.store.GetAssay(ctx, id)
	return a, c.finish(err, nil)
}

// fillListIDs gives materials and parameters without an id a short one.
func fillListIDs(a *model.Assay) {
	a.Materials = append([]model.AssayMaterial{}, a.Materials...)
	a.Parameters = append([]model.AssayParameter{}, a.Parameters...)
	for i := range a.Materials {
		if a.Materials[i].ID == "" {
			a.Materials[i].ID = "mat_" + uuid.New().String()[:8]
		}
	}
	for i := range a.Parameters {
		if a.Parameters[i].ID == "" {
			a.Parameters[i].ID = "param_" + uuid.New().String()[:8]
		}
	}
}

// CreateAssay assigns ids and timestamps, validates, and stores a.
func (c *Catalog) CreateAssay(ctx context.Context, a *model.Assay) (*model.Assay, error) {
	c.begin()
	created := *a
	now := c.now()
	created.ID = newID("assay_")
	created.CreatedAt = now
	created.UpdatedAt = now
	fillListIDs(&created)

	err := validationError("assay", created.Validate())
	if err == nil {
		err = c.store.CreateAssay(ctx, &created)
	}
	if err := c.finish(err, func(s *State) {
		v := created
		s.Assays = append(s.Assays, &v)
	}); err != nil {
		return nil, err
	}
	c.logger.Info("assay created", "id", created.ID, "title", created.Title, "workflow_id", created.WorkflowID)
	return &created, nil
}

// UpdateAssay applies patch and bumps updated_at.
func (c *Catalog) UpdateAssay(ctx context.Context, id string, patch model.AssayPatch) (*model.Assay, error) {
	c.begin()
	a, err := c.updateAssay(ctx, id, patch)
	if err := c.finish(err, func(s *State) {
		v := *a
		s.Assays = replace(s.Assays, &v, assayID)
	}); err != nil {
		return nil, err
	}
	return a, nil
}

func (c *Catalog) updateAssay(ctx context.Context, id string, patch model.AssayPatch) (*model.Assay, error) {
	a, err := c.store.GetAssay(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, notFound("assay", id)
	}
	patch.Apply(a)
	a.UpdatedAt = c.now()
	fillListIDs(a)
	if err := validationError("assay", a.Validate()); err != nil {
		return nil, err
	}
	if err := c.store.UpdateAssay(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAssay removes the assay, its steps, and any workflow links to it.
func (c *Catalog) DeleteAssay(ctx context.Context, id string) error {
	c.begin()
	err := c.store.DeleteAssay(ctx, id)
	if err == nil {
		c.logger.Info("assay deleted", "id", id)
	}
	return c.finish(err, func(s *State) {
		s.Assays = drop(s.Assays, id, assayID)
		s.Steps = dropSteps(s.Steps, id)
	})
}

func dropSteps(steps []*model.Step, assayID string) []*model.Step {
	out := steps[:0]
	for _, st := range steps {
		if st.AssayID != assayID {
			out = append(out, st)
		}
	}
	return out
}
