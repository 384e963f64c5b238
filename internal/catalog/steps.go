package catalog

import (
	"context"

	"github.com/me/labflow/internal/formula"
	"github.com/me/labflow/pkg/model"
)

// FetchSteps loads the steps of one assay, in order, into state.
func (c *Catalog) FetchSteps(ctx context.Context, assayID string) ([]*model.Step, error) {
	c.begin()
	steps, err := c.store.ListSteps(ctx, assayID)
	return steps, c.finish(err, func(s *State) {
		s.Steps = cloneAll(steps)
	})
}

// GetStep returns the step with id, or nil.
func (c *Catalog) GetStep(ctx context.Context, id string) (*model.Step, error) {
	c.begin()
	st, err := c.store.GetStep(ctx, id)
	return st, c.finish(err, nil)
}

// prepareStep fills derived fields and validates st against its assay.
func (c *Catalog) prepareStep(ctx context.Context, st *model.Step) error {
	if st.HasFormula() && len(st.CalculationDependencies) == 0 {
		st.CalculationDependencies = formula.Dependencies(st.CalculationFormula)
	}
	var assay *model.Assay
	if st.AssayID != "" {
		var err error
		assay, err = c.store.GetAssay(ctx, st.AssayID)
		if err != nil {
			return err
		}
		if assay == nil {
			return validationError("step", []model.FieldError{{Field: "assay_id", Message: "unknown assay " + st.AssayID}})
		}
	}
	return validationError("step", st.Validate(assay))
}

// CreateStep assigns an id and created_at, validates, and stores st. A
// zero Order places the step after the assay's existing steps.
func (c *Catalog) CreateStep(ctx context.Context, st *model.Step) (*model.Step, error) {
	c.begin()
	created := *st
	created.ID = newID("step_")
	created.CreatedAt = c.now()

	err := c.prepareStep(ctx, &created)
	if err == nil && created.Order == 0 {
		var existing []*model.Step
		existing, err = c.store.ListSteps(ctx, created.AssayID)
		for _, s := range existing {
			if s.Order >= created.Order {
				created.Order = s.Order + 1
			}
		}
		if created.Order == 0 {
			created.Order = 1
		}
	}
	if err == nil {
		err = c.store.CreateStep(ctx, &created)
	}
	if err := c.finish(err, func(s *State) {
		v := created
		s.Steps = append(s.Steps, &v)
	}); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateStep applies patch. Steps have no updated_at.
func (c *Catalog) UpdateStep(ctx context.Context, id string, patch model.StepPatch) (*model.Step, error) {
	c.begin()
	st, err := c.updateStep(ctx, id, patch)
	if err := c.finish(err, func(s *State) {
		v := *st
		s.Steps = replace(s.Steps, &v, stepID)
	}); err != nil {
		return nil, err
	}
	return st, nil
}

func (c *Catalog) updateStep(ctx context.Context, id string, patch model.StepPatch) (*model.Step, error) {
	st, err := c.store.GetStep(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, notFound("step", id)
	}
	formulaChanged := patch.CalculationFormula != nil && *patch.CalculationFormula != st.CalculationFormula
	patch.Apply(st)
	if formulaChanged && patch.CalculationDependencies == nil {
		st.CalculationDependencies = nil
	}
	if err := c.prepareStep(ctx, st); err != nil {
		return nil, err
	}
	if err := c.store.UpdateStep(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteStep removes the step.
func (c *Catalog) DeleteStep(ctx context.Context, id string) error {
	c.begin()
	err := c.store.DeleteStep(ctx, id)
	return c.finish(err, func(s *State) {
		s.Steps = drop(s.Steps, id, stepID)
	})
}
