package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/me/labflow/pkg/model"
)

//go:embed demo.yaml
var demoCatalog []byte

// ParseDefinitions decodes a YAML catalog file. Unknown keys are errors.
func ParseDefinitions(data []byte) (*model.CatalogDefinition, error) {
	var def model.CatalogDefinition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &def, nil
}

// ImportWorkflow creates the workflow of def, then its inline assays and
// their steps, then links the assays and dependencies. A failure removes
// whatever the import had created.
func (c *Catalog) ImportWorkflow(ctx context.Context, def *model.WorkflowDefinition, createdBy string) (*model.Workflow, error) {
	row := def.Workflow()
	row.CreatedBy = createdBy
	wf, err := c.CreateWorkflow(ctx, row)
	if err != nil {
		return nil, err
	}

	var assayIDs []string
	rollback := func(cause error) error {
		var errs []error
		for _, id := range assayIDs {
			errs = append(errs, c.DeleteAssay(ctx, id))
		}
		errs = append(errs, c.DeleteWorkflow(ctx, wf.ID))
		if err := errors.Join(errs...); err != nil {
			c.logger.Warn("import rollback incomplete", "workflow_id", wf.ID, "error", err)
		}
		return c.fail(cause)
	}

	created := make(map[string]string, len(def.Assays))
	for i := range def.Assays {
		ad := &def.Assays[i]
		a, _, err := c.ImportAssay(ctx, wf.ID, ad)
		if err != nil {
			return nil, rollback(fmt.Errorf("assay %q: %w", ad.Title, err))
		}
		assayIDs = append(assayIDs, a.ID)
		created[ad.KeyOrTitle()] = a.ID
	}

	ids, deps := def.Graph(created)
	wf, err = c.UpdateWorkflow(ctx, wf.ID, model.WorkflowPatch{AssayIDs: &ids, Dependencies: &deps})
	if err != nil {
		return nil, rollback(err)
	}
	return wf, nil
}

// ImportAssay creates the assay of def under workflowID, or under
// def.WorkflowID when workflowID is empty, followed by its steps in order.
// The assay is removed again if a step fails.
func (c *Catalog) ImportAssay(ctx context.Context, workflowID string, def *model.AssayDefinition) (*model.Assay, []*model.Step, error) {
	a, err := c.CreateAssay(ctx, def.Assay(workflowID))
	if err != nil {
		return nil, nil, err
	}
	steps := make([]*model.Step, 0, len(def.Steps))
	for i := range def.Steps {
		st, err := c.CreateStep(ctx, def.Steps[i].Step(a.ID, i+1))
		if err != nil {
			if derr := c.DeleteAssay(ctx, a.ID); derr != nil {
				c.logger.Warn("import rollback incomplete", "assay_id", a.ID, "error", derr)
			}
			return nil, nil, c.fail(fmt.Errorf("step %d: %w", i+1, err))
		}
		steps = append(steps, st)
	}
	return a, steps, nil
}

// Import creates every workflow of def in order.
func (c *Catalog) Import(ctx context.Context, def *model.CatalogDefinition, createdBy string) ([]*model.Workflow, error) {
	out := make([]*model.Workflow, 0, len(def.Workflows))
	for i := range def.Workflows {
		wf, err := c.ImportWorkflow(ctx, &def.Workflows[i], createdBy)
		if err != nil {
			return out, fmt.Errorf("workflow %q: %w", def.Workflows[i].Title, err)
		}
		out = append(out, wf)
	}
	return out, nil
}

// LoadDemo imports the bundled sample catalog.
func (c *Catalog) LoadDemo(ctx context.Context) ([]*model.Workflow, error) {
	def, err := ParseDefinitions(demoCatalog)
	if err != nil {
		return nil, err
	}
	wfs, err := c.Import(ctx, def, "")
	if err != nil {
		return wfs, err
	}
	c.logger.Info("demo catalog loaded", "workflows", len(wfs))
	return wfs, nil
}
