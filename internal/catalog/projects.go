package catalog

import (
	"context"

	"github.com/me/labflow/pkg/model"
)

// FetchProjects loads the projects matching opts into state.
func (c *Catalog) FetchProjects(ctx context.Context, opts model.ListOptions) ([]*model.Project, int, error) {
	c.begin()
	projects, total, err := c.store.ListProjects(ctx, opts)
	return projects, total, c.finish(err, func(s *State) {
		s.Projects = cloneAll(projects)
	})
}

// GetProject returns the project with id, or nil.
func (c *Catalog) GetProject(ctx context.Context, id string) (*model.Project, error) {
	c.begin()
	p, err := c.store.GetProject(ctx, id)
	return p, c.finish(err, nil)
}

// CreateProject assigns an id and timestamps, validates, and stores p.
func (c *Catalog) CreateProject(ctx context.Context, p *model.Project) (*model.Project, error) {
	c.begin()
	created := *p
	now := c.now()
	created.ID = newID("proj_")
	created.CreatedAt = now
	created.UpdatedAt = now
	if created.Status == "" {
		created.Status = model.ProjectActive
	}

	err := validationError("project", created.Validate())
	if err == nil {
		err = c.store.CreateProject(ctx, &created)
	}
	if err := c.finish(err, func(s *State) {
		v := created
		s.Projects = append(s.Projects, &v)
	}); err != nil {
		return nil, err
	}
	c.logger.Info("project created", "id", created.ID, "title", created.Title)
	return &created, nil
}

// UpdateProject applies patch to the project and bumps updated_at.
func (c *Catalog) UpdateProject(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	c.begin()
	p, err := c.updateProject(ctx, id, patch)
	if err := c.finish(err, func(s *State) {
		v := *p
		s.Projects = replace(s.Projects, &v, projectID)
	}); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *Catalog) updateProject(ctx context.Context, id string, patch model.ProjectPatch) (*model.Project, error) {
	p, err := c.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound("project", id)
	}
	patch.Apply(p)
	p.UpdatedAt = c.now()
	if err := validationError("project", p.Validate()); err != nil {
		return nil, err
	}
	if err := c.store.UpdateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
