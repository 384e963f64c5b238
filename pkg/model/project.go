package model

import "time"

// ProjectStatus is the lifecycle status of a Project.
type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectArchived  ProjectStatus = "archived"
)

// Project groups related workflows and the runs performed under them.
type Project struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Objective   string        `json:"objective"`
	StartDate   string        `json:"start_date,omitempty"`
	Status      ProjectStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ProjectPatch is a partial update of a Project. Nil fields are left unchanged.
type ProjectPatch struct {
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Objective   *string        `json:"objective,omitempty"`
	StartDate   *string        `json:"start_date,omitempty"`
	Status      *ProjectStatus `json:"status,omitempty"`
}

// Apply copies the set fields of the patch onto p.
func (pt ProjectPatch) Apply(p *Project) {
	setIf(&p.Title, pt.Title)
	setIf(&p.Description, pt.Description)
	setIf(&p.Objective, pt.Objective)
	setIf(&p.StartDate, pt.StartDate)
	setIf(&p.Status, pt.Status)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
