package model

import "time"

// Difficulty grades how demanding a Workflow is to perform.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// PublishStatus controls whether a Workflow is visible in the catalog.
type PublishStatus string

const (
	StatusDraft     PublishStatus = "draft"
	StatusPublished PublishStatus = "published"
	StatusArchived  PublishStatus = "archived"
)

// Workflow is a named laboratory procedure composed of assays.
type Workflow struct {
	ID                 string            `json:"id"`
	ProjectID          string            `json:"project_id,omitempty"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	Hypothesis         string            `json:"hypothesis,omitempty"`
	Category           string            `json:"category"`
	Difficulty         Difficulty        `json:"difficulty"`
	EstimatedTotalTime string            `json:"estimated_total_time"`
	Status             PublishStatus     `json:"status"`
	AssayIDs           []string          `json:"assay_ids"`
	Dependencies       []AssayDependency `json:"dependencies"`
	CreatedBy          string            `json:"created_by,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// AssayDependency is a directed edge: FromAssayID must be performed before ToAssayID.
type AssayDependency struct {
	FromAssayID string `json:"from_assay_id" yaml:"from"`
	ToAssayID   string `json:"to_assay_id" yaml:"to"`
}

// IsPublished reports whether the workflow is visible to researchers.
func (w *Workflow) IsPublished() bool {
	return w.Status == StatusPublished
}

// WorkflowPatch is a partial update of a Workflow. Nil fields are left unchanged.
type WorkflowPatch struct {
	ProjectID          *string            `json:"project_id,omitempty"`
	Title              *string            `json:"title,omitempty"`
	Description        *string            `json:"description,omitempty"`
	Hypothesis         *string            `json:"hypothesis,omitempty"`
	Category           *string            `json:"category,omitempty"`
	Difficulty         *Difficulty        `json:"difficulty,omitempty"`
	EstimatedTotalTime *string            `json:"estimated_total_time,omitempty"`
	Status             *PublishStatus     `json:"status,omitempty"`
	AssayIDs           *[]string          `json:"assay_ids,omitempty"`
	Dependencies       *[]AssayDependency `json:"dependencies,omitempty"`
}

// Apply copies the set fields of the patch onto w.
func (p WorkflowPatch) Apply(w *Workflow) {
	setIf(&w.ProjectID, p.ProjectID)
	setIf(&w.Title, p.Title)
	setIf(&w.Description, p.Description)
	setIf(&w.Hypothesis, p.Hypothesis)
	setIf(&w.Category, p.Category)
	setIf(&w.Difficulty, p.Difficulty)
	setIf(&w.EstimatedTotalTime, p.EstimatedTotalTime)
	setIf(&w.Status, p.Status)
	setIf(&w.AssayIDs, p.AssayIDs)
	setIf(&w.Dependencies, p.Dependencies)
}
