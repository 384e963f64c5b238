package model

// WorkflowDefinition is a workflow with its assays and steps written
// inline. It is the document format of CLI definition files and the demo
// seed. Dependencies name assays by key, falling back to existing ids.
type WorkflowDefinition struct {
	Title              string            `yaml:"title" json:"title"`
	Description        string            `yaml:"description" json:"description"`
	Hypothesis         string            `yaml:"hypothesis,omitempty" json:"hypothesis,omitempty"`
	Category           string            `yaml:"category" json:"category"`
	Difficulty         Difficulty        `yaml:"difficulty" json:"difficulty"`
	EstimatedTotalTime string            `yaml:"estimated_total_time" json:"estimated_total_time"`
	Status             PublishStatus     `yaml:"status,omitempty" json:"status,omitempty"`
	ProjectID          string            `yaml:"project_id,omitempty" json:"project_id,omitempty"`
	AssayIDs           []string          `yaml:"assay_ids,omitempty" json:"assay_ids,omitempty"`
	Assays             []AssayDefinition `yaml:"assays,omitempty" json:"assays,omitempty"`
	Dependencies       []AssayDependency `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// AssayDefinition is an assay with its steps inline.
type AssayDefinition struct {
	Key           string           `yaml:"key,omitempty" json:"key,omitempty"`
	WorkflowID    string           `yaml:"workflow_id,omitempty" json:"workflow_id,omitempty"`
	Title         string           `yaml:"title" json:"title"`
	Description   string           `yaml:"description" json:"description"`
	Protocol      string           `yaml:"protocol" json:"protocol"`
	EstimatedTime string           `yaml:"estimated_time" json:"estimated_time"`
	Materials     []AssayMaterial  `yaml:"materials,omitempty" json:"materials,omitempty"`
	Parameters    []AssayParameter `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Steps         []StepDefinition `yaml:"steps,omitempty" json:"steps,omitempty"`
}

// StepDefinition is one step of an AssayDefinition. Steps are ordered as
// written.
type StepDefinition struct {
	Title         string `yaml:"title" json:"title"`
	Description   string `yaml:"description,omitempty" json:"description,omitempty"`
	EstimatedTime string `yaml:"estimated_time,omitempty" json:"estimated_time,omitempty"`
	Warning       string `yaml:"warning,omitempty" json:"warning,omitempty"`
	Notes         string `yaml:"notes,omitempty" json:"notes,omitempty"`
	Formula       string `yaml:"formula,omitempty" json:"formula,omitempty"`
}

// CatalogDefinition is a file of several workflow definitions.
type CatalogDefinition struct {
	Workflows []WorkflowDefinition `yaml:"workflows" json:"workflows"`
}

// Workflow returns the workflow row without its assay graph.
func (d *WorkflowDefinition) Workflow() *Workflow {
	return &Workflow{
		ProjectID:          d.ProjectID,
		Title:              d.Title,
		Description:        d.Description,
		Hypothesis:         d.Hypothesis,
		Category:           d.Category,
		Difficulty:         d.Difficulty,
		EstimatedTotalTime: d.EstimatedTotalTime,
		Status:             d.Status,
	}
}

// Graph returns the assay ids and dependencies of the workflow once its
// inline assays exist. created maps assay keys to the ids they were given;
// names not in created are taken to be ids already.
func (d *WorkflowDefinition) Graph(created map[string]string) ([]string, []AssayDependency) {
	resolve := func(name string) string {
		if id, ok := created[name]; ok {
			return id
		}
		return name
	}
	ids := append([]string{}, d.AssayIDs...)
	for _, a := range d.Assays {
		ids = append(ids, resolve(a.KeyOrTitle()))
	}
	deps := make([]AssayDependency, 0, len(d.Dependencies))
	for _, dep := range d.Dependencies {
		deps = append(deps, AssayDependency{FromAssayID: resolve(dep.FromAssayID), ToAssayID: resolve(dep.ToAssayID)})
	}
	return ids, deps
}

// KeyOrTitle is the name dependencies use for the assay.
func (d *AssayDefinition) KeyOrTitle() string {
	if d.Key != "" {
		return d.Key
	}
	return d.Title
}

// Assay returns the assay row. An empty workflowID keeps d.WorkflowID.
func (d *AssayDefinition) Assay(workflowID string) *Assay {
	if workflowID == "" {
		workflowID = d.WorkflowID
	}
	return &Assay{
		WorkflowID:    workflowID,
		Title:         d.Title,
		Description:   d.Description,
		Protocol:      d.Protocol,
		EstimatedTime: d.EstimatedTime,
		Materials:     append([]AssayMaterial{}, d.Materials...),
		Parameters:    append([]AssayParameter{}, d.Parameters...),
	}
}

// Step returns the step row at 1-based position order.
func (d *StepDefinition) Step(assayID string, order int) *Step {
	return &Step{
		AssayID:            assayID,
		Title:              d.Title,
		Description:        d.Description,
		EstimatedTime:      d.EstimatedTime,
		Warning:            d.Warning,
		Notes:              d.Notes,
		Order:              order,
		CalculationFormula: d.Formula,
	}
}
