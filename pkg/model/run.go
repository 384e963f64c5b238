package model

import "time"

// UserWorkflow records one user's in-progress or completed execution of a
// workflow. It is called a "run" in the API.
type UserWorkflow struct {
	ID             string         `json:"id"`
	ProjectID      string         `json:"project_id,omitempty"`
	WorkflowID     string         `json:"workflow_id"`
	UserID         string         `json:"user_id"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CurrentAssayID string         `json:"current_assay_id"`
	CurrentStepID  string         `json:"current_step_id"`
	Parameters     map[string]any `json:"parameters"`
	Status         RunStatus      `json:"status"`
	Notes          string         `json:"notes,omitempty"`
}

// UserWorkflowPatch is a partial update of a UserWorkflow. Nil fields are
// left unchanged. Status changes go through the run lifecycle methods.
type UserWorkflowPatch struct {
	CurrentAssayID *string         `json:"current_assay_id,omitempty"`
	CurrentStepID  *string         `json:"current_step_id,omitempty"`
	Parameters     *map[string]any `json:"parameters,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
}

// Apply copies the set fields of the patch onto uw.
func (p UserWorkflowPatch) Apply(uw *UserWorkflow) {
	setIf(&uw.CurrentAssayID, p.CurrentAssayID)
	setIf(&uw.CurrentStepID, p.CurrentStepID)
	setIf(&uw.Parameters, p.Parameters)
	setIf(&uw.Notes, p.Notes)
}

// NumericParameters returns the parameters whose values are numbers, as
// float64. Formula substitution only ever uses these.
func (uw *UserWorkflow) NumericParameters() map[string]float64 {
	return NumericValues(uw.Parameters)
}

// NumericValues filters a parameter map down to its numeric entries.
func NumericValues(params map[string]any) map[string]float64 {
	out := make(map[string]float64, len(params))
	for k, v := range params {
		switch n := v.(type) {
		case float64:
			out[k] = n
		case float32:
			out[k] = float64(n)
		case int:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		case int32:
			out[k] = float64(n)
		}
	}
	return out
}
