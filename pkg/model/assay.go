package model

import "time"

// ParameterType is the input control used to collect an AssayParameter.
type ParameterType string

const (
	ParamText     ParameterType = "text"
	ParamNumber   ParameterType = "number"
	ParamSelect   ParameterType = "select"
	ParamRadio    ParameterType = "radio"
	ParamCheckbox ParameterType = "checkbox"
)

// Assay is a reusable experimental template with materials, parameters,
// and protocol text.
type Assay struct {
	ID            string           `json:"id"`
	WorkflowID    string           `json:"workflow_id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Protocol      string           `json:"protocol"`
	Materials     []AssayMaterial  `json:"materials"`
	Parameters    []AssayParameter `json:"parameters"`
	EstimatedTime string           `json:"estimated_time"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// AssayMaterial is a reagent or consumable needed by an assay.
type AssayMaterial struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Quantity      string `json:"quantity" yaml:"quantity"`
	Unit          string `json:"unit" yaml:"unit"`
	AffiliateLink string `json:"affiliate_link,omitempty" yaml:"affiliate_link,omitempty"`
}

// AssayParameter is a user-supplied value that steps may reference in
// calculation formulas.
type AssayParameter struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	Description  string        `json:"description" yaml:"description"`
	Type         ParameterType `json:"type" yaml:"type"`
	Required     bool          `json:"required" yaml:"required"`
	Options      []string      `json:"options,omitempty" yaml:"options,omitempty"`
	DefaultValue any           `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Unit         string        `json:"unit,omitempty" yaml:"unit,omitempty"`
	Min          *float64      `json:"min,omitempty" yaml:"min,omitempty"`
	Max          *float64      `json:"max,omitempty" yaml:"max,omitempty"`
	Step         *float64      `json:"step,omitempty" yaml:"step,omitempty"`
}

// Parameter returns the parameter with the given name, or nil.
func (a *Assay) Parameter(name string) *AssayParameter {
	for i := range a.Parameters {
		if a.Parameters[i].Name == name {
			return &a.Parameters[i]
		}
	}
	return nil
}

// AssayPatch is a partial update of an Assay. Nil fields are left unchanged.
type AssayPatch struct {
	WorkflowID    *string           `json:"workflow_id,omitempty"`
	Title         *string           `json:"title,omitempty"`
	Description   *string           `json:"description,omitempty"`
	Protocol      *string           `json:"protocol,omitempty"`
	Materials     *[]AssayMaterial  `json:"materials,omitempty"`
	Parameters    *[]AssayParameter `json:"parameters,omitempty"`
	EstimatedTime *string           `json:"estimated_time,omitempty"`
}

// Apply copies the set fields of the patch onto a.
func (p AssayPatch) Apply(a *Assay) {
	setIf(&a.WorkflowID, p.WorkflowID)
	setIf(&a.Title, p.Title)
	setIf(&a.Description, p.Description)
	setIf(&a.Protocol, p.Protocol)
	setIf(&a.Materials, p.Materials)
	setIf(&a.Parameters, p.Parameters)
	setIf(&a.EstimatedTime, p.EstimatedTime)
}
