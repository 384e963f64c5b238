package model

import "time"

// Step is an ordered sub-unit of an assay with timing and an optional
// calculation formula.
type Step struct {
	ID                      string    `json:"id"`
	AssayID                 string    `json:"assay_id"`
	Title                   string    `json:"title"`
	Description             string    `json:"description"`
	EstimatedTime           string    `json:"estimated_time"`
	Warning                 string    `json:"warning,omitempty"`
	Notes                   string    `json:"notes,omitempty"`
	Order                   int       `json:"order"`
	CalculationDependencies []string  `json:"calculation_dependencies,omitempty"`
	CalculationFormula      string    `json:"calculation_formula,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
}

// HasFormula reports whether the step computes a quantity.
func (s *Step) HasFormula() bool {
	return s.CalculationFormula != ""
}

// StepPatch is a partial update of a Step. Nil fields are left unchanged.
type StepPatch struct {
	AssayID                 *string   `json:"assay_id,omitempty"`
	Title                   *string   `json:"title,omitempty"`
	Description             *string   `json:"description,omitempty"`
	EstimatedTime           *string   `json:"estimated_time,omitempty"`
	Warning                 *string   `json:"warning,omitempty"`
	Notes                   *string   `json:"notes,omitempty"`
	Order                   *int      `json:"order,omitempty"`
	CalculationDependencies *[]string `json:"calculation_dependencies,omitempty"`
	CalculationFormula      *string   `json:"calculation_formula,omitempty"`
}

// Apply copies the set fields of the patch onto s.
func (p StepPatch) Apply(s *Step) {
	setIf(&s.AssayID, p.AssayID)
	setIf(&s.Title, p.Title)
	setIf(&s.Description, p.Description)
	setIf(&s.EstimatedTime, p.EstimatedTime)
	setIf(&s.Warning, p.Warning)
	setIf(&s.Notes, p.Notes)
	setIf(&s.Order, p.Order)
	setIf(&s.CalculationDependencies, p.CalculationDependencies)
	setIf(&s.CalculationFormula, p.CalculationFormula)
}
