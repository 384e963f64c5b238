package model

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

func minLen(field, value string, n int) *FieldError {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < n {
		if n == 1 {
			return &FieldError{Field: field, Message: "is required"}
		}
		return &FieldError{Field: field, Message: fmt.Sprintf("must be at least %d characters", n)}
	}
	return nil
}

func collect(errs ...*FieldError) []FieldError {
	var out []FieldError
	for _, e := range errs {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}

func oneOf[T ~string](field string, v T, allowed ...T) *FieldError {
	if slices.Contains(allowed, v) {
		return nil
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return &FieldError{Field: field, Message: "must be one of " + strings.Join(names, ", ")}
}

// Validate checks a Project before it is stored.
func (p *Project) Validate() []FieldError {
	return collect(
		minLen("title", p.Title, 3),
		oneOf("status", p.Status, ProjectActive, ProjectCompleted, ProjectArchived),
	)
}

// Validate checks a Workflow before it is stored. Description and category
// are optional.
func (w *Workflow) Validate() []FieldError {
	errs := collect(
		minLen("title", w.Title, 3),
		oneOf("difficulty", w.Difficulty, DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced),
		oneOf("status", w.Status, StatusDraft, StatusPublished, StatusArchived),
	)
	seen := make(map[string]bool, len(w.AssayIDs))
	for i, id := range w.AssayIDs {
		if id == "" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("assay_ids[%d]", i), Message: "is required"})
			continue
		}
		if seen[id] {
			errs = append(errs, FieldError{Field: fmt.Sprintf("assay_ids[%d]", i), Message: "duplicate assay " + id})
		}
		seen[id] = true
	}
	for i, d := range w.Dependencies {
		field := fmt.Sprintf("dependencies[%d]", i)
		switch {
		case d.FromAssayID == "" || d.ToAssayID == "":
			errs = append(errs, FieldError{Field: field, Message: "from and to assays are required"})
		case d.FromAssayID == d.ToAssayID:
			errs = append(errs, FieldError{Field: field, Message: "an assay cannot depend on itself"})
		case !seen[d.FromAssayID] || !seen[d.ToAssayID]:
			errs = append(errs, FieldError{Field: field, Message: "references an assay not in assay_ids"})
		}
	}
	return errs
}

// Validate checks an Assay, including its materials and parameters.
func (a *Assay) Validate() []FieldError {
	errs := collect(
		minLen("workflow_id", a.WorkflowID, 1),
		minLen("title", a.Title, 3),
		minLen("description", a.Description, 10),
		minLen("protocol", a.Protocol, 10),
		minLen("estimated_time", a.EstimatedTime, 1),
	)
	for i, m := range a.Materials {
		prefix := fmt.Sprintf("materials[%d].", i)
		errs = append(errs, collect(
			minLen(prefix+"name", m.Name, 1),
			minLen(prefix+"quantity", m.Quantity, 1),
			minLen(prefix+"unit", m.Unit, 1),
		)...)
	}
	names := make(map[string]bool, len(a.Parameters))
	for i, p := range a.Parameters {
		prefix := fmt.Sprintf("parameters[%d].", i)
		errs = append(errs, p.validate(prefix)...)
		if p.Name != "" {
			if names[p.Name] {
				errs = append(errs, FieldError{Field: prefix + "name", Message: "duplicate parameter " + p.Name})
			}
			names[p.Name] = true
		}
	}
	return errs
}

func (p *AssayParameter) validate(prefix string) []FieldError {
	errs := collect(
		minLen(prefix+"name", p.Name, 1),
		minLen(prefix+"description", p.Description, 1),
		oneOf(prefix+"type", p.Type, ParamText, ParamNumber, ParamSelect, ParamRadio, ParamCheckbox),
	)
	if (p.Type == ParamSelect || p.Type == ParamRadio) && len(p.Options) == 0 {
		errs = append(errs, FieldError{Field: prefix + "options", Message: "at least one option is required"})
	}
	if p.Min != nil && p.Max != nil && *p.Min > *p.Max {
		errs = append(errs, FieldError{Field: prefix + "min", Message: "must not exceed max"})
	}
	if p.Step != nil && *p.Step <= 0 {
		errs = append(errs, FieldError{Field: prefix + "step", Message: "must be positive"})
	}
	return errs
}

// Validate checks a Step. When assay is non-nil, calculation dependencies
// must name parameters of that assay.
func (s *Step) Validate(assay *Assay) []FieldError {
	errs := collect(
		minLen("assay_id", s.AssayID, 1),
		minLen("title", s.Title, 1),
	)
	if s.Order < 0 {
		errs = append(errs, FieldError{Field: "order", Message: "must not be negative"})
	}
	if assay != nil {
		for i, dep := range s.CalculationDependencies {
			if assay.Parameter(dep) == nil {
				errs = append(errs, FieldError{
					Field:   fmt.Sprintf("calculation_dependencies[%d]", i),
					Message: fmt.Sprintf("assay has no parameter %q", dep),
				})
			}
		}
	}
	return errs
}

// ResolveParameters checks user-supplied run parameters against the
// declared assay parameters. Missing values take their defaults; a missing
// required value without a default is an error. Undeclared keys pass through.
func ResolveParameters(declared []AssayParameter, values map[string]any) (map[string]any, []FieldError) {
	out := make(map[string]any, len(values)+len(declared))
	for k, v := range values {
		out[k] = v
	}
	var errs []FieldError
	for _, p := range declared {
		field := "parameters." + p.Name
		v, ok := out[p.Name]
		if !ok || v == nil || v == "" {
			if p.DefaultValue != nil {
				out[p.Name] = p.DefaultValue
				continue
			}
			if p.Required {
				errs = append(errs, FieldError{Field: field, Message: "is required"})
			}
			continue
		}
		if fe := p.checkValue(field, v); fe != nil {
			errs = append(errs, *fe)
		}
	}
	return out, errs
}

func (p *AssayParameter) checkValue(field string, v any) *FieldError {
	switch p.Type {
	case ParamNumber:
		n, ok := NumericValues(map[string]any{"v": v})["v"]
		if !ok {
			return &FieldError{Field: field, Message: "must be a number"}
		}
		if p.Min != nil && n < *p.Min {
			return &FieldError{Field: field, Message: fmt.Sprintf("must be at least %g", *p.Min)}
		}
		if p.Max != nil && n > *p.Max {
			return &FieldError{Field: field, Message: fmt.Sprintf("must be at most %g", *p.Max)}
		}
	case ParamCheckbox:
		if _, ok := v.(bool); !ok {
			return &FieldError{Field: field, Message: "must be true or false"}
		}
	case ParamSelect, ParamRadio:
		s, ok := v.(string)
		if !ok || !slices.Contains(p.Options, s) {
			return &FieldError{Field: field, Message: "must be one of " + strings.Join(p.Options, ", ")}
		}
	}
	return nil
}
