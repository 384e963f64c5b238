// Package formula evaluates step calculation formulas such as
// "${sampleCount} * 2.5 + 10" in a sandboxed JavaScript runtime.
package formula

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/me/labflow/pkg/model"
)

// DefaultTimeout bounds a single evaluation when no timeout is configured.
const DefaultTimeout = 100 * time.Millisecond

var placeholderRe = regexp.MustCompile(`\$\{([^{}]*)\}`)

// ErrTimeout is returned when evaluation is interrupted.
var ErrTimeout = errors.New("formula evaluation timed out")

// Evaluator evaluates formulas with a per-call timeout.
// A fresh goja runtime is created per call, so an Evaluator is safe for
// concurrent use.
type Evaluator struct {
	timeout time.Duration
}

// NewEvaluator returns an Evaluator. A non-positive timeout uses DefaultTimeout.
func NewEvaluator(timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Evaluator{timeout: timeout}
}

var defaultEvaluator = NewEvaluator(DefaultTimeout)

// Evaluate evaluates formula with the default evaluator.
func Evaluate(formula string, params map[string]any) (float64, error) {
	return defaultEvaluator.Evaluate(formula, params)
}

// EvaluateOrZero returns 0 whenever evaluation fails.
func EvaluateOrZero(formula string, params map[string]any) float64 {
	v, err := Evaluate(formula, params)
	if err != nil {
		return 0
	}
	return v
}

// Substitute replaces each ${name} whose parameter is numeric with its
// value. Placeholders for missing or non-numeric parameters are left as is.
func Substitute(formula string, params map[string]any) string {
	numeric := model.NumericValues(params)
	return placeholderRe.ReplaceAllStringFunc(formula, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := numeric[name]
		if !ok {
			return m
		}
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if v < 0 {
			return "(" + s + ")"
		}
		return s
	})
}

// Dependencies lists the parameter names referenced by formula, in order
// of first appearance.
func Dependencies(formula string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(formula, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Evaluate substitutes numeric parameters into formula, checks that the
// result is plain arithmetic, and evaluates it in strict mode. The result
// must be a finite number.
func (e *Evaluator) Evaluate(formula string, params map[string]any) (float64, error) {
	if strings.TrimSpace(formula) == "" {
		return 0, fmt.Errorf("empty formula")
	}

	expr := Substitute(formula, params)
	if missing := Dependencies(expr); len(missing) > 0 {
		return 0, fmt.Errorf("formula references non-numeric or missing parameter %q", missing[0])
	}

	if err := checkArithmetic(expr); err != nil {
		return 0, fmt.Errorf("evaluate %q: %w", formula, err)
	}

	vm := goja.New()
	timer := time.AfterFunc(e.timeout, func() {
		vm.Interrupt(ErrTimeout)
	})
	defer timer.Stop()

	val, err := vm.RunString(`(function() { "use strict"; return (` + expr + "\n); })()")
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return 0, ErrTimeout
		}
		return 0, fmt.Errorf("evaluate %q: %w", formula, err)
	}

	var result float64
	switch v := val.Export().(type) {
	case int64:
		result = float64(v)
	case float64:
		result = v
	default:
		return 0, fmt.Errorf("formula %q produced %s, not a number", formula, val.String())
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("formula %q produced non-finite result %s", formula, val.String())
	}
	return result, nil
}

// Quantity is the outcome of evaluating one step's formula.
type Quantity struct {
	Value float64 `json:"value"`
	Error string  `json:"error,omitempty"`
}

// ComputeStepQuantities evaluates the formula of every step that has one,
// keyed by step id.
func (e *Evaluator) ComputeStepQuantities(steps []*model.Step, params map[string]any) map[string]Quantity {
	out := make(map[string]Quantity)
	for _, s := range steps {
		if !s.HasFormula() {
			continue
		}
		v, err := e.Evaluate(s.CalculationFormula, params)
		if err != nil {
			out[s.ID] = Quantity{Error: err.Error()}
			continue
		}
		out[s.ID] = Quantity{Value: v}
	}
	return out
}

// ComputeStepQuantities uses the default evaluator.
func ComputeStepQuantities(steps []*model.Step, params map[string]any) map[string]Quantity {
	return defaultEvaluator.ComputeStepQuantities(steps, params)
}

// ParseValues converts form or query values into parameter values: numbers
// become float64, "true" and "false" become bools, anything else stays a
// string. Only the first value of each key is used and empty values are
// skipped.
func ParseValues(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 0 {
			continue
		}
		v := strings.TrimSpace(vs[0])
		if v == "" {
			continue
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			out[k] = n
			continue
		}
		if b, err := strconv.ParseBool(v); err == nil && (v == "true" || v == "false") {
			out[k] = b
			continue
		}
		out[k] = v
	}
	return out
}
