// Package qcirc simulates quantum circuits by evolving dense vectors, density matrices and matrix product states.
//
// The packages under this module are layered bottom-up:
//   - index: axis permutations that bring operator axes to the front of a state tensor.
//   - evolve: application of local operators, with or without controls, to dense states and density matrices.
//   - mps: matrix product states, canonicalisation with truncation, and operators as matrix product operators.
//   - gate, state, circuit: operators, the state container and ordered collections of operators.
//
// This package holds the validation error type shared by all of them.
package qcirc

import (
	"fmt"

	"github.com/pkg/errors"
)

// Stage is the point at which a validation error is raised.
type Stage int

const (
	// Construction errors are raised while building operators and circuits.
	Construction Stage = iota
	// Evolution errors are raised while applying operators to states.
	Evolution
)

func (s Stage) String() string {
	switch s {
	case Construction:
		return "construction"
	case Evolution:
		return "evolution"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Rule is the violated validation rule.
type Rule int

const (
	// AxisRange is an axis outside of [0, n).
	AxisRange Rule = iota + 1
	// AxisDuplicate is an axis that appears more than once in wires or in controls.
	AxisDuplicate
	// AxisOverlap is an axis that appears in both wires and controls.
	AxisOverlap
	// ShapeMismatch is a tensor whose shape disagrees with the operator or the state.
	ShapeMismatch
	// NotUnitary is a matrix that was required to be unitary but is not.
	NotUnitary
	// ChainRange is an operator that acts on sites outside of a matrix product state.
	ChainRange
	// TrainableEncoder is a data encoder whose parameters are trainable.
	TrainableEncoder
	// BadConfig is an invalid configuration value.
	BadConfig
)

var ruleNames = map[Rule]string{
	AxisRange:        "axis out of range",
	AxisDuplicate:    "duplicate axis",
	AxisOverlap:      "wires overlap controls",
	ShapeMismatch:    "shape mismatch",
	NotUnitary:       "not unitary",
	ChainRange:       "outside of chain",
	TrainableEncoder: "trainable encoder",
	BadConfig:        "bad config",
}

func (r Rule) String() string {
	if s, ok := ruleNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Rule(%d)", int(r))
}

// Error is a validation error.
type Error struct {
	Stage  Stage
	Rule   Rule
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Rule)
	}
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Rule, e.Detail)
}

// Is reports whether target is an *Error with the same rule, regardless of stage.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Rule == e.Rule
}

// Sentinels for errors.Is.
var (
	ErrAxisRange        = &Error{Rule: AxisRange}
	ErrAxisDuplicate    = &Error{Rule: AxisDuplicate}
	ErrAxisOverlap      = &Error{Rule: AxisOverlap}
	ErrShapeMismatch    = &Error{Rule: ShapeMismatch}
	ErrNotUnitary       = &Error{Rule: NotUnitary}
	ErrChainRange       = &Error{Rule: ChainRange}
	ErrTrainableEncoder = &Error{Rule: TrainableEncoder}
	ErrBadConfig        = &Error{Rule: BadConfig}
)

// Errorf returns a validation error with a stack trace.
func Errorf(stage Stage, rule Rule, format string, args ...any) error {
	return errors.WithStack(&Error{Stage: stage, Rule: rule, Detail: fmt.Sprintf(format, args...)})
}

// StageOf returns the stage of the validation error in err's chain.
func StageOf(err error) (Stage, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Stage, true
}
