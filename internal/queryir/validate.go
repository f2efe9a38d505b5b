package queryir

import (
	"fmt"

	"github.com/roach88/gqlbridge/internal/ir"
)

// ValidationResult contains the pushdown analysis of a predicate.
//
// A native predicate can be sent to the store as-is. A predicate outside the
// native fragment still evaluates correctly, but only locally, after a
// full-kind fetch.
type ValidationResult struct {
	// Native indicates the predicate uses only features the store's query
	// executor accepts reliably.
	Native bool

	// Warnings lists the non-native features found, one per occurrence.
	// Empty when Native is true.
	Warnings []string
}

// Validate checks whether a predicate can be evaluated by the store.
//
// Native fragment rules:
//  1. No OR - the store has no general disjunction
//  2. No binary literals - literal normalization corrupts them
//  3. No unparseable conditions
//
// Validate is a pure function with no side effects. A nil predicate is native.
func Validate(p Predicate) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validatePredicate(p)

	return ValidationResult{
		Native:   len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

// validatePredicate recursively validates a predicate node.
func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Compare:
		v.validateValue(pred.Field, pred.Value)
	case *Compare:
		v.validateValue(pred.Field, pred.Value)
	case In:
		for _, val := range pred.Values {
			v.validateValue(pred.Field, val)
		}
	case *In:
		for _, val := range pred.Values {
			v.validateValue(pred.Field, val)
		}
	case Contains:
		v.validateValue(pred.Field, pred.Value)
	case *Contains:
		v.validateValue(pred.Field, pred.Value)
	case IsNull, *IsNull, HasAncestor, *HasAncestor:
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Or:
		v.addWarning("OR over %d conditions requires local evaluation", len(pred.Predicates))
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case *Or:
		v.addWarning("OR over %d conditions requires local evaluation", len(pred.Predicates))
		for _, sub := range pred.Predicates {
			v.validatePredicate(sub)
		}
	case Invalid:
		v.addWarning("unparseable condition %q never matches", pred.Text)
	case *Invalid:
		v.addWarning("unparseable condition %q never matches", pred.Text)
	default:
		v.addWarning("unknown predicate type %T", p)
	}
}

// validateValue flags literal types the store cannot take inline.
func (v *validator) validateValue(field string, val ir.Value) {
	if _, ok := val.(ir.Bytes); ok {
		v.addWarning("binary literal on field %q requires local evaluation", field)
	}
}
