package queryir

import "github.com/roach88/gqlbridge/internal/ir"

// Predicate represents a filter condition evaluated against a row.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Compare: field <op> literal (key and binary literals included)
//   - In: field [NOT] IN (literals)
//   - IsNull: field IS [NOT] NULL
//   - Contains: array field CONTAINS literal
//   - HasAncestor: __key__ HAS ANCESTOR KEY(...)
//   - And, Or: boolean combinations
//   - Invalid: a condition that could not be parsed
//
// Invalid never matches. A condition the engine cannot understand excludes
// the row rather than admitting it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Flip returns the operator with its operands swapped, so that
// "25 < age" can be evaluated as "age > 25".
func (o Op) Flip() Op {
	switch o {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	default:
		return o
	}
}

// Compare represents a field-operator-literal predicate.
//
// Semantics:
//
//	<field> <op> <value>
//
// A Null field value never satisfies a Compare. Values of different types
// (including Int against Double) never satisfy it either.
//
// Example:
//
//	Compare{Field: "__key__", Op: OpEq, Value: ir.Key{{Kind: "users", Name: "alice_id"}}}
type Compare struct {
	Field string
	Op    Op
	Value ir.Value
}

func (Compare) predicateNode() {}

// In represents list membership.
//
// Semantics:
//
//	<field> IN (<values>)       // Negate == false
//	<field> NOT IN (<values>)   // Negate == true
//
// A Null field value satisfies neither form.
type In struct {
	Field  string
	Values []ir.Value
	Negate bool
}

func (In) predicateNode() {}

// IsNull represents a null test. A missing property counts as null.
type IsNull struct {
	Field  string
	Negate bool
}

func (IsNull) predicateNode() {}

// Contains represents array membership: true when the field is an array
// holding an element equal to Value.
type Contains struct {
	Field string
	Value ir.Value
}

func (Contains) predicateNode() {}

// HasAncestor is true when the row key has Ancestor as a proper prefix.
type HasAncestor struct {
	Field    string
	Ancestor ir.Key
}

func (HasAncestor) predicateNode() {}

// And represents a conjunction (empty = always true).
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or represents a disjunction (empty = always false).
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Invalid records a condition that failed to parse.
// It evaluates to false for every row.
type Invalid struct {
	Text   string
	Reason string
}

func (Invalid) predicateNode() {}
