package store

import (
	"fmt"
	"strings"
)

// Op is a facet predicate operator.
type Op string

const (
	// OpEquals matches single-valued string fields exactly (category).
	OpEquals Op = "equals"
	// OpContains matches a substring of serialized-list fields
	// (tags, artist, compatible_figures).
	OpContains Op = "contains"
)

// Filter is a boolean expression tree over facet predicates, evaluated
// against an entry's metadata. Implementations are Leaf, And, and Or.
//
// Validate must be called before evaluation: an unsupported operator is a
// programming error and is reported eagerly rather than silently matching
// nothing.
type Filter interface {
	// Match reports whether the metadata satisfies the expression.
	Match(meta Metadata) bool

	// Validate checks the expression for unsupported operators.
	Validate() error

	// String renders the expression for debug logging.
	String() string
}

// Leaf is a single (field, op, value) predicate.
type Leaf struct {
	Field string
	Op    Op
	Value string
}

// Match evaluates the predicate against meta. Missing fields evaluate as the
// empty string, so they never match a non-empty value.
func (l Leaf) Match(meta Metadata) bool {
	got := meta.GetString(l.Field)
	switch l.Op {
	case OpEquals:
		return got == l.Value
	case OpContains:
		return strings.Contains(got, l.Value)
	default:
		return false
	}
}

// Validate rejects empty fields and operators outside the closed set.
func (l Leaf) Validate() error {
	if l.Field == "" {
		return fmt.Errorf("filter leaf has no field")
	}
	switch l.Op {
	case OpEquals, OpContains:
		return nil
	default:
		return fmt.Errorf("unsupported filter operator %q on field %q", l.Op, l.Field)
	}
}

func (l Leaf) String() string {
	return fmt.Sprintf("%s %s %q", l.Field, l.Op, l.Value)
}

// And matches when every child matches. An empty And matches everything,
// mirroring the "empty filter set compiles to no filter" contract.
type And []Filter

// Match reports whether all children match.
func (a And) Match(meta Metadata) bool {
	for _, f := range a {
		if !f.Match(meta) {
			return false
		}
	}
	return true
}

// Validate validates all children.
func (a And) Validate() error {
	for _, f := range a {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (a And) String() string {
	parts := make([]string, len(a))
	for i, f := range a {
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

// Or matches when any child matches. An empty Or matches nothing.
type Or []Filter

// Match reports whether at least one child matches.
func (o Or) Match(meta Metadata) bool {
	for _, f := range o {
		if f.Match(meta) {
			return true
		}
	}
	return false
}

// Validate validates all children.
func (o Or) Validate() error {
	for _, f := range o {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (o Or) String() string {
	parts := make([]string, len(o))
	for i, f := range o {
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}
