package rules

import (
	"errors"
	"fmt"
)

// ErrWorkflowNotFound is returned by a WorkflowStore for an unknown workflow name
var ErrWorkflowNotFound = errors.New("workflow not found")

// ComparisonError is returned when an ordering operator is applied to
// operands that have no common order (e.g. a string and a number)
type ComparisonError struct {
	Operator Operator
	Field    string
	Left     any
	Right    any
}

func (e *ComparisonError) Error() string {
	return fmt.Sprintf("cannot apply %s to field %q: %T and %T are not comparable",
		e.Operator, e.Field, e.Left, e.Right)
}

// RuleError attaches the failing rule to an evaluation error
type RuleError struct {
	RuleID string
	Err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// CapabilityError is returned when an action needs a service that is not
// registered, or that does not implement the expected interface
type CapabilityError struct {
	Action string
	Key    string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("action %s: service %q is not available", e.Action, e.Key)
}

// ParseError is returned for rule definitions that cannot be decoded
type ParseError struct {
	RuleID string
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("parse %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("parse rule %s: %s: %v", e.RuleID, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
