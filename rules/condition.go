package rules

import (
	"regexp"
	"strings"
)

// LogicalOp combines child conditions
type LogicalOp string

const (
	OpAnd LogicalOp = "AND"
	OpOr  LogicalOp = "OR"
	OpNot LogicalOp = "NOT"
)

// parseLogicalOp matches combinator names case-insensitively
func parseLogicalOp(op string) (LogicalOp, bool) {
	switch LogicalOp(strings.ToUpper(op)) {
	case OpAnd:
		return OpAnd, true
	case OpOr:
		return OpOr, true
	case OpNot:
		return OpNot, true
	}
	return "", false
}

// Operator is a comparison applied by a leaf condition. Names are case-sensitive.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpRegex       Operator = "regex"
	OpTruthy      Operator = "truthy"
	OpFalsy       Operator = "falsy"
	OpExpression  Operator = "expression"
)

// Condition is a node of a boolean predicate tree over a facts map.
// Implementations are *Combinator, *Leaf and *Expression.
type Condition interface {
	Evaluate(facts map[string]any) (bool, error)
	isCondition()
}

// Evaluate evaluates a condition tree against facts. A nil tree matches.
// Evaluation never mutates facts.
func Evaluate(cond Condition, facts map[string]any) (bool, error) {
	if cond == nil {
		return true, nil
	}
	return cond.Evaluate(facts)
}

// Combinator joins child conditions with AND, OR or NOT
type Combinator struct {
	Op       LogicalOp
	Children []Condition
}

func (*Combinator) isCondition() {}

// Evaluate applies the logical operator to the children.
// AND of nothing is true, OR of nothing is false, NOT only looks at the
// first child and treats a missing child as a false leaf.
func (c *Combinator) Evaluate(facts map[string]any) (bool, error) {
	switch c.Op {
	case OpAnd:
		for _, child := range c.Children {
			ok, err := child.Evaluate(facts)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case OpOr:
		for _, child := range c.Children {
			ok, err := child.Evaluate(facts)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case OpNot:
		if len(c.Children) == 0 {
			return true, nil
		}
		ok, err := c.Children[0].Evaluate(facts)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
	return false, nil
}

// Leaf compares the value at a dot-separated field path with a literal
type Leaf struct {
	Op    Operator
	Field string
	Value any
}

func (*Leaf) isCondition() {}

// Evaluate resolves the field and applies the comparison operator. An
// empty field resolves to nil. Unknown operators evaluate to false.
func (l *Leaf) Evaluate(facts map[string]any) (bool, error) {
	var actual any
	if l.Field != "" {
		actual = Lookup(facts, l.Field)
	}

	switch l.Op {
	case OpEquals:
		return valuesEqual(actual, l.Value), nil
	case OpNotEquals:
		return !valuesEqual(actual, l.Value), nil
	case OpGreaterThan, OpLessThan:
		cmp, ok := compareOrdered(actual, l.Value)
		if !ok {
			return false, &ComparisonError{Operator: l.Op, Field: l.Field, Left: actual, Right: l.Value}
		}
		if l.Op == OpGreaterThan {
			return cmp > 0, nil
		}
		return cmp < 0, nil
	case OpContains:
		found, _ := containsValue(actual, l.Value)
		return found, nil
	case OpNotContains:
		found, supported := containsValue(actual, l.Value)
		return !supported || !found, nil
	case OpIn:
		found, _ := containsValue(l.Value, actual)
		return found, nil
	case OpNotIn:
		found, _ := containsValue(l.Value, actual)
		return !found, nil
	case OpRegex:
		return matchPrefix(l.Value, actual), nil
	case OpTruthy:
		return truthy(actual), nil
	case OpFalsy:
		return !truthy(actual), nil
	}
	return false, nil
}

// Lookup walks facts one dot-separated segment at a time. A missing segment
// or a non-map intermediate value resolves to nil.
func Lookup(facts map[string]any, path string) any {
	var current any = facts
	for _, segment := range strings.Split(path, ".") {
		next, found := mapGet(current, segment)
		if !found {
			return nil
		}
		current = next
	}
	return current
}

// matchPrefix matches pattern against the start of value's string form
func matchPrefix(pattern, value any) bool {
	source, ok := pattern.(string)
	if !ok {
		return false
	}
	re, err := regexp.Compile(`^(?:` + source + `)`)
	if err != nil {
		return false
	}
	return re.MatchString(stringify(value))
}
