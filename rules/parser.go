package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseRulesJSON decodes a JSON array of rule objects
func ParseRulesJSON(data []byte) ([]*Rule, error) {
	var objs []any
	if err := json.Unmarshal(data, &objs); err != nil {
		return nil, &ParseError{Field: "rules", Err: err}
	}
	return ParseRules(objs)
}

// ParseRulesYAML decodes a YAML sequence of rule objects. The result is
// identical to ParseRulesJSON for the same document shape.
func ParseRulesYAML(data []byte) ([]*Rule, error) {
	var objs []any
	if err := yaml.Unmarshal(data, &objs); err != nil {
		return nil, &ParseError{Field: "rules", Err: err}
	}
	return ParseRules(objs)
}

// ParseRules parses a list of generic rule objects, preserving order
func ParseRules(objs []any) ([]*Rule, error) {
	parsed := make([]*Rule, 0, len(objs))
	for i, obj := range objs {
		m, ok := obj.(map[string]any)
		if !ok {
			return nil, &ParseError{Field: fmt.Sprintf("rules[%d]", i), Err: fmt.Errorf("expected object, got %T", obj)}
		}
		rule, err := ParseRule(m)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, rule)
	}
	return parsed, nil
}

// ParseRule builds a Rule from a generic object, applying defaults for
// absent keys. It does not check that action types exist, and a missing
// id is kept as an empty ID.
func ParseRule(obj map[string]any) (*Rule, error) {
	rule := &Rule{
		ID:       stringify(obj["id"]),
		Type:     "automation",
		Enabled:  true,
		Actions:  []ActionDef{},
		Metadata: map[string]any{},
	}

	rule.Name = rule.ID
	if name, ok := obj["name"]; ok && name != nil {
		rule.Name = stringify(name)
	}
	if typ, ok := obj["type"]; ok && typ != nil {
		rule.Type = stringify(typ)
	}
	if enabled, ok := obj["enabled"]; ok && enabled != nil {
		rule.Enabled = truthy(enabled)
	}

	priority, err := toInt(obj["priority"])
	if err != nil {
		return nil, &ParseError{RuleID: rule.ID, Field: "priority", Err: err}
	}
	rule.Priority = priority

	if raw, ok := obj["conditions"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, &ParseError{RuleID: rule.ID, Field: "conditions", Err: fmt.Errorf("expected object, got %T", raw)}
		}
		cond, err := ParseCondition(m)
		if err != nil {
			return nil, &ParseError{RuleID: rule.ID, Field: "conditions", Err: err}
		}
		rule.Conditions = cond
	}

	if raw, ok := obj["actions"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, &ParseError{RuleID: rule.ID, Field: "actions", Err: fmt.Errorf("expected list, got %T", raw)}
		}
		for i, item := range list {
			action, err := parseAction(item)
			if err != nil {
				return nil, &ParseError{RuleID: rule.ID, Field: fmt.Sprintf("actions[%d]", i), Err: err}
			}
			rule.Actions = append(rule.Actions, action)
		}
	}

	if raw, ok := obj["metadata"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, &ParseError{RuleID: rule.ID, Field: "metadata", Err: fmt.Errorf("expected object, got %T", raw)}
		}
		rule.Metadata = m
	}

	return rule, nil
}

// ParseCondition builds a condition tree. The operator comes from
// "operator" or its "op" alias and defaults to AND. Logical operators
// become combinators over "conditions"; anything else is a leaf. A
// comparison node that carries a "conditions" key is a group, so its
// field is ignored and the leaf reads nothing.
func ParseCondition(obj map[string]any) (Condition, error) {
	op := "AND"
	if raw, ok := obj["operator"]; ok && raw != nil {
		op = stringify(raw)
	} else if raw, ok := obj["op"]; ok && raw != nil {
		op = stringify(raw)
	}

	if logical, ok := parseLogicalOp(op); ok {
		node := &Combinator{Op: logical}
		raw, _ := obj["conditions"].([]any)
		for i, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("conditions[%d]: expected object, got %T", i, item)
			}
			child, err := ParseCondition(m)
			if err != nil {
				return nil, fmt.Errorf("conditions[%d]: %w", i, err)
			}
			node.Children = append(node.Children, child)
		}
		return node, nil
	}

	if Operator(op) == OpExpression {
		source, ok := obj["value"].(string)
		if !ok {
			return nil, errors.New("expression condition needs a string value")
		}
		expr, err := CompileExpression(source)
		if err != nil {
			return nil, err
		}
		return expr, nil
	}

	node := &Leaf{Op: Operator(op), Value: obj["value"]}
	if _, grouped := obj["conditions"]; !grouped {
		node.Field = stringify(obj["field"])
	}
	return node, nil
}

func parseAction(item any) (ActionDef, error) {
	m, ok := item.(map[string]any)
	if !ok {
		return ActionDef{}, fmt.Errorf("expected object, got %T", item)
	}
	action := ActionDef{
		Type:   stringify(m["type"]),
		Params: map[string]any{},
	}
	if raw, ok := m["params"]; ok && raw != nil {
		params, ok := raw.(map[string]any)
		if !ok {
			return ActionDef{}, fmt.Errorf("params: expected object, got %T", raw)
		}
		action.Params = params
	}
	return action, nil
}

// toInt coerces a priority value; nil is 0 and floats are truncated
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", n)
		}
		return i, nil
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid integer %v (%T)", v, v)
	}
	return int(f), nil
}
