package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(op Operator, field string, value any) *Leaf {
	return &Leaf{Op: op, Field: field, Value: value}
}

func TestLookup(t *testing.T) {
	facts := map[string]any{
		"a":     map[string]any{"b": map[string]any{"c": 5}},
		"flat":  "value",
		"typed": map[string]string{"k": "v"},
	}

	assert.Equal(t, 5, Lookup(facts, "a.b.c"))
	assert.Equal(t, "value", Lookup(facts, "flat"))
	assert.Equal(t, "v", Lookup(facts, "typed.k"))
	assert.Nil(t, Lookup(facts, "a.b.missing"))
	assert.Nil(t, Lookup(facts, "flat.deeper"), "non-map intermediate resolves to nil")
	assert.Nil(t, Lookup(facts, "nope"))
	assert.Nil(t, Lookup(nil, "a"))
}

func TestEvaluate_DotPath(t *testing.T) {
	cond := leaf(OpEquals, "a.b.c", 5)

	ok, err := Evaluate(cond, map[string]any{"a": map[string]any{"b": map[string]any{"c": 5}}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Evaluate(cond, map[string]any{"a": map[string]any{"b": map[string]any{}}})
	require.NoError(t, err)
	assert.False(t, ok, "missing leaf resolves to nil, which never equals 5")
}

func TestEvaluate_NilConditionMatches(t *testing.T) {
	ok, err := Evaluate(nil, map[string]any{})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCombinator_IdentityLaws(t *testing.T) {
	facts := map[string]any{"name": "acme"}

	ok, err := (&Combinator{Op: OpAnd}).Evaluate(facts)
	require.NoError(t, err)
	assert.True(t, ok, "empty AND is true")

	ok, err = (&Combinator{Op: OpOr}).Evaluate(facts)
	require.NoError(t, err)
	assert.False(t, ok, "empty OR is false")

	ok, err = (&Combinator{Op: OpNot}).Evaluate(facts)
	require.NoError(t, err)
	assert.True(t, ok, "NOT without a child negates a false leaf")

	ok, err = (&Combinator{Op: OpNot, Children: []Condition{leaf(OpTruthy, "name", nil)}}).Evaluate(facts)
	require.NoError(t, err)
	assert.False(t, ok, "NOT of a truthy present value is false")
}

func TestCombinator_NotUsesFirstChildOnly(t *testing.T) {
	cond := &Combinator{Op: OpNot, Children: []Condition{
		leaf(OpFalsy, "x", nil),
		leaf(OpTruthy, "x", nil),
	}}
	ok, err := cond.Evaluate(map[string]any{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCombinator_Nested(t *testing.T) {
	cond := &Combinator{Op: OpAnd, Children: []Condition{
		leaf(OpLessThan, "sentiment.score", -0.5),
		&Combinator{Op: OpOr, Children: []Condition{
			leaf(OpEquals, "customer.tier", "enterprise"),
			leaf(OpIn, "customer.tier", []any{"gold", "platinum"}),
		}},
	}}

	tests := []struct {
		name  string
		facts map[string]any
		want  bool
	}{
		{"enterprise and negative", map[string]any{
			"sentiment": map[string]any{"score": -0.7},
			"customer":  map[string]any{"tier": "enterprise"},
		}, true},
		{"gold and negative", map[string]any{
			"sentiment": map[string]any{"score": -0.9},
			"customer":  map[string]any{"tier": "gold"},
		}, true},
		{"free tier", map[string]any{
			"sentiment": map[string]any{"score": -0.9},
			"customer":  map[string]any{"tier": "free"},
		}, false},
		{"positive sentiment", map[string]any{
			"sentiment": map[string]any{"score": 0.4},
			"customer":  map[string]any{"tier": "enterprise"},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := cond.Evaluate(tt.facts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestLeaf_Operators(t *testing.T) {
	facts := map[string]any{
		"count":   float64(3),
		"name":    "Acme Corporation",
		"tags":    []any{"vip", "beta"},
		"attrs":   map[string]any{"region": "eu"},
		"empty":   "",
		"zero":    0,
		"enabled": true,
		"nothing": nil,
		"nested":  map[string]any{"list": []any{1, 2}},
	}

	tests := []struct {
		name string
		cond *Leaf
		want bool
	}{
		{"equals int vs float", leaf(OpEquals, "count", 3), true},
		{"equals string", leaf(OpEquals, "name", "Acme Corporation"), true},
		{"equals list numeric", leaf(OpEquals, "nested.list", []any{1.0, 2.0}), true},
		{"equals nil missing", leaf(OpEquals, "missing", nil), true},
		{"not_equals", leaf(OpNotEquals, "name", "Other"), true},
		{"not_equals same", leaf(OpNotEquals, "count", 3.0), false},
		{"greater_than", leaf(OpGreaterThan, "count", 2), true},
		{"greater_than equal", leaf(OpGreaterThan, "count", 3), false},
		{"less_than", leaf(OpLessThan, "count", 10), true},
		{"less_than strings", leaf(OpLessThan, "name", "B"), true},
		{"contains substring", leaf(OpContains, "name", "Corp"), true},
		{"contains non-string needle", leaf(OpContains, "name", 1), false},
		{"contains list element", leaf(OpContains, "tags", "vip"), true},
		{"contains list miss", leaf(OpContains, "tags", "gold"), false},
		{"contains map key", leaf(OpContains, "attrs", "region"), true},
		{"contains unsupported", leaf(OpContains, "count", 3), false},
		{"not_contains list miss", leaf(OpNotContains, "tags", "gold"), true},
		{"not_contains list hit", leaf(OpNotContains, "tags", "beta"), false},
		{"not_contains unsupported", leaf(OpNotContains, "count", 3), true},
		{"not_contains missing field", leaf(OpNotContains, "missing", "x"), true},
		{"in list", leaf(OpIn, "attrs.region", []any{"us", "eu"}), true},
		{"in list miss", leaf(OpIn, "attrs.region", []any{"us"}), false},
		{"in nil list", leaf(OpIn, "attrs.region", nil), false},
		{"not_in list", leaf(OpNotIn, "attrs.region", []any{"us"}), true},
		{"not_in nil list", leaf(OpNotIn, "attrs.region", nil), true},
		{"regex prefix", leaf(OpRegex, "name", "Acme"), true},
		{"regex anchored at start", leaf(OpRegex, "name", "Corporation"), false},
		{"regex number form", leaf(OpRegex, "count", `\d`), true},
		{"regex invalid pattern", leaf(OpRegex, "name", "("), false},
		{"truthy bool", leaf(OpTruthy, "enabled", nil), true},
		{"truthy empty string", leaf(OpTruthy, "empty", nil), false},
		{"truthy zero", leaf(OpTruthy, "zero", nil), false},
		{"truthy list", leaf(OpTruthy, "tags", nil), true},
		{"falsy nil", leaf(OpFalsy, "nothing", nil), true},
		{"falsy missing", leaf(OpFalsy, "missing", nil), true},
		{"falsy value ignored", leaf(OpFalsy, "name", "ignored"), false},
		{"unknown operator", leaf(Operator("between"), "count", 3), false},
		{"operators are case sensitive", leaf(Operator("EQUALS"), "count", 3), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.cond.Evaluate(facts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestLeaf_IncomparableOperands(t *testing.T) {
	facts := map[string]any{"name": "acme"}

	_, err := leaf(OpGreaterThan, "name", 5).Evaluate(facts)
	require.Error(t, err)

	var cmpErr *ComparisonError
	require.ErrorAs(t, err, &cmpErr)
	assert.Equal(t, "name", cmpErr.Field)
	assert.Equal(t, OpGreaterThan, cmpErr.Operator)

	_, err = leaf(OpLessThan, "missing", 5).Evaluate(facts)
	assert.ErrorAs(t, err, &cmpErr, "nil cannot be ordered against a number")
}

func TestLeaf_RegexOnNonStrings(t *testing.T) {
	facts := map[string]any{"flag": true, "ratio": 2.5, "empty": nil}

	tests := []struct {
		name string
		cond *Leaf
		want bool
	}{
		{"missing field is empty string", leaf(OpRegex, "missing", "None"), false},
		{"missing field matches empty pattern", leaf(OpRegex, "missing", ""), true},
		{"nil matches anchored empty", leaf(OpRegex, "empty", "^$"), true},
		{"bool lowercase", leaf(OpRegex, "flag", "true"), true},
		{"bool capitalised", leaf(OpRegex, "flag", "True"), false},
		{"float form", leaf(OpRegex, "ratio", `2\.5`), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cond.Evaluate(facts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_DoesNotMutateFacts(t *testing.T) {
	facts := map[string]any{
		"customer": map[string]any{"tier": "enterprise", "tags": []any{"vip"}},
		"score":    -0.7,
	}
	before := cloneFacts(facts)

	cond := &Combinator{Op: OpOr, Children: []Condition{
		leaf(OpContains, "customer.tags", "vip"),
		leaf(OpRegex, "customer.tier", "ent"),
		&Combinator{Op: OpNot, Children: []Condition{leaf(OpTruthy, "score", nil)}},
	}}

	first, err := Evaluate(cond, facts)
	require.NoError(t, err)
	second, err := Evaluate(cond, facts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, facts)
}

func TestExpression(t *testing.T) {
	expr, err := CompileExpression(`facts.sentiment.score < -0.5 && facts.customer.tier == "enterprise"`)
	require.NoError(t, err)

	ok, err := expr.Evaluate(map[string]any{
		"sentiment": map[string]any{"score": -0.7},
		"customer":  map[string]any{"tier": "enterprise"},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = expr.Evaluate(map[string]any{
		"sentiment": map[string]any{"score": 0.1},
		"customer":  map[string]any{"tier": "enterprise"},
	})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = expr.Evaluate(map[string]any{})
	assert.Error(t, err, "missing keys are runtime errors in CEL")
}

func TestExpression_NonBooleanIsFalse(t *testing.T) {
	expr, err := CompileExpression(`"text"`)
	require.NoError(t, err)

	ok, err := expr.Evaluate(map[string]any{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileExpression_Invalid(t *testing.T) {
	_, err := CompileExpression(`facts.score >=`)
	assert.Error(t, err)

	_, err = CompileExpression(`undeclared.value > 0`)
	assert.Error(t, err)
}
