package rules

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, objs ...map[string]any) []*Rule {
	t.Helper()
	generic := make([]any, len(objs))
	for i, obj := range objs {
		generic[i] = obj
	}
	parsed, err := ParseRules(generic)
	require.NoError(t, err)
	return parsed
}

func TestNewEngine_FiltersAndSorts(t *testing.T) {
	parsed := mustParse(t,
		map[string]any{"id": "low", "priority": 1},
		map[string]any{"id": "off", "priority": 1000, "enabled": false},
		map[string]any{"id": "high", "priority": 50},
		map[string]any{"id": "tie-a", "priority": 10},
		map[string]any{"id": "tie-b", "priority": 10},
	)

	en := NewEngine(parsed, nil)

	ids := make([]string, 0)
	for _, r := range en.Rules() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"high", "tie-a", "tie-b", "low"}, ids)
}

func TestEngine_PriorityOrderAndMutationVisibility(t *testing.T) {
	parsed := mustParse(t,
		map[string]any{
			"id":       "R1",
			"priority": 10,
			"conditions": map[string]any{
				"operator": "equals", "field": "queue", "value": "vip",
			},
			"actions": []any{map[string]any{"type": "notify", "params": map[string]any{"channel": "vip"}}},
		},
		map[string]any{
			"id":       "R2",
			"priority": 100,
			"actions": []any{map[string]any{
				"type": "set_field", "params": map[string]any{"field": "queue", "value": "vip"},
			}},
		},
	)

	svc := &recordingService{}
	facts := map[string]any{}
	result, err := NewEngine(parsed, allServices(svc)).Evaluate(context.Background(), facts)
	require.NoError(t, err)

	assert.Equal(t, []string{"R2", "R1"}, result.MatchedRules)
	require.Len(t, result.ActionsExecuted, 2)
	assert.Equal(t, ExecutedAction{Rule: "R2", Action: "set_field", Result: map[string]any{"status": "ok"}}, result.ActionsExecuted[0])
	assert.Equal(t, "R1", result.ActionsExecuted[1].Rule)
	assert.Equal(t, "notify", result.ActionsExecuted[1].Action)
	assert.Equal(t, "vip", facts["queue"])
	assert.Equal(t, []string{"send"}, svc.calls)
}

func TestEngine_EscalationLastWins(t *testing.T) {
	parsed := mustParse(t,
		map[string]any{
			"id": "first", "priority": 20,
			"actions": []any{map[string]any{"type": "escalate", "params": map[string]any{"reason": "angry customer"}}},
		},
		map[string]any{
			"id": "second", "priority": 10,
			"actions": []any{map[string]any{"type": "escalate", "params": map[string]any{"reason": "legal threat"}}},
		},
	)

	result, err := NewEngine(parsed, allServices(&recordingService{})).Evaluate(context.Background(), map[string]any{})
	require.NoError(t, err)

	assert.True(t, result.RequiresEscalation)
	assert.Equal(t, "legal threat", result.EscalationReason)
	assert.Len(t, result.ActionsExecuted, 2)
}

func TestEngine_SLALastWins(t *testing.T) {
	parsed := mustParse(t,
		map[string]any{
			"id": "R",
			"actions": []any{
				map[string]any{"type": "sla", "params": map[string]any{"target": "1h"}},
				map[string]any{"type": "sla", "params": map[string]any{"target": "15m"}},
			},
		},
	)

	result, err := NewEngine(parsed, allServices(&recordingService{})).Evaluate(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.NotNil(t, result.SLA)
	assert.Equal(t, "15m", result.SLA["target"])
	assert.Contains(t, result.SLA, "deadline")
	assert.False(t, result.RequiresEscalation)
}

func TestEngine_UnknownActionSoftSkip(t *testing.T) {
	parsed := mustParse(t, map[string]any{
		"id":      "R",
		"actions": []any{map[string]any{"type": "does_not_exist"}},
	})

	result, err := NewEngine(parsed, Services{}).Evaluate(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.Len(t, result.ActionsExecuted, 1)
	assert.Equal(t, "skipped", result.ActionsExecuted[0].Result["status"])
}

func TestEngine_DisabledRuleNeverMatches(t *testing.T) {
	parsed := mustParse(t,
		map[string]any{"id": "off", "enabled": false, "priority": 100},
		map[string]any{"id": "on"},
	)

	result, err := NewEngine(parsed, nil).Evaluate(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, []string{"on"}, result.MatchedRules)
}

func TestEngine_NoMatch(t *testing.T) {
	parsed := mustParse(t, map[string]any{
		"id":         "R",
		"conditions": map[string]any{"operator": "truthy", "field": "flagged"},
		"actions":    []any{map[string]any{"type": "escalate"}},
	})

	result, err := NewEngine(parsed, Services{}).Evaluate(context.Background(), map[string]any{"flagged": false})
	require.NoError(t, err)
	assert.Empty(t, result.MatchedRules)
	assert.Empty(t, result.ActionsExecuted)
	assert.False(t, result.RequiresEscalation)
	assert.Nil(t, result.SLA)
}

func TestEngine_ConditionErrorAbortsRun(t *testing.T) {
	parsed := mustParse(t,
		map[string]any{
			"id": "first", "priority": 10,
			"actions": []any{map[string]any{"type": "set_field", "params": map[string]any{"field": "touched", "value": true}}},
		},
		map[string]any{
			"id":         "broken",
			"conditions": map[string]any{"operator": "greater_than", "field": "name", "value": 3},
		},
	)

	result, err := NewEngine(parsed, nil).Evaluate(context.Background(), map[string]any{"name": "acme"})
	require.Error(t, err)
	assert.Nil(t, result)

	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "broken", ruleErr.RuleID)

	var cmpErr *ComparisonError
	assert.ErrorAs(t, err, &cmpErr)
}

func TestEngine_CapabilityErrorAbortsRun(t *testing.T) {
	boom := errors.New("crm down")
	parsed := mustParse(t,
		map[string]any{"id": "A", "priority": 2, "actions": []any{map[string]any{"type": "webhook"}}},
		map[string]any{"id": "B", "priority": 1, "actions": []any{map[string]any{"type": "notify"}}},
	)

	svc := &recordingService{err: boom}
	result, err := NewEngine(parsed, allServices(svc)).Evaluate(context.Background(), map[string]any{})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, result)
	assert.Equal(t, []string{"call"}, svc.calls, "later rules do not run")
}

func TestEngine_MissingCapabilityIsAnError(t *testing.T) {
	parsed := mustParse(t, map[string]any{"id": "A", "actions": []any{map[string]any{"type": "escalate"}}})

	_, err := NewEngine(parsed, Services{}).Evaluate(context.Background(), map[string]any{})
	var capErr *CapabilityError
	assert.ErrorAs(t, err, &capErr)
}

func TestEngine_ContextCancelled(t *testing.T) {
	parsed := mustParse(t, map[string]any{"id": "A"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(parsed, nil).Evaluate(ctx, map[string]any{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_NilFacts(t *testing.T) {
	parsed := mustParse(t, map[string]any{
		"id":      "A",
		"actions": []any{map[string]any{"type": "set_field", "params": map[string]any{"field": "x", "value": 1}}},
	})

	result, err := NewEngine(parsed, nil).Evaluate(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, result.MatchedRules)
}

func TestEngine_Snapshots(t *testing.T) {
	parsed := mustParse(t,
		map[string]any{
			"id": "first", "priority": 2,
			"actions": []any{map[string]any{"type": "set_field", "params": map[string]any{"field": "step", "value": "one"}}},
		},
		map[string]any{
			"id": "second", "priority": 1,
			"actions": []any{map[string]any{"type": "set_field", "params": map[string]any{"field": "step", "value": "two"}}},
		},
	)

	result, err := NewEngine(parsed, nil, WithSnapshots()).Evaluate(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.Len(t, result.Snapshots, 2)
	assert.Equal(t, "one", result.Snapshots[0].Facts["step"])
	assert.Equal(t, "two", result.Snapshots[1].Facts["step"])

	plain, err := NewEngine(parsed, nil).Evaluate(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, plain.Snapshots)
}

func TestEngine_SnapshotsKeepNonJSONValues(t *testing.T) {
	parsed := mustParse(t, map[string]any{
		"id": "mark",
		"actions": []any{map[string]any{"type": "set_field", "params": map[string]any{"field": "step", "value": "marked"}}},
	})

	facts := map[string]any{
		"score": math.NaN(),
		"n":     3,
		"tags":  []any{"a"},
		"meta":  map[string]any{"seen": true},
	}
	result, err := NewEngine(parsed, nil, WithSnapshots()).Evaluate(context.Background(), facts)
	require.NoError(t, err)
	require.Len(t, result.Snapshots, 1)

	snap := result.Snapshots[0].Facts
	assert.IsType(t, 3, snap["n"])
	assert.Equal(t, 3, snap["n"])
	require.IsType(t, float64(0), snap["score"])
	assert.True(t, math.IsNaN(snap["score"].(float64)))

	facts["n"] = 4
	facts["tags"].([]any)[0] = "b"
	facts["meta"].(map[string]any)["seen"] = false
	assert.Equal(t, 3, snap["n"])
	assert.Equal(t, []any{"a"}, snap["tags"])
	assert.Equal(t, true, snap["meta"].(map[string]any)["seen"])
	assert.Equal(t, "marked", snap["step"])
}

func TestEngine_EndToEndEscalationRule(t *testing.T) {
	parsed, err := ParseRulesJSON([]byte(escalationRuleJSON))
	require.NoError(t, err)

	facts := map[string]any{
		"sentiment": map[string]any{"score": -0.7},
		"customer":  map[string]any{"tier": "enterprise"},
	}
	result, err := NewEngine(parsed, allServices(&recordingService{})).Evaluate(context.Background(), facts)
	require.NoError(t, err)

	assert.Equal(t, []string{"RULE-ESC-001"}, result.MatchedRules)
	assert.True(t, result.RequiresEscalation)
	assert.Equal(t, "Customer request", result.EscalationReason)
	require.NotNil(t, result.SLA)
	assert.Equal(t, "15m", result.SLA["target"])
}
