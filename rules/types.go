package rules

// ActionKind identifies one of the built-in action handlers
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionEscalate
	ActionNotify
	ActionSLA
	ActionWebhook
	ActionSetField
)

var actionKinds = map[string]ActionKind{
	"escalate":  ActionEscalate,
	"notify":    ActionNotify,
	"sla":       ActionSLA,
	"webhook":   ActionWebhook,
	"set_field": ActionSetField,
}

// String returns the action type string for the kind
func (k ActionKind) String() string {
	for name, kind := range actionKinds {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// ActionDef is a declared action: a type key plus handler configuration
type ActionDef struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params"`
}

// Kind resolves the declared type string to a built-in handler.
// Unrecognized types resolve to ActionUnknown.
func (a ActionDef) Kind() ActionKind {
	if kind, ok := actionKinds[a.Type]; ok {
		return kind
	}
	return ActionUnknown
}

// Param returns a single parameter, or nil when absent
func (a ActionDef) Param(key string) any {
	if a.Params == nil {
		return nil
	}
	return a.Params[key]
}

// Rule is a named, prioritized pairing of a condition tree with actions.
// A nil Conditions tree always matches.
type Rule struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Priority   int            `json:"priority"`
	Enabled    bool           `json:"enabled"`
	Conditions Condition      `json:"-"`
	Actions    []ActionDef    `json:"actions"`
	Metadata   map[string]any `json:"metadata"`
}

// ExecutedAction records one dispatched action in execution order
type ExecutedAction struct {
	Rule   string         `json:"rule"`
	Action string         `json:"action"`
	Result map[string]any `json:"result"`
}

// EvaluationResult is the aggregated outcome of one workflow run
type EvaluationResult struct {
	MatchedRules       []string         `json:"matched_rules"`
	ActionsExecuted    []ExecutedAction `json:"actions_executed"`
	RequiresEscalation bool             `json:"requires_escalation"`
	EscalationReason   string           `json:"escalation_reason,omitempty"`
	RoutingDecision    map[string]any   `json:"routing_decision,omitempty"`
	SLA                map[string]any   `json:"sla,omitempty"`

	// Snapshots holds a copy of the facts after each matched rule.
	// Only populated when the engine was built WithSnapshots.
	Snapshots []FactsSnapshot `json:"snapshots,omitempty"`
}

// FactsSnapshot is the state of the facts right after a rule's actions ran
type FactsSnapshot struct {
	Rule  string         `json:"rule"`
	Facts map[string]any `json:"facts"`
}

func newEvaluationResult() *EvaluationResult {
	return &EvaluationResult{
		MatchedRules:    []string{},
		ActionsExecuted: []ExecutedAction{},
	}
}

// cloneFacts copies the nested maps and slices of facts. Leaf values are
// shared.
func cloneFacts(facts map[string]any) map[string]any {
	if facts == nil {
		return nil
	}
	out := make(map[string]any, len(facts))
	for k, v := range facts {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneFacts(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
