package rules

import (
	"context"
	"log/slog"
	"sort"
)

// Engine evaluates one workflow's rules against a facts map.
// An Engine is an immutable snapshot of its rules and is safe for
// concurrent use as long as each call gets its own facts map.
type Engine struct {
	rules      []*Rule
	dispatcher *Dispatcher
	logger     *slog.Logger
	snapshots  bool
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithLogger sets the engine's logger
func WithLogger(logger *slog.Logger) EngineOption {
	return func(en *Engine) {
		if logger != nil {
			en.logger = logger
		}
	}
}

// WithSnapshots records a copy of the facts after every matched rule
func WithSnapshots() EngineOption {
	return func(en *Engine) {
		en.snapshots = true
	}
}

// NewEngine keeps the enabled rules and orders them by descending
// priority. Rules with equal priority keep their relative order.
func NewEngine(rules []*Rule, services ServiceRegistry, opts ...EngineOption) *Engine {
	active := make([]*Rule, 0, len(rules))
	for _, rule := range rules {
		if rule != nil && rule.Enabled {
			active = append(active, rule)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})

	en := &Engine{
		rules:      active,
		dispatcher: NewDispatcher(services),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(en)
	}
	return en
}

// Rules returns the evaluation order
func (en *Engine) Rules() []*Rule {
	out := make([]*Rule, len(en.rules))
	copy(out, en.rules)
	return out
}

// Evaluate runs every rule in priority order against the live facts.
// Each rule sees the mutations made by the actions of earlier rules. The
// first error aborts the run and no partial result is returned.
func (en *Engine) Evaluate(ctx context.Context, facts map[string]any) (*EvaluationResult, error) {
	if facts == nil {
		facts = map[string]any{}
	}
	result := newEvaluationResult()

	for _, rule := range en.rules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		matched, err := Evaluate(rule.Conditions, facts)
		if err != nil {
			return nil, &RuleError{RuleID: rule.ID, Err: err}
		}
		if !matched {
			continue
		}

		en.logger.DebugContext(ctx, "rule matched",
			slog.String("rule_id", rule.ID),
			slog.Int("priority", rule.Priority),
			slog.Int("actions", len(rule.Actions)))
		result.MatchedRules = append(result.MatchedRules, rule.ID)

		for _, action := range rule.Actions {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			out, err := en.dispatcher.Execute(ctx, action, facts)
			if err != nil {
				return nil, err
			}
			result.ActionsExecuted = append(result.ActionsExecuted, ExecutedAction{
				Rule:   rule.ID,
				Action: action.Type,
				Result: out,
			})

			switch action.Kind() {
			case ActionEscalate:
				result.RequiresEscalation = true
				result.EscalationReason = stringify(action.Param("reason"))
			case ActionSLA:
				result.SLA = out
			}
		}

		if en.snapshots {
			result.Snapshots = append(result.Snapshots, FactsSnapshot{Rule: rule.ID, Facts: cloneFacts(facts)})
		}
	}

	return result, nil
}
