package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/liamcoop/workflowrules/rules"
)

// RunReport describes one finished workflow run
type RunReport struct {
	Workflow   string
	Registered bool
	Result     *rules.EvaluationResult
	Err        error
	Duration   time.Duration
}

// Observer is notified after every Run, successful or not
type Observer interface {
	ObserveRun(ctx context.Context, report RunReport)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ctx context.Context, report RunReport)

// ObserveRun calls f
func (f ObserverFunc) ObserveRun(ctx context.Context, report RunReport) {
	f(ctx, report)
}

// Orchestrator keeps named workflows (ordered rule lists) and runs them
// against a shared service registry
type Orchestrator struct {
	services   rules.ServiceRegistry
	workflows  map[string][]*rules.Rule
	observers  []Observer
	engineOpts []rules.EngineOption
	logger     *slog.Logger
	mu         sync.RWMutex
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger for the orchestrator and its engines
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver adds a run observer
func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observers = append(o.observers, observer)
		}
	}
}

// WithEngineOptions passes options to every engine built by Run
func WithEngineOptions(opts ...rules.EngineOption) Option {
	return func(o *Orchestrator) {
		o.engineOpts = append(o.engineOpts, opts...)
	}
}

// New creates an orchestrator with no workflows
func New(services rules.ServiceRegistry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		services:  services,
		workflows: make(map[string][]*rules.Rule),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RegisterWorkflow stores the rules under name, replacing any previous
// workflow of the same name
func (o *Orchestrator) RegisterWorkflow(name string, rs []*rules.Rule) {
	stored := make([]*rules.Rule, len(rs))
	copy(stored, rs)

	o.mu.Lock()
	_, replaced := o.workflows[name]
	o.workflows[name] = stored
	o.mu.Unlock()

	o.logger.Info("workflow registered",
		slog.String("workflow", name),
		slog.Int("rules", len(stored)),
		slog.Bool("replaced", replaced))
}

// RemoveWorkflow unregisters name and reports whether it existed
func (o *Orchestrator) RemoveWorkflow(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.workflows[name]; !ok {
		return false
	}
	delete(o.workflows, name)
	return true
}

// Workflow returns a copy of the rules registered under name
func (o *Orchestrator) Workflow(name string) ([]*rules.Rule, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	rs, ok := o.workflows[name]
	if !ok {
		return nil, false
	}
	out := make([]*rules.Rule, len(rs))
	copy(out, rs)
	return out, true
}

// Workflows returns the registered names in sorted order
func (o *Orchestrator) Workflows() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	names := make([]string, 0, len(o.workflows))
	for name := range o.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run evaluates the named workflow against facts with a fresh engine.
// An unregistered name yields an empty result and no error. Actions may
// mutate facts in place.
func (o *Orchestrator) Run(ctx context.Context, name string, facts map[string]any) (*rules.EvaluationResult, error) {
	start := time.Now()

	o.mu.RLock()
	rs, registered := o.workflows[name]
	o.mu.RUnlock()

	if !registered {
		o.logger.DebugContext(ctx, "workflow not registered", slog.String("workflow", name))
	}

	opts := append([]rules.EngineOption{rules.WithLogger(o.logger.With("workflow", name))}, o.engineOpts...)
	result, err := rules.NewEngine(rs, o.services, opts...).Evaluate(ctx, facts)

	report := RunReport{
		Workflow:   name,
		Registered: registered,
		Result:     result,
		Err:        err,
		Duration:   time.Since(start),
	}
	for _, observer := range o.observers {
		observer.ObserveRun(ctx, report)
	}

	if err != nil {
		o.logger.ErrorContext(ctx, "workflow run failed",
			slog.String("workflow", name),
			slog.Any("error", err))
		return nil, fmt.Errorf("run workflow %s: %w", name, err)
	}
	return result, nil
}

// LoadAll parses, validates and registers every stored workflow. It
// stops at the first invalid definition and returns the number loaded.
func (o *Orchestrator) LoadAll(ctx context.Context, store rules.WorkflowStore) (int, error) {
	defs, err := store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list workflows: %w", err)
	}

	loaded := 0
	for _, def := range defs {
		rs, err := def.Parse()
		if err != nil {
			return loaded, err
		}
		if err := ValidateRules(rs); err != nil {
			return loaded, fmt.Errorf("workflow %s: %w", def.Name, err)
		}
		o.RegisterWorkflow(def.Name, rs)
		loaded++
	}

	o.logger.InfoContext(ctx, "workflows loaded", slog.Int("count", loaded))
	return loaded, nil
}
