package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// WorkflowDefinition is the stored source of a workflow: the rule objects
// exactly as submitted, before parsing
type WorkflowDefinition struct {
	Name      string          `json:"name"`
	Rules     json.RawMessage `json:"rules"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Parse parses the stored rule objects
func (d *WorkflowDefinition) Parse() ([]*Rule, error) {
	parsed, err := ParseRulesJSON(d.Rules)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", d.Name, err)
	}
	return parsed, nil
}

// WorkflowStore persists workflow definitions by name
type WorkflowStore interface {
	// Put creates or replaces a definition. CreatedAt is kept on replace.
	Put(ctx context.Context, def *WorkflowDefinition) error

	// Get returns ErrWorkflowNotFound for an unknown name
	Get(ctx context.Context, name string) (*WorkflowDefinition, error)

	// List returns all definitions ordered by name
	List(ctx context.Context) ([]*WorkflowDefinition, error)

	// Delete returns ErrWorkflowNotFound for an unknown name
	Delete(ctx context.Context, name string) error
}

// InMemoryWorkflowStore implements WorkflowStore using an in-memory map
type InMemoryWorkflowStore struct {
	workflows map[string]*WorkflowDefinition
	mu        sync.RWMutex
}

// NewInMemoryWorkflowStore creates an empty in-memory store
func NewInMemoryWorkflowStore() *InMemoryWorkflowStore {
	return &InMemoryWorkflowStore{
		workflows: make(map[string]*WorkflowDefinition),
	}
}

// Put stores a copy of def and stamps its timestamps
func (s *InMemoryWorkflowStore) Put(_ context.Context, def *WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	def.UpdatedAt = now
	if existing, ok := s.workflows[def.Name]; ok {
		def.CreatedAt = existing.CreatedAt
	} else {
		def.CreatedAt = now
	}

	stored := *def
	stored.Rules = append(json.RawMessage(nil), def.Rules...)
	s.workflows[def.Name] = &stored
	return nil
}

func (s *InMemoryWorkflowStore) Get(_ context.Context, name string) (*WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.workflows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
	}
	out := *def
	return &out, nil
}

func (s *InMemoryWorkflowStore) List(_ context.Context) ([]*WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]*WorkflowDefinition, 0, len(s.workflows))
	for _, def := range s.workflows {
		out := *def
		defs = append(defs, &out)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs, nil
}

func (s *InMemoryWorkflowStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workflows[name]; !ok {
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, name)
	}
	delete(s.workflows, name)
	return nil
}
