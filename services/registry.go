package services

import (
	"sort"
	"sync"

	"github.com/liamcoop/workflowrules/rules"
)

// Registry is a concurrency-safe rules.ServiceRegistry
type Registry struct {
	mu       sync.RWMutex
	services map[string]any
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]any)}
}

// NewDefaultRegistry registers the built-in escalation, notification, SLA
// and webhook capabilities under their standard keys
func NewDefaultRegistry(opts ...Option) *Registry {
	r := NewRegistry()
	r.Register(rules.EscalationServiceKey, NewEscalationService(opts...))
	r.Register(rules.NotificationServiceKey, NewNotificationService(opts...))
	r.Register(rules.SLAServiceKey, NewSLAService(opts...))
	r.Register(rules.WebhookServiceKey, NewWebhookService(opts...))
	return r
}

// Register adds or replaces the capability under key
func (r *Registry) Register(key string, svc any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[key] = svc
}

// Get returns the capability under key, or nil
func (r *Registry) Get(key string) any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.services[key]
}

// Keys returns the registered keys in sorted order
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.services))
	for k := range r.services {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ rules.ServiceRegistry = (*Registry)(nil)
