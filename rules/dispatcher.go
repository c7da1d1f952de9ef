package rules

import (
	"context"
	"errors"
	"fmt"
)

// Service registry keys for the built-in actions
const (
	EscalationServiceKey   = "escalation_service"
	NotificationServiceKey = "notification_service"
	SLAServiceKey          = "sla_service"
	WebhookServiceKey      = "webhook_service"
)

// ServiceRegistry looks up capabilities by key. Get returns nil on a miss.
type ServiceRegistry interface {
	Get(key string) any
}

// Services is a plain map-backed ServiceRegistry
type Services map[string]any

// Get returns the capability registered under key, or nil
func (s Services) Get(key string) any {
	return s[key]
}

// Escalator handles escalate actions
type Escalator interface {
	Escalate(ctx context.Context, facts, params map[string]any) (map[string]any, error)
}

// Notifier handles notify actions
type Notifier interface {
	Send(ctx context.Context, facts, params map[string]any) (map[string]any, error)
}

// SLAApplier handles sla actions. The result is expected to carry a
// "deadline" entry.
type SLAApplier interface {
	Apply(ctx context.Context, facts, params map[string]any) (map[string]any, error)
}

// WebhookCaller handles webhook actions
type WebhookCaller interface {
	Call(ctx context.Context, facts, params map[string]any) (map[string]any, error)
}

type actionHandler func(ctx context.Context, d *Dispatcher, action ActionDef, facts map[string]any) (map[string]any, error)

var actionHandlers = map[ActionKind]actionHandler{
	ActionEscalate: func(ctx context.Context, d *Dispatcher, action ActionDef, facts map[string]any) (map[string]any, error) {
		svc, err := lookup[Escalator](d, action, EscalationServiceKey)
		if err != nil {
			return nil, err
		}
		return svc.Escalate(ctx, facts, params(action))
	},
	ActionNotify: func(ctx context.Context, d *Dispatcher, action ActionDef, facts map[string]any) (map[string]any, error) {
		svc, err := lookup[Notifier](d, action, NotificationServiceKey)
		if err != nil {
			return nil, err
		}
		return svc.Send(ctx, facts, params(action))
	},
	ActionSLA: func(ctx context.Context, d *Dispatcher, action ActionDef, facts map[string]any) (map[string]any, error) {
		svc, err := lookup[SLAApplier](d, action, SLAServiceKey)
		if err != nil {
			return nil, err
		}
		return svc.Apply(ctx, facts, params(action))
	},
	ActionWebhook: func(ctx context.Context, d *Dispatcher, action ActionDef, facts map[string]any) (map[string]any, error) {
		svc, err := lookup[WebhookCaller](d, action, WebhookServiceKey)
		if err != nil {
			return nil, err
		}
		return svc.Call(ctx, facts, params(action))
	},
	ActionSetField: setField,
}

// Dispatcher executes actions against capabilities from a ServiceRegistry
type Dispatcher struct {
	services ServiceRegistry
}

// NewDispatcher creates a dispatcher over the given services. A nil
// registry behaves like an empty one.
func NewDispatcher(services ServiceRegistry) *Dispatcher {
	if services == nil {
		services = Services{}
	}
	return &Dispatcher{services: services}
}

// Execute runs one action. Unknown action types are skipped with a
// "skipped" status and never fail; every other error is returned as is.
func (d *Dispatcher) Execute(ctx context.Context, action ActionDef, facts map[string]any) (map[string]any, error) {
	handler, ok := actionHandlers[action.Kind()]
	if !ok {
		return map[string]any{
			"status": "skipped",
			"reason": fmt.Sprintf("unknown action %s", action.Type),
		}, nil
	}
	return handler(ctx, d, action, facts)
}

// setField assigns params.value to the top-level key params.field
func setField(_ context.Context, _ *Dispatcher, action ActionDef, facts map[string]any) (map[string]any, error) {
	field := action.Param("field")
	if field != nil {
		if facts == nil {
			return nil, errors.New("set_field: facts map is nil")
		}
		facts[stringify(field)] = action.Param("value")
	}
	return map[string]any{"status": "ok"}, nil
}

func lookup[T any](d *Dispatcher, action ActionDef, key string) (T, error) {
	svc, ok := d.services.Get(key).(T)
	if !ok {
		var zero T
		return zero, &CapabilityError{Action: action.Type, Key: key}
	}
	return svc, nil
}

func params(action ActionDef) map[string]any {
	if action.Params == nil {
		return map[string]any{}
	}
	return action.Params
}
