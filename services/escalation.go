package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EscalationParams are the params of an escalate action
type EscalationParams struct {
	Reason   string `mapstructure:"reason"`
	Priority string `mapstructure:"priority"`
	Queue    string `mapstructure:"queue"`
}

// Case is an escalation case opened by the escalate action
type Case struct {
	ID        string
	Status    string
	Reason    string
	Priority  string
	Queue     string
	Subject   string
	CreatedAt time.Time
}

// Handoff delivers an opened case to an external system (CRM, ticketing)
type Handoff func(ctx context.Context, c Case) error

// EscalationService opens escalation cases
type EscalationService struct {
	logger  *slog.Logger
	now     func() time.Time
	handoff Handoff
}

// NewEscalationService creates an escalation capability
func NewEscalationService(opts ...Option) *EscalationService {
	o := buildOptions(opts)
	return &EscalationService{
		logger:  o.Logger.With("service", "escalation"),
		now:     o.Now,
		handoff: o.Handoff,
	}
}

// Escalate opens a case from params and returns its payload. Priority
// defaults to "normal" and queue to "support". The case subject is taken
// from facts["subject"] when it is a string.
func (s *EscalationService) Escalate(ctx context.Context, facts, params map[string]any) (map[string]any, error) {
	var p EscalationParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("escalate: %w", err)
	}
	if p.Priority == "" {
		p.Priority = "normal"
	}
	if p.Queue == "" {
		p.Queue = "support"
	}

	c := Case{
		ID:        uuid.NewString(),
		Status:    "escalated",
		Reason:    p.Reason,
		Priority:  p.Priority,
		Queue:     p.Queue,
		CreatedAt: s.now().UTC(),
	}
	if subject, ok := facts["subject"].(string); ok {
		c.Subject = subject
	}

	if s.handoff != nil {
		if err := s.handoff(ctx, c); err != nil {
			return nil, fmt.Errorf("escalate: handoff case %s: %w", c.ID, err)
		}
	}

	s.logger.InfoContext(ctx, "escalation case opened",
		slog.String("case_id", c.ID),
		slog.String("priority", c.Priority),
		slog.String("queue", c.Queue),
		slog.String("reason", c.Reason))

	return map[string]any{
		"case_id":    c.ID,
		"status":     c.Status,
		"reason":     c.Reason,
		"priority":   c.Priority,
		"queue":      c.Queue,
		"subject":    c.Subject,
		"created_at": c.CreatedAt.Format(time.RFC3339),
	}, nil
}
