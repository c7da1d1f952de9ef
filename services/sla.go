package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultSLATarget applies when an sla action has no target
const DefaultSLATarget = "15m"

// SLAParams are the params of an sla action
type SLAParams struct {
	Target string `mapstructure:"target"`
}

// SLAService computes SLA deadlines
type SLAService struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewSLAService creates an SLA capability
func NewSLAService(opts ...Option) *SLAService {
	o := buildOptions(opts)
	return &SLAService{
		logger: o.Logger.With("service", "sla"),
		now:    o.Now,
	}
}

// Apply returns the target, the RFC 3339 deadline in UTC and the target
// length in seconds. An unparseable target is an error.
func (s *SLAService) Apply(ctx context.Context, _, params map[string]any) (map[string]any, error) {
	var p SLAParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("sla: %w", err)
	}
	if p.Target == "" {
		p.Target = DefaultSLATarget
	}

	d, err := ParseDuration(p.Target)
	if err != nil {
		return nil, err
	}
	deadline := s.now().Add(d).UTC()

	s.logger.DebugContext(ctx, "sla applied",
		slog.String("target", p.Target),
		slog.Time("deadline", deadline))

	return map[string]any{
		"target":   p.Target,
		"deadline": deadline.Format(time.RFC3339),
		"seconds":  int64(d / time.Second),
	}, nil
}
