package services

import (
	"context"
	"fmt"
	"log/slog"
)

// NotificationParams are the params of a notify action
type NotificationParams struct {
	Channel    string   `mapstructure:"channel"`
	Recipients []string `mapstructure:"recipients"`
	Message    string   `mapstructure:"message"`
}

// Sink delivers a notification (chat, email, paging)
type Sink func(ctx context.Context, n NotificationParams) error

// NotificationService sends notifications through a Sink, or logs them
// when no sink is configured
type NotificationService struct {
	logger *slog.Logger
	sink   Sink
}

// NewNotificationService creates a notification capability
func NewNotificationService(opts ...Option) *NotificationService {
	o := buildOptions(opts)
	return &NotificationService{
		logger: o.Logger.With("service", "notification"),
		sink:   o.Sink,
	}
}

// Send delivers a notification; channel defaults to "default"
func (s *NotificationService) Send(ctx context.Context, _, params map[string]any) (map[string]any, error) {
	var p NotificationParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}
	if p.Channel == "" {
		p.Channel = "default"
	}
	if p.Recipients == nil {
		p.Recipients = []string{}
	}

	if s.sink != nil {
		if err := s.sink(ctx, p); err != nil {
			return nil, fmt.Errorf("notify %s: %w", p.Channel, err)
		}
	} else {
		s.logger.InfoContext(ctx, "notification",
			slog.String("channel", p.Channel),
			slog.Any("recipients", p.Recipients),
			slog.String("message", p.Message))
	}

	return map[string]any{
		"status":     "sent",
		"channel":    p.Channel,
		"recipients": p.Recipients,
	}, nil
}
