package services

import (
	"log/slog"
	"net/http"
	"time"
)

// Options configures the default capability implementations
type Options struct {
	Logger     *slog.Logger
	Now        func() time.Time
	HTTPClient *http.Client
	Sink       Sink
	Handoff    Handoff
}

// Option mutates Options
type Option func(*Options)

// WithLogger sets the logger used by all services
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithClock overrides time.Now, mainly for deterministic SLA deadlines
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Now = now
	}
}

// WithHTTPClient sets the client used for webhook calls
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}

// WithTimeout sets a webhook client with the given timeout
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.HTTPClient = &http.Client{Timeout: timeout}
	}
}

// WithSink routes notifications to sink instead of the log
func WithSink(sink Sink) Option {
	return func(o *Options) {
		o.Sink = sink
	}
}

// WithHandoff forwards every created escalation case to handoff
func WithHandoff(handoff Handoff) Option {
	return func(o *Options) {
		o.Handoff = handoff
	}
}

func buildOptions(opts []Option) Options {
	o := Options{
		Logger:     slog.Default(),
		Now:        time.Now,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	return o
}
