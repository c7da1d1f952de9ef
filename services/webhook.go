package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// ErrMissingURL is returned for webhook actions without a url param
var ErrMissingURL = errors.New("webhook: url is required")

// WebhookParams are the params of a webhook action
type WebhookParams struct {
	URL     string            `mapstructure:"url"`
	Method  string            `mapstructure:"method"`
	Headers map[string]string `mapstructure:"headers"`
	Payload any               `mapstructure:"payload"`
}

// WebhookError reports a non-2xx webhook response
type WebhookError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("webhook %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// WebhookService posts the current facts to an external endpoint
type WebhookService struct {
	logger *slog.Logger
	client *http.Client
}

// NewWebhookService creates a webhook capability
func NewWebhookService(opts ...Option) *WebhookService {
	o := buildOptions(opts)
	return &WebhookService{
		logger: o.Logger.With("service", "webhook"),
		client: o.HTTPClient,
	}
}

// Call sends {"context": facts, "payload": params.payload} as JSON. The
// method defaults to POST.
func (s *WebhookService) Call(ctx context.Context, facts, params map[string]any) (map[string]any, error) {
	var p WebhookParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("webhook: %w", err)
	}
	if p.URL == "" {
		return nil, ErrMissingURL
	}
	method := strings.ToUpper(p.Method)
	if method == "" {
		method = http.MethodPost
	}

	body, err := json.Marshal(map[string]any{
		"context": facts,
		"payload": p.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook %s: %w", p.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &WebhookError{URL: p.URL, StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	s.logger.DebugContext(ctx, "webhook delivered",
		slog.String("url", p.URL),
		slog.String("method", method),
		slog.Int("status_code", resp.StatusCode))

	return map[string]any{
		"status":      "ok",
		"status_code": resp.StatusCode,
	}, nil
}
