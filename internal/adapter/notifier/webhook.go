package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/user/loghub/internal/domain"
)

const webhookTimeout = 10 * time.Second

type webhookPayload struct {
	RuleID      uint64    `json:"rule_id"`
	RuleName    string    `json:"rule_name"`
	ServiceName string    `json:"service_name"`
	Message     string    `json:"message"`
	TriggeredAt time.Time `json:"triggered_at"`
}

// WebhookSink posts triggered alerts as JSON to the rule's target URL.
type WebhookSink struct {
	client *http.Client
}

// NewWebhookSink creates a WebhookSink with a bounded request timeout.
func NewWebhookSink() *WebhookSink {
	return &WebhookSink{client: &http.Client{Timeout: webhookTimeout}}
}

// Deliver POSTs the alert to rule.AlertTarget. A non-2xx response is
// an error so the caller can log the failed delivery.
func (s *WebhookSink) Deliver(ctx context.Context, rule *domain.AlertRule, event *domain.AlertEvent) error {
	if rule.AlertTarget == "" {
		return fmt.Errorf("webhook delivery: rule %d has no target", rule.ID)
	}

	body, err := json.Marshal(webhookPayload{
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		ServiceName: rule.ServiceName,
		Message:     event.Message,
		TriggeredAt: event.TriggeredAt,
	})
	if err != nil {
		return fmt.Errorf("webhook delivery: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rule.AlertTarget, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook delivery: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook delivery: target returned %d", resp.StatusCode)
	}
	return nil
}

// RoutingSink dispatches delivery by the rule's alert type. Unknown
// types fall through to the default sink.
type RoutingSink struct {
	byType   map[string]domain.AlertSink
	fallback domain.AlertSink
}

// NewRoutingSink creates a RoutingSink with the given fallback.
func NewRoutingSink(fallback domain.AlertSink) *RoutingSink {
	return &RoutingSink{byType: make(map[string]domain.AlertSink), fallback: fallback}
}

// Register binds an alert type to a sink.
func (s *RoutingSink) Register(alertType string, sink domain.AlertSink) {
	s.byType[alertType] = sink
}

// Deliver routes the event to the sink registered for the rule's type.
func (s *RoutingSink) Deliver(ctx context.Context, rule *domain.AlertRule, event *domain.AlertEvent) error {
	if sink, ok := s.byType[rule.AlertType]; ok {
		return sink.Deliver(ctx, rule, event)
	}
	return s.fallback.Deliver(ctx, rule, event)
}
