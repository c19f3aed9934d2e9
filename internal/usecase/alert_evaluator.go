package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/loghub/internal/adapter/metrics"
	"github.com/user/loghub/internal/domain"
)

// AlertEvaluator matches every committed entry against the active
// alert rules and fires through the sink when a rule's sliding-window
// count reaches its threshold.
//
// Window state is a retained slice of matching timestamps per rule,
// pruned on every hit, so matches genuinely expire as time advances.
// Firing clears the rule's window: the rule cannot fire again until a
// full threshold's worth of fresh matches accumulates.
type AlertEvaluator struct {
	rules   domain.AlertRuleRepository
	events  domain.AlertEventRepository
	sink    domain.AlertSink
	logger  *slog.Logger
	metrics *metrics.ServiceMetrics

	refreshInterval time.Duration

	mu      sync.Mutex
	active  []domain.AlertRule
	windows map[uint64][]time.Time

	// deliverWG tracks in-flight persistence/delivery goroutines.
	deliverWG sync.WaitGroup
}

// NewAlertEvaluator creates an evaluator; call Refresh (or Start) to
// load the active rule set.
func NewAlertEvaluator(
	rules domain.AlertRuleRepository,
	events domain.AlertEventRepository,
	sink domain.AlertSink,
	logger *slog.Logger,
	m *metrics.ServiceMetrics,
	refreshInterval time.Duration,
) *AlertEvaluator {
	return &AlertEvaluator{
		rules:           rules,
		events:          events,
		sink:            sink,
		logger:          logger,
		metrics:         m,
		refreshInterval: refreshInterval,
		windows:         make(map[uint64][]time.Time),
	}
}

// Start loads the rule set and refreshes it periodically until the
// context is cancelled, keeping rule CRUD off the per-entry hot path.
func (ev *AlertEvaluator) Start(ctx context.Context) {
	if err := ev.Refresh(ctx); err != nil {
		ev.logger.Error("initial alert rule load failed", "error", err)
	}
	go func() {
		ticker := time.NewTicker(ev.refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ev.Refresh(ctx); err != nil {
					ev.logger.Warn("alert rule refresh failed", "error", err)
				}
			}
		}
	}()
}

// Refresh reloads the active rule set and drops window state for
// rules that are no longer active.
func (ev *AlertEvaluator) Refresh(ctx context.Context) error {
	active, err := ev.rules.ListActive(ctx)
	if err != nil {
		return err
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.active = active

	keep := make(map[uint64]struct{}, len(active))
	for _, r := range active {
		keep[r.ID] = struct{}{}
	}
	for id := range ev.windows {
		if _, ok := keep[id]; !ok {
			delete(ev.windows, id)
		}
	}
	return nil
}

// firing captures a rule that crossed its threshold, snapshotted so
// persistence and delivery can run outside the evaluator lock.
type firing struct {
	rule  domain.AlertRule
	count int
}

// OnEntry evaluates one committed entry against every active rule.
// It is invoked from the dispatcher goroutine, in commit order.
// Window bookkeeping happens under the lock; persistence and sink
// delivery of fired alerts run on their own goroutines so a slow
// sink never stalls the dispatch loop behind it.
func (ev *AlertEvaluator) OnEntry(entry *domain.LogEntry) {
	var fired []firing

	ev.mu.Lock()
	for i := range ev.active {
		rule := &ev.active[i]
		if !rule.Matches(entry) {
			continue
		}

		window := time.Duration(rule.TimeWindowSeconds) * time.Second
		cutoff := entry.Timestamp.Add(-window)

		hits := ev.windows[rule.ID]
		pruned := hits[:0]
		for _, ts := range hits {
			if ts.After(cutoff) {
				pruned = append(pruned, ts)
			}
		}
		pruned = append(pruned, entry.Timestamp)

		if len(pruned) >= rule.Threshold {
			fired = append(fired, firing{rule: *rule, count: len(pruned)})
			ev.windows[rule.ID] = nil
			continue
		}
		ev.windows[rule.ID] = pruned
	}
	ev.mu.Unlock()

	for _, f := range fired {
		ev.deliverWG.Add(1)
		go func(f firing) {
			defer ev.deliverWG.Done()
			ev.fire(&f.rule, f.count, entry)
		}(f)
	}
}

func (ev *AlertEvaluator) fire(rule *domain.AlertRule, count int, entry *domain.LogEntry) {
	event := &domain.AlertEvent{
		RuleID:      rule.ID,
		TriggeredAt: time.Now().UTC(),
		Message: fmt.Sprintf("alert rule %q triggered: %d matching entries within %ds (last: %s %s)",
			rule.Name, count, rule.TimeWindowSeconds, entry.ServiceName, entry.LogLevel),
		SentTo: rule.AlertTarget,
	}

	ctx := context.Background()
	if err := ev.events.Store(ctx, event); err != nil {
		ev.logger.Error("failed to persist alert event", "error", err, "rule_id", rule.ID)
	}
	if err := ev.sink.Deliver(ctx, rule, event); err != nil {
		ev.logger.Error("alert delivery failed", "error", err, "rule_id", rule.ID, "target", rule.AlertTarget)
	}
	if ev.metrics != nil {
		ev.metrics.AlertsTriggered.Inc()
	}
	ev.logger.Info("alert triggered", "rule", rule.Name, "rule_id", rule.ID, "count", count)
}
