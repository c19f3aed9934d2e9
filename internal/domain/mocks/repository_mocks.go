package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/user/loghub/internal/domain"
)

// MockLogRepository is a mock implementation of domain.LogRepository
// for testing.
type MockLogRepository struct {
	mu      sync.Mutex
	Entries []domain.LogEntry
	nextID  uint64
	// AppendErr fails appends when set; FailAfter lets that many
	// appends succeed before it applies. TransientErr fails only the
	// first FailFirst appends, then succeeds; used to exercise the
	// retry path.
	AppendErr      error
	FailAfter      int
	TransientErr   error
	FailFirst      int
	QueryErr       error
	DeleteErr      error
	DeletedCutoffs []time.Time
	DeleteResult   int
}

func (m *MockLogRepository) Append(ctx context.Context, entry *domain.LogEntry) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil && len(m.Entries) >= m.FailAfter {
		return 0, m.AppendErr
	}
	if m.FailFirst > 0 {
		m.FailFirst--
		return 0, m.TransientErr
	}
	m.nextID++
	entry.ID = m.nextID
	m.Entries = append(m.Entries, *entry)
	return entry.ID, nil
}

func (m *MockLogRepository) Query(ctx context.Context, filter domain.LogFilter, limit, offset int) ([]domain.LogEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, 0, m.QueryErr
	}
	out := make([]domain.LogEntry, len(m.Entries))
	copy(out, m.Entries)
	return out, len(out), nil
}

func (m *MockLogRepository) GetByID(ctx context.Context, id uint64) (*domain.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Entries {
		if m.Entries[i].ID == id {
			e := m.Entries[i]
			return &e, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeletedCutoffs = append(m.DeletedCutoffs, cutoff)
	if m.DeleteErr != nil {
		return 0, m.DeleteErr
	}
	return m.DeleteResult, nil
}

func (m *MockLogRepository) Stats(ctx context.Context, start, end time.Time) (*domain.LogStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.LogStats{
		TotalLogs:      len(m.Entries),
		CountsPerLevel: make(map[domain.Level]int),
		Start:          start,
		End:            end,
	}
	for _, e := range m.Entries {
		stats.CountsPerLevel[e.LogLevel]++
	}
	return stats, nil
}

// MockAPIKeyRepository is a mock implementation of
// domain.APIKeyRepository for testing.
type MockAPIKeyRepository struct {
	mu       sync.Mutex
	Keys     map[string]domain.APIKey
	FindErr  error
	MarkErr  error
	MarkedAt []time.Time
}

func (m *MockAPIKeyRepository) FindByKey(ctx context.Context, key string) (*domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	k, ok := m.Keys[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &k, nil
}

func (m *MockAPIKeyRepository) MarkUsed(ctx context.Context, key string, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.MarkedAt = append(m.MarkedAt, usedAt)
	return nil
}

func (m *MockAPIKeyRepository) Create(ctx context.Context, apiKey *domain.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Keys == nil {
		m.Keys = make(map[string]domain.APIKey)
	}
	m.Keys[apiKey.Key] = *apiKey
	return nil
}

func (m *MockAPIKeyRepository) List(ctx context.Context) ([]domain.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.APIKey
	for _, k := range m.Keys {
		out = append(out, k)
	}
	return out, nil
}

// MockAlertRuleRepository is a mock implementation of
// domain.AlertRuleRepository for testing.
type MockAlertRuleRepository struct {
	mu      sync.Mutex
	Rules   []domain.AlertRule
	ListErr error
}

func (m *MockAlertRuleRepository) Store(ctx context.Context, rule *domain.AlertRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rule.ID == 0 {
		rule.ID = uint64(len(m.Rules) + 1)
	}
	m.Rules = append(m.Rules, *rule)
	return nil
}

func (m *MockAlertRuleRepository) FindByID(ctx context.Context, id uint64) (*domain.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Rules {
		if m.Rules[i].ID == id {
			r := m.Rules[i]
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockAlertRuleRepository) List(ctx context.Context) ([]domain.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AlertRule, len(m.Rules))
	copy(out, m.Rules)
	return out, nil
}

func (m *MockAlertRuleRepository) ListActive(ctx context.Context) ([]domain.AlertRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []domain.AlertRule
	for _, r := range m.Rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockAlertRuleRepository) Deactivate(ctx context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Rules {
		if m.Rules[i].ID == id {
			m.Rules[i].IsActive = false
			return nil
		}
	}
	return domain.ErrNotFound
}

// MockAlertEventRepository is a mock implementation of
// domain.AlertEventRepository for testing.
type MockAlertEventRepository struct {
	mu     sync.Mutex
	Events []domain.AlertEvent
}

func (m *MockAlertEventRepository) Store(ctx context.Context, event *domain.AlertEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = uint64(len(m.Events) + 1)
	m.Events = append(m.Events, *event)
	return nil
}

func (m *MockAlertEventRepository) List(ctx context.Context, since time.Time) ([]domain.AlertEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AlertEvent, len(m.Events))
	copy(out, m.Events)
	return out, nil
}

func (m *MockAlertEventRepository) Stored() []domain.AlertEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AlertEvent, len(m.Events))
	copy(out, m.Events)
	return out
}

// MockAlertSink is a mock implementation of domain.AlertSink for
// testing.
type MockAlertSink struct {
	mu        sync.Mutex
	Delivered []domain.AlertEvent
	Err       error
}

func (m *MockAlertSink) Deliver(ctx context.Context, rule *domain.AlertRule, event *domain.AlertEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Delivered = append(m.Delivered, *event)
	return nil
}

func (m *MockAlertSink) DeliveredEvents() []domain.AlertEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AlertEvent, len(m.Delivered))
	copy(out, m.Delivered)
	return out
}
