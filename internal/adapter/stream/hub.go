package stream

import (
	"log/slog"
	"sync"

	"github.com/user/loghub/internal/adapter/metrics"
	"github.com/user/loghub/internal/domain"
)

// Subscription is a handle to a live feed of committed entries. The
// channel carries entries committed after Subscribe returned; there is
// no backlog.
type Subscription struct {
	id     uint64
	ch     chan *domain.LogEntry
	closed bool
}

// Entries returns the receive side of the subscription.
func (s *Subscription) Entries() <-chan *domain.LogEntry {
	return s.ch
}

// Hub fans committed entries out to subscribers. A subscriber that
// cannot keep up is disconnected rather than blocking ingestion.
type Hub struct {
	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	buffer  int
	logger  *slog.Logger
	metrics *metrics.ServiceMetrics
}

// NewHub creates a hub whose subscriptions buffer up to buffer entries.
func NewHub(buffer int, logger *slog.Logger, m *metrics.ServiceMetrics) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{
		subs:    make(map[uint64]*Subscription),
		buffer:  buffer,
		logger:  logger,
		metrics: m,
	}
}

// Subscribe registers a new subscriber and returns its handle.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		id: h.nextID,
		ch: make(chan *domain.LogEntry, h.buffer),
	}
	h.subs[sub.id] = sub
	if h.metrics != nil {
		h.metrics.Subscribers.Set(float64(len(h.subs)))
	}
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Calling it
// more than once for the same subscription is a no-op.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(sub)
}

func (h *Hub) dropLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	delete(h.subs, sub.id)
	close(sub.ch)
	if h.metrics != nil {
		h.metrics.Subscribers.Set(float64(len(h.subs)))
	}
}

// Publish delivers an entry to every current subscriber without
// blocking. A subscriber with a full buffer is dropped.
func (h *Hub) Publish(entry *domain.LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		select {
		case sub.ch <- entry:
		default:
			h.logger.Warn("dropping slow subscriber", "subscriber_id", sub.id)
			h.dropLocked(sub)
		}
	}
}

// SubscriberCount reports the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
