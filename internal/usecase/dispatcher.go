package usecase

import (
	"context"
	"log/slog"

	"github.com/user/loghub/internal/domain"
)

// Dispatcher decouples the ingest path from the components that
// consume committed entries (subscription hub, alert evaluator). A
// single goroutine drains the channel and invokes every handler in
// registration order, so each consumer observes entries in commit
// order. Publish only blocks when the buffer is full, which bounds
// how far ingestion can outrun dispatch without ever dropping an
// entry.
type Dispatcher struct {
	ch       chan *domain.LogEntry
	handlers []func(*domain.LogEntry)
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher with the given buffer size.
func NewDispatcher(buffer int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		ch:     make(chan *domain.LogEntry, buffer),
		logger: logger,
	}
}

// Register adds a consumer. Must be called before Start.
func (d *Dispatcher) Register(handler func(*domain.LogEntry)) {
	d.handlers = append(d.handlers, handler)
}

// Publish enqueues a committed entry for dispatch.
func (d *Dispatcher) Publish(entry *domain.LogEntry) {
	d.ch <- entry
}

// Start runs the dispatch loop until the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				d.logger.Info("dispatcher stopped")
				return
			case entry := <-d.ch:
				for _, handler := range d.handlers {
					handler(entry)
				}
			}
		}
	}()
}
