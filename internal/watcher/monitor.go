package watcher

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultQueueCapacity bounds the number of pending event batches held
	// between the watcher and the handler before backpressure kicks in.
	DefaultQueueCapacity = 1000
	// DefaultShutdownGrace is how long Stop waits for in-flight work to
	// finish before forcing cancellation.
	DefaultShutdownGrace = 5 * time.Second
)

// EventHandler applies one file event, typically a pipeline's Incremental
// method. Monitor holds this as a closure rather than a concrete
// dependency, per the "Cache Manager is purely data" design note applied
// here to break the Monitor -> Pipeline -> Watcher cycle that a directly
// held collaborator would create.
type EventHandler func(ctx context.Context, event FileEvent) error

// FullSyncFunc triggers a full reconciliation sync, run once at startup
// before event delivery begins and again whenever the event queue
// saturates.
type FullSyncFunc func(ctx context.Context) error

type queueItem struct {
	events []FileEvent
	resync bool
}

// Monitor is the vault monitor (C7): it runs a startup full sync, then
// drains a Watcher's debounced event batches through Handle, applying
// bounded-queue backpressure. When the queue is full, the oldest pending
// batch is discarded and replaced with a full-resync marker rather than
// silently losing the events it carried.
type Monitor struct {
	Watcher       Watcher
	Handle        EventHandler
	FullSync      FullSyncFunc
	QueueCapacity int
	ShutdownGrace time.Duration

	queue     chan queueItem
	cancel    context.CancelFunc
	pumpDone  chan struct{}
	drainDone chan struct{}
}

// NewMonitor constructs a Monitor with the §4.7 documented defaults.
func NewMonitor(w Watcher, handle EventHandler, fullSync FullSyncFunc) *Monitor {
	return &Monitor{
		Watcher:       w,
		Handle:        handle,
		FullSync:      fullSync,
		QueueCapacity: DefaultQueueCapacity,
		ShutdownGrace: DefaultShutdownGrace,
	}
}

// Start runs the startup full sync, begins watching root, and launches the
// pump/drain goroutines. The watcher is started only after the startup
// sync returns, so a change made while that sync runs is not delivered as
// an event; it is applied only if the sync itself reads it.
func (m *Monitor) Start(ctx context.Context, root string) error {
	if m.FullSync != nil {
		if err := m.FullSync(ctx); err != nil {
			return err
		}
	}

	capacity := m.QueueCapacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	m.queue = make(chan queueItem, capacity)

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	if err := m.Watcher.Start(runCtx, root); err != nil {
		cancel()
		return err
	}

	m.pumpDone = make(chan struct{})
	m.drainDone = make(chan struct{})

	go func() {
		defer close(m.pumpDone)
		m.pump(runCtx)
	}()
	go func() {
		defer close(m.drainDone)
		m.drain(runCtx)
	}()

	return nil
}

func (m *Monitor) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events, ok := <-m.Watcher.Events():
			if !ok {
				return
			}
			m.enqueue(queueItem{events: events})
		case err, ok := <-m.Watcher.Errors():
			if !ok {
				continue
			}
			slog.Warn("vault monitor watcher error", slog.String("error", err.Error()))
		}
	}
}

// enqueue applies the §4.7 backpressure rule: if the queue is full, the
// oldest pending batch is dropped and replaced with a resync marker so C6
// reconciles the vault from scratch instead of the dropped events being
// silently lost.
func (m *Monitor) enqueue(item queueItem) {
	select {
	case m.queue <- item:
		return
	default:
	}

	select {
	case <-m.queue:
	default:
	}
	select {
	case m.queue <- queueItem{resync: true}:
		slog.Warn("vault monitor queue saturated, scheduled full resync")
	default:
	}
}

func (m *Monitor) drain(ctx context.Context) {
	for item := range m.queue {
		if item.resync {
			if m.FullSync != nil {
				if err := m.FullSync(ctx); err != nil {
					slog.Warn("full resync failed", slog.String("error", err.Error()))
				}
			}
			continue
		}
		for _, ev := range item.events {
			if err := m.Handle(ctx, ev); err != nil {
				slog.Warn("vault monitor event handling failed",
					slog.String("path", ev.Path), slog.String("error", err.Error()))
			}
		}
	}
}

// Stop stops the underlying watcher, waits up to ShutdownGrace for
// in-flight work to drain, then cancels the run context to abort anything
// still outstanding.
func (m *Monitor) Stop() error {
	if m.cancel == nil {
		return nil
	}

	_ = m.Watcher.Stop()
	<-m.pumpDone
	close(m.queue)

	grace := m.ShutdownGrace
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}

	select {
	case <-m.drainDone:
	case <-time.After(grace):
		slog.Warn("vault monitor shutdown grace period exceeded, aborting in-flight work")
		m.cancel()
		<-m.drainDone
		return nil
	}

	m.cancel()
	return nil
}
