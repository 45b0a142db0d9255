// Package events delivers domain events to notification subscribers.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/SscSPs/curtain_escrow_app/internal/core/domain"
	portssvc "github.com/SscSPs/curtain_escrow_app/internal/core/ports/services"
	"github.com/SscSPs/curtain_escrow_app/internal/middleware"
)

// ChannelSize is the buffer size of the event channel.
const ChannelSize = 100

// wildcard subscribes a handler to every event type.
const wildcard domain.EventType = "*"

// Bus is an in-process event dispatcher. Publish never blocks the caller once the buffer is
// full; the event is dropped and logged instead, since notifications are best effort.
type Bus struct {
	handlersMu sync.RWMutex
	handlers   map[domain.EventType][]portssvc.EventHandler

	events chan envelope
	wg     sync.WaitGroup
	logger *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

type envelope struct {
	ctx   context.Context
	event domain.Event
}

// NewBus creates a bus. Call Start before publishing.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[domain.EventType][]portssvc.EventHandler),
		events:   make(chan envelope, ChannelSize),
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

var _ portssvc.EventPublisher = (*Bus)(nil)

// Subscribe registers a handler for a specific event type.
func (b *Bus) Subscribe(eventType domain.EventType, handler portssvc.EventHandler) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("Registered event handler", slog.String("event_type", string(eventType)))
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler portssvc.EventHandler) {
	b.Subscribe(wildcard, handler)
}

// Publish queues event for delivery.
func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	// Handlers outlive the request; keep its values but not its cancellation.
	env := envelope{ctx: context.WithoutCancel(ctx), event: event}
	select {
	case b.events <- env:
		middleware.GetLoggerFromCtx(ctx).Debug("Published event", slog.String("event_type", string(event.Type)), slog.String("job_id", event.JobID))
	default:
		middleware.GetLoggerFromCtx(ctx).Warn("Event buffer full, dropping event", slog.String("event_type", string(event.Type)), slog.String("job_id", event.JobID))
	}
}

// Start starts the event processing loop. It stops when ctx is done or Stop is called, and
// delivers the events already queued either way.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.process(ctx)
	b.logger.Info("Started event processing loop")
}

// Stop ends the processing loop after draining queued events and waits for it to finish.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.stop) })
	b.wg.Wait()
}

func (b *Bus) process(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			b.drain()
			return
		case <-b.stop:
			b.drain()
			return
		case env := <-b.events:
			b.dispatch(env)
		}
	}
}

// drain delivers the events already queued.
func (b *Bus) drain() {
	for {
		select {
		case env := <-b.events:
			b.dispatch(env)
		default:
			b.logger.Info("Stopping event processing loop")
			return
		}
	}
}

func (b *Bus) dispatch(env envelope) {
	b.handlersMu.RLock()
	handlers := append([]portssvc.EventHandler(nil), b.handlers[env.event.Type]...)
	handlers = append(handlers, b.handlers[wildcard]...)
	b.handlersMu.RUnlock()

	for _, handler := range handlers {
		if err := handler(env.ctx, env.event); err != nil {
			middleware.GetLoggerFromCtx(env.ctx).Error("Failed to handle event",
				slog.String("event_type", string(env.event.Type)),
				slog.String("job_id", env.event.JobID),
				slog.String("error", err.Error()))
		}
	}
}
