// Package local delivers change events in-process for local runs on the
// in-memory store.
package local

import (
	"context"

	"wedding-backend/application/ports"
	"wedding-backend/domain/events"

	"go.uber.org/zap"
)

// Handler consumes published change events.
type Handler func(ctx context.Context, changes []events.ChangeEvent) error

// Publisher hands events to in-process handlers on a background worker.
type Publisher struct {
	queue    chan events.ChangeEvent
	handlers []Handler
	logger   *zap.Logger
	done     chan struct{}
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher with a queue of the given size.
func NewPublisher(size int, logger *zap.Logger, handlers ...Handler) *Publisher {
	return &Publisher{
		queue:    make(chan events.ChangeEvent, size),
		handlers: handlers,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Publish enqueues event. A full queue drops it with a warning.
func (p *Publisher) Publish(ctx context.Context, event events.ChangeEvent) error {
	select {
	case p.queue <- event:
	default:
		p.logger.Warn("Local event queue full, dropping event", zap.String("eventId", event.EventID))
	}
	return nil
}

// PublishBatch enqueues every event.
func (p *Publisher) PublishBatch(ctx context.Context, changes []events.ChangeEvent) error {
	for _, e := range changes {
		if err := p.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Run delivers queued events until ctx is done.
func (p *Publisher) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-p.queue:
			for _, h := range p.handlers {
				if err := h(ctx, []events.ChangeEvent{e}); err != nil {
					p.logger.Error("Local event handler failed",
						zap.String("eventId", e.EventID),
						zap.Error(err))
				}
			}
		}
	}
}

// Done is closed when Run returns.
func (p *Publisher) Done() <-chan struct{} {
	return p.done
}
