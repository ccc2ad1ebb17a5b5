package services

import (
	"context"
	"sort"

	"wedding-backend/application/ports"
	"wedding-backend/domain/events"

	"go.uber.org/zap"
)

// ChangeProcessor forwards committed writes to the event bus and refreshes
// the cached counts of every event they touched.
type ChangeProcessor struct {
	publisher ports.EventPublisher
	events    *EventService
	logger    *zap.Logger
}

// NewChangeProcessor creates a processor. publisher may be nil when no bus
// is configured.
func NewChangeProcessor(publisher ports.EventPublisher, events *EventService, logger *zap.Logger) *ChangeProcessor {
	return &ChangeProcessor{publisher: publisher, events: events, logger: logger}
}

// Process handles one batch. A publish failure is returned so the batch is
// redelivered; count refreshes are best effort.
func (p *ChangeProcessor) Process(ctx context.Context, changes []events.ChangeEvent) error {
	if len(changes) == 0 {
		return nil
	}
	if p.publisher != nil {
		if err := p.publisher.PublishBatch(ctx, changes); err != nil {
			return err
		}
	}

	touched := map[string]struct{}{}
	for _, c := range changes {
		if id := c.ImageString("EventID"); id != "" {
			touched[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := p.events.RefreshCounts(ctx, id); err != nil {
			p.logger.Warn("Event count refresh failed", zap.String("eventId", id), zap.Error(err))
		}
	}
	p.logger.Debug("Processed change batch", zap.Int("changes", len(changes)), zap.Int("events", len(ids)))
	return nil
}
