package services

import (
	"context"
	"strings"
	"time"

	"wedding-backend/application/ports"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/core/valueobjects"
	pkgerrors "wedding-backend/pkg/errors"

	"go.uber.org/zap"
)

// EventDetails are the editable fields of an event.
type EventDetails struct {
	Name            string
	Date            string
	StartTime       string
	Venue           string
	Address         string
	Capacity        int
	RSVPDeadline    *time.Time
	AllowedPlusOnes int
	DietaryOptions  []string
}

// EventService manages event metadata. Counts on the event row are a cache;
// reads replace them with counts derived from guest rows.
type EventService struct {
	store  ports.Store
	clock  ports.Clock
	stats  *AdminQueryService
	logger *zap.Logger
}

// NewEventService creates the service.
func NewEventService(store ports.Store, clock ports.Clock, stats *AdminQueryService, logger *zap.Logger) *EventService {
	return &EventService{store: store, clock: clock, stats: stats, logger: logger}
}

// Load reads the event row as stored.
func (s *EventService) Load(ctx context.Context, eventID string) (*entities.Event, error) {
	item, err := s.store.GetItem(ctx, entities.NewEvent(eventID, "", time.Time{}).Key())
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.NewNotFoundError("event")
		}
		return nil, pkgerrors.Wrap(err, "event read")
	}
	var e entities.Event
	if err := entities.FromItem(item, &e); err != nil {
		return nil, pkgerrors.Wrap(err, "decode event")
	}
	return &e, nil
}

// Get returns the event with counts derived on read.
func (s *EventService) Get(ctx context.Context, eventID string) (*entities.Event, error) {
	e, err := s.Load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	stats, err := s.stats.Stats(ctx, eventID)
	if err != nil {
		return nil, err
	}
	e.Counts = stats.Counts(stats.GeneratedAt)
	return e, nil
}

// Upsert creates the event or updates its details. With expectedVersion set
// an update only applies to that version.
func (s *EventService) Upsert(ctx context.Context, eventID string, d EventDetails, expectedVersion *int) (*entities.Event, error) {
	if _, err := valueobjects.ParseEventID(eventID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(d.Name) == "" {
		return nil, pkgerrors.NewValidationError("event name is required")
	}
	if d.Capacity < 0 || d.AllowedPlusOnes < 0 {
		return nil, pkgerrors.NewValidationError("capacity and allowed plus-ones cannot be negative")
	}
	now := s.clock.Now()

	if expectedVersion == nil {
		e := entities.NewEvent(eventID, strings.TrimSpace(d.Name), now)
		applyDetails(e, d)
		item, err := entities.ToItem(e)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "encode event")
		}
		err = s.store.PutItem(ctx, item, ports.PutOptions{IfNotExists: true})
		if err == nil {
			s.logger.Info("Event created", zap.String("eventId", eventID))
			return e, nil
		}
		if !pkgerrors.IsConflict(err) {
			return nil, pkgerrors.Wrap(err, "event create")
		}
	}

	patch := ports.Patch{
		"Name":            strings.TrimSpace(d.Name),
		"Date":            nilIfEmpty(d.Date),
		"StartTime":       nilIfEmpty(d.StartTime),
		"Venue":           nilIfEmpty(d.Venue),
		"Address":         nilIfEmpty(d.Address),
		"Capacity":        d.Capacity,
		"AllowedPlusOnes": d.AllowedPlusOnes,
		"UpdatedAt":       now,
	}
	if d.RSVPDeadline != nil {
		patch["RSVPDeadline"] = d.RSVPDeadline.UTC()
	} else {
		patch["RSVPDeadline"] = nil
	}
	if len(d.DietaryOptions) > 0 {
		patch["DietaryOptions"] = d.DietaryOptions
	} else {
		patch["DietaryOptions"] = nil
	}
	item, err := s.store.UpdateItem(ctx, entities.NewEvent(eventID, "", now).Key(), patch, expectedVersion)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.NewNotFoundError("event")
		}
		return nil, pkgerrors.Wrap(err, "event update")
	}
	var e entities.Event
	if err := entities.FromItem(item, &e); err != nil {
		return nil, pkgerrors.Wrap(err, "decode event")
	}
	return &e, nil
}

func applyDetails(e *entities.Event, d EventDetails) {
	e.Date = d.Date
	e.StartTime = d.StartTime
	e.Venue = d.Venue
	e.Address = d.Address
	e.Capacity = d.Capacity
	e.AllowedPlusOnes = d.AllowedPlusOnes
	e.DietaryOptions = d.DietaryOptions
	if d.RSVPDeadline != nil {
		deadline := d.RSVPDeadline.UTC()
		e.RSVPDeadline = &deadline
	}
}

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// RefreshCounts stores freshly derived counts on the event row. It is a
// best-effort cache write; a missing event row is not an error.
func (s *EventService) RefreshCounts(ctx context.Context, eventID string) error {
	stats, err := s.stats.Stats(ctx, eventID)
	if err != nil {
		return err
	}
	counts := stats.Counts(s.clock.Now())
	_, err = s.store.UpdateItem(ctx, entities.NewEvent(eventID, "", time.Time{}).Key(), ports.Patch{"Counts": counts}, nil)
	if pkgerrors.IsNotFound(err) {
		s.logger.Debug("No event row to cache counts on", zap.String("eventId", eventID))
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(err, "event counts update")
	}
	return nil
}

// CheckDeadline rejects submissions after the event's RSVP deadline. Events
// without a row or a deadline accept submissions.
func (s *EventService) CheckDeadline(ctx context.Context, eventID string) error {
	e, err := s.Load(ctx, eventID)
	if pkgerrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if e.DeadlinePassed(s.clock.Now()) {
		return pkgerrors.NewValidationError("The RSVP deadline for this event has passed. Please contact the couple directly.").
			WithCode(pkgerrors.CodeDeadlinePassed)
	}
	return nil
}
