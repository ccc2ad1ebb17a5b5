package services

import (
	"context"

	"wedding-backend/application/ports"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/events"
	"wedding-backend/domain/keys"
	pkgerrors "wedding-backend/pkg/errors"

	"go.uber.org/zap"
)

// notificationScope namespaces confirmation dedupe records.
const notificationScope = "confirmation"

// Notifier sends one confirmation per recorded web submission. Events are
// delivered at least once, so each is claimed in the idempotency store
// before the mail goes out.
type Notifier struct {
	claims ports.IdempotencyStore
	mailer ports.Mailer
	events *EventService
	logger *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(claims ports.IdempotencyStore, mailer ports.Mailer, events *EventService, logger *zap.Logger) *Notifier {
	return &Notifier{claims: claims, mailer: mailer, events: events, logger: logger}
}

// Handle processes one change event. It reports whether a confirmation was
// sent.
func (n *Notifier) Handle(ctx context.Context, change events.ChangeEvent) (bool, error) {
	if change.Entity != keys.EntityRSVPResponse || change.EventName != events.ChangeInsert {
		return false, nil
	}
	if change.ImageString("Channel") != entities.ChannelWeb {
		return false, nil
	}

	claimed, err := n.claims.Claim(ctx, notificationScope, change.EventID)
	if err != nil {
		return false, err
	}
	if !claimed {
		n.logger.Debug("Confirmation already sent", zap.String("changeId", change.EventID))
		return false, nil
	}

	msg := n.message(ctx, change)
	if err := n.mailer.SendConfirmation(ctx, msg); err != nil {
		// Forget the claim so a redelivery can try again.
		if relErr := n.claims.Release(ctx, notificationScope, change.EventID); relErr != nil {
			n.logger.Error("Failed to release confirmation claim",
				zap.String("changeId", change.EventID),
				zap.Error(relErr))
		}
		return false, pkgerrors.Wrap(err, "send confirmation")
	}
	return true, nil
}

// HandleBatch processes events in order and stops at the first failure.
func (n *Notifier) HandleBatch(ctx context.Context, changes []events.ChangeEvent) error {
	for _, c := range changes {
		if _, err := n.Handle(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) message(ctx context.Context, change events.ChangeEvent) ports.ConfirmationMessage {
	eventID := change.ImageString("EventID")
	msg := ports.ConfirmationMessage{
		ToEmail:     change.ImageString("Email"),
		ToName:      change.ImageString("GuestName"),
		EventName:   eventID,
		Status:      change.ImageString("Status"),
		ResponseID:  change.ImageString("ResponseID"),
		SubmittedAt: change.ImageString("SubmittedAt"),
	}
	if size, ok := change.NewImage["PartySize"].(float64); ok {
		msg.PartySize = int(size)
	}
	if n.events != nil {
		if e, err := n.events.Load(ctx, eventID); err == nil && e.Name != "" {
			msg.EventName = e.Name
		}
	}
	return msg
}
