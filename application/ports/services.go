package ports

import (
	"context"
	"time"

	"wedding-backend/domain/events"
)

// EventPublisher sends change events to the event bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.ChangeEvent) error
	PublishBatch(ctx context.Context, events []events.ChangeEvent) error
}

// IdempotencyStore records that a keyed operation has been performed.
type IdempotencyStore interface {
	// Claim records key and reports false if it was already recorded.
	Claim(ctx context.Context, scope, key string) (bool, error)
	// Release forgets key so that a failed operation can be retried.
	Release(ctx context.Context, scope, key string) error
}

// ConfirmationMessage is an RSVP confirmation to deliver to a guest.
type ConfirmationMessage struct {
	ToEmail     string
	ToName      string
	EventName   string
	Status      string
	PartySize   int
	ResponseID  string
	SubmittedAt string
}

// Mailer delivers confirmation messages.
type Mailer interface {
	SendConfirmation(ctx context.Context, msg ConfirmationMessage) error
}

// Clock abstracts time for services.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
