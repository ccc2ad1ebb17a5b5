package events

import (
	"time"

	"wedding-backend/domain/keys"
)

// DomainEvent is the base interface for all domain events
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// ChangeEventName is the kind of committed write.
type ChangeEventName string

const (
	ChangeInsert ChangeEventName = "INSERT"
	ChangeModify ChangeEventName = "MODIFY"
)

// Detail types used on the event bus.
const (
	DetailTypeGuestChanged = "guest.changed"
	DetailTypeRSVPRecorded = "rsvp.recorded"
)

// ChangeEvent is emitted once for every committed Guest or RSVP Response
// write. Delivery is at-least-once, so consumers dedupe on EventID.
type ChangeEvent struct {
	EventID    string                 `json:"eventId"`
	EventName  ChangeEventName        `json:"eventName"`
	Entity     string                 `json:"entity"`
	Keys       map[string]string      `json:"keys"`
	NewImage   map[string]interface{} `json:"newImage"`
	OccurredAt time.Time              `json:"occurredAt"`
}

func (e ChangeEvent) GetAggregateID() string  { return e.Keys["PK"] + "|" + e.Keys["SK"] }
func (e ChangeEvent) GetEventType() string    { return DetailType(e.Entity) }
func (e ChangeEvent) GetTimestamp() time.Time { return e.OccurredAt }

// DetailType maps an entity discriminator to its bus detail type.
func DetailType(entity string) string {
	if entity == keys.EntityRSVPResponse {
		return DetailTypeRSVPRecorded
	}
	return DetailTypeGuestChanged
}

// ImageString reads a string attribute from the new image.
func (e ChangeEvent) ImageString(name string) string {
	if s, ok := e.NewImage[name].(string); ok {
		return s
	}
	return ""
}
