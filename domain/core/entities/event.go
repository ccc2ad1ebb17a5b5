package entities

import (
	"time"

	"wedding-backend/domain/keys"
)

// Event holds the metadata of one celebration and a cache of its RSVP counts.
type Event struct {
	PK         string `dynamodbav:"PK" json:"-"`
	SK         string `dynamodbav:"SK" json:"-"`
	EntityType string `dynamodbav:"EntityType" json:"-"`

	EventID         string     `dynamodbav:"EventID" json:"eventId"`
	Name            string     `dynamodbav:"Name" json:"name"`
	Date            string     `dynamodbav:"Date,omitempty" json:"date,omitempty"`
	StartTime       string     `dynamodbav:"StartTime,omitempty" json:"startTime,omitempty"`
	Venue           string     `dynamodbav:"Venue,omitempty" json:"venue,omitempty"`
	Address         string     `dynamodbav:"Address,omitempty" json:"address,omitempty"`
	Capacity        int        `dynamodbav:"Capacity,omitempty" json:"capacity,omitempty"`
	RSVPDeadline    *time.Time `dynamodbav:"RSVPDeadline,omitempty" json:"rsvpDeadline,omitempty"`
	AllowedPlusOnes int        `dynamodbav:"AllowedPlusOnes" json:"allowedPlusOnes"`
	DietaryOptions  []string   `dynamodbav:"DietaryOptions,omitempty" json:"dietaryOptions,omitempty"`

	// Counts is a best-effort cache refreshed in the background. Readers that
	// need exact numbers derive them from guest rows.
	Counts EventCounts `dynamodbav:"Counts" json:"counts"`

	CreatedAt time.Time `dynamodbav:"CreatedAt" json:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"UpdatedAt" json:"updatedAt"`
	Version   int       `dynamodbav:"Version" json:"version"`
}

// EventCounts are per-status guest counts of an event.
type EventCounts struct {
	Invited     int        `dynamodbav:"Invited" json:"invited"`
	Confirmed   int        `dynamodbav:"Confirmed" json:"confirmed"`
	Declined    int        `dynamodbav:"Declined" json:"declined"`
	Maybe       int        `dynamodbav:"Maybe" json:"maybe"`
	Pending     int        `dynamodbav:"Pending" json:"pending"`
	Headcount   int        `dynamodbav:"Headcount" json:"headcount"`
	RefreshedAt *time.Time `dynamodbav:"RefreshedAt,omitempty" json:"refreshedAt,omitempty"`
}

// NewEvent creates an event row with derived keys.
func NewEvent(eventID, name string, now time.Time) *Event {
	e := &Event{EventID: eventID, Name: name, CreatedAt: now.UTC(), UpdatedAt: now.UTC()}
	e.DeriveKeys()
	return e
}

// DeriveKeys sets the primary key.
func (e *Event) DeriveKeys() {
	k := e.Key()
	e.PK, e.SK, e.EntityType = k.PK, k.SK, keys.EntityEvent
}

// Key returns the primary key of the event row.
func (e *Event) Key() keys.Key {
	return keys.EventKey(e.EventID)
}

// DeadlinePassed reports whether the RSVP deadline is set and before now.
func (e *Event) DeadlinePassed(now time.Time) bool {
	return e.RSVPDeadline != nil && now.After(*e.RSVPDeadline)
}
