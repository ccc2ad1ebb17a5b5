package commands

import (
	"time"

	"wedding-backend/domain/core/valueobjects"
	"wedding-backend/pkg/utils"
)

// UpdateGuestCommand is an admin edit of one guest. Nil fields are unchanged.
type UpdateGuestCommand struct {
	EventID          string  `json:"eventId" validate:"required"`
	Email            string  `json:"email" validate:"required,email"`
	Name             *string `json:"name,omitempty" validate:"omitempty,max=200"`
	Phone            *string `json:"phone,omitempty" validate:"omitempty,max=40"`
	MaxGuests        *int    `json:"maxGuests,omitempty" validate:"omitempty,min=1"`
	TableAssignment  *string `json:"tableAssignment,omitempty" validate:"omitempty,max=50"`
	Notes            *string `json:"notes,omitempty"`
	IsPrimaryContact *bool   `json:"isPrimaryContact,omitempty"`
	GroupID          *string `json:"groupId,omitempty"`
	RSVPStatus       *string `json:"rsvpStatus,omitempty"`
	ExpectedVersion  *int    `json:"expectedVersion,omitempty" validate:"omitempty,min=0"`
}

// Validate validates the command
func (c UpdateGuestCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	if c.RSVPStatus != nil {
		if _, err := valueobjects.ParseRSVPStatus(*c.RSVPStatus); err != nil {
			return err
		}
	}
	return nil
}

// UpsertEventCommand creates or edits an event.
type UpsertEventCommand struct {
	EventID         string     `json:"eventId" validate:"required,max=64"`
	Name            string     `json:"name" validate:"required,max=200"`
	Date            string     `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	StartTime       string     `json:"startTime,omitempty" validate:"omitempty,max=20"`
	Venue           string     `json:"venue,omitempty" validate:"max=200"`
	Address         string     `json:"address,omitempty" validate:"max=500"`
	Capacity        int        `json:"capacity,omitempty" validate:"min=0"`
	RSVPDeadline    *time.Time `json:"rsvpDeadline,omitempty"`
	AllowedPlusOnes int        `json:"allowedPlusOnes" validate:"min=0"`
	DietaryOptions  []string   `json:"dietaryOptions,omitempty" validate:"max=30,dive,max=100"`
	ExpectedVersion *int       `json:"expectedVersion,omitempty" validate:"omitempty,min=0"`
}

// Validate validates the command
func (c UpsertEventCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	_, err := valueobjects.ParseEventID(c.EventID)
	return err
}

// RecomputeGroupCommand re-derives one group's aggregate.
type RecomputeGroupCommand struct {
	EventID string `validate:"required"`
	GroupID string `validate:"required"`
}

// Validate validates the command
func (c RecomputeGroupCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// RefreshEventCountsCommand rewrites the cached counts of an event.
type RefreshEventCountsCommand struct {
	EventID string `validate:"required"`
}

// Validate validates the command
func (c RefreshEventCountsCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// ImportGuestsCommand bulk-loads guests from CSV text.
type ImportGuestsCommand struct {
	EventID string `validate:"required"`
	CSV     []byte `validate:"required"`
}

// Validate validates the command
func (c ImportGuestsCommand) Validate() error {
	return utils.ValidateStruct(c)
}
