package queries

import (
	"time"

	"wedding-backend/domain/core/valueobjects"
	pkgerrors "wedding-backend/pkg/errors"
	"wedding-backend/pkg/utils"
)

// ValidateInvitationQuery checks an invitation code without consuming it.
type ValidateInvitationQuery struct {
	InvitationCode string `json:"invitationCode" validate:"required,max=32"`
}

// Validate validates the query
func (q ValidateInvitationQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetStatsQuery computes the dashboard statistics of an event.
type GetStatsQuery struct {
	EventID string `validate:"required"`
}

// Validate validates the query
func (q GetStatsQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// ListGuestsQuery pages through the guest list of an event.
type ListGuestsQuery struct {
	EventID string `validate:"required"`
	Status  string
	GroupID string
	Search  string `validate:"max=200"`
	SortBy  string `validate:"omitempty,oneof=name email status updatedAt"`
	Desc    bool
	Offset  int `validate:"min=0"`
	Limit   int `validate:"min=0,max=200"`
}

// Validate validates the query
func (q ListGuestsQuery) Validate() error {
	if err := utils.ValidateStruct(q); err != nil {
		return err
	}
	if q.Status != "" {
		if _, err := valueobjects.ParseRSVPStatus(q.Status); err != nil {
			return err
		}
	}
	return nil
}

// GetGuestHistoryQuery lists the recorded responses of one guest, newest first.
type GetGuestHistoryQuery struct {
	EventID string `validate:"required"`
	Email   string `validate:"required,email"`
	Since   time.Time
	Until   time.Time
	Limit   int `validate:"min=0,max=500"`
}

// Validate validates the query
func (q GetGuestHistoryQuery) Validate() error {
	if err := utils.ValidateStruct(q); err != nil {
		return err
	}
	if !q.Since.IsZero() && !q.Until.IsZero() && q.Until.Before(q.Since) {
		return pkgerrors.NewValidationError("until must not be before since")
	}
	return nil
}

// GetEventQuery loads an event with its derived counts.
type GetEventQuery struct {
	EventID string `validate:"required"`
}

// Validate validates the query
func (q GetEventQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// RecentResponsesQuery lists the guests who responded on one day.
type RecentResponsesQuery struct {
	EventID string `validate:"required"`
	Day     time.Time
	Limit   int `validate:"min=0,max=500"`
}

// Validate validates the query
func (q RecentResponsesQuery) Validate() error {
	return utils.ValidateStruct(q)
}
