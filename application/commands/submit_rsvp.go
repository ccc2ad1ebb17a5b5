package commands

import (
	"wedding-backend/domain/core/valueobjects"
	"wedding-backend/pkg/utils"
)

// AttendeeInput is one named plus-one of a submission.
type AttendeeInput struct {
	Name                string   `json:"name" validate:"required,max=200"`
	DietaryRestrictions []string `json:"dietaryRestrictions" validate:"max=20,dive,max=100"`
}

// SubmitRSVPCommand records a guest's response through their invitation code.
type SubmitRSVPCommand struct {
	InvitationCode      string          `json:"invitationCode" validate:"required,max=32"`
	Status              string          `json:"status" validate:"required"`
	Attendees           []AttendeeInput `json:"attendees" validate:"max=20,dive"`
	DietaryRestrictions []string        `json:"dietaryRestrictions" validate:"max=20,dive,max=100"`
	DietaryNotes        string          `json:"dietaryNotes" validate:"max=2000"`
	SpecialRequests     string          `json:"specialRequests" validate:"max=2000"`

	// SubmissionID lets a client retry a submission without consuming
	// another use of its invitation.
	SubmissionID   string            `json:"submissionId" validate:"omitempty,max=128"`
	ClientMetadata map[string]string `json:"clientMetadata,omitempty" validate:"max=10"`
}

// Validate validates the command
func (c SubmitRSVPCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}
	_, err := valueobjects.ParseRSVPStatus(c.Status)
	return err
}

// SubmitRSVPResult is returned to the guest.
type SubmitRSVPResult struct {
	Success       bool   `json:"success"`
	RSVPID        string `json:"rsvpId"`
	CurrentStatus string `json:"currentStatus"`
	PartySize     int    `json:"partySize"`
}
