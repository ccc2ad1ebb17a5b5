package valueobjects

import (
	"strings"

	pkgerrors "wedding-backend/pkg/errors"
)

// RSVPStatus is a guest's answer to the invitation.
type RSVPStatus string

const (
	StatusPending      RSVPStatus = "pending"
	StatusAttending    RSVPStatus = "attending"
	StatusNotAttending RSVPStatus = "not_attending"
	StatusMaybe        RSVPStatus = "maybe"
)

// AllStatuses lists every status in display order.
var AllStatuses = []RSVPStatus{StatusAttending, StatusNotAttending, StatusMaybe, StatusPending}

// ParseRSVPStatus accepts any case and a few spellings clients send.
func ParseRSVPStatus(raw string) (RSVPStatus, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	switch s {
	case "pending":
		return StatusPending, nil
	case "attending", "yes", "accepted":
		return StatusAttending, nil
	case "not_attending", "no", "declined":
		return StatusNotAttending, nil
	case "maybe":
		return StatusMaybe, nil
	}
	return "", pkgerrors.NewValidationError("status must be one of attending, not_attending, maybe, pending")
}

func (s RSVPStatus) String() string { return string(s) }

// Responded reports whether the status counts as an answer.
func (s RSVPStatus) Responded() bool {
	return s != "" && s != StatusPending
}

// Valid reports whether s is a known status.
func (s RSVPStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAttending, StatusNotAttending, StatusMaybe:
		return true
	}
	return false
}

// GroupStatus is the collective response state of a guest group.
type GroupStatus string

const (
	GroupPending  GroupStatus = "pending"
	GroupPartial  GroupStatus = "partial"
	GroupComplete GroupStatus = "complete"
)

// DeriveGroupStatus folds member statuses: complete when all responded,
// partial when some did, pending when none did or there are no members.
func DeriveGroupStatus(members []RSVPStatus) GroupStatus {
	responded := 0
	for _, s := range members {
		if s.Responded() {
			responded++
		}
	}
	switch {
	case len(members) == 0 || responded == 0:
		return GroupPending
	case responded == len(members):
		return GroupComplete
	default:
		return GroupPartial
	}
}
