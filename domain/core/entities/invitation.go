package entities

import (
	"time"

	"wedding-backend/domain/core/valueobjects"
	"wedding-backend/domain/keys"
)

// InvitationState is the reason an invitation can or cannot be redeemed.
type InvitationState string

const (
	InvitationUsable    InvitationState = "usable"
	InvitationInactive  InvitationState = "inactive"
	InvitationNotYet    InvitationState = "not_yet_valid"
	InvitationExpired   InvitationState = "expired"
	InvitationExhausted InvitationState = "exhausted"
)

// Invitation maps a code to a guest along with its usage limits. Codes are
// deactivated, never deleted.
type Invitation struct {
	PK         string `dynamodbav:"PK" json:"-"`
	SK         string `dynamodbav:"SK" json:"-"`
	EntityType string `dynamodbav:"EntityType" json:"-"`
	GSI1PK     string `dynamodbav:"GSI1PK" json:"-"`
	GSI1SK     string `dynamodbav:"GSI1SK" json:"-"`

	Code        string `dynamodbav:"Code" json:"code"`
	EventID     string `dynamodbav:"EventID" json:"eventId"`
	GuestEmail  string `dynamodbav:"GuestEmail" json:"guestEmail"`
	MaxUses     int    `dynamodbav:"MaxUses" json:"maxUses"`
	CurrentUses int    `dynamodbav:"CurrentUses" json:"currentUses"`
	Active      bool   `dynamodbav:"Active" json:"active"`

	// Window bounds are in keys.TimestampLayout so the store can compare them.
	ValidFrom  string `dynamodbav:"ValidFrom,omitempty" json:"validFrom,omitempty"`
	ValidUntil string `dynamodbav:"ValidUntil,omitempty" json:"validUntil,omitempty"`

	// RedeemedBy holds the submission tokens that consumed a use.
	RedeemedBy []string `dynamodbav:"RedeemedBy,stringset,omitempty" json:"-"`

	CreatedAt time.Time `dynamodbav:"CreatedAt" json:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"UpdatedAt" json:"updatedAt"`
	Version   int       `dynamodbav:"Version" json:"version"`
}

// Invitation attribute names used in conditional updates.
const (
	AttrInvitationUses       = "CurrentUses"
	AttrInvitationMaxUses    = "MaxUses"
	AttrInvitationActive     = "Active"
	AttrInvitationValidFrom  = "ValidFrom"
	AttrInvitationValidUntil = "ValidUntil"
	AttrInvitationRedeemedBy = "RedeemedBy"
)

// NewInvitation creates an active invitation with derived keys.
func NewInvitation(code, eventID, email string, maxUses int, now time.Time) *Invitation {
	inv := &Invitation{
		Code:       valueobjects.NormalizeInvitationCode(code),
		EventID:    eventID,
		GuestEmail: valueobjects.NormalizeEmail(email),
		MaxUses:    maxUses,
		Active:     true,
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}
	inv.DeriveKeys()
	return inv
}

// DeriveKeys sets the primary key and the invitation index attributes.
func (i *Invitation) DeriveKeys() {
	i.Code = valueobjects.NormalizeInvitationCode(i.Code)
	k := keys.InvitationKey(i.Code)
	i.PK, i.SK, i.EntityType = k.PK, k.SK, keys.EntityInvitation
	i.GSI1PK, i.GSI1SK = k.PK, keys.SortInvitation
}

// Key returns the primary key of the invitation row.
func (i *Invitation) Key() keys.Key {
	return keys.InvitationKey(i.Code)
}

// SetWindow bounds the validity period. Zero times leave that side open.
func (i *Invitation) SetWindow(from, until time.Time) {
	i.ValidFrom, i.ValidUntil = "", ""
	if !from.IsZero() {
		i.ValidFrom = keys.FormatTimestamp(from)
	}
	if !until.IsZero() {
		i.ValidUntil = keys.FormatTimestamp(until)
	}
}

// State evaluates the invitation at now without changing it.
func (i *Invitation) State(now time.Time) InvitationState {
	ts := keys.FormatTimestamp(now)
	switch {
	case !i.Active:
		return InvitationInactive
	case i.ValidFrom != "" && ts < i.ValidFrom:
		return InvitationNotYet
	case i.ValidUntil != "" && ts >= i.ValidUntil:
		return InvitationExpired
	case i.CurrentUses >= i.MaxUses:
		return InvitationExhausted
	}
	return InvitationUsable
}

// Redeemed reports whether token already consumed a use.
func (i *Invitation) Redeemed(token string) bool {
	for _, t := range i.RedeemedBy {
		if t == token {
			return true
		}
	}
	return false
}
