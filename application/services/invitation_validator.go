package services

import (
	"context"

	"wedding-backend/application/ports"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/core/valueobjects"
	"wedding-backend/domain/keys"
	pkgerrors "wedding-backend/pkg/errors"
	"wedding-backend/pkg/observability"

	"go.uber.org/zap"
)

// Reasons reported for an unusable invitation, besides entities.InvitationState values.
const (
	ReasonNotFound      = "not_found"
	ReasonInvalidFormat = "invalid_format"
)

var invitationMessages = map[string]string{
	ReasonNotFound:                       "We couldn't find that invitation code. Please check it and try again.",
	ReasonInvalidFormat:                  "Invitation codes are 4 to 16 letters and numbers.",
	string(entities.InvitationInactive):  "This invitation code is no longer active. Please contact the couple.",
	string(entities.InvitationNotYet):    "This invitation code is not valid yet.",
	string(entities.InvitationExpired):   "This invitation code has expired and can no longer be used to RSVP.",
	string(entities.InvitationExhausted): "This code has already been used the maximum number of times.",
}

// InvitationMessage returns the guest-facing message for a reason.
func InvitationMessage(reason string) string {
	return invitationMessages[reason]
}

// GuestSummary is the guest identity revealed by a valid code.
type GuestSummary struct {
	EventID        string                  `json:"eventId"`
	Email          string                  `json:"email"`
	Name           string                  `json:"name"`
	InvitationCode string                  `json:"invitationCode"`
	MaxGuests      int                     `json:"maxGuests"`
	RSVPStatus     valueobjects.RSVPStatus `json:"rsvpStatus"`
	GroupID        string                  `json:"groupId,omitempty"`
}

// ValidationResult is the outcome of an invitation check. Invalid codes are
// an expected result, not an error.
type ValidationResult struct {
	Valid   bool          `json:"valid"`
	Reason  string        `json:"reason,omitempty"`
	Message string        `json:"message,omitempty"`
	Guest   *GuestSummary `json:"guest,omitempty"`
}

// Resolution is a code resolved to its invitation and guest rows.
type Resolution struct {
	Code       string
	Invitation *entities.Invitation
	Guest      *entities.Guest
	State      string // entities.InvitationState or a Reason constant
}

// Usable reports whether the invitation can be redeemed.
func (r *Resolution) Usable() bool {
	return r.State == string(entities.InvitationUsable)
}

// InvitationValidator resolves codes through the invitation index. It never
// writes.
type InvitationValidator struct {
	store   ports.Store
	clock   ports.Clock
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewInvitationValidator creates a validator.
func NewInvitationValidator(store ports.Store, clock ports.Clock, metrics *observability.Collector, logger *zap.Logger) *InvitationValidator {
	return &InvitationValidator{store: store, clock: clock, metrics: metrics, logger: logger}
}

// Validate checks a raw code. Errors are returned only for storage failures.
func (v *InvitationValidator) Validate(ctx context.Context, rawCode string) (*ValidationResult, error) {
	res, err := v.Resolve(ctx, rawCode)
	if err != nil {
		return nil, err
	}
	v.metrics.RecordInvitationCheck(res.State)
	if !res.Usable() {
		return &ValidationResult{Valid: false, Reason: res.State, Message: InvitationMessage(res.State)}, nil
	}
	return &ValidationResult{Valid: true, Guest: Summarize(res.Guest, res.Invitation)}, nil
}

// Summarize builds the guest identity shown to a client.
func Summarize(g *entities.Guest, inv *entities.Invitation) *GuestSummary {
	return &GuestSummary{
		EventID:        g.EventID,
		Email:          g.Email,
		Name:           g.Name,
		InvitationCode: inv.Code,
		MaxGuests:      g.MaxPartySize,
		RSVPStatus:     g.RSVPStatus,
		GroupID:        g.GroupID,
	}
}

// Resolve looks up the invitation and its guest. The index is tried first;
// rows it has not caught up with are read by primary key.
func (v *InvitationValidator) Resolve(ctx context.Context, rawCode string) (*Resolution, error) {
	code, err := valueobjects.ParseInvitationCode(rawCode)
	if err != nil {
		return &Resolution{Code: valueobjects.NormalizeInvitationCode(rawCode), State: ReasonInvalidFormat}, nil
	}
	res := &Resolution{Code: code}

	rows, err := v.store.Query(ctx, ports.QueryInput{
		Index:        &keys.InvitationIndex,
		PartitionKey: keys.InvitationPK(code),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "invitation lookup")
	}
	for _, row := range rows {
		switch entities.EntityTypeOf(row) {
		case keys.EntityInvitation:
			var inv entities.Invitation
			if err := entities.FromItem(row, &inv); err != nil {
				return nil, pkgerrors.Wrap(err, "decode invitation")
			}
			res.Invitation = &inv
		case keys.EntityGuest:
			var g entities.Guest
			if err := entities.FromItem(row, &g); err != nil {
				v.logger.Warn("Skipping malformed guest row in invitation index", zap.String("code", code), zap.Error(err))
				continue
			}
			res.Guest = &g
		}
	}

	if res.Invitation == nil {
		item, err := v.store.GetItem(ctx, keys.InvitationKey(code))
		if pkgerrors.IsNotFound(err) {
			res.State = ReasonNotFound
			return res, nil
		}
		if err != nil {
			return nil, pkgerrors.Wrap(err, "invitation read")
		}
		var inv entities.Invitation
		if err := entities.FromItem(item, &inv); err != nil {
			return nil, pkgerrors.Wrap(err, "decode invitation")
		}
		res.Invitation = &inv
	}

	if res.Guest == nil || res.Guest.Email != res.Invitation.GuestEmail {
		g, err := loadGuest(ctx, v.store, res.Invitation.EventID, res.Invitation.GuestEmail)
		if pkgerrors.IsNotFound(err) {
			v.logger.Warn("Invitation references a missing guest",
				zap.String("code", code),
				zap.String("eventId", res.Invitation.EventID),
				zap.String("email", res.Invitation.GuestEmail),
			)
			res.State = ReasonNotFound
			return res, nil
		}
		if err != nil {
			return nil, err
		}
		res.Guest = g
	}

	res.State = string(res.Invitation.State(v.clock.Now()))
	return res, nil
}

func loadGuest(ctx context.Context, store ports.Store, eventID, email string) (*entities.Guest, error) {
	item, err := store.GetItem(ctx, keys.GuestKey(eventID, email))
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.NewNotFoundError("guest")
		}
		return nil, pkgerrors.Wrap(err, "guest read")
	}
	var g entities.Guest
	if err := entities.FromItem(item, &g); err != nil {
		return nil, pkgerrors.Wrap(err, "decode guest")
	}
	return &g, nil
}
