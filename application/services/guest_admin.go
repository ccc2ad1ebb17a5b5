package services

import (
	"context"
	"strings"

	"wedding-backend/application/ports"
	"wedding-backend/domain/config"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/core/valueobjects"
	pkgerrors "wedding-backend/pkg/errors"

	"go.uber.org/zap"
)

// GuestEdit is an admin change to one guest. Nil fields are left alone.
type GuestEdit struct {
	EventID          string
	Email            string
	Name             *string
	Phone            *string
	MaxGuests        *int
	TableAssignment  *string
	Notes            *string
	IsPrimaryContact *bool
	GroupID          *string
	Status           *valueobjects.RSVPStatus
	ExpectedVersion  *int
}

// GuestAdmin applies admin edits. Contact and seating fields are written
// directly; status changes are recorded as admin responses.
type GuestAdmin struct {
	store  ports.Store
	clock  ports.Clock
	writer *RSVPWriter
	groups *GroupCoordinator
	cfg    *config.DomainConfig
	logger *zap.Logger
}

// NewGuestAdmin creates the service.
func NewGuestAdmin(store ports.Store, clock ports.Clock, writer *RSVPWriter, groups *GroupCoordinator, cfg *config.DomainConfig, logger *zap.Logger) *GuestAdmin {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &GuestAdmin{store: store, clock: clock, writer: writer, groups: groups, cfg: cfg, logger: logger}
}

// Update applies e and returns the guest as stored afterwards.
func (a *GuestAdmin) Update(ctx context.Context, e GuestEdit) (*entities.Guest, error) {
	guest, err := loadGuest(ctx, a.store, e.EventID, e.Email)
	if err != nil {
		return nil, err
	}
	if e.ExpectedVersion != nil && *e.ExpectedVersion != guest.Version {
		return nil, pkgerrors.NewConflictError("This guest was changed by someone else. Reload and try again.")
	}

	patch, err := a.contactPatch(e)
	if err != nil {
		return nil, err
	}
	oldGroup := guest.GroupID
	newGroup := oldGroup
	if e.GroupID != nil {
		newGroup = strings.TrimSpace(*e.GroupID)
		if newGroup != "" {
			if _, err := valueobjects.ParseGroupID(newGroup); err != nil {
				return nil, err
			}
		}
		if newGroup != oldGroup {
			patch["GroupID"] = nilIfEmpty(newGroup)
		}
	}

	if len(patch) > 0 {
		patch["UpdatedAt"] = a.clock.Now()
		expected := guest.Version
		if _, err := a.store.UpdateItem(ctx, guest.Key(), patch, &expected); err != nil {
			if pkgerrors.IsVersionMismatch(err) {
				return nil, pkgerrors.NewConflictError("This guest was changed by someone else. Reload and try again.")
			}
			return nil, pkgerrors.Wrap(err, "guest update")
		}
		a.logger.Info("Guest edited", zap.String("eventId", e.EventID), zap.String("email", guest.Email))
	}

	if newGroup != oldGroup {
		if err := a.moveGroup(ctx, guest, oldGroup, newGroup); err != nil {
			return nil, err
		}
	}

	if e.Status != nil && *e.Status != guest.RSVPStatus {
		if !e.Status.Valid() {
			return nil, pkgerrors.NewValidationError("unknown RSVP status")
		}
		fresh, err := loadGuest(ctx, a.store, e.EventID, guest.Email)
		if err != nil {
			return nil, err
		}
		if _, err := a.writer.Record(ctx, RecordInput{
			EventID:             fresh.EventID,
			Email:               fresh.Email,
			Status:              *e.Status,
			Attendees:           fresh.Attendees,
			DietaryRestrictions: inviteeRestrictions(fresh),
			DietaryNotes:        fresh.DietaryNotes,
			SpecialRequests:     fresh.SpecialRequests,
			InvitationCode:      fresh.InvitationCode,
			Channel:             entities.ChannelAdmin,
		}); err != nil {
			return nil, err
		}
	}
	return loadGuest(ctx, a.store, e.EventID, guest.Email)
}

func (a *GuestAdmin) contactPatch(e GuestEdit) (ports.Patch, error) {
	patch := ports.Patch{}
	if e.Name != nil {
		name := strings.TrimSpace(*e.Name)
		if name == "" {
			return nil, pkgerrors.NewValidationError("guest name cannot be empty")
		}
		patch["Name"] = name
	}
	if e.Phone != nil {
		patch["Phone"] = nilIfEmpty(strings.TrimSpace(*e.Phone))
	}
	if e.MaxGuests != nil {
		if *e.MaxGuests < 1 || *e.MaxGuests > a.cfg.MaxPartySize {
			return nil, pkgerrors.NewValidationError("maxGuests must be between 1 and the configured maximum party size")
		}
		patch["MaxPartySize"] = *e.MaxGuests
	}
	if e.TableAssignment != nil {
		patch["TableAssignment"] = nilIfEmpty(strings.TrimSpace(*e.TableAssignment))
	}
	if e.Notes != nil {
		if len(*e.Notes) > a.cfg.MaxNotesLength {
			return nil, pkgerrors.NewValidationError("notes are too long")
		}
		patch["Notes"] = nilIfEmpty(*e.Notes)
	}
	if e.IsPrimaryContact != nil {
		patch["IsPrimaryContact"] = *e.IsPrimaryContact
	}
	return patch, nil
}

func (a *GuestAdmin) moveGroup(ctx context.Context, guest *entities.Guest, from, to string) error {
	if from != "" {
		if err := a.groups.SetMembership(ctx, guest.EventID, from, guest.Email, false); err != nil && !pkgerrors.IsNotFound(err) {
			return err
		}
		if _, err := a.groups.Recompute(ctx, guest.EventID, from); err != nil && !pkgerrors.IsNotFound(err) {
			a.logger.Warn("Group recompute failed", zap.String("groupId", from), zap.Error(err))
		}
	}
	if to != "" {
		if err := a.groups.Ensure(ctx, guest.EventID, to, ""); err != nil {
			return err
		}
		if err := a.groups.SetMembership(ctx, guest.EventID, to, guest.Email, true); err != nil {
			return err
		}
		if _, err := a.groups.Recompute(ctx, guest.EventID, to); err != nil {
			a.logger.Warn("Group recompute failed", zap.String("groupId", to), zap.Error(err))
		}
	}
	return nil
}

// inviteeRestrictions removes the plus-ones' restrictions from the guest's
// merged list, leaving the invitee's own.
func inviteeRestrictions(g *entities.Guest) []string {
	fromAttendees := make(map[string]bool)
	for _, a := range g.Attendees {
		for _, d := range entities.NormalizeRestrictions(a.DietaryRestrictions) {
			fromAttendees[d] = true
		}
	}
	var own []string
	for _, d := range g.DietaryRestrictions {
		if !fromAttendees[d] {
			own = append(own, d)
		}
	}
	return own
}
