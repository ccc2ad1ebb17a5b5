package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wedding-backend/application/ports"
	"wedding-backend/domain/config"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/core/valueobjects"
	"wedding-backend/domain/keys"
	pkgerrors "wedding-backend/pkg/errors"
	"wedding-backend/pkg/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GroupRecomputer is signalled after a member's response is recorded.
type GroupRecomputer interface {
	Recompute(ctx context.Context, eventID, groupID string) (*entities.GuestGroup, error)
}

// RecordInput is one RSVP to record for a known guest.
type RecordInput struct {
	EventID             string
	Email               string
	Status              valueobjects.RSVPStatus
	Attendees           []entities.Attendee // named plus-ones
	DietaryRestrictions []string            // the invitee's own
	DietaryNotes        string
	SpecialRequests     string
	InvitationCode      string
	Channel             string
	ClientMetadata      map[string]string
}

// RecordResult reports the recorded response and the guest's resolved state.
type RecordResult struct {
	ResponseID    string
	CurrentStatus valueobjects.RSVPStatus
	PartySize     int
	Guest         *entities.Guest
	// Superseded is set when a newer response was already current, so this
	// one only went to history.
	Superseded bool
}

// RSVPWriter appends history records and projects them onto guest rows.
// Optimistic locking on the guest's Version is the only concurrency control.
type RSVPWriter struct {
	store   ports.Store
	clock   ports.Clock
	groups  GroupRecomputer
	cfg     *config.DomainConfig
	metrics *observability.Collector
	logger  *zap.Logger
	sleep   func(time.Duration)
}

// NewRSVPWriter creates a writer. groups may be nil.
func NewRSVPWriter(store ports.Store, clock ports.Clock, groups GroupRecomputer, cfg *config.DomainConfig, metrics *observability.Collector, logger *zap.Logger) *RSVPWriter {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &RSVPWriter{
		store:   store,
		clock:   clock,
		groups:  groups,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// Party is a normalized party composition.
type Party struct {
	Attendees           []entities.Attendee
	DietaryRestrictions []string
	Size                int
}

// PrepareParty normalizes the party of in for guest g and enforces the size
// bound. An attendee carrying the guest's own name is folded into the invitee.
func (w *RSVPWriter) PrepareParty(g *entities.Guest, in RecordInput) (Party, error) {
	party := Party{DietaryRestrictions: entities.NormalizeRestrictions(in.DietaryRestrictions)}
	if in.Status == valueobjects.StatusNotAttending || in.Status == valueobjects.StatusPending {
		return party, nil
	}
	if len(in.Attendees) > w.cfg.MaxAttendees {
		return Party{}, pkgerrors.NewValidationError(fmt.Sprintf("at most %d attendees can be listed", w.cfg.MaxAttendees))
	}
	for _, a := range in.Attendees {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			return Party{}, pkgerrors.NewValidationError("every attendee needs a name")
		}
		restrictions := entities.NormalizeRestrictions(a.DietaryRestrictions)
		if strings.EqualFold(name, strings.TrimSpace(g.Name)) {
			party.DietaryRestrictions = entities.NormalizeRestrictions(append(party.DietaryRestrictions, restrictions...))
			continue
		}
		party.Attendees = append(party.Attendees, entities.Attendee{Name: name, DietaryRestrictions: restrictions})
	}
	party.Size = 1 + len(party.Attendees)

	limit := w.cfg.MaxPartySize
	if g.MaxPartySize > 0 && g.MaxPartySize < limit {
		limit = g.MaxPartySize
	}
	if party.Size > limit {
		return Party{}, pkgerrors.NewValidationError(
			fmt.Sprintf("Your party of %d is larger than the %d guests allowed for this invitation.", party.Size, limit),
		).WithCode(pkgerrors.CodePartyTooLarge).WithDetails(map[string]interface{}{"partySize": party.Size, "maxGuests": limit})
	}
	return party, nil
}

// Load reads the guest row of in.
func (w *RSVPWriter) Load(ctx context.Context, eventID, email string) (*entities.Guest, error) {
	return loadGuest(ctx, w.store, eventID, email)
}

// Record appends a history record for in and makes it the guest's current
// state unless a newer record already is.
func (w *RSVPWriter) Record(ctx context.Context, in RecordInput) (*RecordResult, error) {
	if !in.Status.Valid() {
		return nil, pkgerrors.NewValidationError("unknown RSVP status")
	}
	if len(in.DietaryNotes) > w.cfg.MaxNotesLength || len(in.SpecialRequests) > w.cfg.MaxNotesLength {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("notes are limited to %d characters", w.cfg.MaxNotesLength))
	}

	guest, err := w.Load(ctx, in.EventID, in.Email)
	if err != nil {
		return nil, err
	}
	party, err := w.PrepareParty(guest, in)
	if err != nil {
		return nil, err
	}

	resp := w.buildResponse(guest, in, party)
	if err := w.appendHistory(ctx, resp); err != nil {
		return nil, w.storageFailure(err)
	}

	result, err := w.project(ctx, guest, resp)
	if err != nil {
		return nil, w.storageFailure(err)
	}
	w.metrics.RecordSubmission(string(resp.Status), resp.Channel)
	w.logger.Info("RSVP recorded",
		zap.String("eventId", resp.EventID),
		zap.String("email", resp.Email),
		zap.String("rsvpId", resp.ResponseID),
		zap.String("status", string(resp.Status)),
		zap.Int("partySize", resp.PartySize),
		zap.Bool("superseded", result.Superseded),
	)

	if result.Guest.GroupID != "" && w.groups != nil {
		if _, err := w.groups.Recompute(ctx, result.Guest.EventID, result.Guest.GroupID); err != nil {
			w.logger.Warn("Group recompute failed",
				zap.String("groupId", result.Guest.GroupID),
				zap.Error(err),
			)
		}
	}
	return result, nil
}

// storageFailure counts err when it is an infrastructure failure rather than
// an expected business outcome.
func (w *RSVPWriter) storageFailure(err error) error {
	appErr := pkgerrors.GetAppError(err)
	switch {
	case appErr == nil:
		w.metrics.RecordStorageError("unknown")
	case appErr.Type == pkgerrors.ErrorTypeUnavailable,
		appErr.Type == pkgerrors.ErrorTypeTimeout,
		appErr.Type == pkgerrors.ErrorTypeInternal:
		w.metrics.RecordStorageError(string(appErr.Type))
	}
	return err
}

func (w *RSVPWriter) buildResponse(g *entities.Guest, in RecordInput, party Party) *entities.RSVPResponse {
	channel := in.Channel
	if channel == "" {
		channel = entities.ChannelWeb
	}
	resp := entities.NewRSVPResponse(g.EventID, g.Email, uuid.NewString(), in.Status, w.clock.Now())
	resp.GuestName = g.Name
	resp.GroupID = g.GroupID
	resp.InvitationCode = valueobjects.NormalizeInvitationCode(in.InvitationCode)
	if resp.InvitationCode == "" {
		resp.InvitationCode = g.InvitationCode
	}
	resp.PartySize = party.Size
	resp.Attendees = party.Attendees
	resp.DietaryRestrictions = party.DietaryRestrictions
	resp.DietaryNotes = strings.TrimSpace(in.DietaryNotes)
	resp.SpecialRequests = strings.TrimSpace(in.SpecialRequests)
	resp.Channel = channel
	resp.ClientMetadata = in.ClientMetadata
	return resp
}

// appendHistory writes the immutable record. A timed-out write is re-read
// before it is reported, since it may have committed.
func (w *RSVPWriter) appendHistory(ctx context.Context, resp *entities.RSVPResponse) error {
	item, err := entities.ToItem(resp)
	if err != nil {
		return pkgerrors.Wrap(err, "encode rsvp response")
	}
	err = w.store.PutItem(ctx, item, ports.PutOptions{IfNotExists: true})
	if pkgerrors.IsTimeout(err) {
		if _, getErr := w.store.GetItem(ctx, resp.Key()); getErr == nil {
			return nil
		}
	}
	if err != nil {
		return pkgerrors.Wrap(err, "append rsvp history")
	}
	return nil
}

// project runs the read-modify-write cycle on the guest row.
func (w *RSVPWriter) project(ctx context.Context, guest *entities.Guest, resp *entities.RSVPResponse) (*RecordResult, error) {
	key := guest.Key()
	for attempt := 0; attempt < w.cfg.MaxWriteRetries; attempt++ {
		if attempt > 0 {
			w.metrics.RecordRetry()
			w.sleep(w.cfg.RetryBaseDelay * time.Duration(1<<uint(attempt-1)))
			fresh, err := w.Load(ctx, guest.EventID, guest.Email)
			if err != nil {
				return nil, err
			}
			guest = fresh
		}

		if !guest.Supersedes(resp) {
			return &RecordResult{
				ResponseID:    resp.ResponseID,
				CurrentStatus: guest.RSVPStatus,
				PartySize:     resp.PartySize,
				Guest:         guest,
				Superseded:    true,
			}, nil
		}

		expected := guest.Version
		next := *guest
		next.ApplyResponse(resp, w.clock.Now())
		item, err := w.store.UpdateItem(ctx, key, next.CurrentStatePatch(), &expected)
		switch {
		case err == nil:
			var stored entities.Guest
			if err := entities.FromItem(item, &stored); err != nil {
				next.Version = expected + 1
				stored = next
			}
			return &RecordResult{
				ResponseID:    resp.ResponseID,
				CurrentStatus: stored.RSVPStatus,
				PartySize:     resp.PartySize,
				Guest:         &stored,
			}, nil

		case pkgerrors.IsVersionMismatch(err):
			w.logger.Debug("Guest version changed, retrying",
				zap.String("email", guest.Email),
				zap.Int("attempt", attempt+1),
			)
			continue

		case pkgerrors.IsTimeout(err):
			fresh, readErr := w.Load(ctx, guest.EventID, guest.Email)
			if readErr != nil {
				return nil, pkgerrors.Wrap(err, "guest update outcome unknown")
			}
			if fresh.LastResponseID == resp.ResponseID {
				return &RecordResult{
					ResponseID:    resp.ResponseID,
					CurrentStatus: fresh.RSVPStatus,
					PartySize:     resp.PartySize,
					Guest:         fresh,
				}, nil
			}
			guest = fresh
			continue

		default:
			return nil, pkgerrors.Wrap(err, "update guest")
		}
	}

	w.metrics.RecordConflict()
	w.logger.Warn("Guest update retries exhausted",
		zap.String("eventId", guest.EventID),
		zap.String("email", guest.Email),
		zap.String("rsvpId", resp.ResponseID),
	)
	return nil, pkgerrors.NewConflictError(
		"Your response is being updated from another device right now. Please wait a moment and submit again.",
	).WithCode(pkgerrors.CodeRetryExhausted)
}

// LatestResponse returns the guest's most recent history record, or nil.
func LatestResponse(ctx context.Context, store ports.Store, eventID, email string) (*entities.RSVPResponse, error) {
	items, err := store.Query(ctx, ports.QueryInput{
		PartitionKey:   keys.EventPK(eventID),
		SortKeyPrefix:  keys.RSVPPrefix(email),
		ConsistentRead: true,
	})
	if err != nil {
		return nil, err
	}
	var latest *entities.RSVPResponse
	for _, item := range items {
		var r entities.RSVPResponse
		if err := entities.FromItem(item, &r); err != nil {
			continue
		}
		if r.Newer(latest) {
			rr := r
			latest = &rr
		}
	}
	return latest, nil
}
