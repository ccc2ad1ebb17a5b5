package handlers

import (
	"context"

	"wedding-backend/application/commands"
	"wedding-backend/application/ports"
	"wedding-backend/application/services"
	"wedding-backend/domain/config"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/core/valueobjects"
	"wedding-backend/domain/keys"
	pkgerrors "wedding-backend/pkg/errors"
	"wedding-backend/pkg/observability"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmitRSVPHandler redeems an invitation code and records the response.
type SubmitRSVPHandler struct {
	store     ports.Store
	clock     ports.Clock
	validator *services.InvitationValidator
	writer    *services.RSVPWriter
	events    *services.EventService
	cfg       *config.DomainConfig
	tracer    *observability.Tracer
	logger    *zap.Logger
}

// NewSubmitRSVPHandler creates the handler.
func NewSubmitRSVPHandler(
	store ports.Store,
	clock ports.Clock,
	validator *services.InvitationValidator,
	writer *services.RSVPWriter,
	events *services.EventService,
	cfg *config.DomainConfig,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *SubmitRSVPHandler {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &SubmitRSVPHandler{
		store:     store,
		clock:     clock,
		validator: validator,
		writer:    writer,
		events:    events,
		cfg:       cfg,
		tracer:    tracer,
		logger:    logger,
	}
}

// Handle runs the submission: resolve the code, check the party, consume a
// use of the invitation, then record the response. Nothing is consumed for
// a submission that fails validation, and a use whose response could not be
// recorded is given back.
func (h *SubmitRSVPHandler) Handle(ctx context.Context, cmd commands.SubmitRSVPCommand) (*commands.SubmitRSVPResult, error) {
	status, err := valueobjects.ParseRSVPStatus(cmd.Status)
	if err != nil {
		return nil, err
	}

	res, err := h.validator.Resolve(ctx, cmd.InvitationCode)
	if err != nil {
		return nil, err
	}
	replay := false
	if !res.Usable() {
		// A resubmission whose token already holds a use goes through even
		// when that use was the last one.
		replay, err = h.alreadyRedeemed(ctx, res, cmd.SubmissionID)
		if err != nil {
			return nil, err
		}
		if !replay {
			return nil, InvitationError(res.State)
		}
	}
	h.tracer.AddAnnotation(ctx, "eventId", res.Invitation.EventID)

	if h.cfg.EnforceRSVPDeadline && h.events != nil {
		if err := h.events.CheckDeadline(ctx, res.Invitation.EventID); err != nil {
			return nil, err
		}
	}

	in := services.RecordInput{
		EventID:             res.Invitation.EventID,
		Email:               res.Guest.Email,
		Status:              status,
		Attendees:           toAttendees(cmd.Attendees),
		DietaryRestrictions: cmd.DietaryRestrictions,
		DietaryNotes:        cmd.DietaryNotes,
		SpecialRequests:     cmd.SpecialRequests,
		InvitationCode:      res.Code,
		Channel:             entities.ChannelWeb,
		ClientMetadata:      cmd.ClientMetadata,
	}
	if _, err := h.writer.PrepareParty(res.Guest, in); err != nil {
		return nil, err
	}

	token := cmd.SubmissionID
	if token == "" {
		token = uuid.NewString()
	}
	consumed := false
	if !replay {
		consumed, err = h.redeem(ctx, res.Invitation, token)
		if err != nil {
			return nil, err
		}
	}

	recorded, err := h.writer.Record(ctx, in)
	if err != nil {
		if consumed {
			h.release(ctx, res.Invitation, token)
		}
		return nil, err
	}
	return &commands.SubmitRSVPResult{
		Success:       true,
		RSVPID:        recorded.ResponseID,
		CurrentStatus: string(recorded.CurrentStatus),
		PartySize:     recorded.PartySize,
	}, nil
}

// alreadyRedeemed reports whether token holds a use of the resolved
// invitation. The index copy may lag, so a miss is confirmed by key.
func (h *SubmitRSVPHandler) alreadyRedeemed(ctx context.Context, res *services.Resolution, token string) (bool, error) {
	if token == "" || res.Invitation == nil || res.Guest == nil {
		return false, nil
	}
	if res.Invitation.Redeemed(token) {
		return true, nil
	}
	current, err := h.reloadInvitation(ctx, res.Invitation.Code)
	if err != nil {
		return false, err
	}
	return current.Redeemed(token), nil
}

func counterFor(token string) ports.CounterIncrement {
	return ports.CounterIncrement{
		Counter:     entities.AttrInvitationUses,
		Limit:       entities.AttrInvitationMaxUses,
		Token:       token,
		TokenSet:    entities.AttrInvitationRedeemedBy,
		RequireTrue: []string{entities.AttrInvitationActive},
		WindowFrom:  entities.AttrInvitationValidFrom,
		WindowUntil: entities.AttrInvitationValidUntil,
	}
}

// redeem consumes one use of the invitation for token and reports whether
// this call consumed it. A token that was already recorded consumes nothing.
func (h *SubmitRSVPHandler) redeem(ctx context.Context, inv *entities.Invitation, token string) (bool, error) {
	incr := counterFor(token)
	incr.Now = keys.FormatTimestamp(h.clock.Now())
	out, err := h.store.IncrementCounter(ctx, inv.Key(), incr)
	switch {
	case err == nil:
		if out.Replayed {
			h.logger.Debug("Invitation token already redeemed", zap.String("code", inv.Code))
		}
		return out.Applied, nil

	case pkgerrors.IsConflict(err):
		// Lost the race for the last use, or the code changed since it was resolved.
		current, readErr := h.reloadInvitation(ctx, inv.Code)
		if readErr != nil {
			return false, readErr
		}
		if current.Redeemed(token) {
			return false, nil
		}
		state := current.State(h.clock.Now())
		if state == entities.InvitationUsable {
			state = entities.InvitationExhausted
		}
		return false, InvitationError(string(state))

	case pkgerrors.IsTimeout(err):
		current, readErr := h.reloadInvitation(ctx, inv.Code)
		if readErr == nil && current.Redeemed(token) {
			return true, nil
		}
		return false, err

	default:
		return false, err
	}
}

// release gives back the use held by token after its response failed to
// record. A failed release is logged; the token then stays redeemed and a
// resubmission with it is let through as a replay.
func (h *SubmitRSVPHandler) release(ctx context.Context, inv *entities.Invitation, token string) {
	released, err := h.store.ReleaseCounter(ctx, inv.Key(), counterFor(token))
	if err != nil {
		h.logger.Error("Failed to release invitation use",
			zap.String("code", inv.Code),
			zap.Error(err),
		)
		return
	}
	if released {
		h.logger.Info("Released invitation use after failed submission", zap.String("code", inv.Code))
	}
}

func (h *SubmitRSVPHandler) reloadInvitation(ctx context.Context, code string) (*entities.Invitation, error) {
	item, err := h.store.GetItem(ctx, keys.InvitationKey(code))
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, InvitationError(services.ReasonNotFound)
		}
		return nil, pkgerrors.Wrap(err, "invitation read")
	}
	var inv entities.Invitation
	if err := entities.FromItem(item, &inv); err != nil {
		return nil, pkgerrors.Wrap(err, "decode invitation")
	}
	return &inv, nil
}

// InvitationError maps an unusable invitation state to a client error with
// an actionable message.
func InvitationError(state string) error {
	var appErr *pkgerrors.AppError
	switch state {
	case services.ReasonNotFound:
		appErr = pkgerrors.NewNotFoundError("invitation").WithCode(pkgerrors.CodeInvitationNotFound)
	case services.ReasonInvalidFormat:
		appErr = pkgerrors.NewValidationError("").WithCode(pkgerrors.CodeInvitationNotFound)
	case string(entities.InvitationExhausted):
		appErr = pkgerrors.NewConflictError("").WithCode(pkgerrors.CodeInvitationExhausted)
	case string(entities.InvitationInactive):
		appErr = pkgerrors.NewValidationError("").WithCode(pkgerrors.CodeInvitationInactive)
	case string(entities.InvitationNotYet):
		appErr = pkgerrors.NewValidationError("").WithCode(pkgerrors.CodeInvitationNotYet)
	case string(entities.InvitationExpired):
		appErr = pkgerrors.NewValidationError("").WithCode(pkgerrors.CodeInvitationExpired)
	default:
		return pkgerrors.NewInternalError("unexpected invitation state " + state)
	}
	appErr.Message = services.InvitationMessage(state)
	return appErr
}

func toAttendees(in []commands.AttendeeInput) []entities.Attendee {
	out := make([]entities.Attendee, 0, len(in))
	for _, a := range in {
		out = append(out, entities.Attendee{Name: a.Name, DietaryRestrictions: a.DietaryRestrictions})
	}
	return out
}
