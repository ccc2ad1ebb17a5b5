package handlers

import (
	"net/http"

	"wedding-backend/application/commands"
	"wedding-backend/application/commands/bus"
	"wedding-backend/application/queries"
	querybus "wedding-backend/application/queries/bus"
	"wedding-backend/pkg/common"
	pkgerrors "wedding-backend/pkg/errors"

	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

// RSVPHandler serves the public guest endpoints
type RSVPHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewRSVPHandler creates a new RSVP handler
func NewRSVPHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errs *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *RSVPHandler {
	return &RSVPHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errs,
		logger:     logger,
	}
}

// ValidateInvitationRequest is the body of POST /api/validate-invitation.
// Older clients send the code as "code".
type ValidateInvitationRequest struct {
	Code           string `json:"code,omitempty"`
	InvitationCode string `json:"invitationCode,omitempty"`
}

// ValidateInvitation handles POST /api/validate-invitation
func (h *RSVPHandler) ValidateInvitation(w http.ResponseWriter, r *http.Request) {
	var req ValidateInvitationRequest
	if err := common.ParseJSONBody(w, r, &req, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, invalidBody(err))
		return
	}
	code := req.InvitationCode
	if code == "" {
		code = req.Code
	}

	result, err := h.queryBus.Ask(r.Context(), queries.ValidateInvitationQuery{InvitationCode: code})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// SubmitRSVP handles POST /api/submit-rsvp
func (h *RSVPHandler) SubmitRSVP(w http.ResponseWriter, r *http.Request) {
	var cmd commands.SubmitRSVPCommand
	if err := common.ParseJSONBody(w, r, &cmd, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, invalidBody(err))
		return
	}

	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if res, ok := result.(*commands.SubmitRSVPResult); ok {
		h.logger.Info("RSVP submitted",
			zap.String("rsvpId", res.RSVPID),
			zap.String("status", res.CurrentStatus),
			zap.String("requestId", common.ExtractRequestID(r)),
		)
	}
	common.RespondJSON(w, http.StatusOK, result)
}

func invalidBody(err error) error {
	return pkgerrors.NewValidationError("invalid request body: " + err.Error())
}
