package handlers

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"wedding-backend/application/commands"
	"wedding-backend/application/commands/bus"
	"wedding-backend/application/queries"
	querybus "wedding-backend/application/queries/bus"
	"wedding-backend/application/services"
	"wedding-backend/pkg/common"
	pkgerrors "wedding-backend/pkg/errors"
	"wedding-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxImportBytes = 5 << 20

// AdminHandler serves the dashboard endpoints. Requests that name no event
// act on the configured default event.
type AdminHandler struct {
	commandBus     *bus.CommandBus
	queryBus       *querybus.QueryBus
	defaultEventID string
	errors         *pkgerrors.ErrorHandler
	logger         *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	defaultEventID string,
	errs *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		commandBus:     commandBus,
		queryBus:       queryBus,
		defaultEventID: defaultEventID,
		errors:         errs,
		logger:         logger,
	}
}

func (h *AdminHandler) eventID(r *http.Request) string {
	if id := r.URL.Query().Get("eventId"); id != "" {
		return id
	}
	return h.defaultEventID
}

// GetStats handles GET /api/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.GetStatsQuery{EventID: h.eventID(r)})
}

// ListGuests handles GET /api/admin/guests
func (h *AdminHandler) ListGuests(w http.ResponseWriter, r *http.Request) {
	params := common.ExtractPaginationParams(r)
	q := r.URL.Query()

	result, err := h.queryBus.Ask(r.Context(), queries.ListGuestsQuery{
		EventID: h.eventID(r),
		Status:  q.Get("status"),
		GroupID: q.Get("groupId"),
		Search:  q.Get("search"),
		SortBy:  params.Sort,
		Desc:    params.Descending(),
		Offset:  params.CalculateOffset(),
		Limit:   params.PageSize,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	page := result.(*services.GuestPage)
	common.RespondJSON(w, http.StatusOK, common.NewPaginatedResult(page.Guests, params.Page, params.PageSize, page.Total))
}

// UpdateGuest handles PUT /api/admin/guests
func (h *AdminHandler) UpdateGuest(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpdateGuestCommand
	if err := common.ParseJSONBody(w, r, &cmd, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, invalidBody(err))
		return
	}
	if cmd.EventID == "" {
		cmd.EventID = h.eventID(r)
	}
	h.send(w, r, cmd)
}

// GetGuestHistory handles GET /api/admin/guests/{email}/history
func (h *AdminHandler) GetGuestHistory(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid email in path"))
		return
	}
	q := r.URL.Query()
	since, err := utils.ParseOptionalTime(q.Get("since"))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("since must be RFC3339 or yyyy-mm-dd"))
		return
	}
	until, err := utils.ParseOptionalTime(q.Get("until"))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("until must be RFC3339 or yyyy-mm-dd"))
		return
	}
	limit, err := optionalInt(q.Get("limit"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetGuestHistoryQuery{
		EventID: h.eventID(r),
		Email:   email,
		Since:   since,
		Until:   until,
		Limit:   limit,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"email":     email,
		"responses": result,
	})
}

// ImportGuests handles POST /api/admin/guests/import with a CSV body
func (h *AdminHandler) ImportGuests(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		h.errors.Handle(w, r, invalidBody(err))
		return
	}
	h.send(w, r, commands.ImportGuestsCommand{EventID: h.eventID(r), CSV: body})
}

// GetEvent handles GET /api/admin/events/{eventId}
func (h *AdminHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.GetEventQuery{EventID: chi.URLParam(r, "eventId")})
}

// PutEvent handles PUT /api/admin/events/{eventId}
func (h *AdminHandler) PutEvent(w http.ResponseWriter, r *http.Request) {
	var cmd commands.UpsertEventCommand
	if err := common.ParseJSONBody(w, r, &cmd, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, invalidBody(err))
		return
	}
	cmd.EventID = chi.URLParam(r, "eventId")
	h.send(w, r, cmd)
}

// RefreshEventCounts handles POST /api/admin/events/{eventId}/refresh
func (h *AdminHandler) RefreshEventCounts(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if _, err := h.commandBus.Send(r.Context(), commands.RefreshEventCountsCommand{EventID: eventID}); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.ask(w, r, queries.GetEventQuery{EventID: eventID})
}

// RecomputeGroup handles POST /api/admin/groups/{groupId}/recompute
func (h *AdminHandler) RecomputeGroup(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, commands.RecomputeGroupCommand{
		EventID: h.eventID(r),
		GroupID: chi.URLParam(r, "groupId"),
	})
}

// RecentResponses handles GET /api/admin/responses?day=yyyy-mm-dd
func (h *AdminHandler) RecentResponses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	day, err := utils.ParseOptionalTime(q.Get("day"))
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("day must be yyyy-mm-dd"))
		return
	}
	limit, err := optionalInt(q.Get("limit"))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.ask(w, r, queries.RecentResponsesQuery{EventID: h.eventID(r), Day: day, Limit: limit})
}

func (h *AdminHandler) ask(w http.ResponseWriter, r *http.Request, q querybus.Query) {
	result, err := h.queryBus.Ask(r.Context(), q)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

func (h *AdminHandler) send(w http.ResponseWriter, r *http.Request, cmd bus.Command) {
	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if subject, ok := common.GetSubject(r.Context()); ok {
		h.logger.Info("Admin command applied",
			zap.String("command", bus.CommandName(cmd)),
			zap.String("subject", subject),
		)
	}
	common.RespondJSON(w, http.StatusOK, result)
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, pkgerrors.NewValidationError("limit must be a non-negative integer")
	}
	return n, nil
}
