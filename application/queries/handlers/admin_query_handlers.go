package handlers

import (
	"context"

	"wedding-backend/application/queries"
	"wedding-backend/application/services"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/core/valueobjects"
	"wedding-backend/pkg/observability"

	"go.uber.org/zap"
)

// ValidateInvitationHandler answers the public invitation check.
type ValidateInvitationHandler struct {
	validator *services.InvitationValidator
}

// NewValidateInvitationHandler creates the handler.
func NewValidateInvitationHandler(validator *services.InvitationValidator) *ValidateInvitationHandler {
	return &ValidateInvitationHandler{validator: validator}
}

// Handle executes the query
func (h *ValidateInvitationHandler) Handle(ctx context.Context, q queries.ValidateInvitationQuery) (*services.ValidationResult, error) {
	return h.validator.Validate(ctx, q.InvitationCode)
}

// AdminQueryHandler serves the dashboard reads.
type AdminQueryHandler struct {
	admin  *services.AdminQueryService
	events *services.EventService
	tracer *observability.Tracer
	logger *zap.Logger
}

// NewAdminQueryHandler creates the handler.
func NewAdminQueryHandler(
	admin *services.AdminQueryService,
	events *services.EventService,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *AdminQueryHandler {
	return &AdminQueryHandler{
		admin:  admin,
		events: events,
		tracer: tracer,
		logger: logger,
	}
}

// Stats computes the dashboard statistics.
func (h *AdminQueryHandler) Stats(ctx context.Context, q queries.GetStatsQuery) (*services.Stats, error) {
	h.tracer.AddAnnotation(ctx, "eventId", q.EventID)
	stats, err := h.admin.Stats(ctx, q.EventID)
	if err != nil {
		return nil, err
	}
	if stats.SkippedRecords > 0 {
		h.logger.Warn("Stats skipped malformed records",
			zap.String("eventId", q.EventID),
			zap.Int("skipped", stats.SkippedRecords))
	}
	return stats, nil
}

// ListGuests pages through the guest list.
func (h *AdminQueryHandler) ListGuests(ctx context.Context, q queries.ListGuestsQuery) (*services.GuestPage, error) {
	f := services.GuestFilter{
		EventID: q.EventID,
		GroupID: q.GroupID,
		Search:  q.Search,
		SortBy:  q.SortBy,
		Desc:    q.Desc,
		Offset:  q.Offset,
		Limit:   q.Limit,
	}
	if q.Status != "" {
		status, err := valueobjects.ParseRSVPStatus(q.Status)
		if err != nil {
			return nil, err
		}
		f.Status = status
	}
	return h.admin.ListGuests(ctx, f)
}

// GuestHistory lists one guest's responses, newest first.
func (h *AdminQueryHandler) GuestHistory(ctx context.Context, q queries.GetGuestHistoryQuery) ([]*entities.RSVPResponse, error) {
	return h.admin.GuestHistory(ctx, q.EventID, q.Email, services.HistoryRange{
		Since: q.Since,
		Until: q.Until,
		Limit: q.Limit,
	})
}

// Event loads an event with derived counts.
func (h *AdminQueryHandler) Event(ctx context.Context, q queries.GetEventQuery) (*entities.Event, error) {
	return h.events.Get(ctx, q.EventID)
}

// RecentResponses lists the guests who responded on q.Day.
func (h *AdminQueryHandler) RecentResponses(ctx context.Context, q queries.RecentResponsesQuery) ([]*entities.Guest, error) {
	return h.admin.RecentResponses(ctx, q.EventID, q.Day, q.Limit)
}
