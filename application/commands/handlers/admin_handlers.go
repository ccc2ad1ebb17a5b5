package handlers

import (
	"bytes"
	"context"

	"wedding-backend/application/commands"
	"wedding-backend/application/services"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/core/valueobjects"
)

// UpdateGuestHandler applies admin guest edits.
type UpdateGuestHandler struct {
	admin *services.GuestAdmin
}

// NewUpdateGuestHandler creates the handler.
func NewUpdateGuestHandler(admin *services.GuestAdmin) *UpdateGuestHandler {
	return &UpdateGuestHandler{admin: admin}
}

// Handle executes the update guest command
func (h *UpdateGuestHandler) Handle(ctx context.Context, cmd commands.UpdateGuestCommand) (*entities.Guest, error) {
	edit := services.GuestEdit{
		EventID:          cmd.EventID,
		Email:            cmd.Email,
		Name:             cmd.Name,
		Phone:            cmd.Phone,
		MaxGuests:        cmd.MaxGuests,
		TableAssignment:  cmd.TableAssignment,
		Notes:            cmd.Notes,
		IsPrimaryContact: cmd.IsPrimaryContact,
		GroupID:          cmd.GroupID,
		ExpectedVersion:  cmd.ExpectedVersion,
	}
	if cmd.RSVPStatus != nil {
		status, err := valueobjects.ParseRSVPStatus(*cmd.RSVPStatus)
		if err != nil {
			return nil, err
		}
		edit.Status = &status
	}
	return h.admin.Update(ctx, edit)
}

// UpsertEventHandler creates or edits events.
type UpsertEventHandler struct {
	events *services.EventService
}

// NewUpsertEventHandler creates the handler.
func NewUpsertEventHandler(events *services.EventService) *UpsertEventHandler {
	return &UpsertEventHandler{events: events}
}

// Handle executes the upsert event command
func (h *UpsertEventHandler) Handle(ctx context.Context, cmd commands.UpsertEventCommand) (*entities.Event, error) {
	return h.events.Upsert(ctx, cmd.EventID, services.EventDetails{
		Name:            cmd.Name,
		Date:            cmd.Date,
		StartTime:       cmd.StartTime,
		Venue:           cmd.Venue,
		Address:         cmd.Address,
		Capacity:        cmd.Capacity,
		RSVPDeadline:    cmd.RSVPDeadline,
		AllowedPlusOnes: cmd.AllowedPlusOnes,
		DietaryOptions:  cmd.DietaryOptions,
	}, cmd.ExpectedVersion)
}

// RecomputeGroupHandler re-derives group aggregates.
type RecomputeGroupHandler struct {
	groups *services.GroupCoordinator
}

// NewRecomputeGroupHandler creates the handler.
func NewRecomputeGroupHandler(groups *services.GroupCoordinator) *RecomputeGroupHandler {
	return &RecomputeGroupHandler{groups: groups}
}

// Handle executes the recompute group command
func (h *RecomputeGroupHandler) Handle(ctx context.Context, cmd commands.RecomputeGroupCommand) (*entities.GuestGroup, error) {
	return h.groups.Recompute(ctx, cmd.EventID, cmd.GroupID)
}

// RefreshEventCountsHandler rewrites cached event counts.
type RefreshEventCountsHandler struct {
	events *services.EventService
}

// NewRefreshEventCountsHandler creates the handler.
func NewRefreshEventCountsHandler(events *services.EventService) *RefreshEventCountsHandler {
	return &RefreshEventCountsHandler{events: events}
}

// Handle executes the refresh command
func (h *RefreshEventCountsHandler) Handle(ctx context.Context, cmd commands.RefreshEventCountsCommand) error {
	return h.events.RefreshCounts(ctx, cmd.EventID)
}

// ImportGuestsHandler loads guests from CSV.
type ImportGuestsHandler struct {
	importer *services.Importer
}

// NewImportGuestsHandler creates the handler.
func NewImportGuestsHandler(importer *services.Importer) *ImportGuestsHandler {
	return &ImportGuestsHandler{importer: importer}
}

// Handle executes the import command
func (h *ImportGuestsHandler) Handle(ctx context.Context, cmd commands.ImportGuestsCommand) (*services.ImportReport, error) {
	rows, err := services.ParseCSV(bytes.NewReader(cmd.CSV))
	if err != nil {
		return nil, err
	}
	return h.importer.Import(ctx, cmd.EventID, rows)
}
