package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"wedding-backend/application/ports"
	"wedding-backend/domain/config"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/core/valueobjects"
	pkgerrors "wedding-backend/pkg/errors"

	"go.uber.org/zap"
)

// GuestRow is one guest to import.
type GuestRow struct {
	Name             string
	Email            string
	Phone            string
	MaxGuests        int
	GroupID          string
	GroupName        string
	InvitationCode   string // generated when empty
	IsPrimaryContact bool
	Notes            string
}

// ImportReport summarizes an import run.
type ImportReport struct {
	Created    int               `json:"created"`
	Duplicates int               `json:"duplicates"`
	Failed     int               `json:"failed"`
	Codes      map[string]string `json:"codes"` // email -> invitation code
	Errors     []string          `json:"errors,omitempty"`
}

// CodeGenerator produces candidate invitation codes.
type CodeGenerator func() (string, error)

// Importer bulk-loads guests, groups and invitation codes.
type Importer struct {
	store    ports.Store
	clock    ports.Clock
	groups   *GroupCoordinator
	cfg      *config.DomainConfig
	logger   *zap.Logger
	generate CodeGenerator
}

// NewImporter creates an importer with random LLLDDD code generation.
func NewImporter(store ports.Store, clock ports.Clock, groups *GroupCoordinator, cfg *config.DomainConfig, logger *zap.Logger) *Importer {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &Importer{
		store:  store,
		clock:  clock,
		groups: groups,
		cfg:    cfg,
		logger: logger,
		generate: func() (string, error) {
			return valueobjects.GenerateInvitationCode(cfg.InvitationCodeLetters, cfg.InvitationCodeDigits)
		},
	}
}

// WithCodeGenerator replaces the code generator.
func (im *Importer) WithCodeGenerator(g CodeGenerator) *Importer {
	im.generate = g
	return im
}

// ParseCSV reads guest rows. The header names columns; name and email are
// required, the rest optional.
func ParseCSV(r io.Reader) ([]GuestRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, pkgerrors.NewValidationError("CSV input has no header row").WithCause(err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[normalizeColumn(h)] = i
	}
	for _, required := range []string{"name", "email"} {
		if _, ok := cols[required]; !ok {
			return nil, pkgerrors.NewValidationError("CSV header is missing the " + required + " column")
		}
	}

	var rows []GuestRow
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("CSV line %d: %v", line, err))
		}
		get := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		row := GuestRow{
			Name:           get("name"),
			Email:          get("email"),
			Phone:          get("phone"),
			GroupID:        get("groupid"),
			GroupName:      get("groupname"),
			InvitationCode: get("invitationcode"),
			Notes:          get("notes"),
		}
		if v := get("maxguests"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, pkgerrors.NewValidationError(fmt.Sprintf("CSV line %d: maxGuests %q is not a number", line, v))
			}
			row.MaxGuests = n
		}
		if v := get("isprimarycontact"); v != "" {
			row.IsPrimaryContact, _ = strconv.ParseBool(strings.ToLower(v))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func normalizeColumn(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(h)
}

// Import creates every row. Rows that fail are reported and skipped.
func (im *Importer) Import(ctx context.Context, eventID string, rows []GuestRow) (*ImportReport, error) {
	if _, err := valueobjects.ParseEventID(eventID); err != nil {
		return nil, err
	}
	report := &ImportReport{Codes: make(map[string]string)}
	touched := make(map[string]bool)

	for i, row := range rows {
		code, err := im.AddGuest(ctx, eventID, row)
		switch {
		case err == nil:
			report.Created++
			report.Codes[valueobjects.NormalizeEmail(row.Email)] = code
			if row.GroupID != "" {
				touched[row.GroupID] = true
			}
		case pkgerrors.HasCode(err, pkgerrors.CodeDuplicate):
			report.Duplicates++
		default:
			if pkgerrors.IsUnavailable(err) || pkgerrors.IsTimeout(err) {
				return report, err
			}
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("row %d (%s): %v", i+1, row.Email, err))
		}
	}

	for groupID := range touched {
		if _, err := im.groups.Recompute(ctx, eventID, groupID); err != nil {
			im.logger.Warn("Group recompute after import failed", zap.String("groupId", groupID), zap.Error(err))
		}
	}
	im.logger.Info("Import finished",
		zap.String("eventId", eventID),
		zap.Int("created", report.Created),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// AddGuest creates one guest with its invitation and group membership and
// returns the invitation code.
func (im *Importer) AddGuest(ctx context.Context, eventID string, row GuestRow) (string, error) {
	email, err := valueobjects.ParseEmail(row.Email)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(row.Name)
	if name == "" {
		return "", pkgerrors.NewValidationError("guest name is required")
	}
	maxGuests := row.MaxGuests
	if maxGuests == 0 {
		maxGuests = im.cfg.DefaultGuestAllowed
	}
	if maxGuests < 1 || maxGuests > im.cfg.MaxPartySize {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("maxGuests must be between 1 and %d", im.cfg.MaxPartySize))
	}

	now := im.clock.Now()
	code, err := im.claimCode(ctx, eventID, email, row.InvitationCode)
	if err != nil {
		return "", err
	}

	guest := entities.NewGuest(eventID, email, name, code, maxGuests, now)
	guest.Phone = row.Phone
	guest.GroupID = strings.TrimSpace(row.GroupID)
	guest.IsPrimaryContact = row.IsPrimaryContact
	guest.Notes = row.Notes
	item, err := entities.ToItem(guest)
	if err != nil {
		return "", pkgerrors.Wrap(err, "encode guest")
	}
	if err := im.store.PutItem(ctx, item, ports.PutOptions{IfNotExists: true}); err != nil {
		if pkgerrors.IsConflict(err) {
			im.deactivate(ctx, code)
			return "", pkgerrors.NewConflictError("guest " + email + " already exists").WithCode(pkgerrors.CodeDuplicate)
		}
		return "", pkgerrors.Wrap(err, "guest create")
	}

	if guest.GroupID != "" {
		if err := im.groups.Ensure(ctx, eventID, guest.GroupID, row.GroupName); err != nil {
			return code, err
		}
		if err := im.groups.SetMembership(ctx, eventID, guest.GroupID, email, true); err != nil {
			return code, err
		}
	}
	return code, nil
}

// claimCode creates the invitation row. A requested code must be free; a
// generated one is retried on collision.
func (im *Importer) claimCode(ctx context.Context, eventID, email, requested string) (string, error) {
	if requested != "" {
		code, err := valueobjects.ParseInvitationCode(requested)
		if err != nil {
			return "", err
		}
		if err := im.putInvitation(ctx, code, eventID, email); err != nil {
			if pkgerrors.IsConflict(err) {
				return "", pkgerrors.NewConflictError("invitation code " + code + " is already taken")
			}
			return "", err
		}
		return code, nil
	}

	for attempt := 0; attempt < im.cfg.CodeGenerationAttempts; attempt++ {
		code, err := im.generate()
		if err != nil {
			return "", pkgerrors.Wrap(err, "generate invitation code")
		}
		err = im.putInvitation(ctx, code, eventID, email)
		if err == nil {
			return code, nil
		}
		if !pkgerrors.IsConflict(err) {
			return "", err
		}
		im.logger.Debug("Invitation code collision, regenerating", zap.String("code", code))
	}
	return "", pkgerrors.NewConflictError("could not find a free invitation code")
}

func (im *Importer) putInvitation(ctx context.Context, code, eventID, email string) error {
	inv := entities.NewInvitation(code, eventID, email, im.cfg.DefaultInvitationMaxUses, im.clock.Now())
	item, err := entities.ToItem(inv)
	if err != nil {
		return pkgerrors.Wrap(err, "encode invitation")
	}
	return im.store.PutItem(ctx, item, ports.PutOptions{IfNotExists: true})
}

// deactivate retires an invitation created for a guest that turned out to
// exist already.
func (im *Importer) deactivate(ctx context.Context, code string) {
	patch := ports.Patch{entities.AttrInvitationActive: false, "UpdatedAt": im.clock.Now()}
	if _, err := im.store.UpdateItem(ctx, entities.NewInvitation(code, "", "", 0, im.clock.Now()).Key(), patch, nil); err != nil {
		im.logger.Warn("Could not deactivate orphaned invitation", zap.String("code", code), zap.Error(err))
	}
}
