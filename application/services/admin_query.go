package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"wedding-backend/application/ports"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/core/valueobjects"
	"wedding-backend/domain/keys"
	pkgerrors "wedding-backend/pkg/errors"

	"go.uber.org/zap"
)

// Stats is the RSVP summary of one event.
type Stats struct {
	EventID             string         `json:"eventId"`
	TotalInvited        int            `json:"totalInvited"`
	TotalResponded      int            `json:"totalResponded"`
	TotalAttending      int            `json:"totalAttending"`
	TotalNotAttending   int            `json:"totalNotAttending"`
	TotalMaybe          int            `json:"totalMaybe"`
	TotalPending        int            `json:"totalPending"`
	TotalGuests         int            `json:"totalGuests"`
	ResponseRate        float64        `json:"responseRate"`
	AveragePartySize    float64        `json:"averagePartySize"`
	DietaryRestrictions map[string]int `json:"dietaryRestrictions"`
	SkippedRecords      int            `json:"skippedRecords,omitempty"`
	GeneratedAt         time.Time      `json:"generatedAt"`
}

// Counts converts the summary into event count cache fields.
func (s *Stats) Counts(at time.Time) entities.EventCounts {
	refreshed := at.UTC()
	return entities.EventCounts{
		Invited:     s.TotalInvited,
		Confirmed:   s.TotalAttending,
		Declined:    s.TotalNotAttending,
		Maybe:       s.TotalMaybe,
		Pending:     s.TotalPending,
		Headcount:   s.TotalGuests,
		RefreshedAt: &refreshed,
	}
}

// GuestFilter selects and orders guests for the dashboard.
type GuestFilter struct {
	EventID string
	Status  valueobjects.RSVPStatus // empty means all
	GroupID string
	Search  string // substring of name or email
	SortBy  string // name, email, status, updatedAt
	Desc    bool
	Offset  int
	Limit   int
}

// GuestPage is one page of a guest listing.
type GuestPage struct {
	Guests []*entities.Guest `json:"guests"`
	Total  int               `json:"total"`
	Offset int               `json:"offset"`
	Limit  int               `json:"limit"`
}

// HistoryRange bounds a history query. Zero times leave that side open.
type HistoryRange struct {
	Since time.Time
	Until time.Time
	Limit int
}

// AdminQueryService answers dashboard queries. It never writes.
type AdminQueryService struct {
	store  ports.Store
	clock  ports.Clock
	logger *zap.Logger
}

// NewAdminQueryService creates the service.
func NewAdminQueryService(store ports.Store, clock ports.Clock, logger *zap.Logger) *AdminQueryService {
	return &AdminQueryService{store: store, clock: clock, logger: logger}
}

// Stats aggregates guest rows and their latest responses. A guest's latest
// history record takes precedence over its row; malformed records are
// logged and skipped.
func (s *AdminQueryService) Stats(ctx context.Context, eventID string) (*Stats, error) {
	guests, skipped, err := s.guests(ctx, eventID)
	if err != nil {
		return nil, err
	}
	latest, skippedHistory, err := s.latestResponses(ctx, eventID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		EventID:             eventID,
		DietaryRestrictions: make(map[string]int),
		SkippedRecords:      skipped + skippedHistory,
		GeneratedAt:         s.clock.Now(),
	}
	attendingParties := 0
	for _, g := range guests {
		status := g.RSVPStatus
		partySize := g.PartySize
		restrictions := g.DietaryRestrictions
		if r, ok := latest[g.Email]; ok && g.Supersedes(r) {
			status = r.Status
			partySize = r.PartySize
			restrictions = r.PartyDietaryRestrictions()
		}

		stats.TotalInvited++
		if status.Responded() {
			stats.TotalResponded++
		}
		switch status {
		case valueobjects.StatusAttending:
			stats.TotalAttending++
			stats.TotalGuests += partySize
			attendingParties += partySize
			for _, d := range restrictions {
				stats.DietaryRestrictions[d]++
			}
		case valueobjects.StatusNotAttending:
			stats.TotalNotAttending++
		case valueobjects.StatusMaybe:
			stats.TotalMaybe++
		default:
			stats.TotalPending++
		}
	}
	if stats.TotalInvited > 0 {
		stats.ResponseRate = round2(float64(stats.TotalResponded) * 100 / float64(stats.TotalInvited))
	}
	if stats.TotalAttending > 0 {
		stats.AveragePartySize = round2(float64(attendingParties) / float64(stats.TotalAttending))
	}
	return stats, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// guests reads every guest row of the event from the primary partition.
func (s *AdminQueryService) guests(ctx context.Context, eventID string) ([]*entities.Guest, int, error) {
	items, err := s.store.Query(ctx, ports.QueryInput{
		PartitionKey:  keys.EventPK(eventID),
		SortKeyPrefix: keys.GuestPrefix(),
	})
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "guest query")
	}
	return s.decodeGuests(items)
}

func (s *AdminQueryService) decodeGuests(items []ports.Item) ([]*entities.Guest, int, error) {
	guests := make([]*entities.Guest, 0, len(items))
	skipped := 0
	for _, item := range items {
		var g entities.Guest
		if err := entities.FromItem(item, &g); err != nil || g.Email == "" {
			skipped++
			s.logger.Warn("Skipping malformed guest record",
				zap.String("pk", entities.StringAttr(item, keys.AttrPK)),
				zap.String("sk", entities.StringAttr(item, keys.AttrSK)),
				zap.Error(err),
			)
			continue
		}
		guests = append(guests, &g)
	}
	return guests, skipped, nil
}

// latestResponses folds the event's history into the latest record per guest.
func (s *AdminQueryService) latestResponses(ctx context.Context, eventID string) (map[string]*entities.RSVPResponse, int, error) {
	items, err := s.store.Query(ctx, ports.QueryInput{
		PartitionKey:  keys.EventPK(eventID),
		SortKeyPrefix: keys.RSVPAllPrefix(),
	})
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "history query")
	}
	latest := make(map[string]*entities.RSVPResponse)
	skipped := 0
	for _, item := range items {
		var r entities.RSVPResponse
		if err := entities.FromItem(item, &r); err != nil || r.Email == "" || !r.Status.Valid() {
			skipped++
			s.logger.Warn("Skipping malformed RSVP record",
				zap.String("sk", entities.StringAttr(item, keys.AttrSK)),
				zap.Error(err),
			)
			continue
		}
		if _, err := r.ParseSubmittedAt(); err != nil {
			s.logger.Warn("RSVP record has an unreadable timestamp, treating it as oldest",
				zap.String("email", r.Email),
				zap.String("rsvpId", r.ResponseID),
				zap.String("submittedAt", r.SubmittedAt),
			)
		}
		email := valueobjects.NormalizeEmail(r.Email)
		if r.Newer(latest[email]) {
			rr := r
			latest[email] = &rr
		}
	}
	return latest, skipped, nil
}

// ListGuests returns a filtered, sorted page of guests. A status filter
// reads the status index, which may briefly lag behind writes.
func (s *AdminQueryService) ListGuests(ctx context.Context, f GuestFilter) (*GuestPage, error) {
	var (
		guests []*entities.Guest
		err    error
	)
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, pkgerrors.NewValidationError("unknown RSVP status filter")
		}
		var items []ports.Item
		items, err = s.store.Query(ctx, ports.QueryInput{
			Index:        &keys.StatusIndex,
			PartitionKey: keys.StatusBucket(f.EventID, f.Status),
		})
		if err != nil {
			return nil, pkgerrors.Wrap(err, "status query")
		}
		guests, _, err = s.decodeGuests(items)
	} else {
		guests, _, err = s.guests(ctx, f.EventID)
	}
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(f.Search))
	filtered := guests[:0]
	for _, g := range guests {
		if f.GroupID != "" && g.GroupID != f.GroupID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(g.Name), search) && !strings.Contains(g.Email, search) {
			continue
		}
		filtered = append(filtered, g)
	}

	less, err := guestOrder(f.SortBy)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		if f.Desc {
			return less(filtered[j], filtered[i])
		}
		return less(filtered[i], filtered[j])
	})

	page := &GuestPage{Total: len(filtered), Offset: f.Offset, Limit: f.Limit}
	start := f.Offset
	if start < 0 {
		start = 0
	}
	if start > len(filtered) {
		start = len(filtered)
	}
	end := len(filtered)
	if f.Limit > 0 && f.Limit < end-start {
		end = start + f.Limit
	}
	page.Guests = filtered[start:end]
	return page, nil
}

func guestOrder(field string) (func(a, b *entities.Guest) bool, error) {
	switch field {
	case "", "name":
		return func(a, b *entities.Guest) bool {
			an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if an == bn {
				return a.Email < b.Email
			}
			return an < bn
		}, nil
	case "email":
		return func(a, b *entities.Guest) bool { return a.Email < b.Email }, nil
	case "status":
		return func(a, b *entities.Guest) bool {
			if a.RSVPStatus == b.RSVPStatus {
				return a.Email < b.Email
			}
			return a.RSVPStatus < b.RSVPStatus
		}, nil
	case "updatedAt":
		return func(a, b *entities.Guest) bool { return a.UpdatedAt.Before(b.UpdatedAt) }, nil
	}
	return nil, pkgerrors.NewValidationError("unsupported sort field " + field)
}

// GuestHistory returns a guest's responses, most recent first.
func (s *AdminQueryService) GuestHistory(ctx context.Context, eventID, email string, r HistoryRange) ([]*entities.RSVPResponse, error) {
	in := ports.QueryInput{
		PartitionKey:   keys.EventPK(eventID),
		Descending:     true,
		Limit:          r.Limit,
		ConsistentRead: true,
	}
	if r.Since.IsZero() && r.Until.IsZero() {
		in.SortKeyPrefix = keys.RSVPPrefix(email)
	} else {
		lo, hi := keys.RSVPRangeBounds(email, r.Since, r.Until)
		in.SortKeyBetween = &[2]string{lo, hi}
	}
	items, err := s.store.Query(ctx, in)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "history query")
	}
	out := make([]*entities.RSVPResponse, 0, len(items))
	for _, item := range items {
		var resp entities.RSVPResponse
		if err := entities.FromItem(item, &resp); err != nil {
			s.logger.Warn("Skipping malformed RSVP record", zap.String("email", email), zap.Error(err))
			continue
		}
		out = append(out, &resp)
	}
	return out, nil
}

// RecentResponses lists responded guests through the admin date index,
// newest first. A non-zero day restricts the listing to that day.
func (s *AdminQueryService) RecentResponses(ctx context.Context, eventID string, day time.Time, limit int) ([]*entities.Guest, error) {
	items, err := s.store.Query(ctx, ports.QueryInput{
		Index:         &keys.AdminDateIndex,
		PartitionKey:  keys.AdminBucket(eventID),
		SortKeyPrefix: keys.AdminDatePrefix(day),
		Descending:    true,
		Limit:         limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "recent responses query")
	}
	guests, _, err := s.decodeGuests(items)
	return guests, err
}
