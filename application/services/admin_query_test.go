package services

import (
	"context"
	"math"
	"testing"
	"time"

	"wedding-backend/application/ports"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/core/valueobjects"
	"wedding-backend/domain/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats_Scenario(t *testing.T) {
	f := newFixture()
	w := f.writer(nil)
	ctx := context.Background()
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		f.seedGuest(t, email, email, "", 2)
	}

	a := attending("a@example.com", "Plus A")
	a.DietaryRestrictions = []string{"vegan"}
	_, err := w.Record(ctx, a)
	require.NoError(t, err)
	_, err = w.Record(ctx, attending("b@example.com", "Plus B"))
	require.NoError(t, err)
	c := attending("c@example.com")
	c.Status = valueobjects.StatusNotAttending
	_, err = w.Record(ctx, c)
	require.NoError(t, err)

	stats, err := NewAdminQueryService(f.store, f.clock, f.logger).Stats(ctx, "wedding")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalInvited)
	assert.Equal(t, 3, stats.TotalResponded)
	assert.Equal(t, 2, stats.TotalAttending)
	assert.Equal(t, 1, stats.TotalNotAttending)
	assert.Equal(t, 0, stats.TotalPending)
	assert.Equal(t, 4, stats.TotalGuests)
	assert.Equal(t, 100.0, stats.ResponseRate)
	assert.Equal(t, 2.0, stats.AveragePartySize)
	assert.Equal(t, map[string]int{"vegan": 1}, stats.DietaryRestrictions)
}

func TestStats_PendingAndEmpty(t *testing.T) {
	f := newFixture()
	svc := NewAdminQueryService(f.store, f.clock, f.logger)

	stats, err := svc.Stats(context.Background(), "wedding")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalInvited)
	assert.Zero(t, stats.ResponseRate)

	f.seedGuest(t, "a@example.com", "A", "", 2)
	f.seedGuest(t, "b@example.com", "B", "", 2)
	_, err = f.writer(nil).Record(context.Background(), attending("a@example.com"))
	require.NoError(t, err)

	stats, err = svc.Stats(context.Background(), "wedding")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalPending)
	assert.Equal(t, 50.0, stats.ResponseRate)
	assert.Equal(t, 1.0, stats.AveragePartySize)
}

func TestStats_MalformedHistoryDoesNotAbort(t *testing.T) {
	f := newFixture()
	f.seedGuest(t, "a@example.com", "A", "", 2)
	_, err := f.writer(nil).Record(context.Background(), attending("a@example.com"))
	require.NoError(t, err)

	// Unreadable timestamp: it must never win the latest comparison.
	bad := entities.NewRSVPResponse("wedding", "a@example.com", "zzz", valueobjects.StatusNotAttending, baseTime)
	bad.SubmittedAt = "not-a-time"
	bad.SK = keys.RSVPPrefix("a@example.com") + "not-a-time#zzz"
	f.put(t, bad)

	// Unknown status: skipped entirely.
	broken := entities.NewRSVPResponse("wedding", "a@example.com", "yyy", valueobjects.RSVPStatus("later"), baseTime.Add(time.Hour))
	f.put(t, broken)

	stats, err := NewAdminQueryService(f.store, f.clock, f.logger).Stats(context.Background(), "wedding")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalAttending)
	assert.Equal(t, 0, stats.TotalNotAttending)
	assert.Equal(t, 1, stats.SkippedRecords)
}

func TestStats_HistoryWinsOverUnprojectedRow(t *testing.T) {
	f := newFixture()
	f.seedGuest(t, "a@example.com", "A", "", 2)

	// History appended but the guest row was never updated.
	r := entities.NewRSVPResponse("wedding", "a@example.com", "r1", valueobjects.StatusMaybe, baseTime)
	r.PartySize = 1
	f.put(t, r)

	stats, err := NewAdminQueryService(f.store, f.clock, f.logger).Stats(context.Background(), "wedding")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalMaybe)
	assert.Equal(t, 0, stats.TotalPending)
}

func TestStats_ProjectedRowNewerThanReadableHistory(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedGuest(t, "a@example.com", "A", "", 2)
	_, err := f.writer(nil).Record(ctx, attending("a@example.com"))
	require.NoError(t, err)

	// The projected record becomes unreadable; only an older one remains.
	rows, err := f.store.Query(ctx, ports.QueryInput{
		PartitionKey:  keys.EventPK("wedding"),
		SortKeyPrefix: keys.RSVPPrefix("a@example.com"),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	rowKey := keys.Key{PK: entities.StringAttr(rows[0], keys.AttrPK), SK: entities.StringAttr(rows[0], keys.AttrSK)}
	_, err = f.store.UpdateItem(ctx, rowKey, ports.Patch{"Status": "later"}, nil)
	require.NoError(t, err)

	older := entities.NewRSVPResponse("wedding", "a@example.com", "old", valueobjects.StatusMaybe, baseTime.Add(-time.Hour))
	older.PartySize = 1
	f.put(t, older)

	stats, err := NewAdminQueryService(f.store, f.clock, f.logger).Stats(ctx, "wedding")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalAttending)
	assert.Equal(t, 0, stats.TotalMaybe)
	assert.Equal(t, 1, stats.SkippedRecords)
}

func TestListGuests(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seedGuest(t, "carol@example.com", "Carol", "", 2)
	f.seedGuest(t, "alice@example.com", "Alice", "", 2)
	bob := entities.NewGuest("wedding", "bob@example.com", "Bob", "", 2, baseTime)
	bob.GroupID = "smiths"
	f.put(t, bob)
	_, err := f.writer(nil).Record(ctx, attending("carol@example.com"))
	require.NoError(t, err)

	svc := NewAdminQueryService(f.store, f.clock, f.logger)

	page, err := svc.ListGuests(ctx, GuestFilter{EventID: "wedding"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names(page.Guests))

	page, err = svc.ListGuests(ctx, GuestFilter{EventID: "wedding", Status: valueobjects.StatusAttending})
	require.NoError(t, err)
	assert.Equal(t, []string{"Carol"}, names(page.Guests))

	page, err = svc.ListGuests(ctx, GuestFilter{EventID: "wedding", GroupID: "smiths"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, names(page.Guests))

	page, err = svc.ListGuests(ctx, GuestFilter{EventID: "wedding", Search: "ALI"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, names(page.Guests))

	page, err = svc.ListGuests(ctx, GuestFilter{EventID: "wedding", SortBy: "email", Desc: true, Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, []string{"Bob"}, names(page.Guests))

	page, err = svc.ListGuests(ctx, GuestFilter{EventID: "wedding", Offset: -50, Limit: math.MaxInt})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, names(page.Guests))

	page, err = svc.ListGuests(ctx, GuestFilter{EventID: "wedding", Offset: 10, Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, page.Guests)

	_, err = svc.ListGuests(ctx, GuestFilter{EventID: "wedding", SortBy: "shoeSize"})
	assert.Error(t, err)
}

func names(guests []*entities.Guest) []string {
	out := make([]string, 0, len(guests))
	for _, g := range guests {
		out = append(out, g.Name)
	}
	return out
}

func TestGuestHistory_Range(t *testing.T) {
	f := newFixture()
	f.seedGuest(t, "a@example.com", "A", "", 2)
	w := f.writer(nil)
	ctx := context.Background()

	for i, at := range []time.Time{baseTime.Add(time.Hour), baseTime.Add(2 * time.Hour), baseTime.Add(3 * time.Hour)} {
		f.clock.Set(at)
		in := attending("a@example.com")
		if i == 1 {
			in.Status = valueobjects.StatusMaybe
		}
		_, err := w.Record(ctx, in)
		require.NoError(t, err)
	}

	svc := NewAdminQueryService(f.store, f.clock, f.logger)
	all, err := svc.GuestHistory(ctx, "wedding", "A@example.com", HistoryRange{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].SubmittedTime().After(all[1].SubmittedTime()), "most recent first")

	window, err := svc.GuestHistory(ctx, "wedding", "a@example.com", HistoryRange{
		Since: baseTime.Add(90 * time.Minute),
		Until: baseTime.Add(150 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, valueobjects.StatusMaybe, window[0].Status)
}

func TestRecentResponses(t *testing.T) {
	f := newFixture()
	f.seedGuest(t, "a@example.com", "A", "", 2)
	f.seedGuest(t, "b@example.com", "B", "", 2)
	ctx := context.Background()
	_, err := f.writer(nil).Record(ctx, attending("a@example.com"))
	require.NoError(t, err)

	guests, err := NewAdminQueryService(f.store, f.clock, f.logger).RecentResponses(ctx, "wedding", time.Time{}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names(guests))
}
