package services

import (
	"context"
	"testing"

	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/core/valueobjects"
	pkgerrors "wedding-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedGroup(t *testing.T, f *fixture, members ...string) *entities.GuestGroup {
	t.Helper()
	group := entities.NewGuestGroup("wedding", "smiths", "The Smiths", baseTime)
	for _, m := range members {
		g := entities.NewGuest("wedding", m, m, "", 2, baseTime)
		g.GroupID = group.GroupID
		f.put(t, g)
		group.AddMember(m)
	}
	f.put(t, group)
	return group
}

func TestRecompute_PartialGroup(t *testing.T) {
	f := newFixture()
	seedGroup(t, f, "a@example.com", "b@example.com", "c@example.com")
	groups := NewGroupCoordinator(f.store, f.clock, f.cfg, f.logger)

	// Recording through the writer signals the coordinator.
	_, err := f.writer(groups).Record(context.Background(), attending("a@example.com", "Plus One"))
	require.NoError(t, err)

	group, err := groups.Get(context.Background(), "wedding", "smiths")
	require.NoError(t, err)
	assert.Equal(t, valueobjects.GroupPartial, group.GroupRSVPStatus)
	assert.Equal(t, 2, group.CurrentPartySize)
	assert.Equal(t, 1, group.RespondedCount)
	assert.Equal(t, 1, group.AttendingCount)
}

func TestRecompute_Idempotent(t *testing.T) {
	f := newFixture()
	seedGroup(t, f, "a@example.com", "b@example.com")
	groups := NewGroupCoordinator(f.store, f.clock, f.cfg, f.logger)
	w := f.writer(nil)
	ctx := context.Background()

	_, err := w.Record(ctx, attending("a@example.com"))
	require.NoError(t, err)
	in := attending("b@example.com")
	in.Status = valueobjects.StatusNotAttending
	_, err = w.Record(ctx, in)
	require.NoError(t, err)

	first, err := groups.Recompute(ctx, "wedding", "smiths")
	require.NoError(t, err)
	second, err := groups.Recompute(ctx, "wedding", "smiths")
	require.NoError(t, err)

	assert.Equal(t, valueobjects.GroupComplete, first.GroupRSVPStatus)
	assert.Equal(t, first.GroupAggregate, second.GroupAggregate)
	assert.Equal(t, first.Version, second.Version, "an unchanged aggregate is not rewritten")
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestRecompute_MissingMemberCountsAsPending(t *testing.T) {
	f := newFixture()
	group := seedGroup(t, f, "a@example.com")
	group.AddMember("ghost@example.com")
	f.put(t, group)
	groups := NewGroupCoordinator(f.store, f.clock, f.cfg, f.logger)

	_, err := f.writer(groups).Record(context.Background(), attending("a@example.com"))
	require.NoError(t, err)

	got, err := groups.Get(context.Background(), "wedding", "smiths")
	require.NoError(t, err)
	assert.Equal(t, valueobjects.GroupPartial, got.GroupRSVPStatus)
}

func TestRecompute_UnknownGroup(t *testing.T) {
	f := newFixture()
	_, err := NewGroupCoordinator(f.store, f.clock, f.cfg, f.logger).Recompute(context.Background(), "wedding", "nope")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSetMembership(t *testing.T) {
	f := newFixture()
	groups := NewGroupCoordinator(f.store, f.clock, f.cfg, f.logger)
	ctx := context.Background()

	require.NoError(t, groups.Ensure(ctx, "wedding", "smiths", "The Smiths"))
	require.NoError(t, groups.Ensure(ctx, "wedding", "smiths", "Ignored"), "ensure is repeatable")

	require.NoError(t, groups.SetMembership(ctx, "wedding", "smiths", "A@Example.com", true))
	require.NoError(t, groups.SetMembership(ctx, "wedding", "smiths", "a@example.com", true))
	require.NoError(t, groups.SetMembership(ctx, "wedding", "smiths", "b@example.com", true))

	group, err := groups.Get(ctx, "wedding", "smiths")
	require.NoError(t, err)
	assert.Equal(t, "The Smiths", group.Name)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, group.MemberEmails)
	assert.Equal(t, "a@example.com", group.PrimaryContact)

	require.NoError(t, groups.SetMembership(ctx, "wedding", "smiths", "a@example.com", false))
	group, err = groups.Get(ctx, "wedding", "smiths")
	require.NoError(t, err)
	assert.Equal(t, []string{"b@example.com"}, group.MemberEmails)
}
