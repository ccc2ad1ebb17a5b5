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

func newGuestAdmin(f *fixture) (*GuestAdmin, *GroupCoordinator) {
	groups := NewGroupCoordinator(f.store, f.clock, f.cfg, f.logger)
	return NewGuestAdmin(f.store, f.clock, f.writer(groups), groups, f.cfg, f.logger), groups
}

func strPtr(s string) *string { return &s }

func TestGuestAdmin_EditContactFields(t *testing.T) {
	f := newFixture()
	f.seedGuest(t, "jane@example.com", "Jane", "ABC123", 2)
	admin, _ := newGuestAdmin(f)

	maxGuests := 4
	version := 0
	g, err := admin.Update(context.Background(), GuestEdit{
		EventID:         "wedding",
		Email:           "JANE@example.com",
		Name:            strPtr("Jane Doe"),
		TableAssignment: strPtr("7"),
		MaxGuests:       &maxGuests,
		ExpectedVersion: &version,
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", g.Name)
	assert.Equal(t, "7", g.TableAssignment)
	assert.Equal(t, 4, g.MaxPartySize)
	assert.Equal(t, 1, g.Version)

	_, err = admin.Update(context.Background(), GuestEdit{
		EventID: "wedding", Email: "jane@example.com", Notes: strPtr("late"), ExpectedVersion: &version,
	})
	assert.True(t, pkgerrors.IsConflict(err), "stale expected version is a conflict")
}

func TestGuestAdmin_StatusChangeIsRecordedAsAdminResponse(t *testing.T) {
	f := newFixture()
	f.seedGuest(t, "jane@example.com", "Jane", "ABC123", 2)
	admin, _ := newGuestAdmin(f)

	status := valueobjects.StatusNotAttending
	g, err := admin.Update(context.Background(), GuestEdit{EventID: "wedding", Email: "jane@example.com", Status: &status})
	require.NoError(t, err)
	assert.Equal(t, valueobjects.StatusNotAttending, g.RSVPStatus)

	latest, err := LatestResponse(context.Background(), f.store, "wedding", "jane@example.com")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, entities.ChannelAdmin, latest.Channel)
}

func TestGuestAdmin_MoveBetweenGroups(t *testing.T) {
	f := newFixture()
	seedGroup(t, f, "jane@example.com", "john@example.com")
	admin, groups := newGuestAdmin(f)
	ctx := context.Background()

	_, err := f.writer(groups).Record(ctx, attending("jane@example.com"))
	require.NoError(t, err)

	g, err := admin.Update(ctx, GuestEdit{EventID: "wedding", Email: "jane@example.com", GroupID: strPtr("does")})
	require.NoError(t, err)
	assert.Equal(t, "does", g.GroupID)

	smiths, err := groups.Get(ctx, "wedding", "smiths")
	require.NoError(t, err)
	assert.Equal(t, []string{"john@example.com"}, smiths.MemberEmails)
	assert.Equal(t, valueobjects.GroupPending, smiths.GroupRSVPStatus)

	does, err := groups.Get(ctx, "wedding", "does")
	require.NoError(t, err)
	assert.Equal(t, []string{"jane@example.com"}, does.MemberEmails)
	assert.Equal(t, valueobjects.GroupComplete, does.GroupRSVPStatus)
}

func TestGuestAdmin_Validation(t *testing.T) {
	f := newFixture()
	f.seedGuest(t, "jane@example.com", "Jane", "ABC123", 2)
	admin, _ := newGuestAdmin(f)

	tooMany := 99
	_, err := admin.Update(context.Background(), GuestEdit{EventID: "wedding", Email: "jane@example.com", MaxGuests: &tooMany})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = admin.Update(context.Background(), GuestEdit{EventID: "wedding", Email: "jane@example.com", Name: strPtr("  ")})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = admin.Update(context.Background(), GuestEdit{EventID: "wedding", Email: "nobody@example.com", Name: strPtr("X")})
	assert.True(t, pkgerrors.IsNotFound(err))
}
