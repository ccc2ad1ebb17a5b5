package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wedding-backend/application/commands"
	"wedding-backend/application/ports"
	"wedding-backend/application/services"
	"wedding-backend/domain/config"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/core/valueobjects"
	"wedding-backend/domain/keys"
	"wedding-backend/infrastructure/persistence/memory"
	pkgerrors "wedding-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var start = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type submitFixture struct {
	store   *memory.Store
	clock   *stepClock
	cfg     *config.DomainConfig
	handler *SubmitRSVPHandler
}

func newSubmitFixture(t *testing.T) *submitFixture {
	t.Helper()
	store := memory.NewStore()
	clock := &stepClock{now: start}
	cfg := config.DefaultDomainConfig()
	cfg.RetryBaseDelay = 0
	logger := zap.NewNop()

	groups := services.NewGroupCoordinator(store, clock, cfg, logger)
	stats := services.NewAdminQueryService(store, clock, logger)
	handler := NewSubmitRSVPHandler(
		store,
		clock,
		services.NewInvitationValidator(store, clock, nil, logger),
		services.NewRSVPWriter(store, clock, groups, cfg, nil, logger),
		services.NewEventService(store, clock, stats, logger),
		cfg,
		nil,
		logger,
	)
	return &submitFixture{store: store, clock: clock, cfg: cfg, handler: handler}
}

func (f *submitFixture) put(t *testing.T, v interface{}) {
	t.Helper()
	item, err := entities.ToItem(v)
	require.NoError(t, err)
	require.NoError(t, f.store.PutItem(context.Background(), item, ports.PutOptions{}))
}

func (f *submitFixture) seed(t *testing.T, code string, maxUses, maxParty int) {
	t.Helper()
	f.put(t, entities.NewGuest("wedding", "jane@example.com", "Jane Doe", code, maxParty, start))
	f.put(t, entities.NewInvitation(code, "wedding", "jane@example.com", maxUses, start))
}

func (f *submitFixture) invitation(t *testing.T, code string) *entities.Invitation {
	t.Helper()
	item, err := f.store.GetItem(context.Background(), keys.InvitationKey(code))
	require.NoError(t, err)
	var inv entities.Invitation
	require.NoError(t, entities.FromItem(item, &inv))
	return &inv
}

func (f *submitFixture) guest(t *testing.T) *entities.Guest {
	t.Helper()
	item, err := f.store.GetItem(context.Background(), keys.GuestKey("wedding", "jane@example.com"))
	require.NoError(t, err)
	var g entities.Guest
	require.NoError(t, entities.FromItem(item, &g))
	return &g
}

func attending(code string) commands.SubmitRSVPCommand {
	return commands.SubmitRSVPCommand{
		InvitationCode:      code,
		Status:              "attending",
		Attendees:           []commands.AttendeeInput{{Name: "Sam Doe", DietaryRestrictions: []string{"vegan"}}},
		DietaryRestrictions: []string{"gluten-free"},
	}
}

func TestSubmitRSVP_SingleUseInvitation(t *testing.T) {
	f := newSubmitFixture(t)
	f.seed(t, "ABC123", 1, 2)

	res, err := f.handler.Handle(context.Background(), attending("abc123"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.RSVPID)
	assert.Equal(t, "attending", res.CurrentStatus)
	assert.Equal(t, 2, res.PartySize)

	inv := f.invitation(t, "ABC123")
	assert.Equal(t, 1, inv.CurrentUses)

	g := f.guest(t)
	assert.Equal(t, valueobjects.StatusAttending, g.RSVPStatus)
	assert.Equal(t, res.RSVPID, g.LastResponseID)

	_, err = f.handler.Handle(context.Background(), attending("ABC123"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvitationExhausted))
	assert.Equal(t, 1, f.invitation(t, "ABC123").CurrentUses)
}

func TestSubmitRSVP_ReplayedSubmissionID(t *testing.T) {
	f := newSubmitFixture(t)
	f.seed(t, "ABC123", 1, 2)

	cmd := attending("ABC123")
	cmd.SubmissionID = "sub-1"

	first, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	second, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err, "resubmitting on a spent single-use code")
	assert.True(t, second.Success)
	assert.NotEqual(t, first.RSVPID, second.RSVPID)

	inv := f.invitation(t, "ABC123")
	assert.Equal(t, 1, inv.CurrentUses)
	assert.True(t, inv.Redeemed("sub-1"))
	assert.Equal(t, second.RSVPID, f.guest(t).LastResponseID)

	other := attending("ABC123")
	other.SubmissionID = "sub-2"
	_, err = f.handler.Handle(context.Background(), other)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvitationExhausted))
}

func TestSubmitRSVP_FailedRecordGivesUseBack(t *testing.T) {
	f := newSubmitFixture(t)
	f.seed(t, "ABC123", 1, 2)
	f.store.SetError("UpdateItem", pkgerrors.NewVersionMismatchError(1), false, 0)

	cmd := attending("ABC123")
	cmd.SubmissionID = "sub-1"
	_, err := f.handler.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeRetryExhausted))

	inv := f.invitation(t, "ABC123")
	assert.Equal(t, 0, inv.CurrentUses)
	assert.False(t, inv.Redeemed("sub-1"))
	assert.Equal(t, valueobjects.StatusPending, f.guest(t).RSVPStatus)

	f.store.ClearErrors()
	res, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, f.invitation(t, "ABC123").CurrentUses)
	assert.Equal(t, valueobjects.StatusAttending, f.guest(t).RSVPStatus)
}

func TestSubmitRSVP_FailedRecordWithFreshSubmission(t *testing.T) {
	f := newSubmitFixture(t)
	f.seed(t, "ABC123", 1, 2)
	f.store.SetError("UpdateItem", pkgerrors.NewVersionMismatchError(1), false, 0)

	_, err := f.handler.Handle(context.Background(), attending("ABC123"))
	require.Error(t, err)
	assert.Equal(t, 0, f.invitation(t, "ABC123").CurrentUses)

	f.store.ClearErrors()
	_, err = f.handler.Handle(context.Background(), attending("ABC123"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.invitation(t, "ABC123").CurrentUses)
}

func TestSubmitRSVP_FailedReleaseLetsSameSubmissionThrough(t *testing.T) {
	f := newSubmitFixture(t)
	f.seed(t, "ABC123", 1, 2)
	f.store.SetError("UpdateItem", pkgerrors.NewVersionMismatchError(1), false, 0)
	f.store.SetError("ReleaseCounter", pkgerrors.NewUnavailableError("ReleaseCounter"), false, 1)

	cmd := attending("ABC123")
	cmd.SubmissionID = "sub-1"
	_, err := f.handler.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, f.invitation(t, "ABC123").Redeemed("sub-1"))

	f.store.ClearErrors()
	res, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, f.invitation(t, "ABC123").CurrentUses)
	assert.Equal(t, valueobjects.StatusAttending, f.guest(t).RSVPStatus)
}

func TestSubmitRSVP_PartyTooLargeConsumesNothing(t *testing.T) {
	f := newSubmitFixture(t)
	f.seed(t, "ABC123", 1, 2)

	cmd := attending("ABC123")
	cmd.Attendees = []commands.AttendeeInput{{Name: "Sam"}, {Name: "Pat"}, {Name: "Lee"}}

	_, err := f.handler.Handle(context.Background(), cmd)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePartyTooLarge))
	assert.Equal(t, 0, f.invitation(t, "ABC123").CurrentUses)
	assert.Equal(t, valueobjects.StatusPending, f.guest(t).RSVPStatus)
}

func TestSubmitRSVP_UnknownCode(t *testing.T) {
	f := newSubmitFixture(t)

	_, err := f.handler.Handle(context.Background(), attending("ZZZ999"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvitationNotFound))
}

func TestSubmitRSVP_DeadlinePassed(t *testing.T) {
	f := newSubmitFixture(t)
	f.seed(t, "ABC123", 1, 2)
	event := entities.NewEvent("wedding", "Jane & Sam", start)
	deadline := start.Add(-time.Hour)
	event.RSVPDeadline = &deadline
	f.put(t, event)

	_, err := f.handler.Handle(context.Background(), attending("ABC123"))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDeadlinePassed))
	assert.Equal(t, 0, f.invitation(t, "ABC123").CurrentUses)

	f.cfg.EnforceRSVPDeadline = false
	_, err = f.handler.Handle(context.Background(), attending("ABC123"))
	require.NoError(t, err)
}

func TestSubmitRSVP_CounterTimeoutThatApplied(t *testing.T) {
	f := newSubmitFixture(t)
	f.seed(t, "ABC123", 1, 2)
	f.store.SetError("IncrementCounter", pkgerrors.NewTimeoutError("IncrementCounter"), true, 1)

	cmd := attending("ABC123")
	cmd.SubmissionID = "sub-1"
	res, err := f.handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, f.invitation(t, "ABC123").CurrentUses)
}

func TestSubmitRSVP_CounterTimeoutThatFailed(t *testing.T) {
	f := newSubmitFixture(t)
	f.seed(t, "ABC123", 1, 2)
	f.store.SetError("IncrementCounter", pkgerrors.NewTimeoutError("IncrementCounter"), false, 1)

	_, err := f.handler.Handle(context.Background(), attending("ABC123"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsTimeout(err))
	assert.Equal(t, valueobjects.StatusPending, f.guest(t).RSVPStatus)
}

func TestSubmitRSVP_InactiveInvitation(t *testing.T) {
	f := newSubmitFixture(t)
	f.seed(t, "ABC123", 1, 2)
	_, err := f.store.UpdateItem(context.Background(), keys.InvitationKey("ABC123"),
		ports.Patch{entities.AttrInvitationActive: false}, nil)
	require.NoError(t, err)

	_, err = f.handler.Handle(context.Background(), attending("ABC123"))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInvitationInactive))
}

func TestInvitationError(t *testing.T) {
	err := InvitationError("exhausted")
	var appErr *pkgerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, services.InvitationMessage("exhausted"), appErr.Message)
	assert.True(t, pkgerrors.IsConflict(err))

	assert.True(t, pkgerrors.IsNotFound(InvitationError(services.ReasonNotFound)))
	assert.True(t, pkgerrors.IsValidation(InvitationError("expired")))
}
