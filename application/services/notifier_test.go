package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"wedding-backend/application/ports"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/events"
	"wedding-backend/domain/keys"
	"wedding-backend/infrastructure/persistence/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClaims struct {
	mock.Mock
}

func (m *mockClaims) Claim(ctx context.Context, scope, key string) (bool, error) {
	args := m.Called(ctx, scope, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockClaims) Release(ctx context.Context, scope, key string) error {
	return m.Called(ctx, scope, key).Error(0)
}

type fakeMailer struct {
	sent []ports.ConfirmationMessage
	err  error
}

func (m *fakeMailer) SendConfirmation(_ context.Context, msg ports.ConfirmationMessage) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakePublisher struct {
	published []events.ChangeEvent
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, e events.ChangeEvent) error {
	return p.PublishBatch(ctx, []events.ChangeEvent{e})
}

func (p *fakePublisher) PublishBatch(_ context.Context, changes []events.ChangeEvent) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, changes...)
	return nil
}

func responseChanges(f *fixture) []events.ChangeEvent {
	var out []events.ChangeEvent
	for _, c := range f.store.Changes() {
		if c.Entity == keys.EntityRSVPResponse {
			out = append(out, c)
		}
	}
	return out
}

func TestNotifier_SendsOncePerResponse(t *testing.T) {
	f := newFixture()
	f.seedGuest(t, "jane@example.com", "Jane Doe", "ABC123", 2)
	f.put(t, entities.NewEvent("wedding", "Jane & Sam", baseTime))
	_, err := f.writer(nil).Record(context.Background(), attending("jane@example.com", "Sam"))
	require.NoError(t, err)

	changes := responseChanges(f)
	require.Len(t, changes, 1)

	mailer := &fakeMailer{}
	n := NewNotifier(memory.NewIdempotencyStore(time.Hour), mailer, newEventService(f), f.logger)

	sent, err := n.Handle(context.Background(), changes[0])
	require.NoError(t, err)
	assert.True(t, sent)
	sent, err = n.Handle(context.Background(), changes[0])
	require.NoError(t, err)
	assert.False(t, sent, "redelivered events are deduped")

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "jane@example.com", msg.ToEmail)
	assert.Equal(t, "Jane Doe", msg.ToName)
	assert.Equal(t, "Jane & Sam", msg.EventName)
	assert.Equal(t, "attending", msg.Status)
	assert.Equal(t, 2, msg.PartySize)
}

func TestNotifier_ReleasesClaimOnFailure(t *testing.T) {
	f := newFixture()
	f.seedGuest(t, "jane@example.com", "Jane Doe", "", 2)
	_, err := f.writer(nil).Record(context.Background(), attending("jane@example.com"))
	require.NoError(t, err)
	change := responseChanges(f)[0]

	mailer := &fakeMailer{err: errors.New("smtp down")}
	n := NewNotifier(memory.NewIdempotencyStore(time.Hour), mailer, nil, f.logger)
	_, err = n.Handle(context.Background(), change)
	require.Error(t, err)

	mailer.err = nil
	sent, err := n.Handle(context.Background(), change)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, "wedding", mailer.sent[0].EventName, "falls back to the event id")
}

func TestNotifier_IgnoresOtherChanges(t *testing.T) {
	f := newFixture()
	f.seedGuest(t, "jane@example.com", "Jane Doe", "", 2)
	in := attending("jane@example.com")
	in.Channel = entities.ChannelAdmin
	_, err := f.writer(nil).Record(context.Background(), in)
	require.NoError(t, err)

	mailer := &fakeMailer{}
	n := NewNotifier(memory.NewIdempotencyStore(time.Hour), mailer, nil, f.logger)
	require.NoError(t, n.HandleBatch(context.Background(), f.store.Changes()))
	assert.Empty(t, mailer.sent)
}

func TestChangeProcessor_PublishesAndRefreshes(t *testing.T) {
	f := newFixture()
	f.put(t, entities.NewEvent("wedding", "Jane & Sam", baseTime))
	f.seedGuest(t, "jane@example.com", "Jane Doe", "", 2)
	f.seedGuest(t, "bob@example.com", "Bob", "", 1)
	_, err := f.writer(nil).Record(context.Background(), attending("jane@example.com", "Sam"))
	require.NoError(t, err)

	pub := &fakePublisher{}
	svc := newEventService(f)
	p := NewChangeProcessor(pub, svc, f.logger)
	changes := f.store.Changes()
	require.NoError(t, p.Process(context.Background(), changes))
	assert.Len(t, pub.published, len(changes))

	e, err := svc.Load(context.Background(), "wedding")
	require.NoError(t, err)
	assert.Equal(t, 2, e.Counts.Invited)
	assert.Equal(t, 1, e.Counts.Confirmed)
	assert.Equal(t, 1, e.Counts.Pending)
	assert.Equal(t, 2, e.Counts.Headcount)
	require.NotNil(t, e.Counts.RefreshedAt)
}

func TestChangeProcessor_PublishFailure(t *testing.T) {
	f := newFixture()
	f.seedGuest(t, "jane@example.com", "Jane Doe", "", 2)
	p := NewChangeProcessor(&fakePublisher{err: errors.New("bus down")}, newEventService(f), f.logger)
	assert.Error(t, p.Process(context.Background(), f.store.Changes()))
	assert.NoError(t, p.Process(context.Background(), nil))
}

func TestNotifier_ClaimStoreFailures(t *testing.T) {
	f := newFixture()
	f.seedGuest(t, "jane@example.com", "Jane Doe", "", 2)
	_, err := f.writer(nil).Record(context.Background(), attending("jane@example.com"))
	require.NoError(t, err)
	change := responseChanges(f)[0]
	ctx := context.Background()

	t.Run("claim error is returned for redelivery", func(t *testing.T) {
		claims := new(mockClaims)
		claims.On("Claim", ctx, notificationScope, change.EventID).Return(false, errors.New("throttled")).Once()
		mailer := &fakeMailer{}

		sent, err := NewNotifier(claims, mailer, nil, f.logger).Handle(ctx, change)
		assert.Error(t, err)
		assert.False(t, sent)
		assert.Empty(t, mailer.sent)
		claims.AssertExpectations(t)
	})

	t.Run("failed release still reports the send error", func(t *testing.T) {
		claims := new(mockClaims)
		claims.On("Claim", ctx, notificationScope, change.EventID).Return(true, nil).Once()
		claims.On("Release", ctx, notificationScope, change.EventID).Return(errors.New("table gone")).Once()

		_, err := NewNotifier(claims, &fakeMailer{err: errors.New("smtp down")}, nil, f.logger).Handle(ctx, change)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "send confirmation")
		claims.AssertExpectations(t)
	})
}
