package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"wedding-backend/application/ports"
	"wedding-backend/domain/config"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/keys"
	"wedding-backend/infrastructure/persistence/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

// tickingClock advances by step on every read so that responses recorded in
// one test get distinct, ordered timestamps.
type tickingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newClock() *tickingClock {
	return &tickingClock{now: baseTime, step: time.Millisecond}
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func (c *tickingClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	store  *memory.Store
	clock  *tickingClock
	cfg    *config.DomainConfig
	logger *zap.Logger
}

func newFixture() *fixture {
	cfg := config.DefaultDomainConfig()
	cfg.RetryBaseDelay = 0
	return &fixture{store: memory.NewStore(), clock: newClock(), cfg: cfg, logger: zap.NewNop()}
}

func (f *fixture) put(t *testing.T, v interface{}) {
	t.Helper()
	item, err := entities.ToItem(v)
	require.NoError(t, err)
	require.NoError(t, f.store.PutItem(context.Background(), item, ports.PutOptions{}))
}

func (f *fixture) seedGuest(t *testing.T, email, name, code string, maxPartySize int) *entities.Guest {
	t.Helper()
	g := entities.NewGuest("wedding", email, name, code, maxPartySize, baseTime)
	f.put(t, g)
	if code != "" {
		f.put(t, entities.NewInvitation(code, "wedding", email, 5, baseTime))
	}
	return g
}

func (f *fixture) guest(t *testing.T, email string) *entities.Guest {
	t.Helper()
	item, err := f.store.GetItem(context.Background(), keys.GuestKey("wedding", email))
	require.NoError(t, err)
	var g entities.Guest
	require.NoError(t, entities.FromItem(item, &g))
	return &g
}

func (f *fixture) invitation(t *testing.T, code string) *entities.Invitation {
	t.Helper()
	item, err := f.store.GetItem(context.Background(), keys.InvitationKey(code))
	require.NoError(t, err)
	var inv entities.Invitation
	require.NoError(t, entities.FromItem(item, &inv))
	return &inv
}

func (f *fixture) writer(groups GroupRecomputer) *RSVPWriter {
	w := NewRSVPWriter(f.store, f.clock, groups, f.cfg, nil, f.logger)
	w.sleep = func(time.Duration) {}
	return w
}

func (f *fixture) validator() *InvitationValidator {
	return NewInvitationValidator(f.store, f.clock, nil, f.logger)
}
