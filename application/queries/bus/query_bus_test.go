package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type lookup struct{ ID string }

func (l lookup) Validate() error {
	if l.ID == "" {
		return errors.New("id is required")
	}
	return nil
}

func TestQueryBus_Ask(t *testing.T) {
	b := NewQueryBus()
	require.NoError(t, b.Register(lookup{}, QueryHandlerFunc(func(_ context.Context, q Query) (interface{}, error) {
		return "found " + q.(lookup).ID, nil
	})))

	out, err := b.Ask(context.Background(), lookup{ID: "42"})
	require.NoError(t, err)
	assert.Equal(t, "found 42", out)

	_, err = b.Ask(context.Background(), lookup{})
	assert.EqualError(t, err, "id is required")

	assert.ErrorIs(t, b.Register(lookup{}, QueryHandlerFunc(nil)), ErrHandlerExists)
	_, err = NewQueryBus().Ask(context.Background(), lookup{ID: "1"})
	assert.ErrorIs(t, err, ErrHandlerNotFound)
}

func TestSlowQueryMiddleware(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	b := NewQueryBus(SlowQueryMiddleware(zap.New(core), 0))
	require.NoError(t, b.Register(lookup{}, QueryHandlerFunc(func(_ context.Context, q Query) (interface{}, error) {
		return nil, nil
	})))

	_, err := b.Ask(context.Background(), lookup{ID: "1"})
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "bus.lookup", logs.All()[0].ContextMap()["type"])

	quiet, quietLogs := observer.New(zap.WarnLevel)
	b = NewQueryBus(SlowQueryMiddleware(zap.New(quiet), time.Hour))
	require.NoError(t, b.Register(lookup{}, QueryHandlerFunc(func(_ context.Context, q Query) (interface{}, error) {
		return nil, nil
	})))
	_, err = b.Ask(context.Background(), lookup{ID: "1"})
	require.NoError(t, err)
	assert.Zero(t, quietLogs.Len())
}
