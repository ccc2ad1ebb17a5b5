package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type greet struct{ Name string }

func (g greet) Validate() error {
	if g.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

type recorder struct {
	names []string
	errs  []error
}

func (r *recorder) RecordCommandExecution(_ context.Context, name string, _ time.Duration, err error) {
	r.names = append(r.names, name)
	r.errs = append(r.errs, err)
}

func TestCommandBus_Send(t *testing.T) {
	rec := &recorder{}
	b := NewCommandBus(LoggingMiddleware(zap.NewNop()), MetricsMiddleware(rec))
	require.NoError(t, b.Register(greet{}, CommandHandlerFunc(func(_ context.Context, cmd Command) (interface{}, error) {
		return "hello " + cmd.(greet).Name, nil
	})))

	out, err := b.Send(context.Background(), greet{Name: "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "hello Jane", out)
	assert.Equal(t, []string{"greet"}, rec.names)

	_, err = b.Send(context.Background(), greet{})
	assert.EqualError(t, err, "name is required")
	assert.Len(t, rec.names, 1, "invalid commands never reach handlers")
}

func TestCommandBus_Registration(t *testing.T) {
	b := NewCommandBus()
	h := CommandHandlerFunc(func(context.Context, Command) (interface{}, error) { return nil, nil })
	require.NoError(t, b.Register(greet{}, h))
	assert.ErrorIs(t, b.Register(greet{}, h), ErrHandlerExists)

	_, err := NewCommandBus().Send(context.Background(), greet{Name: "x"})
	assert.ErrorIs(t, err, ErrHandlerNotFound)
}
