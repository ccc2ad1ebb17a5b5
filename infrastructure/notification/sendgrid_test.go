package notification

import (
	"context"
	"errors"
	"testing"

	"wedding-backend/application/ports"
	pkgerrors "wedding-backend/pkg/errors"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeSender) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

var msg = ports.ConfirmationMessage{
	ToEmail:    "jane@example.com",
	ToName:     "Jane Doe",
	EventName:  "Jane & Sam",
	Status:     "attending",
	PartySize:  2,
	ResponseID: "rsvp-1",
}

func TestSendConfirmation(t *testing.T) {
	sender := &fakeSender{status: 202}
	m := NewMailerWithSender(sender, "rsvp@example.com", "Wedding RSVP", zap.NewNop())
	require.NoError(t, m.SendConfirmation(context.Background(), msg))

	require.Len(t, sender.sent, 1)
	email := sender.sent[0]
	assert.Equal(t, "Your RSVP for Jane & Sam", email.Subject)
	assert.Equal(t, "rsvp@example.com", email.From.Address)
	assert.Equal(t, "jane@example.com", email.Personalizations[0].To[0].Address)
	require.Len(t, email.Content, 2)
	assert.Contains(t, email.Content[1].Value, "party of 2")
}

func TestSendConfirmation_Failures(t *testing.T) {
	m := NewMailerWithSender(&fakeSender{status: 500}, "rsvp@example.com", "", zap.NewNop())
	assert.True(t, pkgerrors.IsUnavailable(m.SendConfirmation(context.Background(), msg)))

	m = NewMailerWithSender(&fakeSender{err: errors.New("dial tcp")}, "rsvp@example.com", "", zap.NewNop())
	assert.True(t, pkgerrors.IsUnavailable(m.SendConfirmation(context.Background(), msg)))

	assert.NoError(t, NewSendGridMailer("", "rsvp@example.com", "", zap.NewNop()).SendConfirmation(context.Background(), msg))
}
