// Package notification delivers RSVP confirmations by e-mail.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"wedding-backend/application/ports"
	pkgerrors "wedding-backend/pkg/errors"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Sender is the subset of the SendGrid client the mailer uses.
type Sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<p>Hi {{.ToName}},</p>
{{if eq .Status "attending"}}<p>Thank you! We have you down for {{.EventName}} with a party of {{.PartySize}}.</p>
{{else if eq .Status "not_attending"}}<p>We're sorry you can't make it to {{.EventName}}. Thank you for letting us know.</p>
{{else}}<p>We've recorded your response for {{.EventName}}: {{.Status}}.</p>
{{end}}<p>You can change your answer any time with your invitation code.</p>
<p style="color:#888">Reference {{.ResponseID}}</p>`))

// SendGridMailer implements ports.Mailer on SendGrid.
type SendGridMailer struct {
	sender   Sender
	fromName string
	fromAddr string
	logger   *zap.Logger
}

var _ ports.Mailer = (*SendGridMailer)(nil)

// NewSendGridMailer creates a mailer for apiKey. Without a key messages are
// logged and dropped.
func NewSendGridMailer(apiKey, fromAddr, fromName string, logger *zap.Logger) *SendGridMailer {
	var sender Sender
	if apiKey != "" {
		sender = sendgrid.NewSendClient(apiKey)
	}
	return NewMailerWithSender(sender, fromAddr, fromName, logger)
}

// NewMailerWithSender creates a mailer on an existing sender.
func NewMailerWithSender(sender Sender, fromAddr, fromName string, logger *zap.Logger) *SendGridMailer {
	return &SendGridMailer{sender: sender, fromName: fromName, fromAddr: fromAddr, logger: logger}
}

// SendConfirmation sends msg. Non-2xx responses are Unavailable so that the
// caller can retry.
func (m *SendGridMailer) SendConfirmation(ctx context.Context, msg ports.ConfirmationMessage) error {
	if m.sender == nil {
		m.logger.Warn("SendGrid API key not set, skipping confirmation", zap.String("email", msg.ToEmail))
		return nil
	}

	var body bytes.Buffer
	if err := confirmationTemplate.Execute(&body, msg); err != nil {
		return pkgerrors.Wrap(err, "render confirmation")
	}
	subject := fmt.Sprintf("Your RSVP for %s", msg.EventName)
	email := mail.NewSingleEmail(
		mail.NewEmail(m.fromName, m.fromAddr),
		subject,
		mail.NewEmail(msg.ToName, msg.ToEmail),
		fmt.Sprintf("Your response for %s is recorded as %s (party of %d).", msg.EventName, msg.Status, msg.PartySize),
		body.String(),
	)

	resp, err := m.sender.SendWithContext(ctx, email)
	if err != nil {
		return pkgerrors.NewUnavailableError("sendgrid").WithCause(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.logger.Warn("SendGrid rejected confirmation",
			zap.Int("status", resp.StatusCode),
			zap.String("email", msg.ToEmail))
		return pkgerrors.NewUnavailableError("sendgrid").
			WithDetails(map[string]interface{}{"status": resp.StatusCode})
	}

	m.logger.Info("Confirmation sent",
		zap.String("email", msg.ToEmail),
		zap.String("rsvpId", msg.ResponseID))
	return nil
}
