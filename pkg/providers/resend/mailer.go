// Package resend adapts the Resend transactional email API to the email
// sender contract.
package resend

import (
	"context"
	"fmt"

	resendapi "github.com/resend/resend-go/v2"
	"github.com/start-berlin/cockpit/pkg/providers"
)

// Mailer implements providers.EmailSender on Resend.
type Mailer struct {
	client *resendapi.Client
}

func NewMailer(apiKey string) *Mailer {
	return &Mailer{client: resendapi.NewClient(apiKey)}
}

func (m *Mailer) Send(ctx context.Context, email providers.Email) error {
	_, err := m.client.Emails.SendWithContext(ctx, &resendapi.SendEmailRequest{
		From:    email.From,
		To:      []string{email.To},
		Subject: email.Subject,
		Html:    email.HTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", email.To, err)
	}

	return nil
}
