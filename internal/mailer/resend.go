package mailer

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/olvconsultores/stratevo/internal/automation"
	"github.com/olvconsultores/stratevo/pkg/resend"
)

// Resend sends through the Resend API.
type Resend struct {
	client resend.Client
	from   string
}

// NewResend creates a Resend sender.
func NewResend(client resend.Client, from string) *Resend {
	return &Resend{client: client, from: from}
}

// Send submits msg with its idempotency key so a resend after a lost
// response is not delivered twice.
func (r *Resend) Send(ctx context.Context, msg automation.Message) (string, error) {
	resp, err := r.client.Send(ctx, msg.IdempotencyKey, resend.Email{
		From:    r.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Body,
	})
	if err != nil {
		return "", eris.Wrap(err, "mailer: resend")
	}
	return resp.ID, nil
}
