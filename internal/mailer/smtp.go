package mailer

import (
	"context"
	"errors"
	"net/textproto"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/gomail.v2"

	"github.com/olvconsultores/stratevo/internal/automation"
	"github.com/olvconsultores/stratevo/internal/config"
	"github.com/olvconsultores/stratevo/internal/resilience"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP sends through an SMTP relay.
type SMTP struct {
	dialer dialer
	from   string
}

// NewSMTP creates an SMTP sender.
func NewSMTP(cfg config.SMTPConfig, from string) *SMTP {
	return &SMTP{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
	}
}

// Send delivers msg. The Message-ID is derived from the idempotency key,
// so a redelivered message carries the same id.
func (s *SMTP) Send(ctx context.Context, msg automation.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := messageID(msg.IdempotencyKey)
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", id)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return "", classifySMTP(err)
	}
	return id, nil
}

func messageID(key string) string {
	return "<" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String() + "@stratevo>"
}

// classifySMTP marks 4xx replies as transient. 5xx replies are permanent.
func classifySMTP(err error) error {
	var tp *textproto.Error
	if errors.As(err, &tp) && tp.Code >= 400 && tp.Code < 500 {
		return resilience.NewTransientError(eris.Wrap(err, "mailer: smtp"), tp.Code)
	}
	return eris.Wrap(err, "mailer: smtp")
}
