// Package mailer adapts e-mail providers to automation.Sender.
package mailer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/automation"
	"github.com/olvconsultores/stratevo/internal/config"
	"github.com/olvconsultores/stratevo/internal/resilience"
	"github.com/olvconsultores/stratevo/pkg/resend"
)

// New builds the configured provider behind a circuit breaker.
func New(cfg config.EmailConfig) (automation.Sender, error) {
	var s automation.Sender
	switch cfg.Provider {
	case "resend":
		opts := []resend.Option{resend.WithRateLimit(cfg.Resend.RateLimit)}
		if cfg.Resend.BaseURL != "" {
			opts = append(opts, resend.WithBaseURL(cfg.Resend.BaseURL))
		}
		s = NewResend(resend.NewClient(cfg.Resend.Key, opts...), cfg.From)
	case "smtp":
		s = NewSMTP(cfg.SMTP, cfg.From)
	default:
		return nil, eris.Errorf("mailer: unknown provider %q", cfg.Provider)
	}

	zap.L().Info("mailer: provider configured", zap.String("provider", cfg.Provider))
	return WithBreaker(s, resilience.NewBreaker(resilience.BreakerConfig{
		Name:             "email." + cfg.Provider,
		FailureThreshold: cfg.BreakerThreshold,
		Cooldown:         cfg.BreakerCooldown,
	})), nil
}

type guarded struct {
	next    automation.Sender
	breaker *resilience.Breaker
}

// WithBreaker wraps s so that sends fail fast with resilience.ErrCircuitOpen
// while the provider is down.
func WithBreaker(s automation.Sender, b *resilience.Breaker) automation.Sender {
	return &guarded{next: s, breaker: b}
}

func (g *guarded) Send(ctx context.Context, msg automation.Message) (string, error) {
	return resilience.Guard(ctx, g.breaker, func(ctx context.Context) (string, error) {
		return g.next.Send(ctx, msg)
	})
}
