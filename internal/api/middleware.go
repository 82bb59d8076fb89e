package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/olvconsultores/stratevo/internal/lifecycle"
)

// TenantHeader carries the caller's tenant on every /v1 request.
const TenantHeader = "X-Tenant-ID"

// ActorHeader names the user acting on the request; it is recorded on
// pipeline events.
const ActorHeader = "X-User-ID"

// WebhookSecretHeader authenticates inbound webhooks.
const WebhookSecretHeader = "X-Webhook-Secret"

type tenantKey struct{}

var (
	errMissingTenant = badRequest("api: missing %s header", TenantHeader)
	errUnauthorized  = errors.New("api: invalid webhook secret")
)

// requireTenant rejects requests without a tenant header and stores the
// tenant in the request context.
func (s *Server) requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := r.Header.Get(TenantHeader)
		if tenant == "" {
			RespondError(w, s.log, errMissingTenant)
			return
		}
		ctx := context.WithValue(r.Context(), tenantKey{}, tenant)
		if actor := r.Header.Get(ActorHeader); actor != "" {
			ctx = lifecycle.WithActor(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireWebhookSecret checks the shared secret when one is configured.
func (s *Server) requireWebhookSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.WebhookSecret != "" {
			got := r.Header.Get(WebhookSecretHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.WebhookSecret)) != 1 {
				RespondJSON(w, http.StatusUnauthorized, map[string]string{"error": errUnauthorized.Error()})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func tenantFrom(ctx context.Context) string {
	t, _ := ctx.Value(tenantKey{}).(string)
	return t
}
