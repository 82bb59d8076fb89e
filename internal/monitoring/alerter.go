package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailedDeliveries AlertType = "failed_deliveries"
	AlertPendingBacklog   AlertType = "pending_backlog"
	AlertStaleQuarantine  AlertType = "stale_quarantine"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// A zero threshold disables its check.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if t := a.cfg.FailedDeliveryThreshold; t > 0 && snap.DeliveriesFailed >= t {
		alerts = append(alerts, Alert{
			Type:     AlertFailedDeliveries,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d automation deliveries exhausted their retries (threshold %d, failure rate %.1f%%)",
				snap.DeliveriesFailed, t, snap.FailureRate()*100,
			),
			Details: map[string]any{
				"failed":       snap.DeliveriesFailed,
				"fired":        snap.DeliveriesFired,
				"threshold":    t,
				"failure_rate": snap.FailureRate(),
			},
			Timestamp: now,
		})
	}

	if t := a.cfg.PendingDeliveryThreshold; t > 0 && snap.DeliveriesPending >= t {
		alerts = append(alerts, Alert{
			Type:     AlertPendingBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d automation deliveries pending (threshold %d)",
				snap.DeliveriesPending, t,
			),
			Details: map[string]any{
				"pending":   snap.DeliveriesPending,
				"threshold": t,
			},
			Timestamp: now,
		})
	}

	if t := a.cfg.StaleQuarantineThreshold; t > 0 && snap.StaleQuarantine >= t {
		alerts = append(alerts, Alert{
			Type:     AlertStaleQuarantine,
			Severity: "low",
			Message: fmt.Sprintf(
				"%d quarantine item(s) waiting more than %d days for review",
				snap.StaleQuarantine, snap.StaleAfterDays,
			),
			Details: map[string]any{
				"stale":      snap.StaleQuarantine,
				"older_than": snap.StaleAfterDays,
				"threshold":  t,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
