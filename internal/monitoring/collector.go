package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/olvconsultores/stratevo/internal/store"
)

// MetricsSnapshot holds a point-in-time view of automation and pipeline
// health.
type MetricsSnapshot struct {
	// Fire markers by status.
	DeliveriesPending int `json:"deliveries_pending"`
	DeliveriesFired   int `json:"deliveries_fired"`
	DeliveriesFailed  int `json:"deliveries_failed"`

	// Quarantine items untouched for longer than StaleAfterDays.
	StaleQuarantine int `json:"stale_quarantine"`
	StaleAfterDays  int `json:"stale_after_days"`

	CollectedAt time.Time `json:"collected_at"`
}

// FailureRate is the share of settled markers that ended in failure.
func (s *MetricsSnapshot) FailureRate() float64 {
	settled := s.DeliveriesFired + s.DeliveriesFailed
	if settled == 0 {
		return 0
	}
	return float64(s.DeliveriesFailed) / float64(settled)
}

// Source is the read surface the collector needs from the store.
type Source interface {
	CountMarkers(ctx context.Context) (store.MarkerCounts, error)
	CountStaleQuarantine(ctx context.Context, olderThan time.Time) (int, error)
}

// Collector gathers metrics from the store.
type Collector struct {
	src Source
	now func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(src Source) *Collector {
	return &Collector{src: src, now: time.Now}
}

// Collect gathers a snapshot. Quarantine items older than staleDays count
// as stale; a non-positive staleDays skips the quarantine query.
func (c *Collector) Collect(ctx context.Context, staleDays int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		StaleAfterDays: staleDays,
		CollectedAt:    now,
	}

	counts, err := c.src.CountMarkers(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count markers")
	}
	snap.DeliveriesPending = counts.Pending
	snap.DeliveriesFired = counts.Fired
	snap.DeliveriesFailed = counts.Failed

	if staleDays > 0 {
		cutoff := now.AddDate(0, 0, -staleDays)
		n, err := c.src.CountStaleQuarantine(ctx, cutoff)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: count stale quarantine")
		}
		snap.StaleQuarantine = n
	}

	return snap, nil
}
