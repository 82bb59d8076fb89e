// Package schedule runs the automation tick on Temporal: a workflow that
// evaluates rules and then delivers due e-mail, started by a Temporal
// schedule at a fixed interval.
package schedule

import (
	"context"
	"time"

	"go.temporal.io/sdk/activity"

	"github.com/olvconsultores/stratevo/internal/automation"
)

// Runner is the automation surface the activities drive.
type Runner interface {
	Tick(ctx context.Context, now time.Time) (automation.TickSummary, error)
	Deliver(ctx context.Context, now time.Time) (automation.DeliverySummary, error)
}

// Activities wraps a Runner for registration with a Temporal worker.
type Activities struct {
	runner Runner
}

// NewActivities creates the activity set.
func NewActivities(r Runner) *Activities {
	return &Activities{runner: r}
}

// Tick evaluates every active rule at now.
func (a *Activities) Tick(ctx context.Context, now time.Time) (automation.TickSummary, error) {
	sum, err := a.runner.Tick(ctx, now)
	if err != nil {
		return sum, err
	}
	activity.GetLogger(ctx).Info("automation tick",
		"rules", sum.Rules, "matched", sum.Matched, "fired", sum.Fired,
		"skipped", sum.Skipped, "errors", sum.Errors)
	return sum, nil
}

// Deliver sends the e-mail markers due at now.
func (a *Activities) Deliver(ctx context.Context, now time.Time) (automation.DeliverySummary, error) {
	sum, err := a.runner.Deliver(ctx, now)
	if err != nil {
		return sum, err
	}
	activity.GetLogger(ctx).Info("automation delivery",
		"sent", sum.Sent, "retrying", sum.Retrying, "failed", sum.Failed, "deferred", sum.Deferred, "skipped", sum.Skipped)
	return sum, nil
}
