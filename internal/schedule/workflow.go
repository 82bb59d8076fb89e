package schedule

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/olvconsultores/stratevo/internal/automation"
)

// AutomationResult is what one workflow run did.
type AutomationResult struct {
	Tick       automation.TickSummary     `json:"tick"`
	Delivery   automation.DeliverySummary `json:"delivery"`
	TickFailed bool                       `json:"tick_failed"`
}

// AutomationWorkflow runs one automation cycle: Tick, then Deliver. A tick
// that fails after its retries is logged and delivery still runs, so markers
// created by earlier cycles keep flowing.
func AutomationWorkflow(ctx workflow.Context) (AutomationResult, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})
	log := workflow.GetLogger(ctx)

	var (
		acts *Activities
		res  AutomationResult
	)
	now := workflow.Now(ctx)

	if err := workflow.ExecuteActivity(ctx, acts.Tick, now).Get(ctx, &res.Tick); err != nil {
		log.Error("automation tick failed", "error", err)
		res.TickFailed = true
	}

	if err := workflow.ExecuteActivity(ctx, acts.Deliver, now).Get(ctx, &res.Delivery); err != nil {
		return res, err
	}
	return res, nil
}
