package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

// ScheduleID is the Temporal schedule that starts AutomationWorkflow.
const ScheduleID = "stratevo-automation"

// Options configures the schedule and worker.
type Options struct {
	TaskQueue string
	Interval  time.Duration
}

// EnsureSchedule creates the automation schedule if it does not exist.
// Overlapping runs are skipped so a slow cycle never races the next one.
func EnsureSchedule(ctx context.Context, c client.Client, opts Options) error {
	if opts.Interval <= 0 {
		return eris.New("schedule: interval must be > 0")
	}
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: ScheduleID,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: opts.Interval}},
		},
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
		Action: &client.ScheduleWorkflowAction{
			ID:        ScheduleID + "-run",
			Workflow:  AutomationWorkflow,
			TaskQueue: opts.TaskQueue,
		},
	})
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		zap.L().Info("schedule: already registered", zap.String("schedule_id", ScheduleID))
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "schedule: create")
	}
	zap.L().Info("schedule: registered",
		zap.String("schedule_id", ScheduleID),
		zap.Duration("interval", opts.Interval),
	)
	return nil
}

// NewWorker registers the workflow and activities on the task queue.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(AutomationWorkflow)
	w.RegisterActivity(acts)
	return w
}
