package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/schedule"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the Temporal worker that executes scheduled automation cycles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("worker"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		engine, err := newEngine(st)
		if err != nil {
			return err
		}

		c, err := dialTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		if err := schedule.EnsureSchedule(ctx, c, schedule.Options{
			TaskQueue: cfg.Temporal.TaskQueue,
			Interval:  cfg.Temporal.TickInterval,
		}); err != nil {
			return err
		}

		w := schedule.NewWorker(c, cfg.Temporal.TaskQueue, schedule.NewActivities(engine))
		zap.L().Info("worker starting", zap.String("task_queue", cfg.Temporal.TaskQueue))
		if err := w.Run(worker.InterruptCh()); err != nil {
			return eris.Wrap(err, "worker run")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
