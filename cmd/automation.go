package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/schedule"
)

var automationCmd = &cobra.Command{
	Use:   "automation",
	Short: "Reminder and automation rules",
}

var automationTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Evaluate active rules once and deliver pending e-mails",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("automation"); err != nil {
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

		now := time.Now().UTC()
		tick, err := engine.Tick(ctx, now)
		if err != nil {
			// Markers already fired still need their e-mails.
			zap.L().Error("automation tick failed", zap.Error(err))
		}
		delivery, derr := engine.Deliver(ctx, now)
		if derr != nil {
			return derr
		}

		zap.L().Info("automation cycle complete",
			zap.Int("rules", tick.Rules),
			zap.Int("matched", tick.Matched),
			zap.Int("fired", tick.Fired),
			zap.Int("skipped", tick.Skipped),
			zap.Int("sent", delivery.Sent),
			zap.Int("retrying", delivery.Retrying),
			zap.Int("failed", delivery.Failed),
			zap.Int("deferred", delivery.Deferred),
			zap.Int("claimed_elsewhere", delivery.Skipped),
		)
		return err
	},
}

var automationScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Register the recurring automation schedule in Temporal",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Temporal.HostPort == "" {
			return eris.New("temporal.host_port is required")
		}
		c, err := dialTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		return schedule.EnsureSchedule(cmd.Context(), c, schedule.Options{
			TaskQueue: cfg.Temporal.TaskQueue,
			Interval:  cfg.Temporal.TickInterval,
		})
	},
}

func dialTemporal() (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return nil, eris.Wrap(err, "dial temporal")
	}
	return c, nil
}

func init() {
	automationCmd.AddCommand(automationTickCmd)
	automationCmd.AddCommand(automationScheduleCmd)
	rootCmd.AddCommand(automationCmd)
}
