package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/crmsync"
)

var crmSyncLimit int

var crmCmd = &cobra.Command{
	Use:   "crm",
	Short: "External CRM integration",
}

var crmSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Export won deals to Salesforce",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("crm"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sf, err := initSalesforce()
		if err != nil {
			return err
		}

		sum, err := crmsync.New(st, sf).Run(ctx, crmSyncLimit)
		if err != nil {
			return err
		}
		zap.L().Info("crm sync complete",
			zap.Int("exported", sum.Exported),
			zap.Int("failed", sum.Failed),
		)
		return nil
	},
}

func init() {
	crmSyncCmd.Flags().IntVar(&crmSyncLimit, "limit", 50, "max deals to export")
	crmCmd.AddCommand(crmSyncCmd)
	rootCmd.AddCommand(crmCmd)
}
