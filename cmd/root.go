package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "stratevo",
	Short: "Multi-tenant sales qualification and CRM automation",
	Long:  "Scores companies against ideal customer profiles, moves them through the qualification and deal lifecycle, and fires reminder automations.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
