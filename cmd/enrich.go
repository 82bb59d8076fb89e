package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/enrich"
	"github.com/olvconsultores/stratevo/internal/model"
	"github.com/olvconsultores/stratevo/internal/store"
)

var (
	enrichTenant string
	enrichLimit  int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Validate company CNPJs against the public registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		if enrichTenant == "" {
			return eris.New("--tenant is required")
		}
		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		companies, err := st.ListCompanies(ctx, enrichTenant, store.CompanyFilter{
			Status: model.StatusNew,
			Limit:  enrichLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list companies")
		}

		e := enrich.New(initRegistry(), st, enrich.Config{
			Timeout:        cfg.Registry.Timeout,
			MaxConcurrency: cfg.Qualification.MaxConcurrency,
		})
		sum, err := e.EnrichBatch(ctx, companies)
		if err != nil {
			return err
		}

		zap.L().Info("enrichment complete",
			zap.String("tenant_id", enrichTenant),
			zap.Int64("validated", sum.Validated),
			zap.Int64("invalid", sum.Invalid),
			zap.Int64("failed", sum.Failed),
		)
		return nil
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichTenant, "tenant", "", "tenant whose new companies are validated")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 100, "max companies to validate")
	rootCmd.AddCommand(enrichCmd)
}
