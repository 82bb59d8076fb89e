package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/importer"
	"github.com/olvconsultores/stratevo/pkg/notion"
)

var (
	importFile   string
	importNotion bool
	importTenant string
	importStatus string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import companies from a CSV/XLSX file or the Notion company database",
	RunE: func(cmd *cobra.Command, args []string) error {
		if importTenant == "" {
			return eris.New("--tenant is required")
		}
		if (importFile == "") == !importNotion {
			return eris.New("exactly one of --file or --notion is required")
		}
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		im := importer.New(st)

		var sum *importer.Summary
		if importNotion {
			if cfg.Notion.Token == "" || cfg.Notion.CompanyDB == "" {
				return eris.New("notion.token and notion.company_db are required for --notion")
			}
			nc := notion.NewClient(cfg.Notion.Token)
			sum, err = im.ImportNotion(ctx, nc, cfg.Notion.CompanyDB, importTenant, importStatus)
		} else {
			sum, err = im.ImportFile(ctx, importTenant, importFile)
		}
		if err != nil {
			return err
		}

		for _, re := range sum.Errors {
			zap.L().Warn("row rejected", zap.Int("row", re.Row), zap.String("reason", re.Reason))
		}
		zap.L().Info("import complete",
			zap.String("tenant_id", importTenant),
			zap.Int("rows", sum.Rows),
			zap.Int("imported", sum.Imported),
			zap.Int("skipped", sum.Skipped),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to a .csv or .xlsx file")
	importCmd.Flags().BoolVar(&importNotion, "notion", false, "import from the configured Notion database")
	importCmd.Flags().StringVar(&importTenant, "tenant", "", "tenant that owns the imported companies")
	importCmd.Flags().StringVar(&importStatus, "status", importer.NotionStatusPending, "Notion status to import (empty imports every page)")
	rootCmd.AddCommand(importCmd)
}
