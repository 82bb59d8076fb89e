package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/olvconsultores/stratevo/internal/model"
	"github.com/olvconsultores/stratevo/internal/qualify"
	"github.com/olvconsultores/stratevo/internal/store"
)

var (
	qualifyTenant string
	qualifyICP    string
	qualifyICPID  string
	qualifyStatus string
	qualifyLimit  int
)

var qualifyCmd = &cobra.Command{
	Use:   "qualify",
	Short: "Score a tenant's companies against an ICP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if qualifyTenant == "" {
			return eris.New("--tenant is required")
		}
		if (qualifyICP == "") == (qualifyICPID == "") {
			return eris.New("exactly one of --icp or --icp-id is required")
		}
		if err := cfg.Validate("qualify"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var icp *model.ICP
		if qualifyICP != "" {
			icp, err = qualify.LoadICP(qualifyICP)
			if err != nil {
				return err
			}
			icp.TenantID = qualifyTenant
			if err := st.SaveICP(ctx, icp); err != nil {
				return eris.Wrap(err, "save icp")
			}
		} else {
			icp, err = st.GetICP(ctx, qualifyTenant, qualifyICPID)
			if err != nil {
				return eris.Wrap(err, "load icp")
			}
		}

		companies, err := st.ListCompanies(ctx, qualifyTenant, store.CompanyFilter{
			Status: model.PipelineStatus(qualifyStatus),
			Limit:  qualifyLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list companies")
		}

		runner := newRunner(st, newMachine(st))
		sum, err := runner.Run(ctx, icp, companies)
		if err != nil {
			return err
		}

		grades := make(map[string]int, len(sum.Grades))
		for g, n := range sum.Grades {
			grades[string(g)] = n
		}
		zap.L().Info("qualification complete",
			zap.String("tenant_id", qualifyTenant),
			zap.String("icp_id", icp.ID),
			zap.Int("companies", len(companies)),
			zap.Int64("scored", sum.Scored),
			zap.Int64("reused", sum.Reused),
			zap.Int64("failed", sum.Failed),
			zap.Any("grades", grades),
		)
		return nil
	},
}

func init() {
	qualifyCmd.Flags().StringVar(&qualifyTenant, "tenant", "", "tenant to qualify")
	qualifyCmd.Flags().StringVar(&qualifyICP, "icp", "", "path to an ICP YAML definition (saved before scoring)")
	qualifyCmd.Flags().StringVar(&qualifyICPID, "icp-id", "", "ID of a stored ICP")
	qualifyCmd.Flags().StringVar(&qualifyStatus, "status", string(model.StatusNew), "only companies in this pipeline status (empty for all)")
	qualifyCmd.Flags().IntVar(&qualifyLimit, "limit", 0, "max companies to score (0 = no limit)")
	rootCmd.AddCommand(qualifyCmd)
}
