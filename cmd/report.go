package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ashstep2/agent-eval-harness/internal/report"
)

var (
	flagFormat  string
	flagRunID   string
	flagPricing string
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize stored evaluation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := loadEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			out := cmd.OutOrStdout()
			if flagRunID != "" {
				return report.GenerateRun(ctx, e.store, flagRunID, flagFormat, out)
			}
			pricing := flagPricing
			if pricing == "" {
				pricing = e.cfg.Pricing
			}
			return report.Generate(ctx, e.store, report.Options{
				Format:      flagFormat,
				PricingPath: pricing,
				UsageLog:    e.cfg.UsageLog,
			}, out)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", report.FormatTable, "output format (table, markdown, json)")
	cmd.Flags().StringVar(&flagRunID, "run", "", "show the detail of a single run")
	cmd.Flags().StringVar(&flagPricing, "pricing", "", "pricing file (defaults to the config's pricing path)")
	return cmd
}
