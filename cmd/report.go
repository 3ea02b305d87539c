package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	apiforecast "github.com/kilianp07/utilcast/api/forecast"
	"github.com/kilianp07/utilcast/app"
	"github.com/kilianp07/utilcast/config"
	"github.com/kilianp07/utilcast/core/forecast"
	"github.com/kilianp07/utilcast/core/period"
)

var reportOpts struct {
	year  int
	month int
	out   string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render the stored forecasts of a month as an HTML chart",
	Long:  "Render the stored forecasts of a month as an HTML chart. Without --year and --month the latest forecast month is used.",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportOpts.year, "year", 0, "year of the forecast month")
	reportCmd.Flags().IntVar(&reportOpts.month, "month", 0, "forecast month (1-12)")
	reportCmd.Flags().StringVarP(&reportOpts.out, "out", "o", "chart.html", "output file")
	reportCmd.MarkFlagsRequiredTogether("year", "month")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withService(ctx, func(_ *config.Config, svc *app.Service) error {
		p := period.Period{Year: reportOpts.year, Month: reportOpts.month}
		if p.Month == 0 {
			latest, ok, err := svc.Store.LatestPeriod(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no stored forecasts")
			}
			p = latest
		}
		recs, err := svc.Forecast.Lookup(ctx, p)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return fmt.Errorf("%w: %s", forecast.ErrNoDataForPeriod, p)
		}
		f, err := os.Create(reportOpts.out)
		if err != nil {
			return err
		}
		if err := apiforecast.RenderChart(f, p, recs); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d predictions for %s to %s\n", len(recs), p, reportOpts.out)
		return nil
	})
}
