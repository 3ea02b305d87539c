package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/utilcast/app"
	"github.com/kilianp07/utilcast/config"
	"github.com/kilianp07/utilcast/core/model"
	"github.com/kilianp07/utilcast/core/registry"
	"github.com/kilianp07/utilcast/pkg/export"
)

var predictOpts struct {
	year   int
	month  int
	models string
	format string
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Compute or fetch the forecasts of a month and print them",
	RunE:  runPredict,
}

func init() {
	predictCmd.Flags().IntVar(&predictOpts.year, "year", 0, "year of the current month")
	predictCmd.Flags().IntVar(&predictOpts.month, "month", 0, "current month (1-12)")
	predictCmd.Flags().StringVar(&predictOpts.models, "models", registry.AllModels, `model selector: a name, a comma separated list or "All"`)
	predictCmd.Flags().StringVarP(&predictOpts.format, "format", "f", export.FormatJSON, "output format: json or csv")
	_ = predictCmd.MarkFlagRequired("year")
	_ = predictCmd.MarkFlagRequired("month")
	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withService(ctx, func(_ *config.Config, svc *app.Service) error {
		res, err := svc.Forecast.PredictOrFetch(ctx, model.Request{
			Year:      predictOpts.year,
			Month:     predictOpts.month,
			ModelName: predictOpts.models,
		})
		if err != nil {
			return err
		}
		if res.Cached {
			fmt.Fprintf(cmd.ErrOrStderr(), "served %d stored predictions\n", len(res.Records))
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "computed %d predictions (run %s)\n", len(res.Records), res.RunID)
		}
		return export.Write(cmd.OutOrStdout(), predictOpts.format, res.Records)
	})
}
