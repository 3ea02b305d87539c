package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/utilcast/app"
	"github.com/kilianp07/utilcast/config"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Model artifact commands",
}

var modelsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the model artifacts",
	RunE:  runModelsLs,
}

func init() {
	modelsCmd.AddCommand(modelsLsCmd)
	rootCmd.AddCommand(modelsCmd)
}

func runModelsLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withService(ctx, func(cfg *config.Config, svc *app.Service) error {
		names, err := svc.Models.Available(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "no models in %s\n", cfg.Models.Dir)
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	})
}
