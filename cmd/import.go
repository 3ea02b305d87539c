package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/utilcast/app"
	"github.com/kilianp07/utilcast/config"
	"github.com/kilianp07/utilcast/infra/logger"
	"github.com/kilianp07/utilcast/infra/storage"
)

var importCmd = &cobra.Command{
	Use:   "import <dataset.yaml>",
	Short: "Load buildings and monthly readings from a YAML or JSON dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ds, err := storage.LoadDataset(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return withService(ctx, func(_ *config.Config, svc *app.Service) error {
		st, err := storage.NewImporter(svc.DB, logger.New("import")).Import(ctx, ds)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d buildings, %d unit readings, %d user counts, %d exam and %d semester flags\n",
			st.Buildings, st.Units, st.Users, st.Exams, st.Semesters)
		return nil
	})
}
