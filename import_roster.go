package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importRosterCmd = &cobra.Command{
	Use:   "import-roster <file.xlsx>",
	Short: "Replace the stored roster with the groups in an Excel workbook",
	Long: `Reads the first sheet of the workbook. Row 1 is a header; columns are
A=group, B=name, C=grade.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		state, closeState, err := openState(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer closeState()

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open roster workbook: %w", err)
		}
		defer f.Close()

		roster, count, err := state.ImportRosterFromExcel(ctx, f)
		if err != nil {
			return err
		}
		logger.Info("roster imported", zap.String("file", args[0]), zap.Int("groups", len(roster)), zap.Int("students", count))
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d students in %d groups\n", count, len(roster))
		return nil
	},
}
