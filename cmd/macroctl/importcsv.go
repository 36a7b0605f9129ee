package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/macrolog/internal/logbook"
)

var importWipe bool

const importCSVHelp = `Import food logs from a CSV file with the columns
date, name, amount, unit, kick, kcal, protein, fat, carbs, score, memo.
The first line is a header. Rows without a date, name, amount or calories are skipped.`

var importCSVCmd = &cobra.Command{
	Use:   "import-csv FILE",
	Short: "Import food logs from a CSV export",
	Long:  importCSVHelp,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		return withLogbook(func(svc *logbook.Service) error {
			stats, err := svc.ImportCSV(cmd.Context(), f, importWipe)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported: %d\n", stats.Imported)
			fmt.Fprintf(out, "skipped: %d\n", stats.Skipped)
			fmt.Fprintf(out, "days with memos: %d\n", stats.MemoDays)
			fmt.Fprintf(out, "total calories: %.0f kcal\n", stats.TotalKcal)
			return nil
		})
	},
}

func init() {
	importCSVCmd.Flags().BoolVar(&importWipe, "wipe", false, "Delete existing food logs and daily records first")
	rootCmd.AddCommand(importCSVCmd)
}
