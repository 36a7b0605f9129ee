package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/macrolog/internal/logbook"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLogbook(func(*logbook.Service) error {
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
