package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dbDriver string
	dbDSN    string
)

var rootCmd = &cobra.Command{
	Use:   "macroctl",
	Short: "macroctl manages the macrolog database",
	Long:  "macroctl runs migrations, imports food history from CSV and sets macro targets on the macrolog database.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVar(&dbDriver, "driver", "", "Database driver (sqlite, mysql, postgres); overrides DB_DRIVER")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db", "", "Database DSN; overrides DB_DSN")
}

func main() {
	Execute()
}
