package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/macrolog/internal/logbook"
)

var targetsLBM float64

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Set lean body mass and store the derived macro targets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if targetsLBM <= 0 {
			return fmt.Errorf("--lbm must be > 0")
		}
		lbm := targetsLBM
		return withLogbook(func(svc *logbook.Service) error {
			c, err := svc.UpdateConfig(cmd.Context(), logbook.ConfigPatch{LeanBodyMass: &lbm})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "lean body mass: %.1f kg\n", lbm)
			fmt.Fprintf(out, "calories: %.0f kcal\n", deref(c.BaseCalories))
			fmt.Fprintf(out, "protein: %.1f g\n", deref(c.BaseProtein))
			fmt.Fprintf(out, "fat: %.1f g\n", deref(c.BaseFat))
			fmt.Fprintf(out, "carbs: %.1f g\n", deref(c.BaseCarbs))
			if c.BMR != nil {
				fmt.Fprintf(out, "bmr: %.0f kcal\n", *c.BMR)
			}
			return nil
		})
	},
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func init() {
	targetsCmd.Flags().Float64Var(&targetsLBM, "lbm", 0, "Lean body mass in kg")
	rootCmd.AddCommand(targetsCmd)
}
