package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/claude/liftlog/internal/rpe"
	"github.com/claude/liftlog/internal/units"
)

func newE1RMCommand(ctx *commandContext) *cobra.Command {
	var load float64
	var reps, rpeFlag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "e1rm",
		Short: "Estimate a one-rep max from load, reps and RPE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			table, err := cfg.Tables.RPETable()
			if err != nil {
				return err
			}

			n, err := rpe.ParseReps(reps)
			if err != nil {
				return err
			}
			var r *float64
			if rpeFlag != "" {
				v, err := rpe.ParseRPE(rpeFlag)
				if err != nil {
					return err
				}
				r = &v
			}

			e, err := table.Estimate1RM(load, n, r)
			if err != nil {
				return err
			}
			cr, cp := rpe.Clamp(n, r)
			pct, _ := table.Percent(cr, cp)
			e = units.Round(e, units.DefaultPrecision)

			if asJSON {
				return writeJSON(cmd, map[string]any{
					"load": load, "reps": cr, "rpe": cp, "percent": pct, "e1rm": e,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s x%d @%s = %d%% of 1RM, e1RM %s\n",
				formatNumber(load), cr, formatNumber(cp), pct, formatNumber(e))
			return nil
		},
	}

	cmd.Flags().Float64Var(&load, "load", 0, "Load lifted")
	cmd.Flags().StringVar(&reps, "reps", "", "Repetitions performed")
	cmd.Flags().StringVar(&rpeFlag, "rpe", "", "RPE (6.5 to 10 in half steps); omitted means 6.5")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	_ = cmd.MarkFlagRequired("load")
	_ = cmd.MarkFlagRequired("reps")
	return cmd
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
