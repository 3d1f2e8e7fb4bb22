package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/claude/liftlog/internal/performance"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var exercise, mode, unit, start, end string
	var inputLb, asJSON bool

	cmd := &cobra.Command{
		Use:   "history <file>...",
		Short: "Chart one exercise's progress across training logs",
		Long: `Compute one value per training date for an exercise.

Modes: e1RM (best estimated one-rep max), top-set (heaviest load),
tonnage (sum of load x reps) and top-single (heaviest single).
Files ending in .json are read as workout arrays, everything else as
manual training logs. A table is printed on a terminal, JSON otherwise.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			m, err := performance.ParseMode(mode)
			if err != nil {
				return err
			}
			if unit == "" {
				unit = cfg.Units.Display
			}
			if unit != "kg" && unit != "lb" {
				return fmt.Errorf("unit must be kg or lb, got %q", unit)
			}
			from, to, err := parseWindow(start, end)
			if err != nil {
				return err
			}

			table, err := cfg.Tables.RPETable()
			if err != nil {
				return err
			}
			names, err := cfg.Tables.Renamer()
			if err != nil {
				return err
			}
			workouts, err := loadWorkouts(args, names)
			if err != nil {
				return err
			}

			policy := cfg.Units.Policy()
			if inputLb {
				policy = performance.Uniform(true)
			}
			series, err := performance.NewEngine(table).HistoryWith(exercise, workouts, m, policy)
			if err != nil {
				return err
			}
			series = series.Between(from, to)
			if unit == "lb" {
				series = series.ToImperial()
			}

			out := cmd.OutOrStdout()
			if asJSON || !isTerminal(out) {
				return writeJSON(cmd, series)
			}
			if series.Empty() {
				fmt.Fprintf(out, "No %s sets found.\n", exercise)
				return nil
			}
			header := fmt.Sprintf("%s (%s)", m, unit)
			if m == performance.ModeTonnage {
				header = fmt.Sprintf("%s (%s x reps)", m, unit)
			}
			fmt.Fprintln(out, exercise)
			fmt.Fprintln(out, renderTable([]string{"Date", header}, series.Table(), 1))
			if best, ok := series.Max(); ok {
				fmt.Fprintf(out, "Best: %s on %s\n", formatNumber(best.Value), best.Day())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&exercise, "exercise", "e", "", "Exercise name, as normalized (e.g. \"Squat\")")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(performance.ModeE1RM), "Metric: "+modeList())
	cmd.Flags().StringVar(&unit, "unit", "", "Output unit kg or lb (default from config)")
	cmd.Flags().StringVar(&start, "start", "", "First date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "Last date to include (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&inputLb, "input-lb", false, "Treat every input load as pounds")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON even on a terminal")
	_ = cmd.MarkFlagRequired("exercise")
	return cmd
}

func modeList() string {
	modes := performance.Modes()
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// parseWindow turns inclusive date flags into a [from, to) window.
func parseWindow(start, end string) (from, to time.Time, err error) {
	if start != "" {
		if from, err = performance.ParseDate(start); err != nil {
			return from, to, fmt.Errorf("start: %w", err)
		}
	}
	if end != "" {
		if to, err = performance.ParseDate(end); err != nil {
			return from, to, fmt.Errorf("end: %w", err)
		}
		to = to.AddDate(0, 0, 1)
	}
	return from, to, nil
}
