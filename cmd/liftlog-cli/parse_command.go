package main

import (
	"github.com/spf13/cobra"
)

func newParseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>...",
		Short: "Decompose training logs into JSON workouts",
		Long: `Decompose manual training logs into workout records and print them as JSON.

Each blank-line separated block starts with "<date>: <title>" followed by
"<exercise>: <sets>" lines. Exercise names are normalized with the
configured rename table.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
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
			return writeJSON(cmd, workouts)
		},
	}
}
