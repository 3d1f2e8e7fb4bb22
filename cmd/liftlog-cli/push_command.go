package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/claude/liftlog/internal/upload"
)

func newPushCommand(ctx *commandContext) *cobra.Command {
	var serverURL, apiKey, stateDir string
	var dryRun, force bool

	cmd := &cobra.Command{
		Use:   "push <path>...",
		Short: "Send training logs and scraped workouts to a LiftLog server",
		Long: `Walk files and directories and POST each training log (.txt, .log, .md)
to /api/v1/ingest/log and each workout array (.json) to
/api/v1/ingest/gravitus. Files pushed before with identical content are
skipped unless --force is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if serverURL == "" && !dryRun {
				return errors.New("--server is required (or use --dry-run)")
			}
			if apiKey == "" {
				apiKey = cfg.Auth.APIKey
			}

			var client *upload.Client
			if !dryRun {
				client = upload.NewClient(serverURL, apiKey)
			}

			var state *upload.StateDB
			if !force {
				if stateDir == "" {
					home, err := os.UserHomeDir()
					if err != nil {
						return fmt.Errorf("locating home directory: %w", err)
					}
					stateDir = filepath.Join(home, ".liftlog")
				}
				state, err = upload.OpenStateDB(stateDir)
				if err != nil {
					return err
				}
				defer state.Close()
			}

			stats, err := upload.New(client, state, dryRun, ctx.logger(cmd)).Run(cmd.Context(), args...)
			if stats != nil {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Files: %d total, %d pushed, %d unchanged, %d failed\n",
					stats.FilesTotal, stats.FilesPushed, stats.FilesSkipped, stats.FilesErrored)
				fmt.Fprintf(out, "Workouts: %d, sets: %d\n", stats.WorkoutsSent, stats.SetsSent)
			}
			if err != nil {
				return err
			}
			if stats.FilesErrored > 0 {
				return fmt.Errorf("%d files failed", stats.FilesErrored)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", os.Getenv("LIFTLOG_SERVER"), "LiftLog server URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Ingest API key (default auth.api_key)")
	cmd.Flags().StringVar(&stateDir, "state", "", "Push state directory (default ~/.liftlog)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse files locally without sending")
	cmd.Flags().BoolVar(&force, "force", false, "Push files even if unchanged")
	return cmd
}
