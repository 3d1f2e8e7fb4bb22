package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/claude/liftlog/internal/ingest/gravitus"
	"github.com/claude/liftlog/internal/upload"
)

func newScrapeCommand(ctx *commandContext) *cobra.Command {
	var user, outDir, stateDir, baseURL, serverURL, apiKey string
	var workers int
	var pageDelay time.Duration
	var noCache, asJSON bool

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Download every workout of a Gravitus user",
		Long: `Collect a user's workout links page by page, fetch every workout page
in parallel and extract title, date, description and exercises.

Under <out>/<user>/ the run writes workout_url.json, the raw pages in
workouts/, not_downloaded_url.json and parsed_data.json. Pages fetched by
an earlier run are read from the state cache unless --no-cache is set.
With --server the parsed workouts are pushed to a LiftLog server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			gc := cfg.Gravitus
			if user == "" {
				user = gc.User
			}
			if user == "" {
				return errors.New("--user is required (or set gravitus.user)")
			}
			if cmd.Flags().Changed("out") {
				gc.OutDir = outDir
			}
			if cmd.Flags().Changed("workers") {
				gc.Workers = workers
			}
			if cmd.Flags().Changed("state") {
				gc.StateDir = stateDir
			}
			if cmd.Flags().Changed("page-delay") {
				gc.PageDelay = pageDelay
			}
			if baseURL != "" {
				gc.BaseURL = baseURL
			}
			if gc.StateDir == "" && gc.OutDir != "" {
				gc.StateDir = filepath.Join(gc.OutDir, user)
			}

			log := ctx.logger(cmd)
			client := gravitus.NewClient(gc.BaseURL, log,
				gravitus.WithRetry(gc.Attempts, gc.Backoff),
				gravitus.WithPageDelay(gc.PageDelay),
			)

			var state *gravitus.StateDB
			if !noCache && gc.StateDir != "" {
				state, err = gravitus.OpenStateDB(gc.StateDir)
				if err != nil {
					return err
				}
				defer state.Close()
			}

			scraper := gravitus.NewScraper(client, state, gc.OutDir, gc.Workers, log)
			progress := func(p gravitus.Progress) {
				if isTerminal(cmd.ErrOrStderr()) {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r%d/%d workouts", p.Done, p.Total)
				}
			}
			report, err := scraper.RunWithProgress(cmd.Context(), user, progress)
			if isTerminal(cmd.ErrOrStderr()) {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			if err != nil {
				return err
			}

			if serverURL != "" {
				if apiKey == "" {
					apiKey = cfg.Auth.APIKey
				}
				res, err := upload.NewClient(serverURL, apiKey).SendWorkouts(cmd.Context(), report.Workouts)
				if err != nil {
					return fmt.Errorf("pushing workouts: %w", err)
				}
				log.Info("pushed workouts", "server", serverURL, "inserted", res.WorkoutsInserted)
			}

			out := cmd.OutOrStdout()
			if asJSON || !isTerminal(out) {
				return writeJSON(cmd, report)
			}
			rows := [][]string{
				{"Links", strconv.Itoa(report.Links)},
				{"Fetched", strconv.Itoa(report.Fetched)},
				{"Cached", strconv.Itoa(report.Cached)},
				{"Workouts", strconv.Itoa(len(report.Workouts))},
				{"Failed", strconv.Itoa(len(report.Failed))},
				{"Duration", report.Duration.Round(time.Millisecond).String()},
			}
			fmt.Fprintln(out, renderTable([]string{user, ""}, rows, 1))
			if gc.OutDir != "" {
				fmt.Fprintf(out, "Output: %s\n", filepath.Join(gc.OutDir, user))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "Gravitus username (default from config)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory; empty disables file output")
	cmd.Flags().StringVar(&stateDir, "state", "", "State cache directory (default <out>/<user>)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Site base URL")
	cmd.Flags().IntVarP(&workers, "workers", "w", gravitus.DefaultWorkers, "Concurrent page fetches")
	cmd.Flags().DurationVar(&pageDelay, "page-delay", 0, "Maximum random pause before each listing page (default from config)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Fetch every page even if cached")
	cmd.Flags().StringVar(&serverURL, "server", os.Getenv("LIFTLOG_SERVER"), "LiftLog server URL to push to")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Ingest API key (default auth.api_key)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the JSON report even on a terminal")
	return cmd
}
