package main

import (
	"errors"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	liftmcp "github.com/claude/liftlog/internal/mcp"
)

func newMCPCommand(ctx *commandContext) *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio backed by a remote LiftLog server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if serverURL == "" {
				return errors.New("--server is required")
			}
			table, err := cfg.Tables.RPETable()
			if err != nil {
				return err
			}

			ds := liftmcp.NewHTTPClient(serverURL)
			s := liftmcp.New(ds, table, cfg.Units.Policy(), Version, ctx.logger(cmd))
			return mcpserver.ServeStdio(s)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", os.Getenv("LIFTLOG_SERVER"), "LiftLog server URL")
	return cmd
}
