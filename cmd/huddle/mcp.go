package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jkaninda/huddle/internal/gateway/mcpserver"
)

var mcpDryRun bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the meeting, calendar and email tools over MCP stdio",
	Long: `Expose Huddle's tools to another agent over the Model Context Protocol.
The server speaks JSON-RPC on stdin/stdout; logs go to stderr.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().BoolVar(&mcpDryRun, "dry-run", false, "record meeting joins instead of opening a browser")
}

func runMCP(_ *cobra.Command, _ []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := initShared(cfg, logger, mcpDryRun)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	srv, err := mcpserver.New("huddle", version, sc.ToolReg, nil, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Serve(ctx)
}
