package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/huddle/internal/domain"
	"github.com/jkaninda/huddle/internal/gateway/cli"
	"github.com/jkaninda/huddle/internal/workflow"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run [request...]",
	Short: "Run the email workflow once, printing each stage",
	Long: `Run the email workflow once: read the inbox, analyze it, schedule a Zoom
meeting when one is needed, add it to the calendar and join any meeting that
is about to start.

Examples:
  huddle run
  huddle run "check my emails and set up the meetings they ask for"`,
	RunE: runWorkflow,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the meeting assistant in the terminal",
	RunE:  runChat,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "record meeting joins instead of opening a browser")
}

func runWorkflow(_ *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := initShared(cfg, logger, runDryRun)
	if err != nil {
		return err
	}
	defer sc.Cleanup()
	if err := sc.initAgents(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	request := strings.TrimSpace(strings.Join(args, " "))
	if request == "" {
		request = workflow.DefaultRequest
	}

	sc.Workflow.OnStage(func(s domain.StageResult) {
		fmt.Print(formatStage(s))
	})
	res, err := sc.Workflow.Run(ctx, request)
	if res != nil {
		fmt.Fprintf(os.Stderr, "[run_id=%s status=%s tokens=%d]\n", res.Run.ID, res.Run.Status, res.Run.TokensUsed)
	}
	return err
}

// formatStage renders one finished stage for the terminal.
func formatStage(s domain.StageResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s", s.Name)
	switch {
	case s.Skipped:
		b.WriteString(" (skipped)\n")
	case s.Error != "":
		fmt.Fprintf(&b, " (failed after %s)\nError: %s\n", s.Duration.Round(time.Millisecond), s.Error)
	default:
		fmt.Fprintf(&b, " (%s, %d tool calls)\n", s.Duration.Round(time.Millisecond), s.ToolCalls)
	}
	if !s.Skipped && s.Output != "" {
		b.WriteString(strings.TrimRight(s.Output, "\n"))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

func runChat(_ *cobra.Command, _ []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := initShared(cfg, logger, false)
	if err != nil {
		return err
	}
	defer sc.Cleanup()
	if err := sc.initAgents(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return cli.NewGateway(sc.Assistant, logger).Start(ctx)
}
