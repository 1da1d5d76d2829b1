package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jkaninda/huddle/internal/config"
	"github.com/jkaninda/huddle/internal/joiner"
	"github.com/jkaninda/huddle/internal/meetingtime"
	"github.com/jkaninda/huddle/internal/tools"
	"github.com/jkaninda/huddle/internal/tools/meeting"
	"github.com/jkaninda/huddle/internal/zoom"
)

var (
	zoomTopic    string
	zoomStart    string
	zoomDuration int
	zoomAgenda   string
	zoomListType string
)

var zoomCmd = &cobra.Command{
	Use:   "zoom",
	Short: "Manage Zoom meetings directly",
}

var zoomLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize Huddle with your Zoom account (authorization-code apps)",
	RunE:  runZoomLogin,
}

var zoomCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a scheduled meeting",
	Long: `Create a scheduled Zoom meeting. --start accepts the same expressions as
'huddle resolve', e.g. "tomorrow 3 pm" or "2025-06-01 10:00:00".`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		params := map[string]any{"start_time": zoomStart, "duration": zoomDuration}
		if zoomTopic != "" {
			params["topic"] = zoomTopic
		}
		if zoomAgenda != "" {
			params["agenda"] = zoomAgenda
		}
		return runZoomTool(cmd.Context(), "create_zoom_meeting", params)
	},
}

var zoomListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your meetings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runZoomTool(cmd.Context(), "list_zoom_meetings", map[string]any{"type": zoomListType})
	},
}

var zoomGetCmd = &cobra.Command{
	Use:   "get <meeting-id>",
	Short: "Show one meeting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runZoomTool(cmd.Context(), "get_zoom_meeting", map[string]any{"meeting_id": args[0]})
	},
}

var zoomDeleteCmd = &cobra.Command{
	Use:   "delete <meeting-id>",
	Short: "Delete a meeting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runZoomTool(cmd.Context(), "delete_zoom_meeting", map[string]any{"meeting_id": args[0]})
	},
}

func init() {
	zoomCreateCmd.Flags().StringVar(&zoomTopic, "topic", "", "meeting topic (default \""+zoom.DefaultTopic+"\")")
	zoomCreateCmd.Flags().StringVar(&zoomStart, "start", "", "start time expression (default now + 5 minutes)")
	zoomCreateCmd.Flags().IntVar(&zoomDuration, "duration", zoom.DefaultDuration, "duration in minutes")
	zoomCreateCmd.Flags().StringVar(&zoomAgenda, "agenda", "", "meeting description")
	zoomListCmd.Flags().StringVar(&zoomListType, "type", "scheduled", "scheduled, live or upcoming")

	zoomCmd.AddCommand(zoomLoginCmd, zoomCreateCmd, zoomListCmd, zoomGetCmd, zoomDeleteCmd)
}

func runZoomLogin(_ *cobra.Command, _ []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateZoom(); err != nil {
		return err
	}
	if cfg.Zoom.AuthMode() == config.ZoomAuthAccount {
		fmt.Println("Zoom is configured with account credentials; no login is needed.")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache := zoom.NewTokenCache(cfg.ZoomTokenCachePath())
	login := zoom.NewLogin(zoom.OAuthConfig(zoom.CredentialsFromConfig(cfg.Zoom)), cache, logger,
		zoom.WithBrowser(func(url string) error {
			fmt.Printf("Opening %s\n", url)
			return joiner.BrowserOpener{}.Open(ctx, url)
		}),
	)
	if _, err := login.Run(ctx); err != nil {
		return fmt.Errorf("zoom login: %w", err)
	}
	fmt.Printf("Logged in to Zoom. Token cached at %s\n", cache.Path())
	return nil
}

// runZoomTool executes one meeting tool without storage or an LLM.
func runZoomTool(ctx context.Context, name string, params map[string]any) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	reg := tools.NewRegistry()
	reg.Register(meeting.All(meeting.Deps{
		API:      newLazyZoom(cfg, nil, logger),
		Resolver: meetingtime.New(meetingtime.WithLocation(loc), meetingtime.WithLogger(logger)),
		Opener:   joiner.BrowserOpener{},
	})...)
	return runTool(ctx, os.Stdout, reg, name, params, logger)
}

// runTool validates and executes a registered tool, printing its report.
func runTool(ctx context.Context, w io.Writer, reg *tools.Registry, name string, params map[string]any, logger *slog.Logger) error {
	t := reg.Get(name)
	if t == nil {
		return fmt.Errorf("unknown tool: %s", name)
	}
	if err := t.Validate(params); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	res, err := t.Execute(ctx, params)
	if err != nil {
		return err
	}
	logger.Debug("tool executed", slog.String("tool", name), slog.Bool("success", res.Success))
	fmt.Fprintln(w, res.Output)
	if !res.Success {
		return fmt.Errorf("%s failed", name)
	}
	return nil
}
