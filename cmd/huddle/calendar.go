package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jkaninda/huddle/internal/joiner"
)

var (
	calTitle       string
	calStart       string
	calDuration    int
	calURL         string
	calMeetingID   string
	calDescription string
	calDate        string

	joinDryRun bool
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Inspect and edit the local meeting calendar",
}

var calendarAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a meeting to the calendar",
	RunE: func(cmd *cobra.Command, _ []string) error {
		params := map[string]any{
			"title":       calTitle,
			"start_time":  calStart,
			"duration":    calDuration,
			"meeting_url": calURL,
			"meeting_id":  calMeetingID,
			"description": calDescription,
		}
		return runCalendarTool(cmd.Context(), "add_to_calendar", params)
	},
}

var calendarListCmd = &cobra.Command{
	Use:   "list",
	Short: "List calendar events",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runCalendarTool(cmd.Context(), "list_calendar_events", map[string]any{"date": calDate})
	},
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join calendar meetings starting within the joiner window",
	RunE:  runJoin,
}

func init() {
	calendarAddCmd.Flags().StringVar(&calTitle, "title", "", "meeting title (required)")
	calendarAddCmd.Flags().StringVar(&calStart, "start", "", "start time as YYYY-MM-DD HH:MM:SS (default now)")
	calendarAddCmd.Flags().IntVar(&calDuration, "duration", 0, "duration in minutes (default 60)")
	calendarAddCmd.Flags().StringVar(&calURL, "url", "", "meeting join URL")
	calendarAddCmd.Flags().StringVar(&calMeetingID, "meeting-id", "", "Zoom meeting ID")
	calendarAddCmd.Flags().StringVar(&calDescription, "description", "", "what the meeting is about")
	_ = calendarAddCmd.MarkFlagRequired("title")

	calendarListCmd.Flags().StringVar(&calDate, "date", "", "only events on this date (YYYY-MM-DD)")

	calendarCmd.AddCommand(calendarAddCmd, calendarListCmd)

	joinCmd.Flags().BoolVar(&joinDryRun, "dry-run", false, "claim meetings and print their URLs without opening a browser")
}

func runCalendarTool(ctx context.Context, name string, params map[string]any) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := initShared(cfg, logger, true)
	if err != nil {
		return err
	}
	defer sc.Cleanup()
	return runTool(ctx, os.Stdout, sc.ToolReg, name, params, logger)
}

func runJoin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc, err := initShared(cfg, logger, joinDryRun)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	events, err := sc.Joiner.Join(ctx)
	fmt.Println(joiner.Report(events))
	return err
}
