package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jkaninda/huddle/internal/gateway/httpapi"
	"github.com/jkaninda/huddle/internal/meetingtime"
)

var (
	resolveStrict bool
	resolveNow    string
	resolveJSON   bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <expression...>",
	Short: "Resolve a meeting time expression to a timestamp",
	Long: `Resolve a natural-language meeting time the same way the assistant does.
Unparseable expressions fall back to five minutes from now unless --strict is set.

Examples:
  huddle resolve tomorrow 3 pm
  huddle resolve "may 12th at 9am" --now 2025-03-10T09:00:00Z
  huddle resolve "32 pm" --strict`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveStrict, "strict", false, "fail instead of falling back to now + 5 minutes")
	resolveCmd.Flags().StringVar(&resolveNow, "now", "", "reference time (RFC 3339 or 'YYYY-MM-DD HH:MM:SS')")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "print the result as JSON")
}

func runResolve(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	opts := []meetingtime.Option{meetingtime.WithLocation(loc), meetingtime.WithLogger(newLogger())}
	if resolveNow != "" {
		now, err := parseNow(resolveNow, loc)
		if err != nil {
			return err
		}
		opts = append(opts, meetingtime.WithClock(func() time.Time { return now }))
	}

	resp, err := httpapi.ResolveExpression(meetingtime.New(opts...), httpapi.ResolveRequest{
		Expression: strings.Join(args, " "),
		Strict:     resolveStrict,
	})
	if err != nil {
		return err
	}
	return printResolution(os.Stdout, resp, resolveJSON)
}

// parseNow accepts RFC 3339 or the calendar display layout in loc.
func parseNow(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	t, err := meetingtime.ParseDisplay(s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now %q: want RFC 3339 or YYYY-MM-DD HH:MM:SS", s)
	}
	return t, nil
}

func printResolution(w io.Writer, r httpapi.ResolveResponse, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(w, "start_time: %s\n", r.StartTime)
	fmt.Fprintf(w, "zoom_time:  %s\n", r.ZoomTime)
	fmt.Fprintf(w, "rule:       %s\n", r.Rule)
	if r.Fallback {
		fmt.Fprintln(w, "fallback:   true (expression not understood)")
	}
	return nil
}
