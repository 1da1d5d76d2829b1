// Huddle is an email-driven Zoom meeting assistant.
package main

import (
	"fmt"
	"log/slog"
	"os"

	goutils "github.com/jkaninda/go-utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jkaninda/huddle/internal/config"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Huddle: an email-driven Zoom meeting assistant.",
	Long: `Huddle reads your inbox, decides which emails need a meeting, schedules it on
Zoom, records it in a local calendar and joins it when it is about to start.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to config file (or HUDDLE_CONFIG env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(
		serveCmd,
		runCmd,
		chatCmd,
		resolveCmd,
		zoomCmd,
		calendarCmd,
		joinCmd,
		queryCmd,
		mcpCmd,
		versionCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger. Debug comes from --debug or HUDDLE_LOG_LEVEL.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debug || goutils.Env("HUDDLE_LOG_LEVEL", "") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads the config file; a missing file falls back to defaults.
func loadConfig() (*config.Config, error) {
	return config.Load(goutils.Env("HUDDLE_CONFIG", configPath), true)
}
