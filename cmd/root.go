// Package cmd holds the outpost CLI.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var configPath string

// Execute runs the CLI.
func Execute() {
	root := &cobra.Command{
		Use:   "outpost",
		Short: "Remotely commanded device agent",
		Long: "outpost connects to a controller over WebSocket, announces the host\n" +
			"environment, and executes controller-pushed tasks, streaming progress\n" +
			"and results back per task.",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: $OUTPOST_CONFIG or outpost.yaml)")

	root.AddCommand(runCmd())
	root.AddCommand(snapshotCmd())
	root.AddCommand(qrCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if v := os.Getenv("OUTPOST_CONFIG"); v != "" {
		return v
	}
	return "outpost.yaml"
}

// setupLogging installs the default slog handler at the given level.
func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logLevel.Set(lvl)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel})))
}

// logLevel is shared so config hot reload can adjust verbosity live.
var logLevel slog.LevelVar
