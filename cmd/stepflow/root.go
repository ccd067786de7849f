package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillform/stepflow/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "stepflow",
	Short: "Stepflow is an engine for multi-step form flows",
	Long: `Stepflow drives multi-step form definitions: navigation with history,
conditional branches, skip logic and field validation.

Point it at a form definition (YAML) and run it interactively, serve it
over HTTP, or expose it to agents via MCP.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("form", "f", "form.yaml", "Path to the form definition")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logging.New(logging.ParseLevel(level))
}

func formPath(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("form")
	if err != nil || path == "" {
		fmt.Fprintln(os.Stderr, "a form definition is required (--form)")
		os.Exit(1)
	}
	return path
}
