package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpadapter "github.com/quillform/stepflow/pkg/adapters/mcp"

	"github.com/quillform/stepflow/pkg/adapters/memory"
	"github.com/quillform/stepflow/pkg/forms"
	"github.com/quillform/stepflow/pkg/session"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the form to agents via MCP",
	Long: `Starts a Model Context Protocol server so that agents can render steps,
fill fields and navigate the form as tools.

The stdio transport is for direct subprocess integration with a client;
SSE serves the protocol over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		// Stdout belongs to the protocol, so logs go to stderr.
		logger := newLogger(cmd)
		slog.SetDefault(logger)

		def, err := forms.Load(formPath(cmd))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading form: %v\n", err)
			os.Exit(1)
		}

		sessions := session.NewManager(memory.NewStore(), session.WithLogger(logger))
		server := mcpadapter.NewServer(def, sessions)

		switch transport {
		case "stdio":
			if err := server.ServeStdio(); err != nil {
				fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
				os.Exit(1)
			}
		case "sse":
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("mcp sse server listening", "port", port)
			if err := server.ServeSSE(ctx, port); err != nil {
				fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
				os.Exit(1)
			}
		default:
			fmt.Fprintf(os.Stderr, "Unknown transport %q (use stdio or sse)\n", transport)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport to use: stdio or sse")
	mcpCmd.Flags().IntP("port", "p", 8090, "Port for the SSE transport")
}
