package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	redisadapter "github.com/quillform/stepflow/pkg/adapters/redis"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persistent form sessions",
	Long:  `List, inspect, and remove sessions held in the Redis store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all active sessions",
	Run: func(cmd *cobra.Command, args []string) {
		store := sessionStore(cmd)
		defer store.Close()

		sessions, err := store.List(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing sessions: %v\n", err)
			os.Exit(1)
		}

		if len(sessions) == 0 {
			fmt.Println("No active sessions found.")
			return
		}

		fmt.Println("Active sessions:")
		for _, s := range sessions {
			fmt.Println("- " + s)
		}
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Inspect the state of a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sessionID := args[0]
		store := sessionStore(cmd)
		defer store.Close()

		snap, err := store.Load(cmd.Context(), sessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading session %q: %v\n", sessionID, err)
			os.Exit(1)
		}

		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling state: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>",
	Short: "Remove a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sessionID := args[0]
		store := sessionStore(cmd)
		defer store.Close()

		if err := store.Delete(cmd.Context(), sessionID); err != nil {
			fmt.Fprintf(os.Stderr, "Error removing session %q: %v\n", sessionID, err)
			os.Exit(1)
		}
		fmt.Printf("Removed session %q.\n", sessionID)
	},
}

// sessionStore connects to the Redis store named by the --redis flags. The
// in-memory store is per-process, so there is nothing for this command to
// manage without Redis.
func sessionStore(cmd *cobra.Command) *redisadapter.Store {
	addr, _ := cmd.Flags().GetString("redis")
	if addr == "" {
		fmt.Fprintln(os.Stderr, "session management requires a Redis store (--redis)")
		os.Exit(1)
	}
	password, _ := cmd.Flags().GetString("redis-password")
	db, _ := cmd.Flags().GetInt("redis-db")
	return redisadapter.New(addr, password, db)
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionCmd.PersistentFlags().String("redis", "", "Redis address (e.g. localhost:6379)")
	sessionCmd.PersistentFlags().String("redis-password", "", "Redis password")
	sessionCmd.PersistentFlags().Int("redis-db", 0, "Redis database number")
}
