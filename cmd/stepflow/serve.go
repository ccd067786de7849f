package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	httpadapter "github.com/quillform/stepflow/pkg/adapters/http"
	redisadapter "github.com/quillform/stepflow/pkg/adapters/redis"

	"github.com/quillform/stepflow/pkg/adapters/file"
	"github.com/quillform/stepflow/pkg/adapters/memory"
	"github.com/quillform/stepflow/pkg/forms"
	"github.com/quillform/stepflow/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the form over HTTP",
	Long: `Starts an HTTP server exposing form sessions as a REST API, with the
OpenAPI spec at /openapi.yaml and a Swagger UI at /swagger.

Sessions live in memory by default; pass --redis to persist them across
restarts and share them between replicas.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		redisAddr, _ := cmd.Flags().GetString("redis")
		redisPassword, _ := cmd.Flags().GetString("redis-password")
		redisDB, _ := cmd.Flags().GetInt("redis-db")
		ttl, _ := cmd.Flags().GetDuration("session-ttl")
		sessionsDir, _ := cmd.Flags().GetString("sessions-dir")

		logger := newLogger(cmd)

		def, err := forms.Load(formPath(cmd))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading form: %v\n", err)
			os.Exit(1)
		}
		if issues := forms.Validate(def); forms.HasErrors(issues) {
			for _, issue := range issues {
				fmt.Fprintln(os.Stderr, issue)
			}
			os.Exit(1)
		}

		var sessions *session.Manager
		switch {
		case redisAddr != "":
			rdb := goredis.NewClient(&goredis.Options{
				Addr:     redisAddr,
				Password: redisPassword,
				DB:       redisDB,
			})
			store := redisadapter.NewFromClient(rdb, redisadapter.WithTTL(ttl))
			locker := redisadapter.NewLocker(rdb, "stepflow:")
			sessions = session.NewManager(store,
				session.WithLocker(locker),
				session.WithLogger(logger),
			)
			logger.Info("using redis session store", "addr", redisAddr)
		case sessionsDir != "":
			sessions = session.NewManager(file.New(sessionsDir), session.WithLogger(logger))
			logger.Info("using file session store", "dir", sessionsDir)
		default:
			sessions = session.NewManager(memory.NewStore(), session.WithLogger(logger))
			logger.Info("using in-memory session store")
		}

		handler := httpadapter.NewHandler(def, sessions, httpadapter.WithLogger(logger))

		server := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("http server listening", "addr", server.Addr, "form", def.Name)
			serverErrors <- server.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				server.Close()
				fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
				os.Exit(1)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("redis", "", "Redis address for session storage (e.g. localhost:6379)")
	serveCmd.Flags().String("redis-password", "", "Redis password")
	serveCmd.Flags().Int("redis-db", 0, "Redis database number")
	serveCmd.Flags().Duration("session-ttl", 0, "Session expiry in Redis (0 keeps sessions forever)")
	serveCmd.Flags().String("sessions-dir", "", "Directory for file-backed session storage")
}
