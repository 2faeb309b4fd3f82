package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/docudata/pkg/api"
	"github.com/hazyhaar/docudata/pkg/chassis"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (with MCP at /mcp)",
	Long: "Serve the session API under /v1 and the MCP tools over streamable HTTP at /mcp.\n" +
		"SIGHUP reloads the dataset library; SIGINT/SIGTERM shut down gracefully.",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", "", "listen address (default :8420)")
	f.Duration("session-ttl", 0, "close sessions idle for longer than this (default 30m)")
	f.Duration("sweep-interval", 0, "how often idle sessions are swept (default 1m)")
	f.Bool("tls", false, "serve TLS on TCP and HTTP/3 on UDP")
	f.String("tls-cert", "", "PEM certificate (self-signed when empty)")
	f.String("tls-key", "", "PEM private key")
	rootCmd.AddCommand(serveCmd)
}

// newHandler mounts the REST API and the MCP endpoint on one mux.
func newHandler(svc api.Services) http.Handler {
	mcpSrv := api.NewMCPServer(version, svc)
	mux := http.NewServeMux()
	mux.Handle("/mcp", server.NewStreamableHTTPServer(mcpSrv))
	mux.Handle("/", api.NewRouter(svc))
	return mux
}

func runServe(cmd *cobra.Command, _ []string) error {
	store, lib, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("library loaded", "dir", lib.Dir(), "datasets", lib.Count())

	srv, err := chassis.New(chassis.Config{
		Addr:     cfg.Addr,
		TLS:      cfg.TLS.Enabled,
		CertFile: cfg.TLS.Cert,
		KeyFile:  cfg.TLS.Key,
		Handler:  newHandler(api.Services{Sessions: store, Library: lib, Logger: logger}),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sighup:
				logger.Info("SIGHUP received, reloading library")
				if err := lib.Reload(); err != nil {
					logger.Error("reload failed", "error", err)
				} else {
					logger.Info("library reloaded", "datasets", lib.Count())
				}
			}
		}
	}()

	go store.RunSweeper(ctx, cfg.SweepInterval, cfg.SessionTTL)

	serveErr := srv.Start(ctx)
	if serveErr != nil {
		logger.Error("server error", "error", serveErr)
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil && serveErr == nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return serveErr
}
