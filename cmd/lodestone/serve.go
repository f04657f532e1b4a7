package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine over HTTP",
	Long: `Starts an HTTP server exposing search, status, and indexing
endpoints for a host application. With auto_index enabled the vault is
reconciled on startup and watched for live changes while the server runs.

Set LODESTONE_API_KEY to require a Bearer token on every endpoint except
/health, and LODESTONE_CORS_ORIGINS to serve browser clients.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:7133", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signalContext()
	defer stop()

	if cfg.AutoIndex {
		go func() {
			if _, err := eng.CheckChanges(ctx); err != nil {
				slog.Warn("startup reconciliation failed", "error", err)
			}
			if err := eng.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("watcher stopped", "error", err)
			}
		}()
	}

	h := newHandler(eng)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /search", h.handleSearch)
	mux.HandleFunc("GET /status", h.handleStatus)
	mux.HandleFunc("POST /index", h.handleIndex)
	mux.HandleFunc("POST /check", h.handleCheck)
	mux.HandleFunc("POST /open", h.handleOpen)
	mux.HandleFunc("DELETE /documents", h.handleDeleteDocuments)
	mux.HandleFunc("GET /health", h.handleHealth)

	handler := withMiddleware(mux, os.Getenv("LODESTONE_API_KEY"), os.Getenv("LODESTONE_CORS_ORIGINS"))

	srv := &http.Server{
		Addr:         serveAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // full index builds can be long
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", serveAddr, "vault", cfg.Vault)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
