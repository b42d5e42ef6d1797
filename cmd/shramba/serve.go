package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/shramba/internal/api"
	"github.com/erazemk/shramba/internal/db"
	"github.com/erazemk/shramba/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
}

func init() {
	// RunE is assigned here rather than in the literal to avoid an
	// initialization cycle (serve reads serveCmd's flags).
	serveCmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	}
	serveCmd.Flags().StringP("addr", "a", "", "listen address (overrides http.addr)")
}

// openDatabase opens the configured database and brings the schema up to date.
func openDatabase(ctx context.Context) (*sql.DB, error) {
	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	version, err := db.Migrate(ctx, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	slog.Info("database ready", "path", cfg.DB.Path, "version", version)
	return database, nil
}

func serve(ctx context.Context) error {
	addr := cfg.HTTP.Addr
	if a, _ := serveCmd.Flags().GetString("addr"); a != "" {
		addr = a
	}

	database, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := store.EnsureDefaultCategories(ctx, database); err != nil {
		return err
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret, err = store.EnsureSecret(ctx, database, store.SettingJWTSecret)
		if err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", api.NewRouter(api.Config{
		DB:            database,
		JWTSecret:     secret,
		Codes:         codeFormat(cfg),
		DefaultPreset: cfg.Rules.DefaultPreset,
		MaxSegments:   cfg.Paths.MaxSegments,
	}))
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server started", "addr", addr, "metrics", cfg.Metrics.Enabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped, closing database")
	return nil
}
