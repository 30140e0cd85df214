package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/smokecheck/api"
	"github.com/use-agent/smokecheck/api/handler"
	"github.com/use-agent/smokecheck/cache"
	"github.com/use-agent/smokecheck/checker"
	"github.com/use-agent/smokecheck/webhook"
)

const shutdownGrace = 5 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the smoke check HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// ── 1. Load configuration ───────────────────────────────
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			slog.Info("smokecheck starting",
				"host", cfg.Server.Host,
				"port", cfg.Server.Port,
				"mode", cfg.Server.Mode,
				"maxChecks", cfg.Server.MaxConcurrentChecks,
			)

			// ── 2. Checker (browser sessions are per check) ─────────
			var opts []checker.Option
			if cfg.Webhook.URL != "" {
				opts = append(opts, checker.WithNotifier(&webhook.Notifier{
					URL:          cfg.Webhook.URL,
					Secret:       cfg.Webhook.Secret,
					OnlyFailures: cfg.Webhook.OnlyFailures,
					Async:        true,
				}))
			}
			c := checker.New(cfg, opts...)
			defer c.Close()

			// ── 3. Cache and concurrency slots ──────────────────────
			cc := cache.New(cfg.Cache.MaxEntries)
			defer cc.Stop()
			slots := handler.NewSlots(cfg.Server.MaxConcurrentChecks)

			// ── 4. Router and server ────────────────────────────────
			router := api.NewRouter(c, cfg, cc, slots, time.Now())
			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				slog.Info("HTTP server listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			// ── 5. Graceful shutdown ────────────────────────────────
			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			case <-ctx.Done():
				slog.Info("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("HTTP server forced shutdown", "error", err)
			} else {
				slog.Info("HTTP server drained gracefully")
			}
			slog.Info("smokecheck stopped")
			return nil
		},
	}
}
