// Package main contains the entrypoint for the support relay server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/arabesque/support-relay/internal/config"
	"github.com/arabesque/support-relay/internal/database"
	"github.com/arabesque/support-relay/internal/gemini"
	"github.com/arabesque/support-relay/internal/logger"
	"github.com/arabesque/support-relay/internal/realtime"
	"github.com/arabesque/support-relay/internal/scheduler"
	"github.com/arabesque/support-relay/internal/settings"
	"github.com/arabesque/support-relay/internal/support"
	"github.com/arabesque/support-relay/internal/telegram"
	"github.com/arabesque/support-relay/internal/web"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes all components, serves until the context is cancelled, and
// returns the process exit code.
func run(ctx context.Context) int {
	// A missing .env file is fine; real deployments set the environment
	// directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info("Logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)

	store := database.NewStore(db, log)

	resolver := settings.NewResolver(store, log, cfg.Telegram.Token, cfg.Telegram.WebhookSecret)
	sender := telegram.NewBotSender(resolver, log)
	notifier := telegram.NewNotifier(store, sender, log, cfg.Telegram.PreviewLength)

	hub := realtime.NewHub()
	router := support.NewRouter(store, log)
	broadcaster := support.NewBroadcaster(hub, notifier, log, cfg.Telegram.NotifyTimeout)
	bridge := telegram.NewBridge(store, router, broadcaster, sender, resolver, log)

	gemClient, err := gemini.NewClient(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error("Failed to initialize Gemini client", "error", err)
		return 1
	}

	sched, err := scheduler.New(store, log, cfg.Scheduler.MaintenanceCron)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	if err := sched.Start(); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		return 1
	}
	defer func() {
		if err := sched.Stop(); err != nil {
			log.Error("Scheduler shutdown failed", "error", err)
		}
	}()

	handlers := web.NewHandlers(store, router, broadcaster, bridge, hub, gemClient, cfg.Gemini.Timeout, log)
	srv := web.NewServer(cfg, handlers, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("HTTP server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Server stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Server stopped gracefully.")
	return 0
}
