package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/polyglotte/relay/internal/adapters/http"
	"github.com/polyglotte/relay/internal/adapters/store/memory"
	"github.com/polyglotte/relay/internal/adapters/store/postgres"
	"github.com/polyglotte/relay/internal/adapters/ws"
	"github.com/polyglotte/relay/internal/app"
	"github.com/polyglotte/relay/internal/config"
	"github.com/polyglotte/relay/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var (
		messages      core.MessageStore
		notifications core.NotificationStore
		bookings      core.BookingStore
	)
	if cfg.DatabaseDSN == "" {
		log.Warn().Msg("no database DSN configured, using in-memory store")
		mem := memory.New()
		messages, notifications, bookings = mem, mem, mem
	} else {
		pool, err := postgres.Connect(ctx, cfg.DatabaseDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()

		mg, err := postgres.NewMigrator(pool, cfg.MigrationsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init migrator")
		}
		if err := mg.Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
		_ = mg.Close()

		pg := postgres.New(pool)
		messages, notifications, bookings = pg, pg, pg
	}

	registry := app.NewRegistry()
	bcast := app.NewBroadcaster(registry)
	notifier := app.NewNotifier(notifications, registry, bcast)
	chat := app.NewChat(messages, registry, bcast, notifier)
	scheduler := app.NewRescheduler(bookings, notifier, bcast)

	ctl := ws.NewController(registry, chat, scheduler, cfg.MsgRateLimit, cfg.MsgRateWindow, cfg.ReadLimit)
	r := router.SetupRouter(ctx, cfg, ctl, registry, chat, notifier)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("relay server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
