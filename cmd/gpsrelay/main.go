package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/akave-ai/gpsrelay/internal/config"
	"github.com/akave-ai/gpsrelay/internal/database"
	"github.com/akave-ai/gpsrelay/internal/logger"
	"github.com/akave-ai/gpsrelay/internal/observability"
	"github.com/akave-ai/gpsrelay/internal/server"
)

const shutdownFlush = 5 * time.Second

func main() {
	boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.LoadConfig()
	if err != nil {
		boot.Fatal().Err(err).Msg("could not load config")
	}

	log, closeLog := logger.New(cfg.Observability)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nrApp, err := observability.NewApplication(cfg.Observability)
	if err != nil {
		log.Warn().Err(err).Msg("new relic disabled")
		nrApp = nil
	}

	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		if err := database.RunMigrations(ctx, cfg.Database.URL); err != nil {
			log.Fatal().Err(err).Msg("migrations")
		}
		pool, err = database.NewPool(ctx, cfg.Database.URL, log, nrApp != nil)
		if err != nil {
			log.Fatal().Err(err).Msg("database pool")
		}
		defer pool.Close()
	}

	srv := server.New(cfg, server.Deps{Log: log, Pool: pool, NewRelic: nrApp})
	if err := srv.Start(ctx); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
	if nrApp != nil {
		nrApp.Shutdown(shutdownFlush)
	}
}
