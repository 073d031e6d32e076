package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionhouse/go/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if err := config.SetupLogging(cfg.Log); err != nil {
		log.Fatal().Err(err).Msg("failed to set up logging")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Close()

	log.Info().
		Str("store", cfg.Store.Driver).
		Dur("round_duration", cfg.RoundDuration()).
		Str("bid_policy", cfg.Auction.BidPolicy).
		Bool("events", cfg.NATS.URL != "").
		Bool("token_cache", cfg.Redis.Addr != "").
		Str("port", cfg.Server.Port).
		Msg("starting auction service")

	if err := services.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start services")
	}

	server := setupServer(cfg.Server.Port, services)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Stops the scheduler, hub, relay and listener
	cancel()

	log.Info().Msg("auction service shutdown complete")
}
