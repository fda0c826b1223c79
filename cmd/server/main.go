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

	router "github.com/atriumspace/atrium/internal/adapters/http"
	"github.com/atriumspace/atrium/internal/app"
	"github.com/atriumspace/atrium/internal/config"
	"github.com/atriumspace/atrium/internal/core"
	"github.com/atriumspace/atrium/internal/identity"
	"github.com/atriumspace/atrium/internal/media/ortc"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Global logger first; everything below logs through it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	engine, err := ortc.NewEngine(ortc.Config{IceServers: cfg.IceServers})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start media engine")
	}

	directory := identity.NewMemoryDirectory()
	directory.Open = cfg.AllowGuests

	orch := &app.Orchestrator{
		Registry:          app.NewRegistry(),
		Rooms:             core.NewRoomRegistry(),
		Engine:            engine,
		Directory:         directory,
		DefaultChatRadius: cfg.Chat.DefaultRadius,
		ChatLimiter:       app.NewChatRateLimiter(cfg.Chat.RateLimit, cfg.Chat.RateInterval),
	}

	r := router.SetupRouter(ctx, cfg, orch)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Atrium server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	orch.Registry.CancelAll()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
