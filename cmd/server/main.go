package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/voxhall/gateway/internal/adapters/backend"
	router "github.com/voxhall/gateway/internal/adapters/http"
	signaladapter "github.com/voxhall/gateway/internal/adapters/signal"
	"github.com/voxhall/gateway/internal/app"
	"github.com/voxhall/gateway/internal/app/orch"
	"github.com/voxhall/gateway/internal/config"
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
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	store := backend.NewPersistenceClient(cfg.PersistenceURL, cfg.InternalSecret)
	auth := backend.NewAuthClient(cfg.AuthURL, cfg.InternalSecret)

	registry := app.NewRegistry()
	hub := app.NewHub()
	voice := app.NewVoiceState()
	presence := &app.Presence{Registry: registry, Store: store}

	iceServers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	o := &orch.Orchestrator{
		Registry:   registry,
		Hub:        hub,
		Voice:      voice,
		Presence:   presence,
		Rooms:      &app.Rooms{Hub: hub, Store: store},
		Relay:      &app.Relay{Registry: registry, Voice: voice},
		Store:      store,
		ICEServers: iceServers,
	}

	reconciler := app.NewReconciler(registry, hub, voice, presence, cfg.ReconcileInterval, cfg.SessionTTL)
	go reconciler.Run(ctx)

	ctl := signaladapter.NewController(o, cfg.MinClientVersion, cfg.ReadLimit, cfg.PingPeriod, cfg.PongWait)
	r := router.SetupRouter(ctx, cfg, auth, o, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("gateway started")
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
