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
	"github.com/sourcegraph/conc"

	"github.com/dkeye/SoundSync/internal/adapters/catalog"
	router "github.com/dkeye/SoundSync/internal/adapters/http"
	"github.com/dkeye/SoundSync/internal/adapters/identity"
	"github.com/dkeye/SoundSync/internal/adapters/playback"
	"github.com/dkeye/SoundSync/internal/adapters/proximity"
	"github.com/dkeye/SoundSync/internal/adapters/store"
	"github.com/dkeye/SoundSync/internal/app"
	"github.com/dkeye/SoundSync/internal/app/discovery"
	"github.com/dkeye/SoundSync/internal/app/orch"
	"github.com/dkeye/SoundSync/internal/config"
	"github.com/dkeye/SoundSync/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Logger first so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	events := app.NewBroker(cfg.Events.Buffer, app.SimplePolicy{})
	history := app.NewHistory()

	var (
		rooms  core.RoomStore
		mirror *store.RedisStore
	)
	if cfg.Redis.Enabled {
		client := store.NewRedisClient(cfg.Redis)
		defer client.Close()
		if err := store.Ping(ctx, client); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable")
		}
		mirror = store.NewRedisStore(client)
		rooms = mirror
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis store enabled")
	}

	reg := app.NewRegistry(app.RegistryConfig{
		Store:        rooms,
		Events:       events,
		History:      history,
		StoreTimeout: cfg.Redis.Timeout,
	})

	var tracks core.Catalog = catalog.NewStatic(catalog.DemoTracks)
	if cfg.Catalog.BaseURL != "" {
		tracks = catalog.NewRemote(cfg.Catalog.BaseURL, cfg.Catalog.Timeout)
		log.Info().Str("base_url", cfg.Catalog.BaseURL).Msg("remote catalog enabled")
	}

	ranker := discovery.NewRanker(discovery.Config{
		StrongRangeMeters: cfg.Discovery.StrongRangeMeters,
		SightingTTL:       cfg.Discovery.SightingTTL,
	})

	o := &orch.Orchestrator{
		Rooms:    reg,
		Sessions: app.NewSessions(reg, playback.NewLogPlayer(), tracks),
		Votes:    app.NewVoteCoordinator(reg, cfg.Vote.Window),
		Nearby:   ranker,
		Events:   events,
		History:  history,
	}

	var wg conc.WaitGroup
	if mirror != nil {
		wg.Go(func() {
			if err := mirror.MirrorEvents(ctx, events); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("event mirror stopped")
			}
		})
	}
	wg.Go(func() {
		every := cfg.Discovery.SightingTTL
		if every <= 0 {
			every = discovery.DefaultSightingTTL
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := ranker.Prune(); n > 0 {
					log.Debug().Int("pruned", n).Msg("stale sightings dropped")
				}
			}
		}
	})
	if cfg.MQTT.Enabled {
		feed, err := proximity.Connect(cfg.MQTT, o)
		if err != nil {
			log.Error().Err(err).Str("broker", cfg.MQTT.Broker).Msg("proximity feed disabled")
		} else {
			defer feed.Close()
		}
	}

	r := router.SetupRouter(ctx, cfg, o, identity.NewProvider(cfg.Identity, cfg.Secret))
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("SoundSync server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	wg.Wait()
	log.Info().Msg("Server exited gracefully")
}
