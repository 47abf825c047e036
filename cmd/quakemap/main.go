package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/quake-map-service/internal/adapter/feed"
	httpadapter "github.com/couchcryptid/quake-map-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-map-service/internal/adapter/kafka"
	"github.com/couchcryptid/quake-map-service/internal/adapter/mapbox"
	"github.com/couchcryptid/quake-map-service/internal/alert"
	"github.com/couchcryptid/quake-map-service/internal/config"
	"github.com/couchcryptid/quake-map-service/internal/domain"
	"github.com/couchcryptid/quake-map-service/internal/locate"
	"github.com/couchcryptid/quake-map-service/internal/observability"
	"github.com/couchcryptid/quake-map-service/internal/pipeline"
	"github.com/couchcryptid/quake-map-service/internal/refresh"
	"github.com/couchcryptid/quake-map-service/internal/render"
	"github.com/couchcryptid/quake-map-service/internal/session"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	initial, err := domain.ParseMode(cfg.InitialSource)
	if err != nil {
		logger.Error("invalid initial source", "error", err)
		os.Exit(1)
	}

	surface := render.NewMemorySurface(render.View{Lat: cfg.MapCenterLat, Lon: cfg.MapCenterLon, Zoom: cfg.MapZoom})
	trigger := alert.NewTrigger(surface, cfg.AlertDuration, clockwork.NewRealClock(), metrics)
	engine := render.NewEngine(surface, trigger, logger, metrics)
	fetcher := feed.NewClient(cfg.FeedLiveURL, cfg.FeedStoredURL, cfg.FeedTimeout, logger, metrics)

	// Reverse geocoding for the self marker (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.ReverseGeocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	var (
		publisher pipeline.AlertPublisher
		writer    *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka alert publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaAlertTopic)
	}

	locator := locate.NewService(surface, geocoder, cfg.LocateZoom, logger, metrics)
	p := pipeline.New(session.New(initial), fetcher, engine, locator, publisher, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, surface, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Page load: show the user's position, then the active source.
	go func() {
		if _, err := p.Locate(ctx, startupLocator(cfg)); err != nil {
			logger.Info("starting without user location", "reason", err)
		}
		if _, err := p.ShowEvents(ctx); err != nil {
			logger.Warn("initial render failed", "error", err)
		}
	}()

	var scheduler *refresh.Scheduler
	if cfg.RefreshSchedule != "" {
		scheduler, err = refresh.New(cfg.RefreshSchedule, p, cfg.FeedTimeout, logger)
		if err != nil {
			logger.Error("failed to schedule refresh", "error", err)
			os.Exit(1)
		}
		scheduler.Start(ctx)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

func startupLocator(cfg *config.Config) locate.Locator {
	if cfg.LocationLat == nil || cfg.LocationLon == nil {
		return locate.FailingLocator{Err: locate.ErrUnsupported}
	}
	return locate.StaticLocator{Lat: *cfg.LocationLat, Lon: *cfg.LocationLon}
}
