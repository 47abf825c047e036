package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/robfig/cron/v3"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	FeedLiveURL   string
	FeedStoredURL string
	FeedTimeout   time.Duration
	InitialSource string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	AlertDuration time.Duration

	// Map viewport defaults.
	MapCenterLat float64
	MapCenterLon float64
	MapZoom      int
	LocateZoom   int

	// Startup position for the self marker; unset means geolocation is unsupported.
	LocationLat *float64
	LocationLon *float64

	// Cron spec for re-rendering the active source; empty disables it.
	RefreshSchedule string

	// Mapbox reverse geocoding for the self marker.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Kafka alert publishing.
	KafkaEnabled    bool
	KafkaBrokers    []string
	KafkaAlertTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	feedTimeout, err := parsePositiveDuration("FEED_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	alertDuration, err := parsePositiveDuration("ALERT_DURATION", "500ms")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	centerLat, err := parseFloat("MAP_CENTER_LAT", "39.9334")
	if err != nil {
		return nil, err
	}
	centerLon, err := parseFloat("MAP_CENTER_LON", "32.8597")
	if err != nil {
		return nil, err
	}
	mapZoom, err := parseZoom("MAP_ZOOM", "6")
	if err != nil {
		return nil, err
	}
	locateZoom, err := parseZoom("LOCATE_ZOOM", "10")
	if err != nil {
		return nil, err
	}

	locLat, locLon, err := parseLocation()
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		FeedLiveURL:     sharedcfg.EnvOrDefault("FEED_LIVE_URL", "http://localhost:5000/api/Earthquake/get-earthquake-data"),
		FeedStoredURL:   sharedcfg.EnvOrDefault("FEED_STORED_URL", "http://localhost:5000/api/Earthquake/get-stored-data"),
		FeedTimeout:     feedTimeout,
		InitialSource:   sharedcfg.EnvOrDefault("INITIAL_SOURCE", "live"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		AlertDuration:   alertDuration,

		MapCenterLat: centerLat,
		MapCenterLon: centerLon,
		MapZoom:      mapZoom,
		LocateZoom:   locateZoom,
		LocationLat:  locLat,
		LocationLon:  locLon,

		RefreshSchedule: os.Getenv("REFRESH_SCHEDULE"),

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parsePositiveInt("MAPBOX_CACHE_SIZE", 1000),

		KafkaEnabled:    os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:    sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAlertTopic: sharedcfg.EnvOrDefault("KAFKA_ALERT_TOPIC", "earthquake-alerts"),
	}

	if cfg.FeedLiveURL == "" {
		return nil, errors.New("FEED_LIVE_URL is required")
	}
	if cfg.FeedStoredURL == "" {
		return nil, errors.New("FEED_STORED_URL is required")
	}
	if cfg.InitialSource != "live" && cfg.InitialSource != "stored" {
		return nil, errors.New("INITIAL_SOURCE must be live or stored")
	}
	if cfg.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(cfg.RefreshSchedule); err != nil {
			return nil, fmt.Errorf("invalid REFRESH_SCHEDULE: %w", err)
		}
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key, def string) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseZoom(key, def string) (int, error) {
	z, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || z < 0 || z > 22 {
		return 0, fmt.Errorf("invalid %s: must be 0-22", key)
	}
	return z, nil
}

// parseLocation reads LOCATION_LAT and LOCATION_LON, which must be set together.
func parseLocation() (*float64, *float64, error) {
	latStr, lonStr := os.Getenv("LOCATION_LAT"), os.Getenv("LOCATION_LON")
	if latStr == "" && lonStr == "" {
		return nil, nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, nil, errors.New("LOCATION_LAT and LOCATION_LON must be set together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, nil, errors.New("invalid LOCATION_LAT")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || lon < -180 || lon > 180 {
		return nil, nil, errors.New("invalid LOCATION_LON")
	}
	return &lat, &lon, nil
}

func parsePositiveInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}
