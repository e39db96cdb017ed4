// internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	NATS        NATSConfig
	Overpass    OverpassConfig
	Map         MapConfig
	Search      SearchConfig
	Session     SessionConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	Enabled        bool
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// OverpassConfig holds the upstream geodata service configuration
type OverpassConfig struct {
	Endpoint string
	// AppID is sent as the User-Agent for upstream usage-policy compliance
	AppID   string
	Timeout time.Duration
}

// MapConfig holds map surface configuration
type MapConfig struct {
	TileSource         string
	InitialLatitude    float64
	InitialLongitude   float64
	InitialZoom        float64
	ViewportWidthPx    int
	ViewportHeightPx   int
	HitRadiusPx        float64
	FocusZoomThreshold float64
	FocusZoom          float64
}

// SearchConfig holds search configuration
type SearchConfig struct {
	SuggestionLimit int
}

// SessionConfig holds map session configuration
type SessionConfig struct {
	MaxSessions  int
	EventsPrefix string
	QueueSize    int
}

// Load loads configuration from a .env file, if any, and the environment
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 40*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		NATS: NATSConfig{
			Enabled:        getEnvAsBool("NATS_ENABLED", true),
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Overpass: OverpassConfig{
			Endpoint: getEnv("OVERPASS_ENDPOINT", "https://overpass-api.de/api/interpreter"),
			AppID:    getEnv("OVERPASS_APP_ID", "dev.csse.cbjl.slo_n_study"),
			Timeout:  getEnvAsDuration("OVERPASS_TIMEOUT", 25*time.Second),
		},
		Map: MapConfig{
			TileSource:         getEnv("MAP_TILE_SOURCE", "MAPNIK"),
			InitialLatitude:    getEnvAsFloat("MAP_INITIAL_LAT", 35.2828),
			InitialLongitude:   getEnvAsFloat("MAP_INITIAL_LON", -120.6596),
			InitialZoom:        getEnvAsFloat("MAP_INITIAL_ZOOM", 14.0),
			ViewportWidthPx:    getEnvAsInt("MAP_VIEWPORT_WIDTH_PX", 1080),
			ViewportHeightPx:   getEnvAsInt("MAP_VIEWPORT_HEIGHT_PX", 1920),
			HitRadiusPx:        getEnvAsFloat("MAP_HIT_RADIUS_PX", 24),
			FocusZoomThreshold: getEnvAsFloat("MAP_FOCUS_ZOOM_THRESHOLD", 16.5),
			FocusZoom:          getEnvAsFloat("MAP_FOCUS_ZOOM", 17.0),
		},
		Search: SearchConfig{
			SuggestionLimit: getEnvAsInt("SEARCH_SUGGESTION_LIMIT", 5),
		},
		Session: SessionConfig{
			MaxSessions:  getEnvAsInt("SESSION_MAX_SESSIONS", 1000),
			EventsPrefix: getEnv("SESSION_EVENTS_PREFIX", "session"),
			QueueSize:    getEnvAsInt("SESSION_QUEUE_SIZE", 64),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	if config.Overpass.Endpoint == "" {
		return fmt.Errorf("overpass endpoint must be set")
	}

	if config.Overpass.AppID == "" {
		return fmt.Errorf("overpass app id must be set")
	}

	if config.Search.SuggestionLimit <= 0 {
		return fmt.Errorf("suggestion limit must be positive, got %d", config.Search.SuggestionLimit)
	}

	if config.Map.FocusZoom < config.Map.FocusZoomThreshold {
		return fmt.Errorf("focus zoom %.1f is below its threshold %.1f", config.Map.FocusZoom, config.Map.FocusZoomThreshold)
	}

	if config.Map.InitialLatitude < -90 || config.Map.InitialLatitude > 90 ||
		config.Map.InitialLongitude < -180 || config.Map.InitialLongitude > 180 {
		return fmt.Errorf("initial map center %f,%f is out of range", config.Map.InitialLatitude, config.Map.InitialLongitude)
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
