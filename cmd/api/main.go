// cmd/api/main.go

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"slonstudy/internal/adapter/overpass"
	"slonstudy/internal/config"
	"slonstudy/internal/domain/spot"
	"slonstudy/internal/server"
	"slonstudy/internal/service/mapsync"
	mapviewService "slonstudy/internal/service/mapview"
	"slonstudy/internal/service/session"
	spotService "slonstudy/internal/service/spot"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Initialize dependencies
	var natsConn *nats.Conn
	var publisher session.Publisher
	if cfg.NATS.Enabled {
		natsConn, err = initNATS(cfg.NATS)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer natsConn.Close()
		publisher = natsConn
	} else {
		log.Println("NATS disabled, render events stay in process")
	}

	// Initialize the upstream geodata client
	overpassClient := overpass.NewClient(overpass.Config{
		Endpoint:  cfg.Overpass.Endpoint,
		UserAgent: cfg.Overpass.AppID,
		Timeout:   cfg.Overpass.Timeout,
	})

	// Initialize services
	suggester := spotService.NewSuggester(cfg.Search.SuggestionLimit)

	sessionManager := session.NewManager(
		overpassClient,
		publisher,
		session.ManagerConfig{
			MaxSessions:  cfg.Session.MaxSessions,
			EventsPrefix: cfg.Session.EventsPrefix,
			Surface: mapviewService.HeadlessConfig{
				Center: spot.Location{
					Latitude:  cfg.Map.InitialLatitude,
					Longitude: cfg.Map.InitialLongitude,
				},
				Zoom:        cfg.Map.InitialZoom,
				TileSource:  cfg.Map.TileSource,
				WidthPx:     cfg.Map.ViewportWidthPx,
				HeightPx:    cfg.Map.ViewportHeightPx,
				HitRadiusPx: cfg.Map.HitRadiusPx,
			},
			Controller: mapsync.Config{
				FocusZoomThreshold: cfg.Map.FocusZoomThreshold,
				FocusZoom:          cfg.Map.FocusZoom,
				SuggestionLimit:    cfg.Search.SuggestionLimit,
				FetchTimeout:       cfg.Overpass.Timeout + cfg.Overpass.Timeout/5,
				QueueSize:          cfg.Session.QueueSize,
			},
		},
	)

	// Initialize HTTP server
	httpServer := server.NewServer(
		cfg.Server,
		natsConn,
		overpassClient,
		suggester,
		sessionManager,
	)

	// Start HTTP server
	go func() {
		log.Printf("Starting HTTP server on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	log.Println("Shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Graceful shutdown
	log.Println("Shutting down services...")

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Stop map sessions
	if err := sessionManager.Stop(shutdownCtx); err != nil {
		log.Printf("Session manager shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig) (*nats.Conn, error) {
	options := []nats.Option{
		nats.Name("slonstudy-api"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Printf("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}
