// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telemetry-service/internal/config"
	"telemetry-service/internal/console"
	"telemetry-service/internal/handler"
	internalLink "telemetry-service/internal/link"
	"telemetry-service/internal/model"
	"telemetry-service/internal/routes"
	"telemetry-service/internal/service"
	"telemetry-service/internal/utils"
	"telemetry-service/pkg/link"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	// Services
	sessionService   *service.SessionService
	discoveryService *service.DiscoveryService

	// Event bus and live streaming
	eventBus      *handler.EventBus
	streamHandler *handler.WebSocketHandler

	// Bridge registry
	bridges *internalLink.Registry

	// Background lifecycle
	backgroundCtx    context.Context
	backgroundCancel context.CancelFunc
}

// @title Telemetry Service API
// @version 1.0.0
// @description Packet-loss aware decoding service for wireless EMG sensor telemetry
// @termsOfService http://swagger.io/terms/

// @contact.name Telemetry Service API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8084
// @BasePath /api/v1
func main() {
	// Initialize application
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	// Start the application
	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Create service logger
	serviceLogger := utils.NewServiceLogger(logger, "telemetry-service")
	serviceLogger.LogServiceStart(cfg.App.Version, cfg)

	app := &Application{
		config: cfg,
		logger: logger,
	}
	app.backgroundCtx, app.backgroundCancel = context.WithCancel(context.Background())

	// Initialize components
	if err := app.initializeEventBus(); err != nil {
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}

	if err := app.initializeBridges(); err != nil {
		return nil, fmt.Errorf("failed to initialize bridge registry: %w", err)
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeEventBus starts the event distribution loop
func (app *Application) initializeEventBus() error {
	app.eventBus = handler.NewEventBus(app.logger)
	go app.eventBus.Start()

	app.logger.Info("Event bus started")
	return nil
}

// initializeBridges sets up the receiver bridge registry
func (app *Application) initializeBridges() error {
	app.bridges = internalLink.NewRegistry(app.logger)
	internalLink.RegisterDefaultBridges(app.bridges)

	app.logger.Info("Bridge registry initialized successfully",
		zap.Int("registered_bridges", len(app.bridges.Kinds())),
	)
	return nil
}

// initializeServices creates service instances
func (app *Application) initializeServices() error {
	// Create session service
	app.sessionService = service.NewSessionService(
		app.config,
		app.bridges,
		app.logger,
	)
	app.sessionService.SetEventSink(app.eventBus.Publish)

	// Create discovery service
	app.discoveryService = service.NewDiscoveryService(
		app.config,
		app.logger,
		app.activeEndpoint,
	)
	app.discoveryService.SetEventSink(app.eventBus.Publish)

	app.logger.Info("Services initialized successfully")
	return nil
}

// activeEndpoint reports the port or endpoint held by the running session
// on the given transport so discovery probes leave it alone
func (app *Application) activeEndpoint(kind link.Kind) string {
	if !app.sessionService.IsRunning() {
		return ""
	}
	current, _, err := app.sessionService.LinkStats()
	if err != nil || current != kind {
		return ""
	}

	switch kind {
	case link.KindSerial:
		return app.config.Link.Serial.Port
	case link.KindTCP:
		return net.JoinHostPort(app.config.Link.TCP.Host, strconv.Itoa(app.config.Link.TCP.Port))
	}
	return ""
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	// Create router
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.bridges,
		app.sessionService,
		app.discoveryService,
		app.eventBus,
	)

	// Setup router with all routes
	router := routerManager.SetupRouter()
	app.streamHandler = routerManager.StreamHandler()

	// Create HTTP server
	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)

	return nil
}

// startBackgroundServices starts background services
func (app *Application) startBackgroundServices() {
	// Start live stream fan-out
	go app.streamHandler.StartStreaming(app.backgroundCtx)

	// Start periodic stats publishing and loss reports
	go app.startStatsPublisher()

	// Start console live view
	if app.config.Console.Enabled {
		go app.startConsoleView()
	}

	// Auto-start a session when configured
	if app.config.Session.AutoStart {
		go app.autoStartSession()
	}

	app.logger.Info("Background services started")
}

// startStatsPublisher periodically logs per-sensor loss reports and pushes
// a stats event onto the bus
func (app *Application) startStatsPublisher() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	// One loss-report logger per configured sensor
	sensorLogs := make(map[model.SensorID]*utils.SensorLogger, len(app.config.Sensors))
	for _, s := range app.config.Sensors {
		sensorLogs[s.ID] = utils.NewSensorLogger(app.logger, string(s.ID), s.Tag, s.Name)
	}

	app.logger.Info("Stats publisher started")

	for {
		select {
		case <-app.backgroundCtx.Done():
			return
		case <-ticker.C:
			if !app.sessionService.IsRunning() {
				continue
			}

			stats, err := app.sessionService.AllStats()
			if err != nil {
				continue
			}
			intervals := app.sessionService.ArrivalIntervals()

			for i := range stats {
				if sl := sensorLogs[stats[i].ID]; sl != nil {
					sl.LogLossReport(stats[i].Received, stats[i].Lost, stats[i].LossRatePercent)
				}
			}

			app.eventBus.Publish(model.TelemetryEvent{
				ID:        uuid.New(),
				EventType: model.EventSensorStats,
				Data: model.JSONObject{
					"sensors":          stats,
					"interval_arrival": intervals,
				},
				Timestamp: time.Now(),
				Source:    "stats-publisher",
				Severity:  model.SeverityInfo,
			})
		}
	}
}

// startConsoleView runs the terminal live view until it quits
func (app *Application) startConsoleView() {
	view := console.NewView(app.sessionService, app.config.Console.FPS, app.logger)
	if err := view.Run(app.backgroundCtx); err != nil {
		app.logger.Warn("Console view unavailable", zap.Error(err))
	}
}

// autoStartSession opens the configured link and starts capturing
func (app *Application) autoStartSession() {
	ctx, cancel := context.WithTimeout(app.backgroundCtx, 30*time.Second)
	defer cancel()

	info, err := app.sessionService.Start(ctx, "")
	if err != nil {
		app.logger.Error("Session auto-start failed", zap.Error(err))
		return
	}

	app.logger.Info("Session auto-started",
		zap.String("session_id", info.ID.String()),
		zap.String("link_kind", info.LinkKind),
	)
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	// Create channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for signal
	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	// Perform graceful shutdown
	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "telemetry-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	// Stop background loops
	app.backgroundCancel()

	// Stop the active session so its summary gets logged
	app.sessionService.Shutdown()

	// Shutdown HTTP server
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}

	// Flush logger
	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}

	app.logger.Info("Application shutdown completed")
}

func (app *Application) Start() error {
	// Start server in goroutine
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(
				app.config.Server.TLS.CertFile,
				app.config.Server.TLS.KeyFile,
			)
		} else {
			err = app.server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Start background services
	app.startBackgroundServices()

	// Wait for interrupt signal
	app.waitForShutdown()

	return nil
}
