package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/classroom-core/internal/automation"
	"github.com/nerrad567/classroom-core/internal/history"
	"github.com/nerrad567/classroom-core/internal/infrastructure/config"
	"github.com/nerrad567/classroom-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/classroom-core/internal/infrastructure/logging"
	"github.com/nerrad567/classroom-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/classroom-core/internal/remote"
	"github.com/nerrad567/classroom-core/internal/room"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// RoomController is the part of the automation controller the API drives.
type RoomController interface {
	remote.Controls
	State() *room.State
	ToggleAutoMode(ctx context.Context) bool
	Timers() []automation.TimerStatus
}

// HistoryReader serves stored hourly snapshots.
type HistoryReader interface {
	Recent(ctx context.Context, deviceID string, limit int) ([]history.Entry, error)
}

// ChannelStatsProvider reports serial link counters.
type ChannelStatsProvider interface {
	Stats() remote.Stats
}

// BridgeStatsProvider reports MQTT mirror counters.
type BridgeStatsProvider interface {
	Stats() remote.BridgeStats
}

// MQTTStatusProvider reports the broker connection.
type MQTTStatusProvider interface {
	Status() mqtt.Status
}

// TelemetryStatsProvider reports InfluxDB write counters.
type TelemetryStatsProvider interface {
	Stats() influxdb.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	DeviceID   string
	Controller RoomController
	History    HistoryReader        // optional: /history answers 503 without it
	DB         *sql.DB              // optional: pool stats and health
	Channel    ChannelStatsProvider // optional
	Bridge     BridgeStatsProvider  // optional
	MQTT       MQTTStatusProvider     // optional
	Telemetry  TelemetryStatsProvider // optional
	Version    string
}

// Server is the HTTP API server for the room node.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	deviceID   string
	controller RoomController
	history    HistoryReader
	db         *sql.DB
	channel    ChannelStatsProvider
	bridge     BridgeStatsProvider
	mqtt       MQTTStatusProvider
	telemetry  TelemetryStatsProvider
	version    string
	startTime  time.Time

	server      *http.Server
	hub         *Hub
	unsubscribe func()
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, controller, device ID) and optional ones
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if deps.DeviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		deviceID:   deps.DeviceID,
		controller: deps.Controller,
		history:    deps.History,
		db:         deps.DB,
		channel:    deps.Channel,
		bridge:     deps.Bridge,
		mqtt:       deps.MQTT,
		telemetry:  deps.Telemetry,
		version:    deps.Version,
		startTime:  time.Now(),
		hub:        NewHub(deps.WS, deps.Logger),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, subscribes the hub to room change
// notifications and launches the HTTP listener in a background goroutine.
// The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for the hub lifetime
//
// Returns:
//   - error: Always nil; listener errors are logged
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	s.unsubscribe = s.subscribeRoomChanges()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		WriteTimeout:      s.cfg.WriteTimeout(),
		IdleTimeout:       s.cfg.IdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// subscribeRoomChanges relays every room change to WebSocket clients.
func (s *Server) subscribeRoomChanges() func() {
	return s.controller.State().Subscribe(func(c room.Change) {
		s.hub.Broadcast(EventRoomChanged, c)
	})
}
