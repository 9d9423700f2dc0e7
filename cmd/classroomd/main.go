// classroomd - single-room automation node
//
// This is the main entry point for the classroom node. It drives the room's
// lights, air conditioner and multimedia from occupancy, keeps the simulated
// room clock, and exchanges status and control lines with the upstream
// aggregator over serial (and optionally MQTT).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/classroom-core/internal/api"
	"github.com/nerrad567/classroom-core/internal/automation"
	"github.com/nerrad567/classroom-core/internal/clock"
	"github.com/nerrad567/classroom-core/internal/hardware"
	"github.com/nerrad567/classroom-core/internal/history"
	"github.com/nerrad567/classroom-core/internal/infrastructure/config"
	"github.com/nerrad567/classroom-core/internal/infrastructure/database"
	"github.com/nerrad567/classroom-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/classroom-core/internal/infrastructure/logging"
	"github.com/nerrad567/classroom-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/classroom-core/internal/remote"
	"github.com/nerrad567/classroom-core/internal/room"
	"github.com/nerrad567/classroom-core/internal/telemetry"
	"github.com/nerrad567/classroom-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// History housekeeping.
const (
	historyRetention     = 90 * 24 * time.Hour
	historyPruneInterval = 24 * time.Hour
)

// simulatedReadings seeds the simulator when no board is attached.
var simulatedReadings = room.Readings{Temperature: 24, Humidity: 50, Illumination: 0.5, Occupied: true}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting classroomd",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"device_id", cfg.Site.ID,
		"level", cfg.Logging.Level,
	)

	// Database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Room, hardware and controller
	state := room.New()
	actuators, sensors := buildGateways(cfg.Hardware, log)

	controller := automation.NewController(state, actuators, sensors, automation.Config{
		SleepDelay: cfg.Automation.SleepDelay,
		OffDelay:   cfg.Automation.OffDelay,
		ACOffDelay: cfg.Automation.ACOffDelay,
	}, log.Component("automation"))
	if cfg.Automation.StartAuto {
		controller.SetAutoMode(ctx, true)
	}

	keeper := clock.NewKeeper(state, clock.NewSQLiteStore(db.DB), cfg.Clock.Step, log.Component("clock"))
	restored := keeper.Restore(ctx)
	log.Info("room clock restored", "clock", restored.String())

	historyRepo := history.NewSQLiteRepository(db.DB)

	// InfluxDB (optional)
	influxClient, err := connectInfluxDB(cfg.InfluxDB, log)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	var metrics telemetry.MetricsWriter
	if influxClient != nil {
		metrics = influxClient
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}
	recorder := telemetry.NewRecorder(cfg.Site.ID, metrics, historyRepo, log.Component("telemetry"))

	// Serial link (optional)
	var channel *remote.Channel
	if cfg.Serial.Enabled {
		channel = remote.NewChannel(remote.Config{
			DeviceID:     cfg.Site.ID,
			PollInterval: cfg.Serial.ReadTimeout,
			ReopenDelay:  cfg.Serial.ReopenDelay,
			AckToken:     cfg.Serial.AckToken,
			AckTimeout:   cfg.Serial.AckTimeout,
			MaxLine:      cfg.Serial.MaxLine,
			QueueSize:    cfg.Serial.QueueSize,
		}, remote.SerialOpener(remote.SerialConfig{
			Device:      cfg.Serial.Device,
			Baud:        cfg.Serial.Baud,
			ReadTimeout: cfg.Serial.ReadTimeout,
		}), controller, log.Component("serial"))

		channelCtx, stopChannel := context.WithCancel(ctx)
		channelDone := make(chan struct{})
		go func() {
			defer close(channelDone)
			if runErr := channel.Run(channelCtx); runErr != nil {
				log.Error("serial channel failed", "error", runErr)
			}
		}()
		defer func() {
			stopChannel()
			<-channelDone
			log.Info("serial channel stopped")
		}()
		log.Info("serial channel started", "device", cfg.Serial.Device, "baud", cfg.Serial.Baud)
	} else {
		log.Info("serial channel disabled")
	}

	// MQTT mirror (optional)
	mqttClient, bridge, err := startMQTT(ctx, cfg, controller, log)
	if err != nil {
		return fmt.Errorf("starting MQTT: %w", err)
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			if stopErr := bridge.Stop(); stopErr != nil {
				log.Warn("error unsubscribing MQTT bridge", "error", stopErr)
			}
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	// Panel API
	deps := api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log.Component("api"),
		DeviceID:   cfg.Site.ID,
		Controller: controller,
		History:    historyRepo,
		DB:         db.DB,
		Version:    version,
	}
	if channel != nil {
		deps.Channel = channel
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
		deps.Bridge = bridge
	}
	if influxClient != nil {
		deps.Telemetry = influxClient
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Periodic work
	scheduler := automation.NewScheduler(cfg.Automation.Resolution, log.Component("scheduler"))
	registerJobs(scheduler, cfg, jobDeps{
		controller: controller,
		keeper:     keeper,
		recorder:   recorder,
		channel:    channel,
		bridge:     bridge,
		history:    historyRepo,
		log:        log,
	})
	if startErr := scheduler.Start(ctx); startErr != nil {
		return fmt.Errorf("starting scheduler: %w", startErr)
	}
	defer scheduler.Stop()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CLASSROOM_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CLASSROOM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// gateway is what a board or the simulator offers the controller.
type gateway interface {
	automation.ActuatorGateway
	automation.SensorGateway
}

// buildGateways selects the board drivers or the in-memory simulator.
func buildGateways(cfg config.HardwareConfig, log *logging.Logger) (automation.ActuatorGateway, automation.SensorGateway) {
	var gw gateway
	if cfg.Simulated {
		log.Info("hardware simulator enabled")
		gw = hardware.NewSimulator(simulatedReadings)
	} else {
		log.Info("board gateways enabled", "led_path", cfg.LEDPath, "sensor_file", cfg.SensorFile)
		gw = hardware.NewBoard(cfg.LEDPath, cfg.SensorFile, log.Component("hardware"))
	}
	return gw, gw
}

// connectInfluxDB connects when enabled and returns nil when disabled.
func connectInfluxDB(cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return client, nil
}

// startMQTT connects to the broker and starts the control bridge when MQTT
// is enabled. Both return values are nil when it is disabled.
func startMQTT(ctx context.Context, cfg *config.Config, controls remote.Controls, log *logging.Logger) (*mqtt.Client, *remote.MQTTBridge, error) {
	if !cfg.MQTT.Enabled {
		log.Info("MQTT mirror disabled")
		return nil, nil, nil
	}

	client, err := mqtt.Connect(cfg.MQTT, log.Component("mqtt"))
	if err != nil {
		return nil, nil, err
	}

	bridge := remote.NewMQTTBridge(remote.BridgeConfig{
		DeviceID:     cfg.Site.ID,
		StatusTopic:  cfg.MQTT.Topics.Status,
		ControlTopic: cfg.MQTT.Topics.Control,
		QoS:          byte(cfg.MQTT.QoS), //nolint:gosec // validated 0..2
	}, client, controls, log.Component("mqtt-bridge"))
	if err := bridge.Start(ctx); err != nil {
		//nolint:errcheck // Already failing; close is best effort
		client.Close()
		return nil, nil, err
	}

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"status_topic", cfg.MQTT.Topics.Status,
		"control_topic", cfg.MQTT.Topics.Control,
	)
	return client, bridge, nil
}

// jobDeps collects what the periodic jobs act on. channel and bridge may be nil.
type jobDeps struct {
	controller *automation.Controller
	keeper     *clock.Keeper
	recorder   *telemetry.Recorder
	channel    *remote.Channel
	bridge     *remote.MQTTBridge
	history    *history.SQLiteRepository
	log        *logging.Logger
}

// registerJobs wires the periodic work onto the scheduler.
//
// Order within a tick is the registration order: sensors are read before
// the table is evaluated, and the table before timers fire.
func registerJobs(s *automation.Scheduler, cfg *config.Config, d jobDeps) {
	s.Every("sensors", cfg.Automation.SensorInterval, func(ctx context.Context, _ time.Time) {
		//nolint:errcheck // Logged by the controller; previous readings are kept
		d.controller.PollSensors(ctx)
	})

	s.Every("evaluate", cfg.Automation.EvaluateInterval, func(ctx context.Context, _ time.Time) {
		d.controller.Evaluate(ctx)
	})

	s.Every("timers", 0, func(ctx context.Context, _ time.Time) {
		if fired := d.controller.RunDue(ctx); len(fired) > 0 {
			d.log.Debug("timers fired", "timers", fired)
		}
	})

	s.Every("status", cfg.Automation.StatusInterval, func(_ context.Context, _ time.Time) {
		snap := d.controller.State().Read()
		if d.channel != nil {
			if err := d.channel.EnqueueStatus(snap); err != nil {
				d.log.Warn("status not queued", "error", err)
			}
		}
		if d.bridge != nil {
			d.bridge.QueueStatus(snap)
		}
		d.recorder.Sample(snap)
	})

	s.Every("clock", cfg.Clock.TickInterval, func(ctx context.Context, _ time.Time) {
		d.keeper.Tick(ctx)
		if _, err := d.recorder.Checkpoint(ctx, d.controller.State().Read()); err != nil {
			d.log.Warn("history checkpoint failed", "error", err)
		}
	})

	s.Every("history-prune", historyPruneInterval, func(ctx context.Context, _ time.Time) {
		deleted, err := d.history.Prune(ctx, historyRetention)
		if err != nil {
			d.log.Warn("history prune failed", "error", err)
			return
		}
		if deleted > 0 {
			d.log.Info("history pruned", "deleted", deleted)
		}
	})
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
