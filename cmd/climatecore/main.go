// Climate Core monitors temperature and humidity units, logs every reading
// and alerts when a unit leaves its temperature limits.
//
// Usage:
//
//	climatecore            run the monitor and HTTP API until interrupted
//	climatecore -once      reconcile, run one sampling pass, then exit
//	climatecore token      print a bearer token for the administrative API
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/climate-core/internal/alert"
	"github.com/nerrad567/climate-core/internal/api"
	"github.com/nerrad567/climate-core/internal/audit"
	"github.com/nerrad567/climate-core/internal/hardware"
	"github.com/nerrad567/climate-core/internal/history"
	"github.com/nerrad567/climate-core/internal/infrastructure/config"
	"github.com/nerrad567/climate-core/internal/infrastructure/database"
	"github.com/nerrad567/climate-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/climate-core/internal/infrastructure/logging"
	"github.com/nerrad567/climate-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/climate-core/internal/monitor"
	"github.com/nerrad567/climate-core/internal/notify"
	"github.com/nerrad567/climate-core/internal/query"
	"github.com/nerrad567/climate-core/internal/settings"
	"github.com/nerrad567/climate-core/internal/unit"
	"github.com/nerrad567/climate-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "token" {
		err = runToken(os.Args[2:], os.Stdout)
	} else {
		err = runMain(ctx, os.Args[1:])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runMain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("climatecore", flag.ContinueOnError)
	once := fs.Bool("once", false, "run a single sampling pass and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return run(ctx, *once)
}

// runToken prints a signed token using the configured secret.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "admin", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	token, err := api.IssueToken(cfg.Security.JWT.Secret, *subject, *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// run wires every component and blocks until ctx is cancelled, or returns
// after a single pass when once is set.
func run(ctx context.Context, once bool) error { //nolint:gocognit,gocyclo,funlen // linear start-up sequence
	log := logging.Default()
	log.Info("starting Climate Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database
	db, err := database.Open(ctx, database.Config{
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
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// MQTT (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Hardware and unit registry
	driver, err := newDriver(cfg.Hardware, mqttClient)
	if err != nil {
		return err
	}
	log.Info("hardware driver ready", "driver", cfg.Hardware.Driver)

	registry := unit.NewRegistry(driver)
	registry.SetLogger(log.With("component", "registry"))
	registry.SetReadTimeout(cfg.Hardware.ReadTimeout)
	registry.SetReleaseActuatorOff(cfg.Hardware.ReleaseActuatorOff)
	defer func() {
		log.Info("releasing unit hardware")
		if closeErr := registry.Close(); closeErr != nil {
			log.Error("error releasing unit hardware", "error", closeErr)
		}
	}()

	units := unit.NewManager(unit.NewSQLiteRepository(db.DB), registry)
	units.SetLogger(log.With("component", "units"))

	limits := settings.NewStore(db.DB)
	limits.SetLogger(log.With("component", "settings"))
	samples := history.NewStore(db.DB)
	recipients := alert.NewRecipientStore(db.DB)

	// Alerts
	var publisher notify.Publisher
	if mqttClient != nil {
		publisher = mqttClient
	}
	sender, err := notify.New(cfg.Notify, publisher, log.With("component", "notify"))
	if err != nil {
		return fmt.Errorf("creating notification sender: %w", err)
	}
	dispatcher := alert.NewDispatcher(recipients, sender)
	dispatcher.SetLogger(log.With("component", "alert"))
	dispatcher.SetRealertInterval(cfg.Alerts.RealertInterval)
	log.Info("alert dispatcher ready",
		"transport", cfg.Notify.Transport,
		"realert_interval", cfg.Alerts.RealertInterval,
	)
	if cfg.Notify.SMTPUnused() {
		log.Warn("mail server configured but alerts are not sent by email",
			"smtp_host", cfg.Notify.SMTP.Host,
			"transport", cfg.Notify.Transport,
		)
	}

	// Monitor
	mon := monitor.New(monitor.Config{
		ReconcileInterval: cfg.Monitor.ReconcileInterval,
		CycleDelay:        cfg.Monitor.CycleDelay,
		UnitSettle:        cfg.Monitor.UnitSettle,
	}, registry, units, samples, limits, dispatcher)
	mon.SetLogger(log.With("component", "monitor"))

	var alertHooks []func(alert.Event)
	if influxClient != nil {
		sink := monitor.NewInfluxSink(influxClient)
		mon.AddSink(sink)
		alertHooks = append(alertHooks, sink.RecordAlert)
	}
	if mqttClient != nil {
		sink := monitor.NewMQTTSink(mqttClient, log.With("component", "telemetry"))
		mon.AddSink(sink)
		alertHooks = append(alertHooks, sink.RecordAlert)
	}

	if once {
		dispatcher.SetOnEvent(fanOut(alertHooks))
		if _, err := units.Reconcile(ctx); err != nil {
			return fmt.Errorf("reconciling units: %w", err)
		}
		mon.RunOnce(ctx)
		stats := mon.Stats()
		log.Info("single pass complete",
			"samples", stats.Samples,
			"read_failures", stats.ReadFailures,
			"alerts", stats.Alerts,
		)
		return nil
	}

	// HTTP API
	facade := query.NewFacade(registry)
	facade.SetLogger(log.With("component", "query"))

	deps := api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log.With("component", "api"),
		Units:      units,
		Query:      facade,
		Limits:     limits,
		Recipients: recipients,
		History:    samples,
		Audit:      audit.NewStore(db.DB),
		Monitor:    mon,
		DB:         db,
		Version:    version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	alertHooks = append(alertHooks, func(e alert.Event) {
		server.Hub().Broadcast(api.ChannelAlert, e)
	})
	dispatcher.SetOnEvent(fanOut(alertHooks))

	if cfg.Security.JWT.Secret == "" {
		log.Warn("security.jwt.secret is empty; administrative routes are unauthenticated")
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return mon.Run(gctx)
	})

	log.Info("initialisation complete, waiting for shutdown signal")
	runErr := g.Wait()

	log.Info("shutdown signal received, cleaning up")
	if err := server.Close(); err != nil {
		log.Error("error stopping API server", "error", err)
	}

	// Deferred Close() calls run in reverse order:
	// 1. unit hardware
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	log.Info("Climate Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CLIMATECORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CLIMATECORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newDriver builds the configured hardware driver. The mqtt driver needs a
// connected client.
func newDriver(cfg config.HardwareConfig, client *mqtt.Client) (hardware.Driver, error) {
	switch cfg.Driver {
	case config.DriverMQTT:
		if client == nil {
			return nil, errors.New("hardware driver mqtt requires an MQTT connection")
		}
		drv, err := hardware.NewMQTTDriver(client, cfg.SensorFreshness)
		if err != nil {
			return nil, fmt.Errorf("creating MQTT hardware driver: %w", err)
		}
		return drv, nil
	default:
		return hardware.NewSimDriver(cfg.Sim), nil
	}
}

// fanOut calls every hook in order.
func fanOut(hooks []func(alert.Event)) func(alert.Event) {
	return func(e alert.Event) {
		for _, h := range hooks {
			h(e)
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
// MQTT and InfluxDB are skipped when disabled.
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
