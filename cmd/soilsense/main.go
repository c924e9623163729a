// SoilSense Core - soil-moisture ingester
//
// This is the entry point for the ingester. It subscribes to soil-moisture
// readings on the MQTT broker, acknowledges each one once it is queued, and
// writes it to the configured time-series store with retries.
//
// Shutdown is driven by SIGINT/SIGTERM: ingestion stops taking messages,
// the persistence worker keeps writing the readings already acknowledged
// to the broker for up to pipeline.drain_timeout (anything left is logged
// and counted as dropped), and connections are closed in reverse order of
// opening.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/soilsense-core/internal/api"
	"github.com/nerrad567/soilsense-core/internal/infrastructure/config"
	"github.com/nerrad567/soilsense-core/internal/infrastructure/database"
	"github.com/nerrad567/soilsense-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/soilsense-core/internal/infrastructure/logging"
	"github.com/nerrad567/soilsense-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/soilsense-core/internal/infrastructure/tsdb"
	"github.com/nerrad567/soilsense-core/internal/persistence"
	"github.com/nerrad567/soilsense-core/internal/pipeline"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	serviceName       = "soilsense"
	defaultConfigPath = "configs/config.yaml"
)

// sqliteBusyTimeout is the lock wait for the sqlite driver (seconds).
const sqliteBusyTimeout = 5

func main() {
	configFlag := flag.String("config", "", "path to config.yaml (overrides SOILSENSE_CONFIG)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, getConfigPath(*configFlag)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// store is what the ingester needs from a write backend.
// *tsdb.Client, *influxdb.Client and *database.DB implement it.
type store interface {
	persistence.Writer
	HealthCheck(ctx context.Context) error
	Close() error
}

// run is the actual application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	log := logging.Default(serviceName)
	log.Info("starting SoilSense ingester",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, serviceName, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the store before subscribing so nothing is acknowledged
	// while there is nowhere to write it.
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}
	defer func() {
		log.Info("closing store")
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing store", "error", closeErr)
		}
	}()
	if hcErr := st.HealthCheck(ctx); hcErr != nil {
		// Not fatal: writes are retried, and the store may come up after us.
		log.Warn("store health check failed", "driver", cfg.Store.Driver, "error", hcErr)
	}
	log.Info("store ready", "driver", cfg.Store.Driver, "table", cfg.Store.Table)

	mqttClient, err := mqtt.Connect(ctx, cfg.MQTT, mqtt.WithLogger(log.With("component", "mqtt")))
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := pipeline.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	retrier := persistence.NewRetrier(st, persistence.WithLogger(log.With("component", "persistence")))
	p := pipeline.New(mqttClient, retrier, pipeline.Config{
		Topic:        cfg.MQTT.Topic,
		Table:        cfg.Store.Table,
		MaxRetries:   cfg.Store.MaxRetries,
		QueueSize:    cfg.Pipeline.QueueSize,
		DrainTimeout: cfg.GetDrainTimeout(),
	},
		pipeline.WithLogger(log.With("component", "pipeline")),
		pipeline.WithMetrics(metrics),
	)

	if cfg.Status.Enabled {
		srv, srvErr := api.New(api.Deps{
			Config:    cfg.Status,
			Logger:    log.With("component", "status"),
			Transport: mqttClient,
			Pipeline:  p,
			Gatherer:  registry,
			Version:   version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating status server: %w", srvErr)
		}
		if srvErr = srv.Start(ctx); srvErr != nil {
			return fmt.Errorf("starting status server: %w", srvErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	}

	log.Info("SoilSense ingester running", "topic", cfg.MQTT.Topic)

	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	log.Info("shutdown signal received, stopping...")
	return nil
}

// openStore builds the write backend selected by cfg.Driver.
func openStore(ctx context.Context, cfg config.StoreConfig) (store, error) {
	switch cfg.Driver {
	case config.StoreDriverHTTP:
		c, err := tsdb.New(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil

	case config.StoreDriverInfluxDB:
		c, err := influxdb.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil

	case config.StoreDriverSQLite:
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Path,
			WALMode:     true,
			BusyTimeout: sqliteBusyTimeout,
		})
		if err != nil {
			return nil, err
		}
		if err := db.EnsureTable(ctx, cfg.Table); err != nil {
			return nil, errors.Join(err, db.Close())
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// getConfigPath returns the configuration file path.
//
// Precedence: -config flag, then SOILSENSE_CONFIG, then the default.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if path := os.Getenv("SOILSENSE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
