// SoilSense sensor publisher
//
// soilsensor simulates a soil-moisture probe. It publishes one encoded
// Measurement at QoS 1 on the configured topic every sensor.interval
// seconds, sensor.count times (0 publishes until interrupted).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/soilsense-core/internal/infrastructure/config"
	"github.com/nerrad567/soilsense-core/internal/infrastructure/logging"
	"github.com/nerrad567/soilsense-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/soilsense-core/internal/sensor"
)

// Version information - set at build time via ldflags
var version = "dev"

const (
	serviceName       = "soilsensor"
	defaultConfigPath = "configs/config.yaml"
)

// publishQoS is fixed: the ingester relies on at-least-once delivery.
const publishQoS = 1

// Publisher is the part of the MQTT client the publish loop needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

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

// run loads configuration, connects and publishes until count readings
// have been sent or ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, serviceName, version)

	// The ingester and the publisher share one config file; the broker
	// rejects a second session with the same client ID.
	mqttCfg := cfg.MQTT
	mqttCfg.Broker.ClientID = publisherClientID(cfg.Sensor.ID)

	client, err := mqtt.Connect(ctx, mqttCfg, mqtt.WithLogger(log.With("component", "mqtt")))
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()

	s := sensor.New(sensor.Config{
		ID:       cfg.Sensor.ID,
		Location: cfg.Sensor.Location,
		Unit:     cfg.Sensor.Unit,
		Seed:     cfg.Sensor.Seed,
	})

	log.Info("publishing readings",
		"topic", cfg.MQTT.Topic,
		"sensor_id", cfg.Sensor.ID,
		"interval", cfg.GetSensorInterval(),
		"count", cfg.Sensor.Count,
	)

	sent, err := publishLoop(ctx, client, s, cfg.MQTT.Topic, cfg.GetSensorInterval(), cfg.Sensor.Count, log)
	log.Info("publisher stopped", "sent", sent)
	return err
}

// publishLoop publishes one reading immediately and then one per interval.
//
// Returns:
//   - int: number of readings published
//   - error: the first publish or encode failure; nil on count reached or ctx cancelled
func publishLoop(ctx context.Context, pub Publisher, s *sensor.Sensor, topic string, interval time.Duration, count int, log *logging.Logger) (int, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent := 0
	for count <= 0 || sent < count {
		m := s.Read()
		payload, err := m.Encode()
		if err != nil {
			return sent, fmt.Errorf("encoding reading: %w", err)
		}
		if err := pub.Publish(topic, payload, publishQoS, false); err != nil {
			return sent, fmt.Errorf("publishing reading %s: %w", m.ID, err)
		}
		sent++
		log.Debug("reading published", "id", m.ID, "data", m.Data)

		if count > 0 && sent >= count {
			break
		}

		select {
		case <-ctx.Done():
			return sent, nil
		case <-ticker.C:
		}
	}
	return sent, nil
}

// publisherClientID derives the MQTT client ID from the sensor ID.
func publisherClientID(sensorID string) string {
	if sensorID == "" {
		return "soilsense-pub"
	}
	return "soilsense-pub-" + sensorID
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
