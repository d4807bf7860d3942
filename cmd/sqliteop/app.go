package main

import (
	"fmt"

	"github.com/nerrad567/sqliteop/internal/infrastructure/config"
	"github.com/nerrad567/sqliteop/internal/infrastructure/database"
	"github.com/nerrad567/sqliteop/internal/infrastructure/influxdb"
	"github.com/nerrad567/sqliteop/internal/infrastructure/logging"
	"github.com/nerrad567/sqliteop/internal/infrastructure/metrics"
	"github.com/nerrad567/sqliteop/internal/infrastructure/mqtt"
)

// app holds the Operator and the optional sinks wired to it.
type app struct {
	cfg *config.Config
	log *logging.Logger
	op  *database.Operator

	mqtt    *mqtt.Client
	influx  *influxdb.Client
	metrics *metrics.Recorder

	observers database.Observers
	closers   []func()
}

// newApp creates the Operator and connects every enabled sink.
//
// A sink that fails to connect aborts startup; sinks connected before it
// are closed again.
func newApp(cfg *config.Config, log *logging.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	a.op = database.NewWithConfig(database.Config{
		Path:        cfg.Database.Path,
		BusyTimeout: cfg.Database.BusyTimeout,
		ForeignKeys: cfg.Database.ForeignKeys,
		Autocommit:  cfg.Database.Autocommit,
		WALMode:     cfg.Database.WALMode,
	})
	a.op.SetLogger(log.Component("database"))

	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(cfg.Metrics.Namespace)
		a.observers = append(a.observers, a.metrics)
	}

	if cfg.MQTT.Enabled {
		client, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to MQTT: %w", connErr)
		}
		mqttLog := log.Component("mqtt")
		client.SetLogger(mqttLog)
		client.SetOnConnect(func() { mqttLog.Info("MQTT connected") })
		client.SetOnDisconnect(func(err error) { mqttLog.Warn("MQTT disconnected", "error", err) })
		a.mqtt = client
		a.closers = append(a.closers, func() {
			if closeErr := client.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		})
		a.observers = append(a.observers, mqtt.NewPublisher(client, mqttLog))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	if cfg.InfluxDB.Enabled {
		client, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		client.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		a.influx = client
		a.closers = append(a.closers, func() {
			if closeErr := client.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		})
		a.observers = append(a.observers, client.Observer())
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	a.op.SetObserver(a.observers)
	return a, nil
}

// addObserver appends o to the Operator's observer chain.
func (a *app) addObserver(o database.Observer) {
	a.observers = append(a.observers, o)
	a.op.SetObserver(a.observers)
}

// Close releases sinks in reverse order of connection. InfluxDB flushes
// buffered points before closing.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
