package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/vimqa-core/internal/api"
	"github.com/nerrad567/vimqa-core/internal/events"
	"github.com/nerrad567/vimqa-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/vimqa-core/internal/infrastructure/logging"
	"github.com/nerrad567/vimqa-core/internal/infrastructure/mqtt"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *configPath)
		},
	}
}

// run is the service lifecycle, separated from the command for testability.
// It returns nil on a clean shutdown once ctx is cancelled.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting vimqa",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	c, closeDB, err := openCatalogue(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() {
		c.log.Info("closing database")
		closeDB()
	}()
	log = c.log
	cfg := c.cfg
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := c.exec.DB().Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	checks := map[string]api.HealthChecker{}

	// Events need the broker; without them MQTT is not dialled at all.
	var mqttClient *mqtt.Client
	if cfg.Events.Enabled {
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
		mqttClient.SetLogger(log)
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

		topics := mqtt.Topics{Prefix: cfg.Events.TopicPrefix}
		mqttClient.SetChangeTopics(topics)
		publisher := events.NewPublisher(mqttClient, topics, mqttClient.QoS())
		publisher.SetLogger(log)
		publisher.SetMapping(c.mapping)
		c.tables.SetObserver(publisher)
		checks["mqtt"] = mqttClient
		log.Info("change events enabled", "prefix", cfg.Events.TopicPrefix)
	} else {
		log.Info("change events disabled")
	}

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
		c.exec.SetMetrics(influxMetrics{client: influxClient})
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	srv, err := api.New(api.Deps{
		Config:   cfg.API,
		Logger:   log,
		Executor: c.exec,
		Tables:   c.tables,
		Resolver: c.resolver,
		Checks:   checks,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, c, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred closes run in reverse order: API, InfluxDB, MQTT, database.
	return nil
}

// healthCheck verifies the database and every optional dependency.
func healthCheck(ctx context.Context, c *catalogue, checks map[string]api.HealthChecker) error {
	if err := c.exec.DB().HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	for name, check := range checks {
		if err := check.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
