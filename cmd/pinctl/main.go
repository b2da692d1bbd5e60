// pinctl Core - command execution service for networked microcontrollers.
//
// This is the main entry point. Without arguments it runs the service:
// the REST API, the gateway dispatcher and the execution audit trail.
//
//	pinctl                 run the service
//	pinctl token <user-id> print an access token for user-id
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "github.com/nerrad567/pinctl-core/migrations"

	"github.com/nerrad567/pinctl-core/internal/api"
	"github.com/nerrad567/pinctl-core/internal/audit"
	"github.com/nerrad567/pinctl-core/internal/auth"
	"github.com/nerrad567/pinctl-core/internal/command"
	"github.com/nerrad567/pinctl-core/internal/device"
	"github.com/nerrad567/pinctl-core/internal/execution"
	"github.com/nerrad567/pinctl-core/internal/gateway"
	"github.com/nerrad567/pinctl-core/internal/infrastructure/config"
	"github.com/nerrad567/pinctl-core/internal/infrastructure/database"
	"github.com/nerrad567/pinctl-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/pinctl-core/internal/infrastructure/logging"
	"github.com/nerrad567/pinctl-core/internal/infrastructure/mqtt"
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
	if err := loadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Cancel on Ctrl+C and SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts every component and blocks until ctx is cancelled.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting pinctl Core",
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
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log.Component("device"))
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	commandService := command.NewService(command.NewSQLiteRepository(db.DB))
	commandService.SetLogger(log.Component("command"))
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// The broker is only needed when commands travel over MQTT.
	var (
		mqttClient *mqtt.Client
		messenger  gateway.Messenger
	)
	if cfg.Gateway.Transport == config.GatewayTransportMQTT {
		mqttClient, err = connectMQTT(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		messenger = mqttClient
	}

	dispatcher, err := gateway.New(cfg.Gateway, messenger, byte(cfg.MQTT.QoS), log.Component("gateway")) //nolint:gosec // QoS validated to 0-2
	if err != nil {
		return fmt.Errorf("creating gateway dispatcher: %w", err)
	}
	log.Info("gateway dispatcher ready",
		"transport", cfg.Gateway.Transport,
		"timeout", cfg.Gateway.DispatchTimeout(),
	)

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

	executor := execution.NewExecutor(dispatcher,
		execution.NewReconciler(deviceRegistry),
		execution.NewAuditRecorder(auditRepo),
		log.Component("executor"),
	)
	executor.SetSerializePerDevice(cfg.Execution.SerializePerDevice)
	if influxClient != nil {
		executor.SetMetrics(influxClient)
	}
	history := execution.NewHistory(auditRepo, deviceRegistry, commandService, log.Component("history"))

	deps := api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   log,
		Registry: deviceRegistry,
		Commands: commandService,
		Executor: executor,
		History:  history,
		DB:       db.DB,
		Version:  version,
	}
	// Typed nils would make the optional links look present.
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.InfluxDB = influxClient
	}

	apiServer, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API, InfluxDB, MQTT, database.
	return nil
}

// connectMQTT connects to the broker used by the mqtt gateway transport.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() {
		log.Info("MQTT connected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, nil
}

// runToken prints a signed access token for the user id in args.
func runToken(args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: pinctl token <user-id>")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	token, err := auth.GenerateAccessToken(args[0], cfg.Security.JWT.Secret, cfg.Security.JWT.TokenTTL())
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	_, err = fmt.Fprintln(w, token)
	return err
}

// loadDotEnv reads a .env file from the working directory when present.
// Variables already set in the environment win.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PINCTL_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PINCTL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when not in use.
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
