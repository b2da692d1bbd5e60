// Package api provides the HTTP REST API for pinctl Core.
//
// It exposes device and command management, command execution, and the
// execution history to authenticated users.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/pinctl-core/internal/command"
	"github.com/nerrad567/pinctl-core/internal/device"
	"github.com/nerrad567/pinctl-core/internal/execution"
	"github.com/nerrad567/pinctl-core/internal/infrastructure/config"
	"github.com/nerrad567/pinctl-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionStatus reports whether an optional infrastructure link is up.
// *mqtt.Client and *influxdb.Client implement it.
type ConnectionStatus interface {
	IsConnected() bool
}

// MetricsSink is the metrics link as seen by /metrics.
// *influxdb.Client implements it.
type MetricsSink interface {
	ConnectionStatus
	WriteErrors() uint64
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Commands *command.Service
	Executor *execution.Executor
	History  *execution.History
	DB       *sql.DB          // optional: pool stats in /metrics
	MQTT     ConnectionStatus // optional: only set for the mqtt gateway transport
	InfluxDB MetricsSink      // optional
	Version  string
}

// Server is the HTTP API server for pinctl Core.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	registry  *device.Registry
	commands  *command.Service
	executor  *execution.Executor
	history   *execution.History
	db        *sql.DB
	mqtt      ConnectionStatus
	influx    MetricsSink
	version   string
	startTime time.Time
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Registry == nil {
		return nil, errors.New("device registry is required")
	}
	if deps.Commands == nil {
		return nil, errors.New("command service is required")
	}
	if deps.Executor == nil {
		return nil, errors.New("executor is required")
	}
	if deps.History == nil {
		return nil, errors.New("history is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}

	return &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		registry:  deps.Registry,
		commands:  deps.Commands,
		executor:  deps.Executor,
		history:   deps.History,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		influx:    deps.InfluxDB,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
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

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return errors.New("api server not started")
	}

	return nil
}
