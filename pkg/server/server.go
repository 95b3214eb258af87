// Package server wires the storage, ingestion, messaging and HTTP
// components into one runnable unit.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avionyx/flightd/internal/logger"
	"github.com/avionyx/flightd/pkg/api"
	"github.com/avionyx/flightd/pkg/api/handlers"
	"github.com/avionyx/flightd/pkg/auth"
	"github.com/avionyx/flightd/pkg/config"
	"github.com/avionyx/flightd/pkg/events"
	"github.com/avionyx/flightd/pkg/ingest"
	"github.com/avionyx/flightd/pkg/metrics"
	"github.com/avionyx/flightd/pkg/mqtt"
	"github.com/avionyx/flightd/pkg/store"
	"github.com/avionyx/flightd/pkg/ws"
)

// Server owns every long-lived component of the process. Serve starts
// them in dependency order and tears them down in reverse when the
// context is cancelled.
type Server struct {
	cfg *config.Config

	storage       *store.Store
	tokens        *auth.TokenService
	bus           *events.Bus
	buffer        *ingest.Buffer
	consumer      *mqtt.Consumer
	hub           *ws.Hub
	apiServer     *api.Server
	metricsServer *metrics.Server

	serveOnce sync.Once
}

// New returns a server for the given configuration. Nothing is started
// or connected until Serve.
func New(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Serve starts all components and blocks until the context is cancelled
// or a component fails. It can only be called once.
func (s *Server) Serve(ctx context.Context) error {
	var err error
	s.serveOnce.Do(func() {
		err = s.serve(ctx)
	})
	return err
}

// serve is the internal implementation of Serve.
func (s *Server) serve(ctx context.Context) error {
	logger.Info("starting flightd")

	// Metrics come first so every component created below can register
	// its collectors.
	if s.cfg.Metrics.Enabled {
		metrics.InitRegistry()
		s.metricsServer = metrics.NewServer(s.cfg.Metrics.Port)
		logger.Info("metrics enabled", "port", s.cfg.Metrics.Port)
	} else {
		logger.Info("metrics collection disabled")
	}

	tokens, err := auth.New(s.cfg.Auth)
	if err != nil {
		return fmt.Errorf("loading signing keys: %w", err)
	}
	s.tokens = tokens

	storage, err := store.Connect(ctx, s.cfg.Store)
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	s.storage = storage

	s.bus = events.NewBus()
	s.buffer = ingest.NewBuffer(storage.Flights, storage.Measurements,
		s.bus, s.cfg.Ingest.FlushInterval, metrics.NewIngestMetrics())
	s.hub = ws.NewHub(s.bus, storage.Flights, storage.Vessels, metrics.NewHubMetrics())

	s.apiServer = api.NewServer(s.cfg.API, handlers.Stores{
		Users:        storage.Users,
		AuthCodes:    storage.AuthCodes,
		Vessels:      storage.Vessels,
		Flights:      storage.Flights,
		Measurements: storage.Measurements,
		Commands:     storage.Commands,
		Cascade:      storage,
	}, tokens, s.bus, s.hub, storage)

	// The broker is optional; without it telemetry arrives only through
	// the HTTP report endpoint.
	if s.cfg.MQTT.URL != "" {
		mqttCfg := s.cfg.MQTT
		if mqttCfg.Username == "" {
			// Authenticate to the broker as the server itself.
			brokerToken, err := tokens.ServerToken()
			if err != nil {
				s.shutdown()
				return fmt.Errorf("minting broker token: %w", err)
			}
			mqttCfg.Username = "server"
			mqttCfg.Password = brokerToken
		}
		s.consumer = mqtt.NewConsumer(mqttCfg, s.buffer, metrics.NewConsumerMetrics())
		if err := s.consumer.Start(ctx); err != nil {
			s.shutdown()
			return fmt.Errorf("connecting to broker: %w", err)
		}
		logger.Info("broker connected", "url", s.cfg.MQTT.URL)
	} else {
		logger.Info("no broker configured")
	}

	serverErr := make(chan error, 2)
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := s.apiServer.Start(serveCtx); err != nil {
			serverErr <- err
		}
	}()
	if s.metricsServer != nil {
		go func() {
			if err := s.metricsServer.Start(serveCtx); err != nil {
				serverErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server failed, shutting down", logger.Err(err))
		runErr = err
	}

	cancel()
	s.shutdown()

	logger.Info("flightd stopped")
	return runErr
}

// shutdown tears components down in reverse start order: stop intake
// first, then drain buffers, then close the outward surfaces, storage
// last.
func (s *Server) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()

	if s.consumer != nil {
		logger.Debug("stopping broker consumer")
		s.consumer.Stop()
	}

	if s.buffer != nil {
		logger.Debug("draining ingestion buffer")
		s.buffer.Close()
	}

	if s.hub != nil {
		logger.Debug("closing websocket hub")
		s.hub.Close()
	}

	if s.apiServer != nil {
		if err := s.apiServer.Stop(shutdownCtx); err != nil {
			logger.Error("API server shutdown error", logger.Err(err))
		}
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Stop(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", logger.Err(err))
		}
	}

	if s.storage != nil {
		if err := s.storage.Close(shutdownCtx); err != nil {
			logger.Error("store close error", logger.Err(err))
		}
	}
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeout > 0 {
		return s.cfg.ShutdownTimeout
	}
	return 30 * time.Second
}
