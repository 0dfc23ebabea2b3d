// Copyright 2026 The termmux Authors
// SPDX-License-Identifier: Apache-2.0

// termmux-server multiplexes the terminal output of long-running
// processes to any number of live viewers.
//
// It starts the processes listed in its configuration, attaches each one
// to a session, and serves:
//
//   - /ws: the viewer websocket (subscribe, unsubscribe, input, clear)
//   - /api/sessions and /api/sessions/{key}: JSON session snapshots
//   - /metrics: Prometheus metrics
//   - /healthz: liveness
//   - a CBOR control socket used by the termmux CLI
//
// Usage:
//
//	termmux-server --config /etc/termmux/termmux.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/NiroAgent/na-business-service-sub004/lib/clock"
	"github.com/NiroAgent/na-business-service-sub004/lib/config"
	"github.com/NiroAgent/na-business-service-sub004/lib/process"
	"github.com/NiroAgent/na-business-service-sub004/lib/service"
	"github.com/NiroAgent/na-business-service-sub004/lib/version"
	"github.com/NiroAgent/na-business-service-sub004/terminal"
	"github.com/NiroAgent/na-business-service-sub004/viewer"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		httpAddress string
		socketPath  string
		logLevel    string
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("termmux-server", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the configuration file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&httpAddress, "http", "", "override server.http_address")
	flagSet.StringVar(&socketPath, "socket", "", "override server.socket_path")
	flagSet.StringVar(&logLevel, "log-level", "", "override logging.level")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		version.Print("termmux-server")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if httpAddress != "" {
		cfg.Server.HTTPAddress = httpAddress
	}
	if socketPath != "" {
		cfg.Server.SocketPath = socketPath
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := newLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(cfg, logger, clock.Real())
	if err != nil {
		return err
	}
	return srv.run(ctx)
}

// loadConfig reads path, or $TERMMUX_CONFIG when path is empty. With
// neither set, the built-in defaults are used.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv(config.EnvironmentVariable) != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// server wires the registry, the viewer transport and the control
// socket together.
type server struct {
	config  *config.Config
	logger  *slog.Logger
	clock   clock.Clock
	metrics *prometheus.Registry

	registry *terminal.Registry
	hub      *viewer.Hub
	viewers  *viewer.Handler

	startedAt time.Time

	// ready is closed once every listener is accepting.
	ready    chan struct{}
	httpAddr net.Addr
}

func newServer(cfg *config.Config, logger *slog.Logger, clk clock.Clock) (*server, error) {
	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	terminalMetrics, err := terminal.NewMetrics(metrics)
	if err != nil {
		return nil, fmt.Errorf("registering terminal metrics: %w", err)
	}
	viewerMetrics, err := viewer.NewMetrics(metrics)
	if err != nil {
		return nil, fmt.Errorf("registering viewer metrics: %w", err)
	}

	hub := viewer.NewHub()
	registry := terminal.NewRegistry(terminal.Options{
		Connections: hub,
		Clock:       clk,
		Logger:      logger.With("component", "registry"),
		GraceWindow: cfg.Sessions.GraceWindow,
		Limits: terminal.BufferLimits{
			Unit:           cfg.Sessions.BufferUnit,
			HardMultiplier: cfg.Sessions.HardMultiplier,
			SoftMultiplier: cfg.Sessions.SoftMultiplier,
		},
		Metrics: terminalMetrics,
	})
	viewers := viewer.NewHandler(viewer.HandlerOptions{
		Registry:       registry,
		Hub:            hub,
		Clock:          clk,
		Logger:         logger.With("component", "viewer"),
		Metrics:        viewerMetrics,
		QueueDepth:     cfg.Viewers.QueueDepth,
		WriteTimeout:   cfg.Viewers.WriteTimeout,
		PingInterval:   cfg.Viewers.PingInterval,
		AllowedOrigins: cfg.Viewers.AllowedOrigins,
	})

	return &server{
		config:    cfg,
		logger:    logger,
		clock:     clk,
		metrics:   metrics,
		registry:  registry,
		hub:       hub,
		viewers:   viewers,
		startedAt: clk.Now(),
		ready:     make(chan struct{}),
	}, nil
}

// run starts the configured sources and serves until ctx is cancelled.
func (s *server) run(ctx context.Context) error {
	defer s.registry.Close()

	var listener net.Listener
	if s.config.Server.HTTPAddress != "" {
		var err error
		listener, err = net.Listen("tcp", s.config.Server.HTTPAddress)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", s.config.Server.HTTPAddress, err)
		}
		s.httpAddr = listener.Addr()
	}

	processes, err := startSources(s.config.Sources, s.registry, s.logger)
	if err != nil {
		if listener != nil {
			listener.Close()
		}
		return err
	}
	defer stopSources(processes, s.logger)

	group, ctx := errgroup.WithContext(ctx)

	var control *service.Server
	if s.config.Server.SocketPath != "" {
		control = service.NewServer(s.config.Server.SocketPath, s.logger.With("component", "control"))
		(&controlHandlers{registry: s.registry, hub: s.hub, clock: s.clock, startedAt: s.startedAt}).register(control)
		group.Go(func() error { return control.Serve(ctx) })
	}

	if listener != nil {
		httpServer := &http.Server{
			Handler:           newMux(s.registry, s.viewers, s.metrics, s.logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		group.Go(func() error {
			s.logger.Info("http listening", "address", listener.Addr().String())
			if err := httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving http: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
			defer cancel()
			s.hub.CloseAll()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	go func() {
		if control != nil {
			select {
			case <-control.Ready():
			case <-ctx.Done():
				return
			}
		}
		close(s.ready)
	}()

	s.logger.Info("termmux server running",
		"version", version.Info(),
		"sources", len(processes),
		"socket", s.config.Server.SocketPath,
	)
	err = group.Wait()
	s.logger.Info("termmux server stopped")
	return err
}
