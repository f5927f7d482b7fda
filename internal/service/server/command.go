package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/oshokin/opcua-alarms/internal/addrspace"
	api "github.com/oshokin/opcua-alarms/internal/api/grpc/condition"
	"github.com/oshokin/opcua-alarms/internal/config"
	"github.com/oshokin/opcua-alarms/internal/dispatch"
	"github.com/oshokin/opcua-alarms/internal/logger"
	"github.com/oshokin/opcua-alarms/internal/metrics"
	pb "github.com/oshokin/opcua-alarms/internal/pb/v1"
	"github.com/oshokin/opcua-alarms/internal/repository/journal"
	repository "github.com/oshokin/opcua-alarms/internal/repository/state"
	"github.com/oshokin/opcua-alarms/internal/service/common"
	"github.com/oshokin/opcua-alarms/internal/transport/mqtt"
	"github.com/oshokin/opcua-alarms/internal/transport/redisstream"
	"github.com/oshokin/opcua-alarms/internal/version"
)

// Options controls the ua-alarm-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StateFile overrides the path to persist condition snapshots.
	StateFile string
	// MetricsAddress overrides the Prometheus listen address.
	MetricsAddress string
	// SingleInstance refuses to start when another server process is running.
	SingleInstance bool
}

// shutdownTimeout bounds draining the dispatcher on exit.
const shutdownTimeout = 10 * time.Second

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the gRPC server and blocks until context is canceled or server stops.
// Loads configuration first, then determines listen address from config or override.
//
//nolint:funlen // Wiring of every component lives here.
func Run(ctx context.Context, opts *Options) error {
	// Load configuration first to get server settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	closeLog := setupLogging(settings.Log)
	defer func() { _ = closeLog() }()

	// Named after setupLogging so the context carries the configured logger.
	ctx = logger.WithName(ctx, "ua-alarm-server")

	logger.DebugKV(ctx, "Logging configured", "level", logger.Level(), "file", settings.Log.File)

	if opts.SingleInstance {
		if err := common.EnsureSingleInstance(); err != nil {
			return err
		}
	}

	// Use StateFile from config unless overridden by command line option.
	stateFile := settings.StateFile
	if opts.StateFile != "" {
		stateFile = opts.StateFile
	}

	metricsAddress := settings.MetricsAddress
	if opts.MetricsAddress != "" {
		metricsAddress = opts.MetricsAddress
	}

	// Determine listen address: CLI argument overrides config port extraction.
	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	events, err := journal.Open(ctx, settings.Journal.DSN)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	hub := dispatch.NewHub()
	sinks := []dispatch.Sink{events, hub}
	closers := []io.Closer{events}

	defer func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				logger.WarnKV(ctx, "Failed to close sink", "error", err)
			}
		}
	}()

	extra, extraClosers, err := openBrokers(ctx, settings)
	if err != nil {
		return err
	}

	sinks = append(sinks, extra...)
	closers = append(closers, extraClosers...)

	dispatcher := dispatch.New(settings.Dispatch.QueueSize, sinks...)
	if err := dispatcher.Start(ctx); err != nil {
		return err
	}

	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := dispatcher.Close(drainCtx); err != nil {
			logger.WarnKV(ctx, "Notifications left undelivered", "pending", dispatcher.Len(), "error", err)
		}
	}()

	space := addrspace.New(addrspace.WithDispatcher(dispatcher))

	// Create condition service with state management.
	svc, err := newService(ctx, space, repository.NewFileRepository(stateFile), events, hub, settings.Alarms)
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	if metricsAddress != "" {
		go func() {
			if err := metrics.Serve(ctx, metricsAddress); err != nil {
				logger.ErrorKV(ctx, "Metrics endpoint failed", "error", err)
			}
		}()
	}

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	// Create and configure gRPC server with condition service.
	grpcServer := grpc.NewServer()
	pb.RegisterConditionServiceServer(grpcServer, api.NewServer(svc))

	logger.InfoKV(ctx, "Condition server listening",
		"version", version.Short(),
		"listen_address", listenAddress,
		"state_file", stateFile,
		"conditions", len(settings.Alarms),
		"sinks", len(sinks),
	)

	// Done channel is closed after Stop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		// Stop also ends open Subscribe streams.
		grpcServer.Stop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// openBrokers connects the optional Redis and MQTT sinks.
func openBrokers(ctx context.Context, settings *config.Config) ([]dispatch.Sink, []io.Closer, error) {
	var (
		sinks   []dispatch.Sink
		closers []io.Closer
	)

	if settings.Redis.Addr != "" {
		sink, err := redisstream.New(ctx, redisstream.Options{
			Addr:     settings.Redis.Addr,
			Password: settings.Redis.Password,
			DB:       settings.Redis.DB,
			Stream:   settings.Redis.Stream,
			MaxLen:   settings.Redis.MaxLen,
		})
		if err != nil {
			return nil, nil, err
		}

		sinks = append(sinks, sink)
		closers = append(closers, sink)
	}

	if settings.MQTT.Broker != "" {
		sink, err := mqtt.New(mqtt.Options{
			Broker:      settings.MQTT.Broker,
			ClientID:    settings.MQTT.ClientID,
			Username:    settings.MQTT.Username,
			Password:    settings.MQTT.Password,
			TopicPrefix: settings.MQTT.TopicPrefix,
			QoS:         settings.MQTT.QoS,
			Timeout:     settings.Timeout,
		})
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}

			return nil, nil, err
		}

		sinks = append(sinks, sink)
		closers = append(closers, sink)
	}

	return sinks, closers, nil
}

// setupLogging applies the configured level, format and file output to the global logger.
func setupLogging(cfg config.LogConfig) func() error {
	if level, ok := logger.ParseLogLevel(cfg.Level); ok {
		logger.SetLevel(level)
	}

	format, ok := logger.ParseFormat(cfg.Format)
	if !ok {
		logger.Logger().Warnw("unknown log format, using console", "format", cfg.Format)
	}

	if cfg.File == "" && format == logger.FormatConsole {
		return func() error { return nil }
	}

	opts := logger.FileOptions{
		Path:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	if level, ok := logger.ParseLogLevel(cfg.FileLevel); ok {
		opts.Level = level
	}

	l, closeFile := logger.NewWithFile(nil, format, opts)
	logger.SetLogger(l)

	return closeFile
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	// Use override address if provided (e.g., ":9090", "0.0.0.0:8080").
	if override != "" {
		return override, nil
	}

	// Extract port from config address (e.g., "server.example.com:8080" -> ":8080").
	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	// Parse the address to extract port.
	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Return port-only listen address to bind on all interfaces.
	return ":" + port, nil
}
