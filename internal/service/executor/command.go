package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/api/grpc/events"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/api/grpc/lifecycle"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/config"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/logger"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/metrics"
	"github.com/dino2gnt/opennms-shellexecutor-plugin/internal/service/reporter"
)

// metricsShutdownTimeout bounds the graceful stop of the metrics endpoint.
const metricsShutdownTimeout = 5 * time.Second

// Options controls the shellexec daemon.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the configured gRPC listen address.
	ListenAddress string
	// LogLevel overrides the configured log level.
	LogLevel string
	// Listener, when set, is served instead of listening on the resolved address.
	Listener net.Listener
}

// ErrUnknownLogLevel is returned for an unparsable log level.
var ErrUnknownLogLevel = errors.New("unknown log level")

// Run starts every configured executor behind the lifecycle gRPC service and blocks until
// ctx is cancelled. On shutdown the server stops gracefully, then executors and sinks close.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "shellexec")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if err = applyLogLevel(settings.LogLevel, opts.LogLevel); err != nil {
		return err
	}

	listenAddress := settings.ListenAddress
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	scriptsDir, err := settings.ResolveScriptsDir()
	if err != nil {
		return fmt.Errorf("resolve scripts directory: %w", err)
	}

	sink, closeSink, err := newSink(ctx, settings)
	if err != nil {
		return err
	}
	defer closeSink()

	registry := metrics.New()

	executors, err := newExecutors(ctx, sink, settings, scriptsDir, registry)
	if err != nil {
		return err
	}

	defer func() {
		for _, e := range executors {
			e.Close()
		}
	}()

	lis := opts.Listener
	if lis == nil {
		lc := net.ListenConfig{}

		lis, err = lc.Listen(ctx, "tcp", listenAddress)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", listenAddress, err)
		}
	}

	handlers := make([]lifecycle.Handler, 0, len(executors))
	for _, e := range executors {
		handlers = append(handlers, e)
	}

	healthServer := health.NewServer()
	healthServer.SetServingStatus(lifecycle.ServiceName, healthpb.HealthCheckResponse_SERVING)

	grpcServer := grpc.NewServer()
	lifecycle.Register(grpcServer, lifecycle.NewServer(handlers...))
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	stopMetrics := serveMetrics(ctx, settings.MetricsAddress, registry)
	defer stopMetrics()

	logger.InfoKV(ctx, "Shell executor listening",
		"listen_address", lis.Addr().String(), "executors", len(executors), "scripts_dir", scriptsDir)

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// applyLogLevel sets the global level, the override winning over the configured value.
func applyLogLevel(configured, override string) error {
	raw := configured
	if override != "" {
		raw = override
	}

	level, ok := logger.ParseLogLevel(raw)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLogLevel, raw)
	}

	logger.SetLevel(level)

	return nil
}

// newSink builds the event chain: log sink, optional gRPC forwarder, behind one async buffer.
func newSink(ctx context.Context, settings *config.Config) (reporter.Sink, func(), error) {
	sinks := reporter.MultiSink{reporter.LogSink{}}

	var forwarder *events.Client

	if settings.ForwardAddress != "" {
		var err error

		forwarder, err = events.Dial(ctx, settings.ForwardAddress, events.WithCallTimeout(settings.CallTimeout))
		if err != nil {
			return nil, nil, fmt.Errorf("connect event forwarder: %w", err)
		}

		sinks = append(sinks, forwarder)

		logger.InfoKV(ctx, "Forwarding events", "forward_address", settings.ForwardAddress)
	}

	async := reporter.NewAsyncSink(ctx, sinks, settings.EventBuffer)

	return async, func() {
		async.Close()

		if err := forwarder.Close(); err != nil {
			logger.WarnKV(ctx, "Failed to close event forwarder", "error", err)
		}
	}, nil
}

// newExecutors starts one executor per configured instance. Already started ones are closed on error.
func newExecutors(
	ctx context.Context,
	sink reporter.Sink,
	settings *config.Config,
	scriptsDir string,
	registry *metrics.Metrics,
) ([]*Executor, error) {
	executors := make([]*Executor, 0, len(settings.Executors))

	for _, svc := range settings.Executors {
		e, err := New(ctx, sink, settings.Client, svc, WithScriptsDir(scriptsDir), WithMetrics(registry))
		if err != nil {
			for _, started := range executors {
				started.Close()
			}

			return nil, fmt.Errorf("initialise executor: %w", err)
		}

		executors = append(executors, e)
	}

	return executors, nil
}

// serveMetrics exposes Prometheus metrics on address when configured and returns the stop function.
func serveMetrics(ctx context.Context, address string, registry *metrics.Metrics) func() {
	if address == "" {
		return func() {}
	}

	router := mux.NewRouter()
	router.Handle("/metrics", registry.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.InfoKV(ctx, "Metrics listening", "metrics_address", address)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorKV(ctx, "Metrics server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "Failed to stop metrics server", "error", err)
		}
	}
}
