// cmd/server/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/SyedDaiam9101/crop-disease-service/internal/cache"
	"github.com/SyedDaiam9101/crop-disease-service/internal/config"
	"github.com/SyedDaiam9101/crop-disease-service/internal/handler"
	"github.com/SyedDaiam9101/crop-disease-service/internal/logging"
	"github.com/SyedDaiam9101/crop-disease-service/internal/metrics"
	"github.com/SyedDaiam9101/crop-disease-service/internal/predict"
	"github.com/SyedDaiam9101/crop-disease-service/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configFile *string) *cobra.Command {
	var drain time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the prediction API",
		Long: `Loads every model listed in the model config and starts the HTTP API.

Startup fails if the model config is missing or no model could be loaded.
Prometheus metrics and health checks are served on a separate port.`,
		Example: `  # Start with defaults (127.0.0.1:8000, models/model_config.json)
  crop-disease-service serve

  # Listen on all interfaces with a custom model config
  crop-disease-service serve --host 0.0.0.0 --model-config /models/config.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(serviceName)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return serve(cmd.Context(), cfg, drain, logger)
		},
	}

	cmd.Flags().String("host", "", "Interface to bind (default: 127.0.0.1)")
	cmd.Flags().Int("port", 0, "API port (default: 8000)")
	cmd.Flags().String("static-dir", "", "Directory served under /static (default: static)")
	cmd.Flags().Int("metrics-port", 0, "Prometheus metrics and health port (default: 9100)")
	cmd.Flags().Int("grpc-port", 0, "gRPC health service port (default: disabled)")
	cmd.Flags().String("redis", "", "Redis address for the prediction cache (default: disabled)")
	cmd.Flags().DurationVar(&drain, "drain", 5*time.Second, "Time to report NOT_SERVING before shutting down")
	addModelFlags(cmd)

	return cmd
}

func serve(ctx context.Context, cfg *config.Config, drain time.Duration, logger *zap.Logger) error {
	logger.Info("Starting service",
		zap.String("version", version),
		zap.String("addr", cfg.Addr()),
		zap.String("static_dir", cfg.StaticDir),
		zap.Int("metrics_port", cfg.MetricsPort),
		zap.Int("grpc_health_port", cfg.GRPCHealthPort),
		zap.Bool("cache", cfg.Redis != ""),
		zap.Bool("otel", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry tracer
	var tracerShutdown func(context.Context) error
	if cfg.OTELEnabled {
		var err error
		tracerShutdown, err = tracing.Init(serviceName, version, cfg.OTELEndpoint, os.Stdout, logger)
		if err != nil {
			logger.Warn("Failed to initialize tracer", zap.Error(err))
		}
	}

	if err := os.MkdirAll(cfg.StaticDir, 0o755); err != nil {
		return fmt.Errorf("failed to create static dir: %w", err)
	}

	loaded, err := loadModels(cfg, logger)
	if err != nil {
		return err
	}
	defer closeModels(loaded.Registry, logger)

	opts := []predict.Option{predict.WithLogger(logger.Named("predict"))}

	// Initialize Redis cache (optional)
	if cfg.Redis != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		c, err := cache.New(pingCtx, cfg.Redis, cfg.CacheTTL)
		cancel()
		if err != nil {
			logger.Warn("Prediction cache unavailable, continuing without it", zap.Error(err))
		} else {
			defer c.Close()
			opts = append(opts, predict.WithCache(c))
			logger.Info("Prediction cache enabled", zap.String("redis", cfg.Redis), zap.Duration("ttl", cfg.CacheTTL))
		}
	}

	svc := predict.NewService(loaded.Registry, opts...)
	h := handler.New(svc, cfg.StaticDir, cfg.MaxUploadBytes, logger.Named("http"))

	var api http.Handler = h.Router()
	if cfg.OTELEnabled {
		api = otelhttp.NewHandler(api, "http.server")
	}
	apiServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	healthServer := health.NewServer()
	opsServer := newOpsServer(cfg.MetricsPort, healthServer)

	var (
		grpcServer *grpc.Server
		grpcLis    net.Listener
	)
	if cfg.GRPCHealthPort > 0 {
		addr := ":" + strconv.Itoa(cfg.GRPCHealthPort)
		grpcLis, err = net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthServer)
		reflection.Register(grpcServer)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listenAndServe(apiServer, "api", logger) })
	g.Go(func() error { return listenAndServe(opsServer, "metrics", logger) })
	if grpcServer != nil {
		g.Go(func() error {
			logger.Info("gRPC health server listening", zap.String("addr", grpcLis.Addr().String()))
			return grpcServer.Serve(grpcLis)
		})
	}

	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING) // Overall health
	metrics.SetHealthy()
	logger.Info("Service ready", zap.String("url", "http://"+cfg.Addr()))

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully")

		healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		metrics.SetUnhealthy()

		// Give load balancers time to notice
		time.Sleep(drain)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		errs = append(errs, apiServer.Shutdown(shutdownCtx))
		errs = append(errs, opsServer.Shutdown(shutdownCtx))
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		if tracerShutdown != nil {
			errs = append(errs, tracerShutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server shutdown complete")
	return nil
}

func listenAndServe(srv *http.Server, name string, logger *zap.Logger) error {
	logger.Info("HTTP server listening", zap.String("server", name), zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

// newOpsServer serves Prometheus metrics and the health endpoints backed by
// the gRPC health server status.
func newOpsServer(port int, healthServer *health.Server) *http.Server {
	mux := http.NewServeMux()

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	check := func(okBody, failBody string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			resp, err := healthServer.Check(r.Context(), &healthpb.HealthCheckRequest{})
			if err != nil || resp.Status != healthpb.HealthCheckResponse_SERVING {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(failBody))
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(okBody))
		}
	}
	mux.HandleFunc("/healthz", check("OK", "Service Unavailable"))
	// Models are loaded before serving starts, so readiness matches liveness
	mux.HandleFunc("/readyz", check("Ready", "Not Ready"))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
