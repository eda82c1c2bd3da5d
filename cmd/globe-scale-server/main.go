package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/globe-scale/core"
	"github.com/signalsfoundry/globe-scale/internal/api"
	"github.com/signalsfoundry/globe-scale/internal/config"
	"github.com/signalsfoundry/globe-scale/internal/logging"
	"github.com/signalsfoundry/globe-scale/internal/observability"
	"github.com/signalsfoundry/globe-scale/internal/ringcache"
	"github.com/signalsfoundry/globe-scale/internal/session"
	"github.com/signalsfoundry/globe-scale/kb"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (defaults and GLOBESCALE_* env when empty)")
	grpcAddr := flag.String("grpc-addr", "", "TCP address the ScaleService listens on (overrides server.grpc_addr)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides server.metrics_addr)")
	flag.Parse()

	ctx := context.Background()
	bootLog := logging.NewFromEnv()

	loader := config.NewLoader(*configPath, bootLog)
	cfg, err := loader.Load()
	if err != nil {
		bootLog.Error(ctx, "failed to load config", logging.String("path", *configPath), logging.Err(err))
		os.Exit(1)
	}
	if *grpcAddr != "" {
		cfg.Server.GRPCAddr = *grpcAddr
	}
	if *metricsAddr != "" {
		cfg.Server.MetricsAddr = *metricsAddr
	}

	log := logging.New(cfg.Log.LoggingConfig())

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.Server.GRPCAddr), logging.Err(err))
		os.Exit(1)
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(stopCtx, cfg, loader, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves ScaleService on lis until ctx is cancelled. loader may be nil;
// when set, config file edits are applied to the running server.
func run(ctx context.Context, cfg *config.Config, loader *config.Loader, log logging.Logger, lis net.Listener) error {
	if log == nil {
		log = logging.Noop()
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing.Observability(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	modes, err := loadModes(cfg.ModesFile)
	if err != nil {
		return err
	}
	unsubscribe := modes.Subscribe(func(ev kb.Event) {
		switch ev.Type {
		case kb.EventTableReplaced:
			log.Info(context.Background(), "mode table replaced", logging.Int("modes", len(modes.ListModes())))
		case kb.EventModeUpserted:
			log.Info(context.Background(), "mode upserted", logging.String("mode", ev.Mode.Name))
		}
	})
	defer unsubscribe()

	opts := []session.Option{
		session.WithLogger(log),
		session.WithMetricsRecorder(collector),
		session.WithFramer(core.NewFramer(cfg.Camera.FramerConfig())),
		session.WithDefaultSegments(cfg.Geodesic.Segments),
	}
	if cfg.RingCache.Enabled {
		cache, err := ringcache.New(ctx, cfg.RingCache.LifeWindow, cfg.RingCache.MaxMB,
			ringcache.WithMetricsRecorder(collector),
			ringcache.WithLogger(log),
		)
		if err != nil {
			return err
		}
		defer cache.Close()
		opts = append(opts, session.WithRingSource(cache))
	}
	store := session.NewStore(modes, opts...)

	sweeper := session.NewSweeper(store, cfg.Session.TTL, cfg.Session.SweepInterval)
	sweeper.AddListener(func(expired []string) {
		log.Debug(context.Background(), "idle sessions expired", logging.Any("session_ids", expired))
	})
	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := sweeper.Start(sweepCtx)
	defer func() {
		stopSweep()
		<-sweepDone
	}()

	if loader != nil {
		err := loader.Watch(func(next *config.Config) {
			store.SetFramer(core.NewFramer(next.Camera.FramerConfig()))
			log.Info(context.Background(), "framing config applied",
				logging.Float("margin_factor", next.Camera.MarginFactor),
				logging.Float("antipode_threshold_deg", next.Camera.AntipodeThresholdDeg),
			)
			if next.ModesFile != "" {
				if err := reloadModes(modes, next.ModesFile); err != nil {
					log.Warn(context.Background(), "mode table reload failed", logging.String("path", next.ModesFile), logging.Err(err))
				}
			}
		})
		if err != nil && !errors.Is(err, config.ErrNoConfigFile) {
			return fmt.Errorf("watch config: %w", err)
		}
	}

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			api.RequestIDUnaryServerInterceptor(log),
			api.TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	)
	api.RegisterScaleServer(server, api.NewScaleService(store, log))

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(server, healthSrv)
	healthSrv.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)

	metricsSrv := serveMetrics(cfg.Server.MetricsAddr, collector, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(lis)
	}()
	log.Info(ctx, "starting ScaleService gRPC server", logging.String("addr", lis.Addr().String()))

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	log.Info(context.Background(), "shutting down ScaleService server")
	healthSrv.Shutdown()
	server.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	if serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
		return serveErr
	}
	return nil
}

func serveMetrics(addr string, collector *observability.Collector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func loadModes(path string) (*kb.ModeTable, error) {
	if path == "" {
		return kb.NewDefaultModeTable(), nil
	}
	t := kb.NewModeTable()
	if err := reloadModes(t, path); err != nil {
		return nil, err
	}
	return t, nil
}

func reloadModes(t *kb.ModeTable, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open mode table: %w", err)
	}
	defer f.Close()

	if _, err := kb.LoadModeTable(t, f); err != nil {
		return fmt.Errorf("load mode table %s: %w", path, err)
	}
	return nil
}
