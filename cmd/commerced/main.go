package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/MarkoPoloResearchLab/commerce/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/commerce/internal/observability"
	"github.com/MarkoPoloResearchLab/commerce/pkg/commerce"
)

const (
	flagDatabaseURL         = "database-url"
	flagStoreDriver         = "store-driver"
	flagListenAddr          = "listen-addr"
	flagMetricsAddr         = "metrics-addr"
	configKeyDatabaseURL    = "database_url"
	configKeyStoreDriver    = "store_driver"
	configKeyListenAddr     = "listen_addr"
	configKeyMetricsAddr    = "metrics_addr"
	defaultDatabaseURL      = "sqlite:///tmp/commerce.db"
	defaultStoreDriver      = storeDriverGorm
	defaultGRPCListenAddr   = ":7000"
	tracerName              = "commerced"
	metricsShutdownDeadline = 5 * time.Second
)

type runtimeConfig struct {
	DatabaseURL string
	StoreDriver string
	ListenAddr  string
	MetricsAddr string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "commerced: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "commerced",
		Short:         "Commerce ledger gRPC server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "database URL (postgres://, sqlite:// or memory://)")
	cmd.Flags().String(flagStoreDriver, defaultStoreDriver, "store driver for PostgreSQL URLs (gorm or pgx)")
	cmd.Flags().String(flagListenAddr, defaultGRPCListenAddr, "gRPC listen address")
	cmd.Flags().String(flagMetricsAddr, "", "Prometheus metrics listen address (empty disables)")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	bindings := []struct {
		key  string
		env  string
		flag string
	}{
		{configKeyDatabaseURL, "DATABASE_URL", flagDatabaseURL},
		{configKeyStoreDriver, "STORE_DRIVER", flagStoreDriver},
		{configKeyListenAddr, "GRPC_LISTEN_ADDR", flagListenAddr},
		{configKeyMetricsAddr, "METRICS_LISTEN_ADDR", flagMetricsAddr},
	}
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return err
		}
		if err := v.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = strings.TrimSpace(v.GetString(configKeyDatabaseURL))
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(v.GetString(configKeyStoreDriver)))
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaultStoreDriver
	}
	if cfg.StoreDriver != storeDriverGorm && cfg.StoreDriver != storeDriverPGX {
		return fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
	cfg.ListenAddr = strings.TrimSpace(v.GetString(configKeyListenAddr))
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultGRPCListenAddr
	}
	cfg.MetricsAddr = strings.TrimSpace(v.GetString(configKeyMetricsAddr))
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, cleanup, err := openStore(ctx, cfg.DatabaseURL, cfg.StoreDriver)
	if err != nil {
		return fmt.Errorf("store open: %w", err)
	}
	defer func() {
		if cleanupErr := cleanup(); cleanupErr != nil {
			logger.Warn("store close failed", zap.Error(cleanupErr))
		}
	}()

	metrics, err := observability.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("metrics init: %w", err)
	}

	clock := func() int64 { return time.Now().UTC().Unix() }
	commerceService, err := commerce.NewService(store, clock,
		commerce.WithOperationLogger(observability.NewZapOperationLogger(logger)),
		commerce.WithOperationLogger(metrics),
	)
	if err != nil {
		return fmt.Errorf("commerce service init: %w", err)
	}

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	grpcServer := grpcserver.NewGRPCServer(commerceService, grpcserver.Options{
		UnaryInterceptors: []grpc.UnaryServerInterceptor{
			observability.UnaryServerTracing(otel.Tracer(tracerName)),
			observability.UnaryServerLogging(logger, metrics),
		},
	})

	metricsServer := startMetricsServer(cfg.MetricsAddr, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gRPC server starting", zap.String("listen_addr", cfg.ListenAddr))
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
		stopMetricsServer(metricsServer, logger)
		grpcServer.GracefulStop()
		if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			return serveErr
		}
		return nil
	case serveErr := <-errCh:
		stopMetricsServer(metricsServer, logger)
		if errors.Is(serveErr, grpc.ErrServerStopped) {
			return nil
		}
		return serveErr
	}
}

func startMetricsServer(addr string, logger *zap.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("metrics server starting", zap.String("listen_addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return server
}

func stopMetricsServer(server *http.Server, logger *zap.Logger) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownDeadline)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown error", zap.Error(err))
	}
}
