// Command sns-server runs the SNS RPC service: Login/List/Follow/UnFollow
// unary RPCs plus the Timeline bidirectional stream, backed by on-disk
// per-user persistence.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpkg "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/barnden/roomline/internal/adminhttp"
	"github.com/barnden/roomline/internal/config"
	"github.com/barnden/roomline/internal/logging"
	"github.com/barnden/roomline/internal/sns/persistence"
	"github.com/barnden/roomline/internal/sns/registry"
	"github.com/barnden/roomline/internal/sns/rpcwire"
	"github.com/barnden/roomline/internal/sns/service"
	"github.com/barnden/roomline/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sns-server:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		port      = flag.Int("p", 3010, "SNS RPC port")
		adminPort = flag.Int("admin-port", 9091, "admin HTTP port (health/metrics)")
		dataDir   = flag.String("data-dir", "", "persistence directory (default: config.DefaultDataDir())")
		dev       = flag.Bool("dev", false, "enable development logging")
		collector = flag.String("otlp-collector", "", "OTLP gRPC collector address (empty disables export)")
	)
	flag.Parse()

	config.LoadDotEnv()
	if err := logging.Initialize(*dev, "sns-server"); err != nil {
		return fmt.Errorf("logging init: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, "sns-server", *collector)
	if err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	dir := *dataDir
	if dir == "" {
		dir = config.DefaultDataDir()
	}
	store, err := persistence.New(dir)
	if err != nil {
		return fmt.Errorf("persistence init: %w", err)
	}

	reg := registry.New(store)
	if err := reg.Recover(); err != nil {
		return fmt.Errorf("recover user state: %w", err)
	}
	logging.Info(ctx, "recovered user state", zap.Strings("users", reg.Names()))

	svc, err := service.New(reg)
	if err != nil {
		return fmt.Errorf("sns service init: %w", err)
	}

	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(&rpcwire.ServiceDesc, svc)

	healthSrv := healthpkg.NewServer()
	healthSrv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		return fmt.Errorf("listen on RPC port %d: %w", *port, err)
	}
	logging.Info(ctx, "sns-server listening", zap.Int("port", *port), zap.String("data_dir", dir))

	admin := adminhttp.New("sns-server", nil)
	adminSrv := &http.Server{Addr: fmt.Sprintf(":%d", *adminPort), Handler: admin}
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Warn(ctx, "admin http server stopped", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- grpcServer.Serve(listener) }()

	select {
	case <-ctx.Done():
		logging.Info(ctx, "shutting down")
		grpcServer.GracefulStop()
	case err := <-errCh:
		if err != nil {
			logging.Error(ctx, "grpc server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = adminSrv.Shutdown(shutdownCtx)
	return nil
}
