// Command crs-server runs the CRS control plane: a well-known control
// socket plus, on a separate admin port, health/metrics/debug endpoints.
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

	"github.com/barnden/roomline/internal/adminhttp"
	"github.com/barnden/roomline/internal/config"
	"github.com/barnden/roomline/internal/crs/control"
	"github.com/barnden/roomline/internal/logging"
	"github.com/barnden/roomline/internal/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "crs-server:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		adminPort = flag.Int("admin-port", 9090, "admin HTTP port (health/metrics/rooms)")
		dev       = flag.Bool("dev", false, "enable development logging")
		collector = flag.String("otlp-collector", "", "OTLP gRPC collector address (empty disables export)")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		return fmt.Errorf("usage: crs-server [flags] <port>")
	}
	port, err := config.ParsePort(flag.Arg(0))
	if err != nil {
		return err
	}

	config.LoadDotEnv()
	if err := logging.Initialize(*dev, "crs-server"); err != nil {
		return fmt.Errorf("logging init: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, "crs-server", *collector)
	if err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	srv, err := control.New()
	if err != nil {
		return fmt.Errorf("control server init: %w", err)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on control port %d: %w", port, err)
	}
	logging.Info(ctx, "crs-server listening", zap.Int("port", port))

	admin := adminhttp.New("crs-server", srv.Registry)
	adminSrv := &http.Server{Addr: fmt.Sprintf(":%d", *adminPort), Handler: admin}
	go func() {
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Warn(ctx, "admin http server stopped", zap.Error(err))
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, listener) }()

	select {
	case <-ctx.Done():
		logging.Info(ctx, "shutting down")
	case err := <-errCh:
		if err != nil {
			logging.Error(ctx, "control server stopped", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = adminSrv.Shutdown(shutdownCtx)
	return nil
}
