// Command billhost owns the billing database and serves it to billing
// applications over the host bridge.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/meterbill/internal/auth"
	"github.com/mmynk/meterbill/internal/backup"
	"github.com/mmynk/meterbill/internal/bridge"
	"github.com/mmynk/meterbill/internal/config"
	"github.com/mmynk/meterbill/internal/metrics"
	"github.com/mmynk/meterbill/internal/middleware"
	"github.com/mmynk/meterbill/internal/storage/sqlite"
	"github.com/mmynk/meterbill/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level)

	if err := run(cfg); err != nil {
		slog.Error("Host failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize SQLite storage
	db, err := sqlite.New(cfg.Database.Path, sqlite.WithDefaultSettings(cfg.Defaults.Settings()))
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("Storage initialized", "database", cfg.Database.Path)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storeMetrics, err := metrics.NewCollectors(reg)
	if err != nil {
		return err
	}
	store := metrics.Instrument(db, "sqlite", storeMetrics)

	interceptors := []connect.Interceptor{}
	if cfg.Host.Secret != "" {
		tokens, err := auth.NewTokenManager(cfg.Host.Secret, cfg.Host.TokenTTL)
		if err != nil {
			return err
		}
		interceptors = append(interceptors, middleware.RequireHostToken(tokens))
	} else {
		slog.Warn("host.secret is empty, bridge calls are not authenticated")
	}
	interceptors = append(interceptors, middleware.LoggingInterceptor())

	mux := http.NewServeMux()

	// Register the host service, by procedure and by channel name
	path, handler := bridge.NewHostServiceHandler(
		bridge.NewHostService(store, "sqlite"),
		connect.WithInterceptors(interceptors...),
	)
	mux.Handle(path, handler)
	mux.Handle(bridge.ChannelPrefix, bridge.ChannelHandler(handler))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if cfg.Backup.Enabled {
		scheduler := backup.New(store, cfg.Backup.Dir, cfg.Backup.Retain)
		if err := scheduler.Start(cfg.Backup.Schedule); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	// Wrap with h2c for HTTP/2 without TLS
	server := &http.Server{
		Addr:              cfg.Host.ListenAddr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Host bridge starting", "address", cfg.Host.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
