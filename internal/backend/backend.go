// Package backend selects the store an application process works against:
// the host's structured store through the bridge when the host answers, the
// local key-value fallback otherwise.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/meterbill/internal/auth"
	"github.com/mmynk/meterbill/internal/bridge"
	"github.com/mmynk/meterbill/internal/config"
	"github.com/mmynk/meterbill/internal/metrics"
	"github.com/mmynk/meterbill/internal/middleware"
	"github.com/mmynk/meterbill/internal/storage"
	"github.com/mmynk/meterbill/internal/storage/kv"
)

// Kind names the selected backend.
type Kind string

const (
	KindStructured Kind = "structured"
	KindFallback   Kind = "fallback"
)

// Subject identifies the application in bridge tokens.
const Subject = "billing-app"

const requestTimeout = 30 * time.Second

// Open probes the host once and returns the store to use. The returned store
// is instrumented with collectors registered on reg.
func Open(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (storage.Store, Kind, error) {
	collectors, err := metrics.NewCollectors(reg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to register metrics: %w", err)
	}

	if cfg.Host.URL != "" {
		client, err := probeHost(ctx, cfg.Host)
		if err == nil {
			slog.Info("Using host store", "url", cfg.Host.URL)
			return metrics.Instrument(client, string(KindStructured), collectors), KindStructured, nil
		}
		slog.Warn("Host unavailable, using fallback store", "url", cfg.Host.URL, "error", err)
	}

	store, err := openFallback(cfg.Fallback)
	if err != nil {
		return nil, "", err
	}
	slog.Info("Using fallback store", "driver", cfg.Fallback.Driver)
	return metrics.Instrument(store, string(KindFallback), collectors), KindFallback, nil
}

func probeHost(ctx context.Context, host config.HostConfig) (*bridge.Client, error) {
	var opts []connect.ClientOption
	if host.Secret != "" {
		tokens, err := auth.NewTokenManager(host.Secret, host.TokenTTL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, connect.WithInterceptors(middleware.BearerToken(tokens, Subject)))
	}

	client := bridge.NewClient(&http.Client{Timeout: requestTimeout}, host.URL, opts...)

	probeCtx, cancel := context.WithTimeout(ctx, host.ProbeTimeout)
	defer cancel()
	if _, err := client.Ping(probeCtx); err != nil {
		return nil, err
	}
	return client, nil
}

func openFallback(cfg config.FallbackConfig) (storage.Store, error) {
	var (
		b   kv.Backend
		err error
	)
	switch cfg.Driver {
	case config.DriverFile:
		b, err = kv.NewFileBackend(filepath.Clean(cfg.Dir))
	case config.DriverRedis:
		b, err = kv.NewRedisBackend(kv.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		})
	case config.DriverMemory:
		b = kv.NewMemoryBackend()
	default:
		err = fmt.Errorf("unknown fallback driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open fallback store: %w", err)
	}
	return kv.New(b), nil
}
