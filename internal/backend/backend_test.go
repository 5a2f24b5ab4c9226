package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/meterbill/internal/auth"
	"github.com/mmynk/meterbill/internal/bridge"
	"github.com/mmynk/meterbill/internal/config"
	"github.com/mmynk/meterbill/internal/metrics"
	"github.com/mmynk/meterbill/internal/middleware"
	"github.com/mmynk/meterbill/internal/storage/kv"
)

func testConfig() *config.Config {
	return &config.Config{
		Host: config.HostConfig{
			TokenTTL:     time.Minute,
			ProbeTimeout: time.Second,
		},
		Fallback: config.FallbackConfig{Driver: config.DriverMemory},
	}
}

func startHost(t *testing.T, secret string) string {
	t.Helper()

	var opts []connect.HandlerOption
	if secret != "" {
		tokens, err := auth.NewTokenManager(secret, time.Minute)
		require.NoError(t, err)
		opts = append(opts, connect.WithInterceptors(middleware.RequireHostToken(tokens)))
	}

	path, handler := bridge.NewHostServiceHandler(bridge.NewHostService(kv.New(kv.NewMemoryBackend()), "memory"), opts...)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server.URL
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name       string
		hostSecret string
		configure  func(cfg *config.Config, hostURL string)
		want       Kind
	}{
		{
			name:      "no host configured",
			configure: func(cfg *config.Config, _ string) {},
			want:      KindFallback,
		},
		{
			name:      "host reachable",
			configure: func(cfg *config.Config, hostURL string) { cfg.Host.URL = hostURL },
			want:      KindStructured,
		},
		{
			name:       "host with matching secret",
			hostSecret: "s3cret",
			configure: func(cfg *config.Config, hostURL string) {
				cfg.Host.URL = hostURL
				cfg.Host.Secret = "s3cret"
			},
			want: KindStructured,
		},
		{
			name:       "host rejects token",
			hostSecret: "s3cret",
			configure: func(cfg *config.Config, hostURL string) {
				cfg.Host.URL = hostURL
				cfg.Host.Secret = "wrong"
			},
			want: KindFallback,
		},
		{
			name:      "host unreachable",
			configure: func(cfg *config.Config, _ string) { cfg.Host.URL = "http://127.0.0.1:1" },
			want:      KindFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.configure(cfg, startHost(t, tt.hostSecret))

			store, kind, err := Open(context.Background(), cfg, prometheus.NewRegistry())
			require.NoError(t, err)
			defer store.Close()

			assert.Equal(t, tt.want, kind)

			instrumented, ok := store.(*metrics.Store)
			require.True(t, ok)
			if tt.want == KindStructured {
				assert.IsType(t, &bridge.Client{}, instrumented.Unwrap())
			} else {
				assert.IsType(t, &kv.KVStore{}, instrumented.Unwrap())
			}

			_, err = store.ListCustomers(context.Background())
			require.NoError(t, err)
		})
	}
}

func TestOpen_FileFallback(t *testing.T) {
	cfg := testConfig()
	cfg.Fallback = config.FallbackConfig{Driver: config.DriverFile, Dir: t.TempDir()}

	store, kind, err := Open(context.Background(), cfg, prometheus.NewRegistry())
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, KindFallback, kind)
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Fallback.Driver = "floppy"

	_, _, err := Open(context.Background(), cfg, prometheus.NewRegistry())
	require.Error(t, err)
}
