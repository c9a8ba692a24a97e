package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vitaliisemenov/configd/internal/ipc"
	"github.com/vitaliisemenov/configd/internal/provider"
	"github.com/vitaliisemenov/configd/internal/provider/persistency"
	"github.com/vitaliisemenov/configd/pkg/logger"
	"github.com/vitaliisemenov/configd/pkg/metrics"
)

// NewProvider wires E (ProviderProxy) through G (Persistency) into a
// runnable provider.Provider, per cfg. ctx is the provider's stop token;
// cancelling it stops the proxy-wait worker. The caller still calls
// provider.Provider.Close, which runs the strict destruction order.
func NewProvider(ctx context.Context, cfg *ProviderConfig, reg prometheus.Registerer) (*provider.Provider, *slog.Logger, error) {
	log := logger.NewLogger(logger.Config{
		Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output,
		Filename: cfg.Log.Filename, MaxSize: cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups, MaxAge: cfg.Log.MaxAge, Compress: cfg.Log.Compress,
	})

	store, err := newPersistency(ctx, cfg.Persistency, log.With("component", "persistency"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to construct persistency backend: %w", err)
	}

	factory := provider.DialProxyFactory(cfg.DaemonBaseURL, cfg.ServiceID, func() *ipc.Client {
		return ipc.NewClient(cfg.DaemonBaseURL, cfg.ServiceID, log.With("component", "ipc"))
	})

	opts := provider.Options{Metrics: metrics.NewProvider(reg)}
	if cfg.MaxSamplesLimit > 0 {
		limit := cfg.MaxSamplesLimit
		opts.MaxSamplesLimit = &limit
	}
	if cfg.PollingCycleInterval > 0 {
		interval := cfg.PollingCycleInterval
		opts.PollingCycleInterval = &interval
	}

	p, err := provider.New(ctx, store, factory, opts, log.With("component", "provider"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to construct provider: %w", err)
	}
	return p, log, nil
}

func newPersistency(ctx context.Context, cfg PersistencyConfig, log *slog.Logger) (persistency.Persistency, error) {
	switch cfg.Backend {
	case "", "noop":
		return persistency.NewNoop(), nil
	case "sqlite":
		return persistency.NewSQLite(ctx, cfg.SQLitePath, log)
	case "redis":
		return persistency.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL, cfg.RedisCompression, log)
	default:
		return nil, fmt.Errorf("unknown persistency backend %q", cfg.Backend)
	}
}
