package bootstrap

import (
	"context"
	"log/slog"

	"github.com/vitaliisemenov/configd/internal/daemon"
	"github.com/vitaliisemenov/configd/internal/ipc"
	"github.com/vitaliisemenov/configd/internal/paramset"
	"github.com/vitaliisemenov/configd/pkg/logger"
	"github.com/vitaliisemenov/configd/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// Daemon bundles the constructed components a configd process needs to
// run and tear down.
type Daemon struct {
	App        *daemon.App
	Server     *ipc.Server
	Collection *paramset.Collection
	Logger     *slog.Logger
}

// NewDaemon wires A (ParameterSet) through H (error taxonomy) into a
// runnable App, per cfg.
func NewDaemon(cfg *DaemonConfig, reg prometheus.Registerer) *Daemon {
	log := logger.NewLogger(logger.Config{
		Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output,
		Filename: cfg.Log.Filename, MaxSize: cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups, MaxAge: cfg.Log.MaxAge, Compress: cfg.Log.Compress,
	})

	collection := paramset.NewCollection()
	collection.SetMetrics(metrics.NewCollection(reg))

	ipcMetrics := metrics.NewIPC(reg)
	server := ipc.NewServer(cfg.Server.Addr, cfg.ServiceID, collection, log.With("component", "ipc"))
	server.SetMetrics(ipcMetrics)

	collector := daemon.NewStaticPluginCollector(daemon.NewSeedPlugin(cfg.SeedPath))

	serviceFactory := func(c *paramset.Collection) (ipc.DaemonService, error) {
		return server, nil
	}

	app := daemon.NewApp(log.With("component", "daemon"), collection, collector, serviceFactory)

	return &Daemon{App: app, Server: server, Collection: collection, Logger: log}
}

// Run blocks until ctx is cancelled or the app exits, returning the
// process exit code.
func (d *Daemon) Run(ctx context.Context) int {
	return d.App.Run(ctx)
}
