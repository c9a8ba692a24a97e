package daemon

import (
	"context"
	"log/slog"

	"github.com/vitaliisemenov/configd/internal/ipc"
	"github.com/vitaliisemenov/configd/internal/paramset"
)

// ServiceFactory creates the daemon's single IPC service from its
// ParameterSetCollection. A nil service or non-nil error both count as
// "zero services" and abort startup.
type ServiceFactory func(*paramset.Collection) (ipc.DaemonService, error)

// App is the process-scope controller described in §4.D: it restricts
// file-creation permissions, builds the service from the collection it
// was given, runs
// every plugin the collector produces, offers the service, and blocks
// until stopped.
type App struct {
	logger         *slog.Logger
	collector      PluginCollector
	serviceFactory ServiceFactory
	collection     *paramset.Collection
	faultReporter  FaultReporter
}

// NewApp wires the daemon's top-level dependencies. collection is
// normally freshly constructed by the caller via paramset.NewCollection.
func NewApp(logger *slog.Logger, collection *paramset.Collection, collector PluginCollector, serviceFactory ServiceFactory) *App {
	return &App{
		logger:         logger,
		collector:      collector,
		serviceFactory: serviceFactory,
		collection:     collection,
	}
}

// Run executes the eight-step startup sequence in §4.D and blocks
// until ctx is cancelled, then tears down. It returns the process exit
// code: 0 on a clean stop, 1 on any startup failure.
func (a *App) Run(ctx context.Context) (exitCode int) {
	// Step 1: restrict the file-creation mask. Logged and non-fatal.
	if err := restrictFileCreationMask(); err != nil {
		a.logger.Warn("failed to restrict file-creation mask, continuing", "error", err)
	}

	// Step 2: collect plugins.
	plugins, err := a.collector.CollectPlugins(ctx)
	if err != nil {
		a.logger.Error("plugin collector failed", "error", err)
		return 1
	}

	var initialized []Plugin
	defer a.deinitializeSweep(ctx, &initialized)

	// Step 3: initialize each plugin in order; first failure aborts.
	for _, p := range plugins {
		if err := p.Initialize(ctx, a.collection); err != nil {
			a.logger.Error("plugin initialization failed", "plugin", p.Name(), "error", err)
			return 1
		}
		initialized = append(initialized, p)
	}

	// Step 4: create the IPC service.
	service, err := a.serviceFactory(a.collection)
	if err != nil || service == nil {
		a.logger.Error("failed to create daemon service", "error", err)
		return 1
	}

	// Step 5: initialize the fault-event reporter.
	a.faultReporter = NewLoggingFaultReporter(a.logger)

	// Step 6: bind the last-updated and qualifier senders to the service.
	lastUpdated := LastUpdatedSender(service.PublishLastUpdatedParameterSet)
	qualifier := QualifierSender(service.SetInitialQualifierState)

	// Step 7: run each initialized plugin; first failure aborts the rest.
	for _, p := range initialized {
		if err := p.Run(ctx, a.collection, lastUpdated, qualifier); err != nil {
			a.logger.Error("plugin run failed", "plugin", p.Name(), "error", err)
			a.faultReporter.ReportFault("plugin_run_failed", p.Name())
			return 1
		}
	}

	// Step 8: offer the service and block until stopped.
	if err := service.Offer(); err != nil {
		a.logger.Error("failed to offer daemon service", "error", err)
		return 1
	}
	a.logger.Info("daemon service offered, waiting for stop signal")

	<-ctx.Done()

	if err := service.StopOfferService(); err != nil {
		a.logger.Error("failed to stop daemon service cleanly", "error", err)
		return 1
	}
	a.logger.Info("daemon stopped cleanly")
	return 0
}

// deinitializeSweep runs Deinitialize on every successfully initialized
// plugin exactly once, regardless of which step aborted Run.
func (a *App) deinitializeSweep(ctx context.Context, initialized *[]Plugin) {
	for _, p := range *initialized {
		if p == nil {
			continue
		}
		if err := p.Deinitialize(ctx); err != nil {
			a.logger.Error("plugin deinitialize failed", "plugin", p.Name(), "error", err)
		}
	}
}
