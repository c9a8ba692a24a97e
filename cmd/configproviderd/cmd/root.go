// Package cmd implements the configproviderd command-line interface.
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vitaliisemenov/configd/internal/bootstrap"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"

	configPath string
)

// rootCmd is the configproviderd base command.
var rootCmd = &cobra.Command{
	Use:   "configproviderd",
	Short: "Standalone ConfigProvider host",
	Long: `configproviderd runs a ConfigProvider against a configd instance, caching
parameter sets locally and optionally persisting them across restarts.

Exit Codes:
  0: Clean shutdown
  1: Startup or runtime failure
`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets version information reported by the version subcommand.
func SetVersion(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configproviderd config file (YAML)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("configproviderd version %s\n", version)
		fmt.Printf("build time: %s\n", buildTime)
		fmt.Printf("git commit: %s\n", gitCommit)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configproviderd host until stopped",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProvider(cmd.Context())
	},
}

func runProvider(parentCtx context.Context) error {
	cfg, err := bootstrap.LoadProviderConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configproviderd config: %w", err)
	}

	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()

	p, log, err := bootstrap.NewProvider(ctx, cfg, reg)
	if err != nil {
		return fmt.Errorf("failed to start provider: %w", err)
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			log.Info("metrics server starting", "addr", cfg.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
	}

	log.Info("configproviderd running, waiting for stop signal")
	<-ctx.Done()
	log.Info("shutting down configproviderd")

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics server shutdown failed", "error", err)
		}
	}

	if err := p.Close(); err != nil {
		return fmt.Errorf("provider shutdown failed: %w", err)
	}
	return nil
}
