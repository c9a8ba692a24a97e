// Package cmd implements the configd command-line interface.
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

// rootCmd is the configd base command.
var rootCmd = &cobra.Command{
	Use:   "configd",
	Short: "ConfigDaemon: the authoritative store and distributor of parameter sets",
	Long: `configd hosts the ParameterSetCollection for one service and offers it
over HTTP and WebSocket to ConfigProvider clients.

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
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configd config file (YAML)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("configd version %s\n", version)
		fmt.Printf("build time: %s\n", buildTime)
		fmt.Printf("git commit: %s\n", gitCommit)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configd daemon until stopped",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context())
	},
}

func runDaemon(parentCtx context.Context) error {
	cfg, err := bootstrap.LoadDaemonConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configd config: %w", err)
	}

	reg := prometheus.NewRegistry()
	d := bootstrap.NewDaemon(cfg, reg)

	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			d.Logger.Info("metrics server starting", "addr", cfg.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				d.Logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	exitCode := d.Run(ctx)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			d.Logger.Warn("metrics server shutdown failed", "error", err)
		}
	}

	if exitCode != 0 {
		return fmt.Errorf("configd exited with code %d", exitCode)
	}
	return nil
}
