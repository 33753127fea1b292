// Command jsiihost is a diagnostic CLI around the jsiihost client: it
// can probe a kernel executable's handshake, print version
// information, and issue one-off raw requests against a running
// kernel for manual testing of generated bindings.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oriys/jsiihost/internal/config"
	"github.com/oriys/jsiihost/internal/logging"
	"github.com/oriys/jsiihost/internal/metrics"
	"github.com/oriys/jsiihost/internal/observability"
)

// Exit codes, checked by scripts driving this CLI in CI.
const (
	exitOK                  = 0
	exitKernelSpawnFailed   = 2
	exitProtocolError       = 3
	exitVersionIncompatible = 4
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "jsiihost",
		Short: "jsiihost - jsii-style host runtime client",
		Long:  "A diagnostic CLI for the jsiihost client: probe a kernel binary's handshake, inspect its version, and issue raw requests against it.",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file (optional, env vars always override)")

	rootCmd.AddCommand(
		versionCmd(),
		probeCmd(),
		invokeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

func initObservability(ctx context.Context, cfg *config.Config) (func(), error) {
	logging.SetLevelFromString(cfg.Logging.Level)
	logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)

	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
	}); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.Init(cfg.Metrics.Namespace, nil)
	}

	return func() { observability.Shutdown(context.Background()) }, nil
}

// notifyContext returns a context canceled on SIGINT/SIGTERM, mirroring
// the signal handling a long-running command needs to shut the kernel
// down cleanly rather than leaving it orphaned.
func notifyContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
