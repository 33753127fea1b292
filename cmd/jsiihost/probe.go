package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	jsiihost "github.com/oriys/jsiihost"
)

func probeCmd() *cobra.Command {
	var (
		runtimePath     string
		expectedVersion string
		debug           bool
		bootTimeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Spawn the kernel, run the handshake, and report whether it succeeded",
		Long:  "Exits 0 on a successful handshake, 2 if the kernel executable could not be spawned, 3 on a protocol violation, or 4 if its version is incompatible.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("runtime") {
				cfg.RuntimePathOverride = runtimePath
			}
			if cmd.Flags().Changed("expected-version") {
				cfg.ExpectedVersion = expectedVersion
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}
			if cmd.Flags().Changed("boot-timeout") {
				cfg.BootTimeout = bootTimeout
			}

			shutdown, err := initObservability(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer shutdown()

			ctx, cancel := notifyContext()
			defer cancel()

			client, err := jsiihost.New(ctx, jsiihost.WithConfig(cfg))
			if err != nil {
				return exitWithProbeError(err)
			}
			defer client.Close(ctx)

			fmt.Printf("ok: kernel pid %d responded to the handshake\n", client.Pid())
			return nil
		},
	}

	cmd.Flags().StringVar(&runtimePath, "runtime", "", "explicit kernel executable path (overrides JSII_RUNTIME)")
	cmd.Flags().StringVar(&expectedVersion, "expected-version", "", "kernel runtime version the handshake must match")
	cmd.Flags().BoolVar(&debug, "debug", false, "propagate JSII_DEBUG and mirror the kernel's stderr")
	cmd.Flags().DurationVar(&bootTimeout, "boot-timeout", 5*time.Second, "maximum time to wait for the handshake")

	return cmd
}

// exitWithProbeError classifies err against the CLI's documented exit
// codes and terminates the process directly, since cobra's own
// RunE-error path always exits 1.
func exitWithProbeError(err error) error {
	var (
		envErr      *jsiihost.EnvMisconfiguredError
		incompatErr *jsiihost.IncompatibleRuntimeError
		protocolErr *jsiihost.ProtocolViolationError
	)
	switch {
	case errors.As(err, &envErr):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitKernelSpawnFailed)
	case errors.As(err, &incompatErr):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitVersionIncompatible)
	case errors.As(err, &protocolErr):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitProtocolError)
	}
	return err
}
