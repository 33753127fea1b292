package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	jsiihost "github.com/oriys/jsiihost"
	"github.com/oriys/jsiihost/internal/wireval"
)

func invokeCmd() *cobra.Command {
	var (
		runtimePath string
		objref      string
		method      string
		property    string
		argsJSON    string
		debug       bool
	)

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Spawn the kernel and issue one raw invoke/get request against it",
		Long:  "A manual-testing aid for generated bindings: marshals --args (a JSON array of already-wire-shaped values) and either calls --method on --objref, or reads --property from it if --method is empty.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if objref == "" {
				return fmt.Errorf("--objref is required")
			}

			var wireArgs []wireval.Value
			if argsJSON != "" {
				if err := json.Unmarshal([]byte(argsJSON), &wireArgs); err != nil {
					return fmt.Errorf("parsing --args: %w", err)
				}
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("runtime") {
				cfg.RuntimePathOverride = runtimePath
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
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

			var result wireval.Value
			if method != "" {
				result, err = client.Invoke(ctx, objref, method, wireArgs)
			} else {
				if property == "" {
					return fmt.Errorf("one of --method or --property is required")
				}
				result, err = client.Get(ctx, objref, property)
			}
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&runtimePath, "runtime", "", "explicit kernel executable path (overrides JSII_RUNTIME)")
	cmd.Flags().StringVar(&objref, "objref", "", "handle of the kernel object to call into")
	cmd.Flags().StringVar(&method, "method", "", "method name to invoke")
	cmd.Flags().StringVar(&property, "property", "", "property name to read, if --method is not given")
	cmd.Flags().StringVar(&argsJSON, "args", "", "JSON array of already wire-shaped argument values")
	cmd.Flags().BoolVar(&debug, "debug", false, "propagate JSII_DEBUG and mirror the kernel's stderr")

	return cmd
}
