package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// clientVersion is this CLI/library's own version, independent of
// whatever kernel runtime version a probe or invoke connects to.
const clientVersion = "0.1.0"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the jsiihost client version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("jsiihost %s (%s)\n", clientVersion, runtime.Version())
			return nil
		},
	}
}
