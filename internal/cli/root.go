// Package cli implements the jvmprof command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:           "jvmprof",
		Short:         "Aggregate JVM sampling profiles",
		Long:          "Turn raw stack trace dumps recorded by an in-process sampler into deduplicated pprof profiles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	logLevel string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level, one of debug, info, warn, error")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}
