// Package cli implements the earshot command-line interface using
// Cobra. It provides commands for tracing builds, inspecting recorded
// runs, and exporting them as OpenTelemetry spans.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/earshot-dev/earshot/internal/log"
	"github.com/earshot-dev/earshot/internal/storage"
)

var (
	verbose     bool
	jsonOut     bool
	baseDirFlag string

	// buildExitCode carries the traced build's exit status out to
	// main, so earshot exits the way the build did.
	buildExitCode int
)

var rootCmd = &cobra.Command{
	Use:   "earshot",
	Short: "Earshot - trace the commands a build runs",
	Long: `Earshot records every compiler, linker, and tool a build invokes.

A run wraps your build command: earshot puts interception shims on
PATH, collects one event per intercepted execution, and stores the
whole trace per run. Recorded runs can be listed, inspected, replayed
(terminal captures), and exported as OpenTelemetry spans.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.Init(log.Options{
			Verbose:    verbose,
			JSONFormat: jsonOut,
		})
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode returns the traced build's exit status, zero when no build
// ran.
func ExitCode() int {
	return buildExitCode
}

// runsBaseDir resolves the directory recorded runs live in.
func runsBaseDir() string {
	if baseDirFlag != "" {
		return baseDirFlag
	}
	return storage.DefaultBaseDir()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&baseDirFlag, "base-dir", "", "directory runs are stored in (default ~/.earshot/runs)")
}
