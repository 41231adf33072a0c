// Package cmd wires the soundcheck CLI: one file per command, each
// registering itself on the root in init().
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "soundcheck",
	Short: "Smoke-test harness for OpenAI-compatible speech servers",
	Long: `soundcheck launches a speech-recognition server (or attaches to a
running one), waits until it is ready, runs a single transcription probe
against it, reports timing and the real-time factor, and tears the
server down again.

The server process is torn down on every exit path, including failures
and interrupts, unless --keep-alive explicitly hands ownership back to
you.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with the given context. The
// context carries the interrupt signal from main into every command.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "enable debug logging")
	pf.BoolP("quiet", "q", false, "only log errors")
	pf.String("format", "text", "output format (text, json, yaml)")
	pf.Bool("no-color", false, "disable colored output")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("config", "", "config file (default soundcheck.yaml in the working directory)")
}
