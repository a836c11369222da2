// Command openfsw-sim is the ground-support CLI for the simulated
// flight core: it boots a persistent simulator instance, inspects its
// live state, feeds it telecommands, tails its event log, and exposes
// its state as Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TheusHen/OpenFSW/logging"
)

var (
	globalState  string
	globalConfig string
	globalLog    string
	globalFormat string
	globalDebug  bool
)

var rootCmd = &cobra.Command{
	Use:   "openfsw-sim",
	Short: "Ground-support CLI for the simulated CubeSat flight core",
	Long: `openfsw-sim drives a persistent instance of the simulated flight
core: boot it, inspect its mode/FDIR/telemetry/telecommand state, feed
it commands, tail its event log, emit beacon frames, and scrape it
for Prometheus metrics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalState, "state", defaultStateDir(), "directory holding the simulator's persistent state")
	rootCmd.PersistentFlags().StringVar(&globalConfig, "config", "", "path to a YAML overrides file (default: <state>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&globalLog, "log", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&globalFormat, "log-format", "console", "log output encoding (console or json)")
	rootCmd.PersistentFlags().BoolVar(&globalDebug, "debug", false, "enable debug-level logging")
}

func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/openfsw-sim"
	}
	return "/tmp/openfsw-sim"
}

func configPath() string {
	if globalConfig != "" {
		return globalConfig
	}
	return globalState + "/config.yaml"
}

func setupLogging() {
	out := os.Stderr
	if globalLog != "" {
		f, err := os.OpenFile(globalLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err == nil {
			out = f
		}
	}

	level := logging.ParseLevel("info")
	if globalDebug {
		level = logging.ParseLevel("debug")
	}

	logger := logging.NewLogger(logging.Config{
		Level:  level,
		Format: globalFormat,
		Output: out,
	})
	logging.SetDefault(logger)
}

// runContext returns a context cancelled on SIGINT/SIGTERM, the same
// interrupt-driven shutdown every subcommand that runs a loop uses.
func runContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
