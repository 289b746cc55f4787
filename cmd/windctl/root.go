package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jihwankim/windctl/internal/logging"
)

var (
	version = "dev" // Will be set by build flags

	loggingConfig string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:     "windctl",
	Short:   "Distributed wind-farm simulation and monitoring platform",
	Long: `windctl runs every role in the wind-farm simulation and monitoring
platform from one binary: the shared-state manager, the simulation engine,
the sensor service, the drone scheduler, and the HTTP API gateway.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&loggingConfig, "logging-config", "text", "log output format (text, json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose (debug-level) logging")

	rootCmd.AddCommand(managerCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(sensorCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(gatewayCmd)
}

// newLogger builds the process logger from the persistent --logging-config
// and --verbose flags, shared by every subcommand.
func newLogger() *logging.Logger {
	format := logging.FormatText
	if loggingConfig == "json" {
		format = logging.FormatJSON
	}
	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	logger := logging.New(logging.Config{Level: level, Format: format, Output: os.Stdout})
	logging.InitGlobal(logging.Config{Level: level, Format: format, Output: os.Stdout})
	return logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
