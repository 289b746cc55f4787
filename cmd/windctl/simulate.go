package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jihwankim/windctl/internal/config"
	"github.com/jihwankim/windctl/internal/metrics"
	"github.com/jihwankim/windctl/internal/rpcmanager"
	"github.com/jihwankim/windctl/internal/simulation"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Args:  cobra.NoArgs,
	Short: "Advance the simulated wind farm one tick per period",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().String("manager-host", "127.0.0.1", "Manager host")
	simulateCmd.Flags().Int("manager-port", 8765, "Manager port")
	simulateCmd.Flags().String("manager-authkey", "", "pre-shared key to authenticate with the Manager (required)")
	simulateCmd.Flags().String("config", "", "path to the simulation config YAML (defaults built in if empty)")
	simulateCmd.Flags().String("map", "", "path to the map config YAML (required)")
	simulateCmd.Flags().Int64("seed", 42, "RNG seed")
	simulateCmd.Flags().Int("warmup", 10, "number of un-published warmup ticks")
	simulateCmd.Flags().Bool("watch-config", false, "watch the simulation config and log each reload (not applied to the running engine)")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	managerHost, _ := cmd.Flags().GetString("manager-host")
	managerPort, _ := cmd.Flags().GetInt("manager-port")
	authKey, _ := cmd.Flags().GetString("manager-authkey")
	configPath, _ := cmd.Flags().GetString("config")
	mapPath, _ := cmd.Flags().GetString("map")
	seed, _ := cmd.Flags().GetInt64("seed")
	warmup, _ := cmd.Flags().GetInt("warmup")
	watchConfig, _ := cmd.Flags().GetBool("watch-config")

	if authKey == "" {
		return fmt.Errorf("--manager-authkey is required")
	}
	if mapPath == "" {
		return fmt.Errorf("--map is required")
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadSimulationConfig(configPath)
	} else {
		cfg = config.DefaultConfig()
	}
	if err != nil {
		return fmt.Errorf("loading simulation config: %w", err)
	}

	mapCfg, err := config.LoadMapConfig(mapPath)
	if err != nil {
		return fmt.Errorf("loading map config: %w", err)
	}

	reg := metrics.New()
	client, err := rpcmanager.Connect("simulate", managerHost, managerPort, []byte(authKey), logger)
	if err != nil {
		return fmt.Errorf("connecting to manager: %w", err)
	}
	defer client.Close()

	engine := simulation.New(cfg, mapCfg, seed, client, logger, reg)
	engine.Warmup(warmup)
	if err := engine.PublishMapConfig(); err != nil {
		return fmt.Errorf("publishing map config: %w", err)
	}

	if configPath != "" && watchConfig {
		stop, err := config.WatchSimulationConfig(configPath,
			func(newCfg *config.Config) { logger.Info("simulation config reloaded", "path", configPath) },
			func(err error) { logger.Warn("simulation config reload failed", "error", err.Error()) },
		)
		if err != nil {
			logger.Warn("starting config watcher failed", "error", err.Error())
		} else {
			defer stop()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	var running atomic.Bool
	running.Store(true)
	go func() {
		<-sigCh
		logger.Info("simulation shutting down")
		running.Store(false)
		cancel()
	}()

	return engine.Run(ctx, running.Load)
}
