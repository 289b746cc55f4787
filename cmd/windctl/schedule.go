package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jihwankim/windctl/internal/metrics"
	"github.com/jihwankim/windctl/internal/rpcmanager"
	"github.com/jihwankim/windctl/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Args:  cobra.NoArgs,
	Short: "Dispatch drones to inspect alerted turbines",
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().String("manager-host", "127.0.0.1", "Manager host")
	scheduleCmd.Flags().Int("manager-port", 8765, "Manager port")
	scheduleCmd.Flags().String("manager-authkey", "", "pre-shared key to authenticate with the Manager (required)")
	scheduleCmd.Flags().Float64("drone-speed", scheduler.DefaultSpeed, "drone speed in meters per tick")
	scheduleCmd.Flags().Float64("arrival-margin", scheduler.DefaultMargin, "arrival margin in meters")
	scheduleCmd.Flags().Int("inspection-ticks", scheduler.DefaultInspectionTicks, "ticks spent inspecting a turbine")
}

func runSchedule(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	managerHost, _ := cmd.Flags().GetString("manager-host")
	managerPort, _ := cmd.Flags().GetInt("manager-port")
	authKey, _ := cmd.Flags().GetString("manager-authkey")
	speed, _ := cmd.Flags().GetFloat64("drone-speed")
	margin, _ := cmd.Flags().GetFloat64("arrival-margin")
	inspectionTicks, _ := cmd.Flags().GetInt("inspection-ticks")

	if authKey == "" {
		return fmt.Errorf("--manager-authkey is required")
	}

	reg := metrics.New()
	client, err := rpcmanager.Connect("schedule", managerHost, managerPort, []byte(authKey), logger)
	if err != nil {
		return fmt.Errorf("connecting to manager: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	var running atomic.Bool
	running.Store(true)
	go func() {
		<-sigCh
		logger.Info("scheduler shutting down")
		running.Store(false)
		cancel()
	}()

	logger.Info("waiting for map_cfg to be published")
	mapCfg, err := scheduler.AwaitMapConfig(ctx, client)
	if err != nil {
		return fmt.Errorf("awaiting map config: %w", err)
	}

	sched := scheduler.New(mapCfg, speed, margin, inspectionTicks, client, logger, reg)
	return sched.Run(ctx, running.Load)
}
