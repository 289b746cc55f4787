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
	"github.com/jihwankim/windctl/internal/sensor"
)

var sensorCmd = &cobra.Command{
	Use:   "sensor",
	Args:  cobra.NoArgs,
	Short: "Classify readings_queue for anomalies and publish sensor_alerts",
	RunE:  runSensor,
}

func init() {
	sensorCmd.Flags().String("manager-host", "127.0.0.1", "Manager host")
	sensorCmd.Flags().Int("manager-port", 8765, "Manager port")
	sensorCmd.Flags().String("manager-authkey", "", "pre-shared key to authenticate with the Manager (required)")
}

func runSensor(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	managerHost, _ := cmd.Flags().GetString("manager-host")
	managerPort, _ := cmd.Flags().GetInt("manager-port")
	authKey, _ := cmd.Flags().GetString("manager-authkey")

	if authKey == "" {
		return fmt.Errorf("--manager-authkey is required")
	}

	reg := metrics.New()
	client, err := rpcmanager.Connect("sensor", managerHost, managerPort, []byte(authKey), logger)
	if err != nil {
		return fmt.Errorf("connecting to manager: %w", err)
	}
	defer client.Close()

	svc := sensor.NewService(client, logger, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	var running atomic.Bool
	running.Store(true)
	go func() {
		<-sigCh
		logger.Info("sensor service shutting down")
		running.Store(false)
		cancel()
	}()

	return svc.Run(ctx, running.Load)
}
