package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jihwankim/windctl/internal/metrics"
	"github.com/jihwankim/windctl/internal/rpcmanager"
)

var managerCmd = &cobra.Command{
	Use:   "manager",
	Args:  cobra.NoArgs,
	Short: "Host the shared namespace and accept authenticated client sessions",
	RunE:  runManager,
}

func init() {
	managerCmd.Flags().String("host", "0.0.0.0", "address to bind the RPC listener on")
	managerCmd.Flags().Int("port", 8765, "port to bind the RPC listener on")
	managerCmd.Flags().String("manager-authkey", "", "pre-shared key clients must authenticate with (required)")
	managerCmd.Flags().Int("max-conns", rpcmanager.DefaultMaxConns, "maximum concurrent client sessions")
	managerCmd.Flags().String("metrics-host", "0.0.0.0", "address to serve /metrics on")
	managerCmd.Flags().Int("metrics-port", 9090, "port to serve /metrics on")
}

func runManager(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	authKey, _ := cmd.Flags().GetString("manager-authkey")
	maxConns, _ := cmd.Flags().GetInt("max-conns")
	metricsHost, _ := cmd.Flags().GetString("metrics-host")
	metricsPort, _ := cmd.Flags().GetInt("metrics-port")

	if authKey == "" {
		return fmt.Errorf("--manager-authkey is required")
	}

	reg := metrics.New()
	go func() {
		addr := fmt.Sprintf("%s:%d", metricsHost, metricsPort)
		if err := reg.Serve(addr); err != nil {
			logger.Error("metrics listener failed", "error", err.Error())
		}
	}()

	srv := rpcmanager.NewServer([]byte(authKey), maxConns, logger, reg)
	addr := fmt.Sprintf("%s:%d", host, port)
	if err := srv.Listen(addr); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	var shuttingDown atomic.Bool
	go func() {
		<-sigCh
		shuttingDown.Store(true)
		logger.Info("manager shutting down")
		srv.Close()
	}()

	if err := srv.Serve(); err != nil && !shuttingDown.Load() {
		return err
	}
	return nil
}
