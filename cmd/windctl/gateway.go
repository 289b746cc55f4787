package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jihwankim/windctl/internal/gateway"
	"github.com/jihwankim/windctl/internal/idlestore"
	"github.com/jihwankim/windctl/internal/rpcmanager"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Args:  cobra.NoArgs,
	Short: "Serve the read-through HTTP API over shared state",
	RunE:  runGateway,
}

func init() {
	gatewayCmd.Flags().String("host", "0.0.0.0", "address to bind the HTTP listener on")
	gatewayCmd.Flags().Int("port", 8080, "port to bind the HTTP listener on")
	gatewayCmd.Flags().String("manager-host", "127.0.0.1", "Manager host")
	gatewayCmd.Flags().Int("manager-port", 8765, "Manager port")
	gatewayCmd.Flags().String("manager-authkey", "", "pre-shared key to authenticate with the Manager (required)")
	gatewayCmd.Flags().String("idlestore-path", "windctl-idle.db", "path to the idle-override sqlite database")
	gatewayCmd.Flags().String("cors-origins", "*", "comma-separated list of allowed CORS origins")
}

func runGateway(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	managerHost, _ := cmd.Flags().GetString("manager-host")
	managerPort, _ := cmd.Flags().GetInt("manager-port")
	authKey, _ := cmd.Flags().GetString("manager-authkey")
	idlestorePath, _ := cmd.Flags().GetString("idlestore-path")
	corsOrigins, _ := cmd.Flags().GetString("cors-origins")

	if authKey == "" {
		return fmt.Errorf("--manager-authkey is required")
	}

	client, err := rpcmanager.Connect("gateway", managerHost, managerPort, []byte(authKey), logger)
	if err != nil {
		return fmt.Errorf("connecting to manager: %w", err)
	}
	defer client.Close()

	store, err := idlestore.Open(idlestorePath)
	if err != nil {
		return fmt.Errorf("opening idle-override store: %w", err)
	}
	defer store.Close()

	var origins []string
	for _, o := range strings.Split(corsOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	srv := gateway.New(client, store, logger, origins)
	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("gateway shutting down")
		httpServer.Close()
	}()

	logger.Info("gateway listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
