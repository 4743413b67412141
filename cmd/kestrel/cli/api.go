package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kstvn/kestrel/internal/api"
	"github.com/kstvn/kestrel/internal/config"
	"github.com/kstvn/kestrel/internal/httpmsg"
	"github.com/kstvn/kestrel/internal/log"
	"github.com/kstvn/kestrel/internal/proxy"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the inspection facade",
	Long: `Runs the inspection HTTP API on API_PORT, bound to all interfaces.
Exposes list/get/replay/scan endpoints over the database the proxy
populates; it never mutates that database.`,
	RunE: runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	store, err := httpmsg.OpenStore(filepath.Join(cfg.WorkDir, cfg.DB))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	server := api.NewServer(store, proxy.NewOutbound())
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.APIPort)
	if err := server.Start(addr); err != nil {
		store.Close()
		return fmt.Errorf("starting inspection API: %w", err)
	}

	log.Info("inspection api started", "port", cfg.APIPort, "pid", os.Getpid())
	fmt.Printf("Inspection API listening on port %d\n", cfg.APIPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down inspection API...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Warn("stopping inspection API", "error", err)
	}
	if err := store.Close(); err != nil {
		log.Warn("closing store", "error", err)
	}
	return nil
}
