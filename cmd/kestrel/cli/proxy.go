package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kstvn/kestrel/internal/ca"
	"github.com/kstvn/kestrel/internal/config"
	"github.com/kstvn/kestrel/internal/httpmsg"
	"github.com/kstvn/kestrel/internal/log"
	"github.com/kstvn/kestrel/internal/proxy"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Run the intercepting proxy",
	Long: `Runs the intercepting HTTP/HTTPS proxy in the foreground, listening
on PROXY_PORT. Configure clients to use it as their HTTP(S) proxy; captured
requests and responses are persisted to the configured database.

Requires CA material already provisioned via "kestrel ca init".`,
	RunE: runProxy,
}

func init() {
	rootCmd.AddCommand(proxyCmd)
}

func runProxy(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	cas, err := ca.Load(cfg.WorkDir)
	if err != nil {
		return fmt.Errorf("loading CA material: %w", err)
	}

	store, err := httpmsg.OpenStore(filepath.Join(cfg.WorkDir, cfg.DB))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	listener := proxy.NewListener(store, cas)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listener.ListenAndServe(fmt.Sprintf(":%d", cfg.ProxyPort))
	}()

	log.Info("proxy started", "port", cfg.ProxyPort, "pid", os.Getpid())
	fmt.Printf("Proxy listening on port %d\n", cfg.ProxyPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		store.Close()
		if err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
		return nil
	case <-sigCh:
	}

	fmt.Println("\nShutting down proxy...")
	if err := listener.Shutdown(); err != nil {
		log.Warn("shutting down listener", "error", err)
	}
	<-serveErr
	if err := store.Close(); err != nil {
		log.Warn("closing store", "error", err)
	}
	cas.PurgeAll()
	return nil
}
