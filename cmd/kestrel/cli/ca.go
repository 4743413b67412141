package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kstvn/kestrel/internal/ca"
	"github.com/kstvn/kestrel/internal/config"
)

var caCmd = &cobra.Command{
	Use:   "ca",
	Short: "Manage the local certificate authority",
}

var caInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Provision the root CA and leaf key used to terminate TLS",
	Long: `Provisions ca.crt, ca.key, cert.key, certs/, and serial_numbers/
under the working directory. This is a one-time setup step; neither
"kestrel proxy" nor "kestrel api" runs it automatically.`,
	RunE: runCAInit,
}

func init() {
	caCmd.AddCommand(caInitCmd)
	rootCmd.AddCommand(caCmd)
}

func runCAInit(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := ca.Init(cfg.WorkDir); err != nil {
		return fmt.Errorf("provisioning CA: %w", err)
	}
	fmt.Printf("Provisioned CA material under %s\n", filepath.Clean(cfg.WorkDir))
	fmt.Println("Trust the root certificate (ca.crt) in your client to avoid TLS warnings.")
	return nil
}
