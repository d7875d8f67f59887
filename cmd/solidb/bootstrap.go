package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/solidb/solidb/pkg/admin"
	"github.com/solidb/solidb/pkg/document"
	"github.com/solidb/solidb/pkg/log"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Initialize the _system database and seed the root admin",
	Long: `Bootstrap creates the _system database and its administration
collections in the configured data directory and, unless an admin
already exists, seeds the initial root account. It does not start the
HTTP or driver listeners; run "solidb serve" afterward to bring the
server up.`,
	RunE: runBootstrap,
}

func init() {
	bootstrapCmd.Flags().Bool("no-prompt", false, "Fail instead of prompting for the root password on a TTY")
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	cfg := loadedConfig
	logger := log.WithComponent("bootstrap")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	password := cfg.AdminPassword
	if password == "" {
		noPrompt, _ := cmd.Flags().GetBool("no-prompt")
		if noPrompt || !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("no admin password configured; set SOLIDB_ADMIN_PASSWORD or run on a terminal without --no-prompt to be prompted")
		}
		pw, err := promptPassword()
		if err != nil {
			return fmt.Errorf("read admin password: %w", err)
		}
		password = pw
	}

	catalog := document.NewCatalog(cfg.DataDir)
	db, err := admin.Bootstrap(catalog, password)
	if err != nil {
		return fmt.Errorf("bootstrap system database: %w", err)
	}
	logger.Info().Str("data_dir", cfg.DataDir).Strs("collections", db.Collections()).Msg("system database bootstrapped")
	fmt.Println("SoliDB system database bootstrapped at", cfg.DataDir)
	return nil
}

func promptPassword() (string, error) {
	fmt.Print("Root admin password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
