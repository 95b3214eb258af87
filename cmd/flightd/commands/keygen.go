package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/avionyx/flightd/pkg/auth"
	"github.com/avionyx/flightd/pkg/config"
)

var keygenForce bool

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate RSA token signing keys",
	Long: `Generate the RSA key pair used to sign and verify bearer tokens.

The keys are written to the paths configured under 'auth' in the
configuration file. Refuses to overwrite an existing private key unless
--force is set.`,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "Overwrite existing key files")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}

	if !keygenForce {
		if _, err := os.Stat(cfg.Auth.PrivateKeyPath); err == nil {
			return fmt.Errorf("private key already exists: %s (use --force to overwrite)", cfg.Auth.PrivateKeyPath)
		}
	}

	privatePEM, publicPEM, err := auth.GenerateKeyPair(auth.DefaultKeyBits)
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}

	for _, dir := range []string{filepath.Dir(cfg.Auth.PrivateKeyPath), filepath.Dir(cfg.Auth.PublicKeyPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create key directory: %w", err)
		}
	}

	if err := os.WriteFile(cfg.Auth.PrivateKeyPath, privatePEM, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(cfg.Auth.PublicKeyPath, publicPEM, 0644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	fmt.Printf("Private key written to %s\n", cfg.Auth.PrivateKeyPath)
	fmt.Printf("Public key written to %s\n", cfg.Auth.PublicKeyPath)
	return nil
}
