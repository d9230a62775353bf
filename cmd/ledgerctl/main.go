// Command ledgerctl runs integrity checks and operator tasks against the
// wallet ledger store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"wallet-ledger/config"
	"wallet-ledger/internal/bootstrap"
	"wallet-ledger/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var Version = "dev"

// cli carries what every subcommand needs. Tests replace the loaders.
type cli struct {
	configPath string
	asJSON     bool

	loadConfig  func(path string) (*config.Config, error)
	openBackend func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*bootstrap.Backend, error)
}

func main() {
	c := &cli{loadConfig: config.Load, openBackend: bootstrap.Open}
	if err := c.rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (c *cli) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "ledgerctl - operator tooling for the wallet ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv("WLG_CONFIG"), "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&c.asJSON, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(c.verifyCmd())
	rootCmd.AddCommand(c.reconcileCmd())
	rootCmd.AddCommand(c.orphansCmd())
	rootCmd.AddCommand(c.tokenCmd())
	rootCmd.AddCommand(schemaCmd())

	return rootCmd
}

// withBackend loads config, opens the store and runs fn against it.
func (c *cli) withBackend(ctx context.Context, fn func(cfg *config.Config, b *bootstrap.Backend, log zerolog.Logger) error) error {
	cfg, err := c.loadConfig(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// Logs go to stderr so stdout stays machine-readable.
	log := logger.NewWithWriter(cfg.Log.Level, os.Stderr)

	b, err := c.openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(cfg, b, log)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
