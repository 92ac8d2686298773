// Command shastity is the CLI entry point: a thin cobra wrapper around
// the persist/materialize/manifest packages, modeled on
// registry/root.go's RootCmd plus per-command files.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/scode/shastity/config"
	"github.com/scode/shastity/logging"

	_ "github.com/scode/shastity/backend/inmemory"
	_ "github.com/scode/shastity/backend/localdir"
	_ "github.com/scode/shastity/backend/s3"
)

// globalOpts holds the flag values shared by every subcommand,
// merged over the config file in resolveConfig.
var globalOpts struct {
	blockSize  int
	verbosity  int
	configPath string
	cryptoKey  string
}

var cfg config.Config

// defaultConcurrency bounds how many storage operations the queue
// runs against a backend at once. v1 hardcodes a modest pool size
// rather than adding another flag for it.
const defaultConcurrency = 4

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "shastity:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shastity",
		Short:         "deduplicating, content-addressed backup",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return resolveConfig()
		},
	}

	root.PersistentFlags().IntVar(&globalOpts.blockSize, "block-size", 0, "block size in bytes (default 1 MiB, or config file value)")
	root.PersistentFlags().IntVar(&globalOpts.verbosity, "verbosity", 0, "log verbosity, 1 (quiet) to 8 (debug)")
	root.PersistentFlags().StringVar(&globalOpts.configPath, "config", config.DefaultPath, "path to config file")
	root.PersistentFlags().StringVar(&globalOpts.cryptoKey, "crypto-key", "", "passphrase enabling the AES-256-GCM backend wrapper")

	root.AddCommand(persistCmd)
	root.AddCommand(materializeCmd)
	root.AddCommand(listManifestCmd)
	root.AddCommand(commonBlocksCmd)
	root.AddCommand(getBlockCmd)
	root.AddCommand(reservedCmd("verify"))
	root.AddCommand(reservedCmd("garbage-collect"))
	root.AddCommand(reservedCmd("test-backend"))

	return root
}

// resolveConfig loads the config file and layers the explicitly-set
// flags on top, then configures logging - mirroring
// registry/registry.go's resolveConfiguration+configureLogging pair,
// collapsed into one step since shastity has far fewer options.
func resolveConfig() error {
	loaded, err := config.Load(globalOpts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg = loaded

	if globalOpts.blockSize != 0 {
		cfg.BlockSize = globalOpts.blockSize
	}
	if globalOpts.verbosity != 0 {
		cfg.Verbosity = globalOpts.verbosity
	}
	if globalOpts.cryptoKey != "" {
		cfg.CryptoKey = globalOpts.cryptoKey
	}

	if err := logging.Configure(cfg.Verbosity); err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"block-size": cfg.BlockSize,
		"verbosity":  cfg.Verbosity,
	}).Debug("configuration resolved")

	return nil
}

// reservedCmd builds a stub for a command name reserved for a future
// release but not yet implemented.
func reservedCmd(name string) *cobra.Command {
	return &cobra.Command{
		Use:                name,
		Short:              name + " (not implemented in v1)",
		DisableFlagParsing: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("%s: not implemented in v1", name)
		},
	}
}
