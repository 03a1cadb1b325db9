package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"wallet-swap/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "wallet-swap",
	Short: "A CLI for same-chain token swaps on Solana and Ethereum",
	Long: `wallet-swap quotes and executes token swaps from your own wallet.
Solana swaps are routed through Jupiter and Ethereum swaps through 0x.
Swaps between different chains are not supported.

Examples:
  wallet-swap quote 1 SOL to USDC
  wallet-swap swap 0.5 ETH to USDC
  wallet-swap tokens --chain solana
  wallet-swap balance --chain ethereum
  wallet-swap status <signature>`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $HOME/.wallet-swap.yaml)")
}

// loadConfig reads the config file named by --config, or the default one
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// newLogger builds the application logger. Logs go to stderr so --json output stays parseable.
func newLogger(cfg *config.Config, verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
