// Command degen-node runs a single-sequencer DegenChain node.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "degen-node",
	Short: "DegenChain token ledger and game node",
	Long: `degen-node runs the DegenChain sequencer: a token ledger with a player
registry, tiered score rewards and a prop store, served over JSON-RPC.`,
	SilenceUsage: true,
}

var (
	cfgPath string
	keyPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to config file (.yaml, .yml or .json)")
	rootCmd.PersistentFlags().StringVar(&keyPath, "key", "sequencer.key", "path to keystore file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
