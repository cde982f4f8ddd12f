package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/wallet"
)

// passwordEnv holds the keystore password; CLI flags leak via ps.
const passwordEnv = "DEGEN_PASSWORD"

func password() string {
	pw := os.Getenv(passwordEnv)
	if pw == "" {
		log.Printf("WARNING: %s not set, keystore uses an empty password", passwordEnv)
	}
	return pw
}

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a sequencer key and write it to the keystore",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(keyPath); err == nil {
			return fmt.Errorf("%s already exists", keyPath)
		}
		cfg, err := loadConfig(cfgPath)
		if err != nil {
			return err
		}
		w, err := wallet.Generate(cfg.Genesis.ChainID)
		if err != nil {
			return err
		}
		if err := wallet.SaveKey(keyPath, password(), w.PrivKey()); err != nil {
			return err
		}
		fmt.Printf("public key: %s\n", w.PubKey())
		fmt.Printf("address:    %s\n", w.Address())
		fmt.Printf("saved to:   %s\n", keyPath)
		return nil
	},
}

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the address of the keystore key",
	RunE: func(cmd *cobra.Command, args []string) error {
		priv, err := wallet.LoadKey(keyPath, password())
		if err != nil {
			return err
		}
		pub := priv.Public()
		fmt.Printf("public key: %s\n", pub.Hex())
		fmt.Printf("address:    %s\n", core.Address(pub.AddressBytes()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(genkeyCmd, addressCmd)
}
