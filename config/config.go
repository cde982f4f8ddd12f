// Package config loads node configuration from JSON or YAML files with a
// DEGEN_* environment overlay, and builds the genesis state.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/tolelom/degenchain/core"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "DEGEN_"

// GenesisConfig describes the chain's initial state: the constructor call.
type GenesisConfig struct {
	ChainID string         `json:"chain_id" yaml:"chain_id" env:"CHAIN_ID"`
	Owner   string         `json:"owner" yaml:"owner" env:"OWNER"` // address hex; empty → sequencer address
	Token   core.TokenInfo `json:"token" yaml:"token"`
	// Alloc mints initial balances: address hex → decimal amount.
	Alloc map[string]string `json:"alloc" yaml:"alloc"`
}

// Config holds all node configuration.
type Config struct {
	NodeID          string        `json:"node_id" yaml:"node_id" env:"NODE_ID"`
	DataDir         string        `json:"data_dir" yaml:"data_dir" env:"DATA_DIR"`
	RPCPort         int           `json:"rpc_port" yaml:"rpc_port" env:"RPC_PORT"`
	RPCAuthToken    string        `json:"rpc_auth_token,omitempty" yaml:"rpc_auth_token,omitempty" env:"RPC_AUTH_TOKEN"`
	BlockIntervalMs int           `json:"block_interval_ms" yaml:"block_interval_ms" env:"BLOCK_INTERVAL_MS"`
	MaxBlockTxs     int           `json:"max_block_txs" yaml:"max_block_txs" env:"MAX_BLOCK_TXS"` // 0 → 500
	JournalPath     string        `json:"journal_path,omitempty" yaml:"journal_path,omitempty" env:"JOURNAL_PATH"`
	Genesis         GenesisConfig `json:"genesis" yaml:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:          "node0",
		DataDir:         "./data",
		RPCPort:         8545,
		BlockIntervalMs: 2000,
		MaxBlockTxs:     500,
		Genesis: GenesisConfig{
			ChainID: "degenchain-dev",
			Token:   core.TokenInfo{Name: "Degen Token", Symbol: "DGN", Decimals: 18},
			Alloc:   map[string]string{},
		},
	}
}

// BlockInterval returns the sequencer tick.
func (c *Config) BlockInterval() time.Duration {
	if c.BlockIntervalMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.BlockIntervalMs) * time.Millisecond
}

// JournalFile returns the SQLite event journal path.
func (c *Config) JournalFile() string {
	if c.JournalPath != "" {
		return c.JournalPath
	}
	return filepath.Join(c.DataDir, "journal.db")
}

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if c.Genesis.ChainID == "" {
		return fmt.Errorf("genesis.chain_id required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir required")
	}
	if c.RPCPort <= 0 || c.RPCPort > 65535 {
		return fmt.Errorf("rpc_port %d out of range", c.RPCPort)
	}
	if c.Genesis.Owner != "" {
		if _, err := core.HexToAddress(c.Genesis.Owner); err != nil {
			return fmt.Errorf("genesis.owner: %w", err)
		}
	}
	if _, err := c.Genesis.parseAlloc(); err != nil {
		return err
	}
	return nil
}

// Load reads a config file from path, YAML for .yaml/.yml and JSON
// otherwise, then applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays DEGEN_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Save writes the config to path in the format implied by its extension.
func Save(cfg *Config, path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
