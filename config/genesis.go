package config

import (
	"fmt"
	"sort"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/crypto"
)

type allocEntry struct {
	addr   core.Address
	amount *uint256.Int
}

// parseAlloc decodes Alloc in address order so genesis writes are
// deterministic.
func (g *GenesisConfig) parseAlloc() ([]allocEntry, error) {
	keys := make([]string, 0, len(g.Alloc))
	for k := range g.Alloc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]allocEntry, 0, len(keys))
	for _, k := range keys {
		addr, err := core.HexToAddress(k)
		if err != nil {
			return nil, fmt.Errorf("genesis.alloc %q: %w", k, err)
		}
		if addr.IsZero() {
			return nil, fmt.Errorf("genesis.alloc: zero address")
		}
		amount, err := uint256.FromDecimal(g.Alloc[k])
		if err != nil {
			return nil, fmt.Errorf("genesis.alloc %q amount: %w", k, err)
		}
		out = append(out, allocEntry{addr: addr, amount: amount})
	}
	return out, nil
}

// ApplyGenesis runs the constructor against state: it records the owner and
// token metadata and mints every alloc entry into balances and supply.
// defaultOwner is used when the config names no owner.
func ApplyGenesis(g *GenesisConfig, state core.State, defaultOwner core.Address) error {
	owner := defaultOwner
	if g.Owner != "" {
		a, err := core.HexToAddress(g.Owner)
		if err != nil {
			return fmt.Errorf("genesis.owner: %w", err)
		}
		owner = a
	}
	if owner.IsZero() {
		return fmt.Errorf("genesis owner must not be the zero address")
	}
	alloc, err := g.parseAlloc()
	if err != nil {
		return err
	}

	if err := state.SetOwner(owner); err != nil {
		return err
	}
	info := g.Token
	if err := state.SetTokenInfo(&info); err != nil {
		return err
	}
	supply := new(uint256.Int)
	for _, e := range alloc {
		if _, overflow := supply.AddOverflow(supply, e.amount); overflow {
			return fmt.Errorf("genesis.alloc overflows total supply")
		}
		if err := state.SetBalance(e.addr, e.amount); err != nil {
			return err
		}
	}
	return state.SetTotalSupply(supply)
}

// CreateGenesisBlock applies the genesis state, commits it and returns the
// signed block #0.
func CreateGenesisBlock(cfg *Config, state core.State, sequencerPriv crypto.PrivateKey) (*core.Block, error) {
	pub := sequencerPriv.Public()
	if err := ApplyGenesis(&cfg.Genesis, state, core.Address(pub.AddressBytes())); err != nil {
		state.Discard()
		return nil, err
	}

	stateRoot := state.ComputeRoot()
	if err := state.Commit(); err != nil {
		return nil, err
	}

	block := core.NewBlock(0, core.GenesisHash, pub.Hex(), nil)
	block.Header.StateRoot = stateRoot
	block.Seal(sequencerPriv)
	return block, nil
}
