package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tolelom/degenchain/crypto"
)

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// GenesisHash is the canonical all-zeros previous hash of block #0.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// BlockStore is the persistence interface used by Blockchain.
// Implementations live in the storage package.
type BlockStore interface {
	GetBlock(hash string) (*Block, error)
	GetBlockByHeight(height int64) (*Block, error)
	// GetTip returns the current tip hash, or ("", nil) for a fresh chain.
	GetTip() (string, error)
	// CommitBlock atomically writes the block, its height index entry, and
	// updates the tip pointer in a single batch operation.
	CommitBlock(block *Block) error
}

// Blockchain manages the canonical chain: stores blocks and tracks the tip.
// Only blocks sealed by the configured sequencer key are accepted.
type Blockchain struct {
	mu        sync.RWMutex
	store     BlockStore
	sequencer crypto.PublicKey
	tip       *Block
	height    int64
}

// NewBlockchain returns a Blockchain backed by store.
// Call Init() to load an existing chain tip from storage.
func NewBlockchain(store BlockStore, sequencer crypto.PublicKey) *Blockchain {
	return &Blockchain{store: store, sequencer: sequencer}
}

// Init loads the persisted tip from the block store.
func (bc *Blockchain) Init() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	tipHash, err := bc.store.GetTip()
	if err != nil {
		return fmt.Errorf("get tip: %w", err)
	}
	if tipHash == "" {
		return nil // fresh chain
	}
	tip, err := bc.store.GetBlock(tipHash)
	if err != nil {
		return fmt.Errorf("load tip block: %w", err)
	}
	bc.tip = tip
	bc.height = tip.Header.Height
	return nil
}

// AddBlock validates the seal, height continuity and PrevHash linkage, then
// persists the block and advances the tip.
func (bc *Blockchain) AddBlock(block *Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if block.Hash != block.ComputeHash() {
		return errors.New("block hash does not match header")
	}
	if block.Header.Sequencer != bc.sequencer.Hex() {
		return fmt.Errorf("wrong sequencer: got %s want %s", block.Header.Sequencer, bc.sequencer.Hex())
	}
	if err := block.Verify(bc.sequencer); err != nil {
		return fmt.Errorf("block signature invalid: %w", err)
	}

	if bc.tip == nil {
		if block.Header.Height != 0 || block.Header.PrevHash != GenesisHash {
			return errors.New("first block must be height 0 referencing the genesis prev-hash")
		}
	} else {
		if block.Header.Height != bc.height+1 {
			return fmt.Errorf("block height %d does not follow tip %d", block.Header.Height, bc.height)
		}
		if block.Header.PrevHash != bc.tip.Hash {
			return fmt.Errorf("prev_hash mismatch: got %s want %s", block.Header.PrevHash, bc.tip.Hash)
		}
	}

	if err := bc.store.CommitBlock(block); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}
	bc.tip = block
	bc.height = block.Header.Height
	return nil
}

// GetBlock returns a block by its hash.
func (bc *Blockchain) GetBlock(hash string) (*Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.store.GetBlock(hash)
}

// GetBlockByHeight returns the block at the given height.
func (bc *Blockchain) GetBlockByHeight(height int64) (*Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.store.GetBlockByHeight(height)
}

// Tip returns the current chain tip, or nil for a fresh chain.
func (bc *Blockchain) Tip() *Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tip
}

// Height returns the height of the current tip (0 for a fresh chain).
func (bc *Blockchain) Height() int64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.height
}

// Next returns the height and prev-hash the next block must carry.
func (bc *Blockchain) Next() (int64, string) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if bc.tip == nil {
		return 0, GenesisHash
	}
	return bc.tip.Header.Height + 1, bc.tip.Hash
}
