// Package sequencer produces blocks for a single-operator chain. The
// operator key seals every block; pending transactions are executed one by
// one and only the ones that succeed are included.
package sequencer

import (
	"fmt"
	"log"
	"time"

	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/crypto"
	"github.com/tolelom/degenchain/events"
	"github.com/tolelom/degenchain/vm"
)

const defaultMaxBlockTxs = 500

// Sequencer is the block production engine.
type Sequencer struct {
	bc      *core.Blockchain
	mempool *core.Mempool
	exec    *vm.Executor
	emitter *events.Emitter
	privKey crypto.PrivateKey
	pubKey  crypto.PublicKey
	maxTxs  int
}

// New creates a Sequencer sealing with privKey. maxTxs <= 0 selects 500.
func New(
	bc *core.Blockchain,
	mempool *core.Mempool,
	exec *vm.Executor,
	emitter *events.Emitter,
	privKey crypto.PrivateKey,
	maxTxs int,
) *Sequencer {
	if maxTxs <= 0 {
		maxTxs = defaultMaxBlockTxs
	}
	return &Sequencer{
		bc:      bc,
		mempool: mempool,
		exec:    exec,
		emitter: emitter,
		privKey: privKey,
		pubKey:  privKey.Public(),
		maxTxs:  maxTxs,
	}
}

// ProduceBlock executes pending transactions and commits the next block.
// It returns (nil, nil) when there was nothing to include. Failed
// transactions are dropped from the mempool and left out of the block; if
// the block cannot be stored its transactions stay pending.
func (s *Sequencer) ProduceBlock() (*core.Block, error) {
	pending := s.mempool.Pending(s.maxTxs)
	if len(pending) == 0 {
		return nil, nil
	}

	height, prevHash := s.bc.Next()
	block := core.NewBlock(height, prevHash, s.pubKey.Hex(), nil)

	var rejected []string
	included := make([]*core.Transaction, 0, len(pending))
	for _, tx := range pending {
		if err := s.exec.ExecuteTx(block, tx); err != nil {
			log.Printf("[sequencer] tx %s (%s) rejected: %v", shortID(tx.ID), tx.Type, err)
			rejected = append(rejected, tx.ID)
			continue
		}
		included = append(included, tx)
	}
	s.mempool.Remove(rejected)

	if len(included) == 0 {
		return nil, nil
	}
	block.Transactions = included

	// The root is taken from the write buffer before flushing, so a block
	// that fails to store leaves nothing persisted.
	err := s.exec.Exclusive(func(state core.State) error {
		block.Header.StateRoot = state.ComputeRoot()
		block.Seal(s.privKey)
		if err := s.bc.AddBlock(block); err != nil {
			state.Discard()
			return fmt.Errorf("add block: %w", err)
		}
		if err := state.Commit(); err != nil {
			log.Fatalf("[sequencer] FATAL: block %d stored but state commit failed: %v",
				block.Header.Height, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(included))
	for i, tx := range included {
		ids[i] = tx.ID
	}
	s.mempool.Remove(ids)

	s.emitter.Emit(events.Event{
		Type:        events.EventBlockCommit,
		BlockHeight: block.Header.Height,
		Data: map[string]any{
			"hash":     block.Hash,
			"txs":      len(included),
			"rejected": len(pending) - len(included),
		},
	})
	return block, nil
}

// Run produces a block every interval until done is closed.
func (s *Sequencer) Run(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			block, err := s.ProduceBlock()
			if err != nil {
				log.Printf("[sequencer] produce block error: %v", err)
				continue
			}
			if block != nil {
				log.Printf("[sequencer] block %d sealed with %d txs (%s)",
					block.Header.Height, len(block.Transactions), shortID(block.Hash))
			}
		}
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
