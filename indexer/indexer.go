// Package indexer maintains secondary indexes over executed transactions so
// clients can list a player's props and an address's transfers without
// scanning full state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/events"
	"github.com/tolelom/degenchain/storage"
)

const (
	prefixOwnerProps   = "idx:owner:prop:"
	prefixAddrTransfer = "idx:addr:transfer:"
)

// Transfer is one token movement touching an address. Mints have a zero
// From and burns a zero To.
type Transfer struct {
	TxID        string `json:"tx_id"`
	BlockHeight int64  `json:"block_height"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
}

// Indexer subscribes to chain events and updates secondary lookup tables.
type Indexer struct {
	mu sync.RWMutex
	db storage.DB
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db}
	emitter.Subscribe(events.EventPropBought, idx.onPropBought)
	emitter.Subscribe(events.EventTransfer, idx.onTransfer)
	return idx
}

// GetPropsByOwner returns the ids of every prop the player has bought, in
// purchase order.
func (idx *Indexer) GetPropsByOwner(owner core.Address) ([]string, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var ids []string
	if err := idx.getList(prefixOwnerProps+owner.Hex(), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetTransfersByAddress returns up to limit of the most recent transfers
// sent or received by addr, oldest first. limit <= 0 returns all.
func (idx *Indexer) GetTransfersByAddress(addr core.Address, limit int) ([]Transfer, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	var out []Transfer
	if err := idx.getList(prefixAddrTransfer+addr.Hex(), &out); err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ---- event handlers ----

func (idx *Indexer) onPropBought(ev events.Event) {
	owner, _ := ev.Data["new_owner"].(string)
	propID, _ := ev.Data["prop_id"].(string)
	if owner == "" || propID == "" {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := prefixOwnerProps + owner
	var ids []string
	if err := idx.getList(key, &ids); err != nil {
		return
	}
	for _, id := range ids {
		if id == propID {
			return
		}
	}
	_ = idx.setList(key, append(ids, propID))
}

func (idx *Indexer) onTransfer(ev events.Event) {
	from, _ := ev.Data["from"].(string)
	to, _ := ev.Data["to"].(string)
	value, _ := ev.Data["value"].(string)
	if from == "" || to == "" {
		return
	}
	rec := Transfer{TxID: ev.TxID, BlockHeight: ev.BlockHeight, From: from, To: to, Value: value}
	zero := core.ZeroAddress.Hex()

	addrs := []string{from}
	if to != from {
		addrs = append(addrs, to)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, addr := range addrs {
		if addr == zero {
			continue
		}
		_ = idx.appendTransfer(addr, rec)
	}
}

// ---- list helpers ----

func (idx *Indexer) getList(key string, v any) error {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil // empty list
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("indexer unmarshal %s: %w", key, err)
	}
	return nil
}

func (idx *Indexer) setList(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Indexer) appendTransfer(addr string, rec Transfer) error {
	key := prefixAddrTransfer + addr
	var list []Transfer
	if err := idx.getList(key, &list); err != nil {
		return err
	}
	return idx.setList(key, append(list, rec))
}
