package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	maxMempoolSize = 10_000
	maxPerSender   = 64
	maxTxAge       = int64(time.Hour)       // reject txs older than 1 hour
	maxTxFuture    = int64(5 * time.Minute) // reject txs more than 5 min in the future
)

// ErrNoncePending is returned when a sender already has a pending
// transaction with the same nonce.
var ErrNoncePending = errors.New("nonce already pending for sender")

type senderNonce struct {
	from  string
	nonce uint64
}

type pooledTx struct {
	tx  *Transaction
	seq uint64 // arrival order
}

// Mempool is a thread-safe pending-transaction pool for one chain. A sender
// holds at most one transaction per nonce.
type Mempool struct {
	chainID string

	mu       sync.RWMutex
	txs      map[string]*pooledTx
	byNonce  map[senderNonce]string
	perSend  map[string]int
	arrivals uint64
}

// NewMempool creates an empty mempool accepting transactions for chainID.
func NewMempool(chainID string) *Mempool {
	return &Mempool{
		chainID: chainID,
		txs:     make(map[string]*pooledTx),
		byNonce: make(map[senderNonce]string),
		perSend: make(map[string]int),
	}
}

// Add validates and inserts a transaction. It rejects transactions for
// another chain, with a bad signature, outside the -1 h / +5 min timestamp
// window, already present, or reusing a pending (sender, nonce) pair.
func (m *Mempool) Add(tx *Transaction) error {
	if tx.ChainID != m.chainID {
		return fmt.Errorf("chain ID mismatch: got %q want %q", tx.ChainID, m.chainID)
	}
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("invalid tx signature: %w", err)
	}
	now := time.Now().UnixNano()
	if now-tx.Timestamp > maxTxAge {
		return errors.New("transaction expired")
	}
	if tx.Timestamp-now > maxTxFuture {
		return errors.New("transaction timestamp too far in the future")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.txs) >= maxMempoolSize {
		return errors.New("mempool full")
	}
	if _, exists := m.txs[tx.ID]; exists {
		return errors.New("tx already in pool")
	}
	key := senderNonce{from: tx.From, nonce: tx.Nonce}
	if _, exists := m.byNonce[key]; exists {
		return fmt.Errorf("%w: nonce %d", ErrNoncePending, tx.Nonce)
	}
	if m.perSend[tx.From] >= maxPerSender {
		return fmt.Errorf("sender has %d pending transactions", maxPerSender)
	}
	m.arrivals++
	m.txs[tx.ID] = &pooledTx{tx: tx, seq: m.arrivals}
	m.byNonce[key] = tx.ID
	m.perSend[tx.From]++
	return nil
}

// Get returns a transaction by ID.
func (m *Mempool) Get(id string) (*Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.txs[id]
	if !ok {
		return nil, false
	}
	return p.tx, true
}

// Pending returns up to n pending transactions. Senders are ordered by the
// arrival of their first pending transaction and each sender's
// transactions by nonce, so a nonce submitted early does not fail ahead of
// its predecessors.
func (m *Mempool) Pending(n int) []*Transaction {
	m.mu.RLock()
	all := make([]*pooledTx, 0, len(m.txs))
	for _, p := range m.txs {
		all = append(all, p)
	}
	m.mu.RUnlock()

	first := make(map[string]uint64)
	for _, p := range all {
		if s, ok := first[p.tx.From]; !ok || p.seq < s {
			first[p.tx.From] = p.seq
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.tx.From != b.tx.From {
			return first[a.tx.From] < first[b.tx.From]
		}
		return a.tx.Nonce < b.tx.Nonce
	})

	if n > len(all) {
		n = len(all)
	}
	out := make([]*Transaction, n)
	for i := range out {
		out[i] = all[i].tx
	}
	return out
}

// Remove deletes transactions by ID (called after block commit, for both
// included and rejected transactions).
func (m *Mempool) Remove(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		p, ok := m.txs[id]
		if !ok {
			continue
		}
		delete(m.txs, id)
		delete(m.byNonce, senderNonce{from: p.tx.From, nonce: p.tx.Nonce})
		if m.perSend[p.tx.From]--; m.perSend[p.tx.From] <= 0 {
			delete(m.perSend, p.tx.From)
		}
	}
}

// Size returns the current number of pending transactions.
func (m *Mempool) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs)
}
