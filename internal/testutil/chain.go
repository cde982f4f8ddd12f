package testutil

import (
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/config"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/events"
	"github.com/tolelom/degenchain/storage"
	"github.com/tolelom/degenchain/vm"
	"github.com/tolelom/degenchain/wallet"

	// Register every contract module.
	_ "github.com/tolelom/degenchain/vm/modules/player"
	_ "github.com/tolelom/degenchain/vm/modules/reward"
	_ "github.com/tolelom/degenchain/vm/modules/store"
	_ "github.com/tolelom/degenchain/vm/modules/token"
)

// ChainID is the chain every test wallet signs for.
const ChainID = "degen-test"

// Chain is an in-memory contract host: a StateDB constructed with an owner
// wallet, an executor and a recorder for everything the emitter publishes.
type Chain struct {
	t       *testing.T
	State   *storage.StateDB
	Emitter *events.Emitter
	Exec    *vm.Executor
	Owner   *wallet.Wallet
	Block   *core.Block

	mu     sync.Mutex
	events []events.Event
}

// NewChain runs the constructor with a fresh owner wallet and no allocations.
func NewChain(t *testing.T) *Chain {
	t.Helper()
	owner, err := wallet.Generate(ChainID)
	if err != nil {
		t.Fatal(err)
	}
	state := NewStateDB(t)
	g := &config.GenesisConfig{
		ChainID: ChainID,
		Token:   core.TokenInfo{Name: "Degen Token", Symbol: "DGN", Decimals: 18},
	}
	if err := config.ApplyGenesis(g, state, owner.Address()); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if err := state.Commit(); err != nil {
		t.Fatalf("commit genesis: %v", err)
	}

	c := &Chain{
		t:       t,
		State:   state,
		Emitter: events.NewEmitter(),
		Owner:   owner,
		Block:   core.NewBlock(1, core.GenesisHash, owner.PubKey(), nil),
	}
	c.Exec = vm.NewExecutor(state, c.Emitter, ChainID)
	c.Emitter.SubscribeAll(func(ev events.Event) {
		c.mu.Lock()
		c.events = append(c.events, ev)
		c.mu.Unlock()
	})
	return c
}

// Wallet generates a wallet for this chain.
func (c *Chain) Wallet() *wallet.Wallet {
	c.t.Helper()
	w, err := wallet.Generate(ChainID)
	if err != nil {
		c.t.Fatal(err)
	}
	return w
}

// Nonce returns the next nonce of w.
func (c *Chain) Nonce(w *wallet.Wallet) uint64 {
	c.t.Helper()
	n, err := c.State.GetNonce(w.Address())
	if err != nil {
		c.t.Fatal(err)
	}
	return n
}

// Send builds a transaction with w's current nonce and executes it.
func (c *Chain) Send(w *wallet.Wallet, build func(nonce uint64) (*core.Transaction, error)) error {
	c.t.Helper()
	tx, err := build(c.Nonce(w))
	if err != nil {
		c.t.Fatalf("build tx: %v", err)
	}
	return c.Exec.ExecuteTx(c.Block, tx)
}

// MustSend is Send that fails the test on error.
func (c *Chain) MustSend(w *wallet.Wallet, build func(nonce uint64) (*core.Transaction, error)) {
	c.t.Helper()
	if err := c.Send(w, build); err != nil {
		c.t.Fatalf("tx failed: %v", err)
	}
}

// Fund mints amount to addr from the owner.
func (c *Chain) Fund(addr core.Address, amount uint64) {
	c.t.Helper()
	c.MustSend(c.Owner, func(n uint64) (*core.Transaction, error) {
		return c.Owner.Mint(n, addr, uint256.NewInt(amount))
	})
}

// Register registers w as a player.
func (c *Chain) Register(w *wallet.Wallet, name string) {
	c.t.Helper()
	c.MustSend(w, func(n uint64) (*core.Transaction, error) { return w.Register(n, name) })
}

// Balance returns the balance of addr.
func (c *Chain) Balance(addr core.Address) *uint256.Int {
	c.t.Helper()
	v, err := c.State.GetBalance(addr)
	if err != nil {
		c.t.Fatal(err)
	}
	return v
}

// Supply returns the total supply.
func (c *Chain) Supply() *uint256.Int {
	c.t.Helper()
	v, err := c.State.GetTotalSupply()
	if err != nil {
		c.t.Fatal(err)
	}
	return v
}

// Events returns the recorded events of type typ (all when typ is empty).
func (c *Chain) Events(typ events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, ev := range c.events {
		if typ == "" || ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// ResetEvents clears the recorder.
func (c *Chain) ResetEvents() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}
