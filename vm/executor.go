package vm

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/events"
)

// Context is passed to every Handler. It carries the authenticated caller,
// the chain state, the current block and the store's own address. Events
// emitted through it are staged and published only if the transaction
// commits.
type Context struct {
	State  core.State
	Block  *core.Block
	Tx     *core.Transaction
	Caller core.Address
	Self   core.Address
	Auth   Authorization

	staged []events.Event
}

// OnlyOwner fails with ErrUnauthorized unless the caller is the owner.
func (c *Context) OnlyOwner() error {
	return c.Auth.OnlyOwner(c.Caller)
}

// Now returns the block timestamp in unix seconds.
func (c *Context) Now() int64 {
	return c.Block.Time().Unix()
}

// Emit stages an event for publication after the transaction succeeds.
func (c *Context) Emit(typ events.EventType, data map[string]any) {
	c.staged = append(c.staged, events.Event{Type: typ, Data: data})
}

// Executor applies transactions to the state using the global Handler
// registry. Transactions run one at a time; readers use View.
type Executor struct {
	mu      sync.RWMutex
	state   core.State
	emitter *events.Emitter
	chainID string
	self    core.Address
}

// NewExecutor creates an Executor for chainID. Transactions signed for any
// other chain are rejected. The contract address that holds store inventory
// and receives purchase payments is derived from chainID.
func NewExecutor(state core.State, emitter *events.Emitter, chainID string) *Executor {
	return &Executor{
		state:   state,
		emitter: emitter,
		chainID: chainID,
		self:    core.ContractAddress(chainID),
	}
}

// Self returns the contract address.
func (e *Executor) Self() core.Address { return e.self }

// ExecuteTx verifies and executes a single transaction with snapshot/rollback.
// On failure every state write and staged event of the transaction is
// discarded and the error is returned unchanged (contract errors stay
// inspectable with errors.As).
func (e *Executor) ExecuteTx(block *core.Block, tx *core.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.executeTx(block, tx)
	if err != nil {
		data := map[string]any{"type": string(tx.Type), "from": tx.From, "error": err.Error()}
		if ce, ok := AsContractError(err); ok {
			data["code"] = string(ce.Code())
		}
		e.publish(events.Event{
			Type:        events.EventTxFailed,
			TxID:        tx.ID,
			BlockHeight: block.Header.Height,
			Data:        data,
		})
	}
	return err
}

// Simulate runs tx against the current state as if it were included in
// block and always rolls back. No events are published.
func (e *Executor) Simulate(block *core.Block, tx *core.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := tx.Verify(); err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	snapID, err := e.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	_, applyErr := e.applyTx(block, tx)
	if err := e.state.RevertToSnapshot(snapID); err != nil {
		return fmt.Errorf("revert snapshot after simulation: %w", err)
	}
	return applyErr
}

func (e *Executor) executeTx(block *core.Block, tx *core.Transaction) error {
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("signature: %w", err)
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	staged, err := e.applyTx(block, tx)
	if err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr)
		}
		return err
	}

	for _, ev := range staged {
		ev.TxID = tx.ID
		ev.BlockHeight = block.Header.Height
		e.publish(ev)
	}
	e.publish(events.Event{
		Type:        events.EventTxExecuted,
		TxID:        tx.ID,
		BlockHeight: block.Header.Height,
		Data:        map[string]any{"type": string(tx.Type), "from": tx.From},
	})
	return nil
}

// applyTx checks the chain ID, checks and bumps the sender nonce, then
// dispatches to the handler.
func (e *Executor) applyTx(block *core.Block, tx *core.Transaction) ([]events.Event, error) {
	if tx.ChainID != e.chainID {
		return nil, fmt.Errorf("chain ID mismatch: got %q want %q", tx.ChainID, e.chainID)
	}
	caller, err := tx.Sender()
	if err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	nonce, err := e.state.GetNonce(caller)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}
	if nonce != tx.Nonce {
		return nil, fmt.Errorf("invalid nonce: expected %d got %d", nonce, tx.Nonce)
	}
	if nonce == math.MaxUint64 {
		return nil, fmt.Errorf("nonce overflow for account %s", caller)
	}
	if err := e.state.SetNonce(caller, nonce+1); err != nil {
		return nil, err
	}

	owner, err := e.state.GetOwner()
	if err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}

	ctx := &Context{
		State:  e.state,
		Block:  block,
		Tx:     tx,
		Caller: caller,
		Self:   e.self,
		Auth:   Authorization{Owner: owner},
	}
	if err := globalRegistry.Execute(tx.Type, ctx, tx.Payload); err != nil {
		return nil, err
	}
	return ctx.staged, nil
}

func (e *Executor) publish(ev events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

// View runs fn against the state while no transaction is executing.
// fn must not mutate state.
func (e *Executor) View(fn func(core.State) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(e.state)
}

// Exclusive runs fn with the executor locked, for block sealing and commit.
func (e *Executor) Exclusive(fn func(core.State) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.state)
}

// IsContractFailure reports whether err was raised by contract logic as
// opposed to host checks (signature, nonce, decoding, storage).
func IsContractFailure(err error) bool {
	_, ok := AsContractError(err)
	return ok
}

// RequireAmount rejects an amount missing from a decoded payload.
func RequireAmount(v *uint256.Int) error {
	if v == nil {
		return errors.New("amount required")
	}
	return nil
}
