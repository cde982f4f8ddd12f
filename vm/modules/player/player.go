// Package player manages player records and the registration state machine:
// unregistered -> registered <-> suspended. Records are never deleted.
package player

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/events"
	"github.com/tolelom/degenchain/vm"
	"github.com/tolelom/degenchain/vm/modules/token"
)

func init() {
	vm.Register(core.TxRegister, handleRegister)
	vm.Register(core.TxPlay, handlePlay)
	vm.Register(core.TxSuspend, handleSuspend)
	vm.Register(core.TxReinstate, handleReinstate)
	vm.Register(core.TxPlayerTransfer, handleTransfer)
	vm.Register(core.TxPlayerBurn, handleBurn)
}

// Register creates the caller's player record and appends it to the
// enumeration list. Any existing record, suspended or not, blocks it.
func Register(ctx *vm.Context, username string) error {
	if err := vm.RequireNonZero(ctx.Caller); err != nil {
		return err
	}
	existing, err := ctx.State.GetPlayer(ctx.Caller)
	if err != nil {
		return err
	}
	if existing.Exists() {
		return vm.ErrAlreadyRegistered
	}
	if ctx.Auth.IsOwner(ctx.Caller) {
		return vm.ErrOwnerCannotRegister
	}

	p := &core.Player{
		ID:           ctx.Caller,
		Nickname:     username,
		RegisteredAt: ctx.Now(),
		IsRegistered: true,
	}
	if err := ctx.State.SetPlayer(p); err != nil {
		return err
	}
	if err := ctx.State.AppendPlayer(ctx.Caller); err != nil {
		return err
	}
	ctx.Emit(events.EventPlayerRegistered, map[string]any{
		"player":        ctx.Caller.Hex(),
		"username":      username,
		"registered_at": p.RegisteredAt,
		"success":       true,
	})
	return nil
}

// Play bumps the caller's score. Only the record's existence is checked, so
// a suspended player keeps scoring.
func Play(ctx *vm.Context) error {
	p, err := ctx.State.GetPlayer(ctx.Caller)
	if err != nil {
		return err
	}
	if !p.Exists() {
		return vm.ErrNotFound
	}
	if p.Score == math.MaxUint64 {
		return vm.ErrOverflow
	}
	p.Score++
	return ctx.State.SetPlayer(p)
}

// Suspend flags a registered player as suspended. Owner only.
func Suspend(ctx *vm.Context, addr core.Address) error {
	if err := ctx.OnlyOwner(); err != nil {
		return err
	}
	p, err := ctx.State.GetPlayer(addr)
	if err != nil {
		return err
	}
	if !p.Exists() || !p.IsRegistered {
		return vm.ErrNotFound
	}
	p.IsRegistered = false
	if err := ctx.State.SetPlayer(p); err != nil {
		return err
	}
	ctx.Emit(events.EventPlayerSuspended, map[string]any{"player": addr.Hex()})
	return nil
}

// Reinstate lifts a suspension. Owner only.
func Reinstate(ctx *vm.Context, addr core.Address) error {
	if err := ctx.OnlyOwner(); err != nil {
		return err
	}
	p, err := ctx.State.GetPlayer(addr)
	if err != nil {
		return err
	}
	if !p.Exists() {
		return vm.ErrNotFound
	}
	if p.IsRegistered {
		return vm.ErrNotSuspended
	}
	p.IsRegistered = true
	if err := ctx.State.SetPlayer(p); err != nil {
		return err
	}
	ctx.Emit(events.EventPlayerReinstated, map[string]any{"player": addr.Hex()})
	return nil
}

// P2PTransfer is the player-facing transfer: the sender must be registered.
func P2PTransfer(ctx *vm.Context, to core.Address, amount *uint256.Int) (bool, error) {
	if err := RequireRegistered(ctx.State, ctx.Caller); err != nil {
		return false, err
	}
	ok, err := token.Transfer(ctx, to, amount)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, vm.ErrTransferFailed
	}
	ctx.Emit(events.EventPlayerP2PTransfer, map[string]any{
		"from":  ctx.Caller.Hex(),
		"to":    to.Hex(),
		"value": amount.Dec(),
	})
	return true, nil
}

// Burn destroys tokens held by a registered player.
func Burn(ctx *vm.Context, amount *uint256.Int) error {
	if err := RequireRegistered(ctx.State, ctx.Caller); err != nil {
		return err
	}
	if err := token.Burn(ctx, amount); err != nil {
		return err
	}
	ctx.Emit(events.EventTokenBurnt, map[string]any{
		"from":  ctx.Caller.Hex(),
		"value": amount.Dec(),
	})
	return nil
}

// RequireRegistered fails with ErrNotRegistered unless addr is a player in
// good standing.
func RequireRegistered(state core.State, addr core.Address) error {
	p, err := state.GetPlayer(addr)
	if err != nil {
		return err
	}
	if !p.Exists() || !p.IsRegistered {
		return vm.ErrNotRegistered
	}
	return nil
}

// CheckBalance returns addr's token balance.
func CheckBalance(state core.State, addr core.Address) (*uint256.Int, error) {
	return token.BalanceOf(state, addr)
}

// Get returns the player record of addr, or ErrNotFound.
func Get(state core.State, addr core.Address) (*core.Player, error) {
	p, err := state.GetPlayer(addr)
	if err != nil {
		return nil, err
	}
	if !p.Exists() {
		return nil, vm.ErrNotFound
	}
	return p, nil
}

// All returns every player in registration order, suspended ones included.
func All(state core.State) ([]*core.Player, error) {
	n, err := state.PlayerCount()
	if err != nil {
		return nil, err
	}
	out := make([]*core.Player, 0, n)
	for i := uint64(0); i < n; i++ {
		addr, err := state.PlayerAt(i)
		if err != nil {
			return nil, err
		}
		p, err := state.GetPlayer(addr)
		if err != nil {
			return nil, fmt.Errorf("player %s: %w", addr, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// ---- handlers ----

func handleRegister(ctx *vm.Context, payload json.RawMessage) error {
	var p core.RegisterPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode register payload: %w", err)
	}
	return Register(ctx, p.Username)
}

func handlePlay(ctx *vm.Context, _ json.RawMessage) error {
	return Play(ctx)
}

func handleSuspend(ctx *vm.Context, payload json.RawMessage) error {
	var p core.PlayerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode suspend payload: %w", err)
	}
	return Suspend(ctx, p.Player)
}

func handleReinstate(ctx *vm.Context, payload json.RawMessage) error {
	var p core.PlayerPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode reinstate payload: %w", err)
	}
	return Reinstate(ctx, p.Player)
}

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode player_transfer payload: %w", err)
	}
	if err := vm.RequireAmount(p.Amount); err != nil {
		return err
	}
	_, err := P2PTransfer(ctx, p.To, p.Amount)
	return err
}

func handleBurn(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BurnPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode player_burn payload: %w", err)
	}
	if err := vm.RequireAmount(p.Amount); err != nil {
		return err
	}
	return Burn(ctx, p.Amount)
}
