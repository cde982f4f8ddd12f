// Package store is the in-game prop catalog. The contract address holds
// unsold inventory and collects the tokens paid for purchases.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/crypto"
	"github.com/tolelom/degenchain/events"
	"github.com/tolelom/degenchain/vm"
	"github.com/tolelom/degenchain/vm/modules/player"
	"github.com/tolelom/degenchain/vm/modules/token"
)

func init() {
	vm.Register(core.TxAddGameProp, handleAddGameProp)
	vm.Register(core.TxBuyGameProp, handleBuyGameProp)
}

// PropID derives the catalog id of a prop: keccak256(name || worth as 32
// big-endian bytes). Equal (name, worth) pairs share an id.
func PropID(name string, worth *uint256.Int) core.PropID {
	w := worth.Bytes32()
	return core.PropID(crypto.Keccak256([]byte(name), w[:]))
}

// AddGameProp lists a prop owned by the store, overwriting any prop with the
// same id. Owner only.
func AddGameProp(ctx *vm.Context, name string, worth *uint256.Int) (core.PropID, error) {
	if err := ctx.OnlyOwner(); err != nil {
		return core.PropID{}, err
	}
	if err := vm.RequireNonZero(ctx.Self); err != nil {
		return core.PropID{}, err
	}
	id := PropID(name, worth)
	prop := &core.GameProp{
		ID:           id,
		Name:         name,
		Worth:        worth.Clone(),
		CurrentOwner: ctx.Self,
	}
	if err := ctx.State.SetProp(prop); err != nil {
		return core.PropID{}, err
	}
	ctx.Emit(events.EventPropCreated, map[string]any{
		"prop_id": id.Hex(),
		"name":    name,
		"worth":   worth.Dec(),
	})
	return id, nil
}

// BuyGameProp pays the prop's worth to the store and hands the prop to the
// caller. Only props still held by the store can be bought.
func BuyGameProp(ctx *vm.Context, id core.PropID) error {
	if err := player.RequireRegistered(ctx.State, ctx.Caller); err != nil {
		return err
	}
	prop, err := ctx.State.GetProp(id)
	if err != nil {
		return err
	}
	if !prop.Exists() {
		return vm.ErrNotFound
	}
	if prop.CurrentOwner != ctx.Self {
		return vm.ErrPropUnavailable
	}

	ok, err := token.Transfer(ctx, ctx.Self, prop.Worth)
	if err != nil {
		var ibe *vm.InsufficientBalanceError
		if errors.As(err, &ibe) {
			return err
		}
		if _, ok := vm.AsContractError(err); ok {
			return fmt.Errorf("%w: %v", vm.ErrTransferFailed, err)
		}
		return err
	}
	if !ok {
		return vm.ErrTransferFailed
	}

	prop.CurrentOwner = ctx.Caller
	if err := ctx.State.SetProp(prop); err != nil {
		return err
	}
	if err := ctx.State.SetOwnedProp(ctx.Caller, prop.Copy()); err != nil {
		return err
	}
	ctx.Emit(events.EventPropBought, map[string]any{
		"new_owner": ctx.Caller.Hex(),
		"prop_id":   id.Hex(),
		"prop_name": prop.Name,
	})
	return nil
}

// Get returns the catalog entry for id, or ErrNotFound.
func Get(state core.State, id core.PropID) (*core.GameProp, error) {
	prop, err := state.GetProp(id)
	if err != nil {
		return nil, err
	}
	if !prop.Exists() {
		return nil, vm.ErrNotFound
	}
	return prop, nil
}

// Owned returns the copy of prop id recorded when owner bought it.
func Owned(state core.State, owner core.Address, id core.PropID) (*core.GameProp, error) {
	prop, err := state.GetOwnedProp(owner, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, vm.ErrNotFound
	}
	return prop, err
}

func handleAddGameProp(ctx *vm.Context, payload json.RawMessage) error {
	var p core.AddGamePropPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode add_game_prop payload: %w", err)
	}
	if err := vm.RequireAmount(p.Worth); err != nil {
		return err
	}
	_, err := AddGameProp(ctx, p.Name, p.Worth)
	return err
}

func handleBuyGameProp(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BuyGamePropPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode buy_game_prop payload: %w", err)
	}
	return BuyGameProp(ctx, p.PropID)
}
