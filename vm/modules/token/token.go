// Package token implements the chain's fungible token ledger: balances,
// allowances and total supply with mint, burn, transfer, transfer_from and
// approve. Every mutation validates first and writes last; amounts use
// checked 256-bit arithmetic.
package token

import (
	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/events"
	"github.com/tolelom/degenchain/vm"
)

// Mint creates amount tokens for to. Owner only.
func Mint(ctx *vm.Context, to core.Address, amount *uint256.Int) error {
	if err := ctx.OnlyOwner(); err != nil {
		return err
	}
	if err := vm.RequireNonZero(to); err != nil {
		return err
	}

	bal, err := ctx.State.GetBalance(to)
	if err != nil {
		return err
	}
	supply, err := ctx.State.GetTotalSupply()
	if err != nil {
		return err
	}
	newBal, overflow := new(uint256.Int).AddOverflow(bal, amount)
	if overflow {
		return vm.ErrOverflow
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return vm.ErrOverflow
	}

	if err := ctx.State.SetBalance(to, newBal); err != nil {
		return err
	}
	if err := ctx.State.SetTotalSupply(newSupply); err != nil {
		return err
	}
	ctx.Emit(events.EventTransfer, transferData(core.ZeroAddress, to, amount))
	return nil
}

// Transfer moves amount from the caller to to. The boolean mirrors the
// ERC20 return value and is true whenever err is nil.
func Transfer(ctx *vm.Context, to core.Address, amount *uint256.Int) (bool, error) {
	if err := vm.RequireNonZero(ctx.Caller, to); err != nil {
		return false, err
	}
	if err := move(ctx, ctx.Caller, to, amount); err != nil {
		return false, err
	}
	return true, nil
}

// TransferFrom spends the caller's allowance from `from` to move amount to to.
// The allowance is only consumed when the balance check also passes.
func TransferFrom(ctx *vm.Context, from, to core.Address, amount *uint256.Int) (bool, error) {
	if err := vm.RequireNonZero(ctx.Caller, from, to); err != nil {
		return false, err
	}

	allowance, err := ctx.State.GetAllowance(from, ctx.Caller)
	if err != nil {
		return false, err
	}
	if allowance.Lt(amount) {
		return false, &vm.InsufficientAllowanceError{
			Owner:   from,
			Spender: ctx.Caller,
			Have:    allowance,
			Want:    amount.Clone(),
		}
	}
	if err := checkBalance(ctx.State, from, amount); err != nil {
		return false, err
	}

	if err := ctx.State.SetAllowance(from, ctx.Caller, new(uint256.Int).Sub(allowance, amount)); err != nil {
		return false, err
	}
	if err := move(ctx, from, to, amount); err != nil {
		return false, err
	}
	return true, nil
}

// Approve overwrites the caller's allowance for spender.
func Approve(ctx *vm.Context, spender core.Address, amount *uint256.Int) (bool, error) {
	if err := vm.RequireNonZero(spender); err != nil {
		return false, err
	}
	if err := ctx.State.SetAllowance(ctx.Caller, spender, amount.Clone()); err != nil {
		return false, err
	}
	ctx.Emit(events.EventApproval, map[string]any{
		"owner":   ctx.Caller.Hex(),
		"spender": spender.Hex(),
		"value":   amount.Dec(),
	})
	return true, nil
}

// Burn destroys amount of the caller's tokens.
func Burn(ctx *vm.Context, amount *uint256.Int) error {
	if err := checkBalance(ctx.State, ctx.Caller, amount); err != nil {
		return err
	}
	bal, err := ctx.State.GetBalance(ctx.Caller)
	if err != nil {
		return err
	}
	supply, err := ctx.State.GetTotalSupply()
	if err != nil {
		return err
	}
	newSupply, underflow := new(uint256.Int).SubOverflow(supply, amount)
	if underflow {
		return vm.ErrOverflow
	}

	if err := ctx.State.SetBalance(ctx.Caller, new(uint256.Int).Sub(bal, amount)); err != nil {
		return err
	}
	if err := ctx.State.SetTotalSupply(newSupply); err != nil {
		return err
	}
	ctx.Emit(events.EventTransfer, transferData(ctx.Caller, core.ZeroAddress, amount))
	return nil
}

// move debits from and credits to. A self-transfer leaves the balance as is.
func move(ctx *vm.Context, from, to core.Address, amount *uint256.Int) error {
	if err := checkBalance(ctx.State, from, amount); err != nil {
		return err
	}
	if from != to {
		fromBal, err := ctx.State.GetBalance(from)
		if err != nil {
			return err
		}
		toBal, err := ctx.State.GetBalance(to)
		if err != nil {
			return err
		}
		newTo, overflow := new(uint256.Int).AddOverflow(toBal, amount)
		if overflow {
			return vm.ErrOverflow
		}
		if err := ctx.State.SetBalance(from, new(uint256.Int).Sub(fromBal, amount)); err != nil {
			return err
		}
		if err := ctx.State.SetBalance(to, newTo); err != nil {
			return err
		}
	}
	ctx.Emit(events.EventTransfer, transferData(from, to, amount))
	return nil
}

func checkBalance(state core.State, from core.Address, want *uint256.Int) error {
	have, err := state.GetBalance(from)
	if err != nil {
		return err
	}
	if have.Lt(want) {
		return &vm.InsufficientBalanceError{From: from, Have: have, Want: want.Clone()}
	}
	return nil
}

func transferData(from, to core.Address, amount *uint256.Int) map[string]any {
	return map[string]any{"from": from.Hex(), "to": to.Hex(), "value": amount.Dec()}
}

// ---- reads ----

// BalanceOf returns the balance of addr (zero when unknown).
func BalanceOf(state core.State, addr core.Address) (*uint256.Int, error) {
	return state.GetBalance(addr)
}

// Allowance returns how much spender may still move on behalf of owner.
func Allowance(state core.State, owner, spender core.Address) (*uint256.Int, error) {
	return state.GetAllowance(owner, spender)
}

// TotalSupply returns the amount of tokens in existence.
func TotalSupply(state core.State) (*uint256.Int, error) {
	return state.GetTotalSupply()
}

// Info returns the token name, symbol and decimals.
func Info(state core.State) (*core.TokenInfo, error) {
	return state.GetTokenInfo()
}
