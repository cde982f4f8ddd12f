package token

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/vm"
)

func init() {
	vm.Register(core.TxMint, handleMint)
	vm.Register(core.TxTransfer, handleTransfer)
	vm.Register(core.TxTransferFrom, handleTransferFrom)
	vm.Register(core.TxApprove, handleApprove)
	vm.Register(core.TxBurn, handleBurn)
}

func handleMint(ctx *vm.Context, payload json.RawMessage) error {
	var p core.MintPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode mint payload: %w", err)
	}
	if err := vm.RequireAmount(p.Amount); err != nil {
		return err
	}
	return Mint(ctx, p.To, p.Amount)
}

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer payload: %w", err)
	}
	if err := vm.RequireAmount(p.Amount); err != nil {
		return err
	}
	_, err := Transfer(ctx, p.To, p.Amount)
	return err
}

func handleTransferFrom(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferFromPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer_from payload: %w", err)
	}
	if err := vm.RequireAmount(p.Amount); err != nil {
		return err
	}
	_, err := TransferFrom(ctx, p.From, p.To, p.Amount)
	return err
}

func handleApprove(ctx *vm.Context, payload json.RawMessage) error {
	var p core.ApprovePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode approve payload: %w", err)
	}
	if err := vm.RequireAmount(p.Amount); err != nil {
		return err
	}
	_, err := Approve(ctx, p.Spender, p.Amount)
	return err
}

func handleBurn(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BurnPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode burn payload: %w", err)
	}
	if err := vm.RequireAmount(p.Amount); err != nil {
		return err
	}
	return Burn(ctx, p.Amount)
}
