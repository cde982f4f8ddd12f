package wallet_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/wallet"
)

func TestKeystoreRoundTrip(t *testing.T) {
	w, err := wallet.Generate("test-chain")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "seq.key")
	if err := wallet.SaveKey(path, "hunter2", w.PrivKey()); err != nil {
		t.Fatalf("SaveKey: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("keystore mode: got %o want 600", info.Mode().Perm())
	}

	priv, err := wallet.LoadKey(path, "hunter2")
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if wallet.New(priv, "test-chain").Address() != w.Address() {
		t.Error("loaded key has a different address")
	}

	var ks map[string]string
	data, _ := os.ReadFile(path)
	if err := json.Unmarshal(data, &ks); err != nil {
		t.Fatal(err)
	}
	if ks["address"] != w.Address().Hex() {
		t.Errorf("stored address: got %s want %s", ks["address"], w.Address().Hex())
	}
}

func TestKeystoreWrongPassword(t *testing.T) {
	w, _ := wallet.Generate("test-chain")
	path := filepath.Join(t.TempDir(), "seq.key")
	if err := wallet.SaveKey(path, "right", w.PrivKey()); err != nil {
		t.Fatal(err)
	}
	if _, err := wallet.LoadKey(path, "wrong"); !errors.Is(err, wallet.ErrWrongPassword) {
		t.Errorf("expected ErrWrongPassword, got %v", err)
	}
	if _, err := wallet.LoadKey(filepath.Join(t.TempDir(), "missing.key"), "right"); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestBuilders(t *testing.T) {
	w, _ := wallet.Generate("test-chain")
	other, _ := wallet.Generate("test-chain")
	one := uint256.NewInt(1)
	if w.ChainID() != "test-chain" {
		t.Fatalf("chain id: %s", w.ChainID())
	}

	build := []struct {
		typ core.TxType
		fn  func() (*core.Transaction, error)
	}{
		{core.TxMint, func() (*core.Transaction, error) { return w.Mint(0, other.Address(), one) }},
		{core.TxTransfer, func() (*core.Transaction, error) { return w.Transfer(1, other.Address(), one) }},
		{core.TxTransferFrom, func() (*core.Transaction, error) { return w.TransferFrom(2, other.Address(), w.Address(), one) }},
		{core.TxApprove, func() (*core.Transaction, error) { return w.Approve(3, other.Address(), one) }},
		{core.TxBurn, func() (*core.Transaction, error) { return w.Burn(4, one) }},
		{core.TxRegister, func() (*core.Transaction, error) { return w.Register(5, "w") }},
		{core.TxPlay, func() (*core.Transaction, error) { return w.Play(6) }},
		{core.TxSuspend, func() (*core.Transaction, error) { return w.Suspend(7, other.Address()) }},
		{core.TxReinstate, func() (*core.Transaction, error) { return w.Reinstate(8, other.Address()) }},
		{core.TxPlayerTransfer, func() (*core.Transaction, error) { return w.PlayerTransfer(9, other.Address(), one) }},
		{core.TxPlayerBurn, func() (*core.Transaction, error) { return w.PlayerBurn(10, one) }},
		{core.TxDistributeRewards, func() (*core.Transaction, error) { return w.DistributeRewards(11) }},
		{core.TxAddGameProp, func() (*core.Transaction, error) { return w.AddGameProp(12, "hat", one) }},
		{core.TxBuyGameProp, func() (*core.Transaction, error) { return w.BuyGameProp(13, core.PropID{1}) }},
	}
	for i, b := range build {
		tx, err := b.fn()
		if err != nil {
			t.Fatalf("%s: %v", b.typ, err)
		}
		if tx.Type != b.typ || tx.Nonce != uint64(i) || tx.ChainID != "test-chain" {
			t.Errorf("%s: got type %s nonce %d chain %s", b.typ, tx.Type, tx.Nonce, tx.ChainID)
		}
		if err := tx.Verify(); err != nil {
			t.Errorf("%s: verify: %v", b.typ, err)
		}
	}
}

func TestPayloadAmountsAreDecimalStrings(t *testing.T) {
	w, _ := wallet.Generate("test-chain")
	amount, _ := uint256.FromDecimal("123456789012345678901234567890")
	tx, err := w.Burn(0, amount)
	if err != nil {
		t.Fatal(err)
	}
	var p core.BurnPayload
	if err := json.Unmarshal(tx.Payload, &p); err != nil {
		t.Fatal(err)
	}
	if !p.Amount.Eq(amount) {
		t.Errorf("amount: got %s want %s", p.Amount.Dec(), amount.Dec())
	}
}
