package token_test

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/events"
	"github.com/tolelom/degenchain/internal/testutil"
	"github.com/tolelom/degenchain/vm"
	"github.com/tolelom/degenchain/vm/modules/token"
	"github.com/tolelom/degenchain/wallet"
)

func sumBalances(c *testutil.Chain, addrs ...core.Address) *uint256.Int {
	sum := new(uint256.Int)
	for _, a := range addrs {
		sum.Add(sum, c.Balance(a))
	}
	return sum
}

func TestMintOwnerOnly(t *testing.T) {
	c := testutil.NewChain(t)
	alice := c.Wallet()

	c.Fund(alice.Address(), 500)
	if got := c.Balance(alice.Address()); got.Uint64() != 500 {
		t.Errorf("balance: got %s want 500", got.Dec())
	}
	if got := c.Supply(); got.Uint64() != 500 {
		t.Errorf("supply: got %s want 500", got.Dec())
	}

	err := c.Send(alice, func(n uint64) (*core.Transaction, error) {
		return alice.Mint(n, alice.Address(), uint256.NewInt(1))
	})
	if !errors.Is(err, vm.ErrUnauthorized) {
		t.Fatalf("non-owner mint: got %v want ErrUnauthorized", err)
	}
	if got := c.Supply(); got.Uint64() != 500 {
		t.Errorf("supply changed after rejected mint: %s", got.Dec())
	}
}

func TestMintToZeroAddress(t *testing.T) {
	c := testutil.NewChain(t)
	err := c.Send(c.Owner, func(n uint64) (*core.Transaction, error) {
		return c.Owner.Mint(n, core.ZeroAddress, uint256.NewInt(1))
	})
	if !errors.Is(err, vm.ErrZeroAddress) {
		t.Fatalf("got %v want ErrZeroAddress", err)
	}
}

func TestMintOverflow(t *testing.T) {
	c := testutil.NewChain(t)
	alice := c.Wallet()
	maxAmount := new(uint256.Int).SetAllOne()
	c.MustSend(c.Owner, func(n uint64) (*core.Transaction, error) {
		return c.Owner.Mint(n, alice.Address(), maxAmount)
	})
	err := c.Send(c.Owner, func(n uint64) (*core.Transaction, error) {
		return c.Owner.Mint(n, alice.Address(), uint256.NewInt(1))
	})
	if !errors.Is(err, vm.ErrOverflow) {
		t.Fatalf("got %v want ErrOverflow", err)
	}
}

func TestTransferConservesSupply(t *testing.T) {
	c := testutil.NewChain(t)
	alice, bob := c.Wallet(), c.Wallet()
	c.Fund(alice.Address(), 1000)

	c.MustSend(alice, func(n uint64) (*core.Transaction, error) {
		return alice.Transfer(n, bob.Address(), uint256.NewInt(300))
	})
	if got := c.Balance(alice.Address()).Uint64(); got != 700 {
		t.Errorf("alice: got %d want 700", got)
	}
	if got := c.Balance(bob.Address()).Uint64(); got != 300 {
		t.Errorf("bob: got %d want 300", got)
	}
	if sum := sumBalances(c, alice.Address(), bob.Address()); !sum.Eq(c.Supply()) {
		t.Errorf("sum of balances %s != supply %s", sum.Dec(), c.Supply().Dec())
	}

	transfers := c.Events(events.EventTransfer)
	last := transfers[len(transfers)-1]
	if last.Data["from"] != alice.Address().Hex() || last.Data["value"] != "300" {
		t.Errorf("unexpected transfer event: %+v", last.Data)
	}
	if last.TxID == "" || last.BlockHeight != 1 {
		t.Errorf("event not stamped with tx/block: %+v", last)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	c := testutil.NewChain(t)
	alice, bob := c.Wallet(), c.Wallet()
	c.Fund(alice.Address(), 10)

	err := c.Send(alice, func(n uint64) (*core.Transaction, error) {
		return alice.Transfer(n, bob.Address(), uint256.NewInt(11))
	})
	var ibe *vm.InsufficientBalanceError
	if !errors.As(err, &ibe) {
		t.Fatalf("got %v want InsufficientBalanceError", err)
	}
	if ibe.Have.Uint64() != 10 || ibe.Want.Uint64() != 11 || ibe.From != alice.Address() {
		t.Errorf("payload: %+v", ibe)
	}
	if got := c.Balance(alice.Address()).Uint64(); got != 10 {
		t.Errorf("balance changed: %d", got)
	}
	if c.Nonce(alice) != 0 {
		t.Error("nonce must roll back with the failed tx")
	}
}

func TestTransferToZeroAddress(t *testing.T) {
	c := testutil.NewChain(t)
	alice := c.Wallet()
	c.Fund(alice.Address(), 10)
	err := c.Send(alice, func(n uint64) (*core.Transaction, error) {
		return alice.Transfer(n, core.ZeroAddress, uint256.NewInt(1))
	})
	if !errors.Is(err, vm.ErrZeroAddress) {
		t.Fatalf("got %v want ErrZeroAddress", err)
	}
}

func TestTransferToSelf(t *testing.T) {
	c := testutil.NewChain(t)
	alice := c.Wallet()
	c.Fund(alice.Address(), 10)
	c.MustSend(alice, func(n uint64) (*core.Transaction, error) {
		return alice.Transfer(n, alice.Address(), uint256.NewInt(10))
	})
	if got := c.Balance(alice.Address()).Uint64(); got != 10 {
		t.Errorf("self transfer changed balance: %d", got)
	}
}

func TestApproveTransferFromRoundTrip(t *testing.T) {
	c := testutil.NewChain(t)
	owner, spender, recipient := c.Wallet(), c.Wallet(), c.Wallet()
	c.Fund(owner.Address(), 250)

	c.MustSend(owner, func(n uint64) (*core.Transaction, error) {
		return owner.Approve(n, spender.Address(), uint256.NewInt(100))
	})
	c.MustSend(spender, func(n uint64) (*core.Transaction, error) {
		return spender.TransferFrom(n, owner.Address(), recipient.Address(), uint256.NewInt(100))
	})

	if got := c.Balance(owner.Address()).Uint64(); got != 150 {
		t.Errorf("owner: got %d want 150", got)
	}
	if got := c.Balance(recipient.Address()).Uint64(); got != 100 {
		t.Errorf("recipient: got %d want 100", got)
	}
	left, err := token.Allowance(c.State, owner.Address(), spender.Address())
	if err != nil {
		t.Fatal(err)
	}
	if !left.IsZero() {
		t.Errorf("allowance: got %s want 0", left.Dec())
	}
	if len(c.Events(events.EventApproval)) != 1 {
		t.Error("expected one Approval event")
	}
}

func TestApproveOverwrites(t *testing.T) {
	c := testutil.NewChain(t)
	owner, spender := c.Wallet(), c.Wallet()
	for _, v := range []uint64{100, 40} {
		c.MustSend(owner, func(n uint64) (*core.Transaction, error) {
			return owner.Approve(n, spender.Address(), uint256.NewInt(v))
		})
	}
	got, _ := token.Allowance(c.State, owner.Address(), spender.Address())
	if got.Uint64() != 40 {
		t.Errorf("allowance: got %s want 40", got.Dec())
	}
	// direction matters
	rev, _ := token.Allowance(c.State, spender.Address(), owner.Address())
	if !rev.IsZero() {
		t.Errorf("reverse allowance: got %s want 0", rev.Dec())
	}
}

func TestApproveZeroSpender(t *testing.T) {
	c := testutil.NewChain(t)
	owner := c.Wallet()
	err := c.Send(owner, func(n uint64) (*core.Transaction, error) {
		return owner.Approve(n, core.ZeroAddress, uint256.NewInt(1))
	})
	if !errors.Is(err, vm.ErrZeroAddress) {
		t.Fatalf("got %v want ErrZeroAddress", err)
	}
}

func TestTransferFromZeroOwner(t *testing.T) {
	c := testutil.NewChain(t)
	alice := c.Wallet()
	c.ResetEvents()

	err := c.Send(alice, func(n uint64) (*core.Transaction, error) {
		return alice.TransferFrom(n, core.ZeroAddress, alice.Address(), uint256.NewInt(0))
	})
	if !errors.Is(err, vm.ErrZeroAddress) {
		t.Fatalf("got %v want ErrZeroAddress", err)
	}
	if evs := c.Events(events.EventTransfer); len(evs) != 0 {
		t.Errorf("transfer events from the zero address: %+v", evs)
	}
}

func TestTransferFromInsufficientAllowance(t *testing.T) {
	c := testutil.NewChain(t)
	owner, spender := c.Wallet(), c.Wallet()
	c.Fund(owner.Address(), 100)
	c.MustSend(owner, func(n uint64) (*core.Transaction, error) {
		return owner.Approve(n, spender.Address(), uint256.NewInt(10))
	})

	err := c.Send(spender, func(n uint64) (*core.Transaction, error) {
		return spender.TransferFrom(n, owner.Address(), spender.Address(), uint256.NewInt(11))
	})
	var iae *vm.InsufficientAllowanceError
	if !errors.As(err, &iae) {
		t.Fatalf("got %v want InsufficientAllowanceError", err)
	}
	if iae.Have.Uint64() != 10 || iae.Want.Uint64() != 11 {
		t.Errorf("payload: have %s want %s", iae.Have.Dec(), iae.Want.Dec())
	}
}

func TestTransferFromKeepsAllowanceOnBalanceFailure(t *testing.T) {
	c := testutil.NewChain(t)
	owner, spender := c.Wallet(), c.Wallet()
	c.Fund(owner.Address(), 5)
	c.MustSend(owner, func(n uint64) (*core.Transaction, error) {
		return owner.Approve(n, spender.Address(), uint256.NewInt(50))
	})

	err := c.Send(spender, func(n uint64) (*core.Transaction, error) {
		return spender.TransferFrom(n, owner.Address(), spender.Address(), uint256.NewInt(20))
	})
	var ibe *vm.InsufficientBalanceError
	if !errors.As(err, &ibe) {
		t.Fatalf("got %v want InsufficientBalanceError", err)
	}
	left, _ := token.Allowance(c.State, owner.Address(), spender.Address())
	if left.Uint64() != 50 {
		t.Errorf("allowance consumed by failed transfer_from: %s", left.Dec())
	}
}

func TestBurn(t *testing.T) {
	c := testutil.NewChain(t)
	alice := c.Wallet()
	c.Fund(alice.Address(), 100)

	c.MustSend(alice, func(n uint64) (*core.Transaction, error) {
		return alice.Burn(n, uint256.NewInt(30))
	})
	if got := c.Balance(alice.Address()).Uint64(); got != 70 {
		t.Errorf("balance: got %d want 70", got)
	}
	if got := c.Supply().Uint64(); got != 70 {
		t.Errorf("supply: got %d want 70", got)
	}

	err := c.Send(alice, func(n uint64) (*core.Transaction, error) {
		return alice.Burn(n, uint256.NewInt(71))
	})
	var ibe *vm.InsufficientBalanceError
	if !errors.As(err, &ibe) {
		t.Fatalf("got %v want InsufficientBalanceError", err)
	}
}

func TestMissingAmountRejected(t *testing.T) {
	c := testutil.NewChain(t)
	alice := c.Wallet()
	err := c.Send(alice, func(n uint64) (*core.Transaction, error) {
		return alice.NewTx(core.TxBurn, n, map[string]any{})
	})
	if err == nil || vm.IsContractFailure(err) {
		t.Fatalf("got %v want host error", err)
	}
}

func TestReadsDoNotMutate(t *testing.T) {
	c := testutil.NewChain(t)
	alice := c.Wallet()
	c.Fund(alice.Address(), 42)
	before := c.State.ComputeRoot()

	if _, err := token.BalanceOf(c.State, alice.Address()); err != nil {
		t.Fatal(err)
	}
	if _, err := token.TotalSupply(c.State); err != nil {
		t.Fatal(err)
	}
	if _, err := token.Allowance(c.State, alice.Address(), c.Owner.Address()); err != nil {
		t.Fatal(err)
	}
	info, err := token.Info(c.State)
	if err != nil {
		t.Fatal(err)
	}
	if info.Symbol != "DGN" || info.Decimals != 18 {
		t.Errorf("token info: %+v", info)
	}
	if after := c.State.ComputeRoot(); after != before {
		t.Error("reads changed the state root")
	}
}

func TestConservationAcrossOperations(t *testing.T) {
	c := testutil.NewChain(t)
	ws := []*wallet.Wallet{c.Wallet(), c.Wallet(), c.Wallet()}
	addrs := []core.Address{ws[0].Address(), ws[1].Address(), ws[2].Address()}

	c.Fund(addrs[0], 1000)
	c.Fund(addrs[1], 10)
	c.MustSend(ws[0], func(n uint64) (*core.Transaction, error) {
		return ws[0].Transfer(n, addrs[2], uint256.NewInt(400))
	})
	c.MustSend(ws[2], func(n uint64) (*core.Transaction, error) {
		return ws[2].Burn(n, uint256.NewInt(150))
	})
	_ = c.Send(ws[1], func(n uint64) (*core.Transaction, error) {
		return ws[1].Transfer(n, addrs[0], uint256.NewInt(11))
	})

	if sum := sumBalances(c, addrs...); !sum.Eq(c.Supply()) {
		t.Errorf("sum of balances %s != supply %s", sum.Dec(), c.Supply().Dec())
	}
	if got := c.Supply().Uint64(); got != 860 {
		t.Errorf("supply: got %d want 860", got)
	}
}
