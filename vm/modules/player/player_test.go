package player_test

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/events"
	"github.com/tolelom/degenchain/internal/testutil"
	"github.com/tolelom/degenchain/vm"
	"github.com/tolelom/degenchain/vm/modules/player"
	"github.com/tolelom/degenchain/wallet"
)

func suspend(c *testutil.Chain, by *wallet.Wallet, target core.Address) error {
	return c.Send(by, func(n uint64) (*core.Transaction, error) { return by.Suspend(n, target) })
}

func reinstate(c *testutil.Chain, by *wallet.Wallet, target core.Address) error {
	return c.Send(by, func(n uint64) (*core.Transaction, error) { return by.Reinstate(n, target) })
}

func TestRegister(t *testing.T) {
	c := testutil.NewChain(t)
	alice := c.Wallet()
	c.Register(alice, "alice")

	p, err := player.Get(c.State, alice.Address())
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != alice.Address() || p.Nickname != "alice" || !p.IsRegistered || p.Score != 0 {
		t.Errorf("unexpected record: %+v", p)
	}
	if p.RegisteredAt != c.Block.Time().Unix() {
		t.Errorf("registered_at: got %d want %d", p.RegisteredAt, c.Block.Time().Unix())
	}
	evs := c.Events(events.EventPlayerRegistered)
	if len(evs) != 1 || evs[0].Data["player"] != alice.Address().Hex() {
		t.Errorf("PlayerRegistered events: %+v", evs)
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	c := testutil.NewChain(t)
	alice := c.Wallet()
	c.Register(alice, "alice")

	err := c.Send(alice, func(n uint64) (*core.Transaction, error) { return alice.Register(n, "again") })
	if !errors.Is(err, vm.ErrAlreadyRegistered) {
		t.Fatalf("got %v want ErrAlreadyRegistered", err)
	}
	all, err := player.All(c.State)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("AllPlayers grew to %d entries", len(all))
	}
}

func TestSuspendedCannotReregister(t *testing.T) {
	c := testutil.NewChain(t)
	alice := c.Wallet()
	c.Register(alice, "alice")
	if err := suspend(c, c.Owner, alice.Address()); err != nil {
		t.Fatal(err)
	}
	err := c.Send(alice, func(n uint64) (*core.Transaction, error) { return alice.Register(n, "alice") })
	if !errors.Is(err, vm.ErrAlreadyRegistered) {
		t.Fatalf("got %v want ErrAlreadyRegistered", err)
	}
}

func TestOwnerCannotRegister(t *testing.T) {
	c := testutil.NewChain(t)
	err := c.Send(c.Owner, func(n uint64) (*core.Transaction, error) { return c.Owner.Register(n, "boss") })
	if !errors.Is(err, vm.ErrOwnerCannotRegister) {
		t.Fatalf("got %v want ErrOwnerCannotRegister", err)
	}
}

func TestPlay(t *testing.T) {
	c := testutil.NewChain(t)
	alice := c.Wallet()

	err := c.Send(alice, func(n uint64) (*core.Transaction, error) { return alice.Play(n) })
	if !errors.Is(err, vm.ErrNotFound) {
		t.Fatalf("unregistered play: got %v want ErrNotFound", err)
	}

	c.Register(alice, "alice")
	for i := 0; i < 3; i++ {
		c.MustSend(alice, func(n uint64) (*core.Transaction, error) { return alice.Play(n) })
	}
	// suspension does not stop scoring
	if err := suspend(c, c.Owner, alice.Address()); err != nil {
		t.Fatal(err)
	}
	c.MustSend(alice, func(n uint64) (*core.Transaction, error) { return alice.Play(n) })

	p, _ := player.Get(c.State, alice.Address())
	if p.Score != 4 {
		t.Errorf("score: got %d want 4", p.Score)
	}
}

func TestSuspendReinstate(t *testing.T) {
	c := testutil.NewChain(t)
	alice, stranger := c.Wallet(), c.Wallet()
	c.Register(alice, "alice")

	if err := suspend(c, c.Owner, stranger.Address()); !errors.Is(err, vm.ErrNotFound) {
		t.Errorf("suspend unknown: got %v want ErrNotFound", err)
	}
	if err := reinstate(c, c.Owner, alice.Address()); !errors.Is(err, vm.ErrNotSuspended) {
		t.Errorf("reinstate active: got %v want ErrNotSuspended", err)
	}
	if err := suspend(c, c.Owner, alice.Address()); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if err := suspend(c, c.Owner, alice.Address()); !errors.Is(err, vm.ErrNotFound) {
		t.Errorf("suspend twice: got %v want ErrNotFound", err)
	}
	if p, _ := player.Get(c.State, alice.Address()); p.IsRegistered {
		t.Error("player still registered after suspend")
	}
	if err := reinstate(c, c.Owner, stranger.Address()); !errors.Is(err, vm.ErrNotFound) {
		t.Errorf("reinstate unknown: got %v want ErrNotFound", err)
	}
	if err := reinstate(c, c.Owner, alice.Address()); err != nil {
		t.Fatalf("reinstate: %v", err)
	}
	if p, _ := player.Get(c.State, alice.Address()); !p.IsRegistered {
		t.Error("player not registered after reinstate")
	}
	if len(c.Events(events.EventPlayerSuspended)) != 1 || len(c.Events(events.EventPlayerReinstated)) != 1 {
		t.Error("expected one suspend and one reinstate event")
	}
}

func TestSuspendReinstateOwnerOnly(t *testing.T) {
	c := testutil.NewChain(t)
	alice, bob := c.Wallet(), c.Wallet()
	c.Register(alice, "alice")
	c.Register(bob, "bob")

	if err := suspend(c, bob, alice.Address()); !errors.Is(err, vm.ErrUnauthorized) {
		t.Errorf("suspend by player: got %v want ErrUnauthorized", err)
	}
	if err := suspend(c, c.Owner, alice.Address()); err != nil {
		t.Fatal(err)
	}
	if err := reinstate(c, bob, alice.Address()); !errors.Is(err, vm.ErrUnauthorized) {
		t.Errorf("reinstate by player: got %v want ErrUnauthorized", err)
	}
}

func TestPlayerTransferRequiresRegistration(t *testing.T) {
	c := testutil.NewChain(t)
	alice, bob := c.Wallet(), c.Wallet()
	c.Fund(alice.Address(), 100)

	send := func() error {
		return c.Send(alice, func(n uint64) (*core.Transaction, error) {
			return alice.PlayerTransfer(n, bob.Address(), uint256.NewInt(40))
		})
	}
	if err := send(); !errors.Is(err, vm.ErrNotRegistered) {
		t.Fatalf("unregistered: got %v want ErrNotRegistered", err)
	}
	c.Register(alice, "alice")
	if err := send(); err != nil {
		t.Fatalf("player transfer: %v", err)
	}
	if got := c.Balance(bob.Address()).Uint64(); got != 40 {
		t.Errorf("bob: got %d want 40", got)
	}
	if len(c.Events(events.EventPlayerP2PTransfer)) != 1 {
		t.Error("expected one PlayerP2PTransfer event")
	}
	if err := suspend(c, c.Owner, alice.Address()); err != nil {
		t.Fatal(err)
	}
	if err := send(); !errors.Is(err, vm.ErrNotRegistered) {
		t.Fatalf("suspended: got %v want ErrNotRegistered", err)
	}
}

func TestPlayerBurn(t *testing.T) {
	c := testutil.NewChain(t)
	alice := c.Wallet()
	c.Register(alice, "alice")
	c.Fund(alice.Address(), 100)

	c.MustSend(alice, func(n uint64) (*core.Transaction, error) {
		return alice.PlayerBurn(n, uint256.NewInt(25))
	})
	bal, err := player.CheckBalance(c.State, alice.Address())
	if err != nil {
		t.Fatal(err)
	}
	if bal.Uint64() != 75 || c.Supply().Uint64() != 75 {
		t.Errorf("balance %s supply %s, want 75/75", bal.Dec(), c.Supply().Dec())
	}
	evs := c.Events(events.EventTokenBurnt)
	if len(evs) != 1 || evs[0].Data["value"] != "25" {
		t.Errorf("TokenBurnt events: %+v", evs)
	}
}

func TestAllKeepsRegistrationOrder(t *testing.T) {
	c := testutil.NewChain(t)
	ws := []*wallet.Wallet{c.Wallet(), c.Wallet(), c.Wallet()}
	for i, w := range ws {
		c.Register(w, string(rune('a'+i)))
	}
	if err := suspend(c, c.Owner, ws[1].Address()); err != nil {
		t.Fatal(err)
	}
	all, err := player.All(c.State)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d players want 3", len(all))
	}
	for i, p := range all {
		if p.ID != ws[i].Address() {
			t.Errorf("index %d: got %s want %s", i, p.ID, ws[i].Address())
		}
	}
}
