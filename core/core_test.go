package core_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/crypto"
	"github.com/tolelom/degenchain/internal/testutil"
	"github.com/tolelom/degenchain/storage"
	"github.com/tolelom/degenchain/wallet"
)

func TestTransactionSignVerify(t *testing.T) {
	w, err := wallet.Generate("test-chain")
	if err != nil {
		t.Fatal(err)
	}
	to, _ := wallet.Generate("test-chain")

	tx, err := w.Transfer(0, to.Address(), uint256.NewInt(100))
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if tx.ID == "" || tx.ID != tx.Hash() {
		t.Error("tx ID should be the signing hash")
	}
	if err := tx.Verify(); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
	sender, err := tx.Sender()
	if err != nil || sender != w.Address() {
		t.Errorf("sender: got %s want %s (%v)", sender, w.Address(), err)
	}

	// Tampering with the payload must break the signature.
	tx.Payload = json.RawMessage(`{"to":"` + to.Address().Hex() + `","amount":"999"}`)
	if err := tx.Verify(); err == nil {
		t.Error("tampered tx should fail verification")
	}
}

func TestAddressText(t *testing.T) {
	w, _ := wallet.Generate("test-chain")
	a := w.Address()

	for _, s := range []string{a.Hex(), a.String(), strings.ToUpper(a.Hex())} {
		got, err := core.HexToAddress(s)
		if err != nil || got != a {
			t.Errorf("HexToAddress(%q) = %s, %v", s, got, err)
		}
	}
	if _, err := core.HexToAddress("abcd"); err == nil {
		t.Error("short address should be rejected")
	}

	data, _ := json.Marshal(map[string]core.Address{"a": a})
	var back map[string]core.Address
	if err := json.Unmarshal(data, &back); err != nil || back["a"] != a {
		t.Errorf("json round trip: %v", err)
	}
	if core.ContractAddress("a") == core.ContractAddress("b") {
		t.Error("contract addresses must differ per chain")
	}
}

func TestBlockHash(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	block := core.NewBlock(1, core.GenesisHash, pub.Hex(), nil)
	block.Seal(priv)

	if block.ComputeHash() != block.Hash {
		t.Error("ComputeHash() does not match stored hash")
	}
	if err := block.Verify(pub); err != nil {
		t.Errorf("Verify: %v", err)
	}
	if block.Time().UnixNano() != block.Header.Timestamp {
		t.Error("Time() must reflect the header timestamp")
	}
}

func TestMempool(t *testing.T) {
	mp := core.NewMempool("test-chain")
	w, _ := wallet.Generate("test-chain")

	first, _ := w.Burn(0, uint256.NewInt(1))
	second, _ := w.Burn(1, uint256.NewInt(1))
	for _, tx := range []*core.Transaction{first, second} {
		if err := mp.Add(tx); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := mp.Add(first); err == nil {
		t.Error("adding duplicate tx should fail")
	}
	if pending := mp.Pending(10); len(pending) != 2 || pending[0].ID != first.ID {
		t.Errorf("pending should keep insertion order")
	}
	if pending := mp.Pending(1); len(pending) != 1 {
		t.Errorf("pending(1): got %d", len(pending))
	}

	mp.Remove([]string{first.ID})
	if mp.Size() != 1 {
		t.Errorf("size after remove: got %d want 1", mp.Size())
	}
	if _, ok := mp.Get(second.ID); !ok {
		t.Error("second tx should remain")
	}
}

func TestMempoolOrdersByNonce(t *testing.T) {
	mp := core.NewMempool("test-chain")
	alice, _ := wallet.Generate("test-chain")
	bob, _ := wallet.Generate("test-chain")

	a1, _ := alice.Burn(1, uint256.NewInt(1))
	b0, _ := bob.Burn(0, uint256.NewInt(1))
	a0, _ := alice.Burn(0, uint256.NewInt(1))
	for _, tx := range []*core.Transaction{a1, b0, a0} {
		if err := mp.Add(tx); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	want := []string{a0.ID, a1.ID, b0.ID}
	got := mp.Pending(10)
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("pending[%d]: got nonce %d from %s", i, got[i].Nonce, got[i].From[:8])
		}
	}

	again, _ := alice.Transfer(0, bob.Address(), uint256.NewInt(5))
	if err := mp.Add(again); !errors.Is(err, core.ErrNoncePending) {
		t.Errorf("expected ErrNoncePending, got %v", err)
	}
	mp.Remove([]string{a0.ID})
	if err := mp.Add(again); err != nil {
		t.Errorf("nonce should be free after removal: %v", err)
	}
}

func TestMempoolRejects(t *testing.T) {
	mp := core.NewMempool("test-chain")
	w, _ := wallet.Generate("test-chain")

	foreign, _ := wallet.Generate("other-chain")
	tx, _ := foreign.Burn(0, uint256.NewInt(1))
	if err := mp.Add(tx); err == nil {
		t.Error("foreign chain tx should be rejected")
	}

	stale, _ := core.NewTransaction("test-chain", core.TxBurn, w.PubKey(), 0, core.BurnPayload{Amount: uint256.NewInt(1)})
	stale.Timestamp = time.Now().Add(-2 * time.Hour).UnixNano()
	stale.Sign(w.PrivKey())
	if err := mp.Add(stale); err == nil {
		t.Error("expired tx should be rejected")
	}

	unsigned, _ := core.NewTransaction("test-chain", core.TxBurn, w.PubKey(), 0, core.BurnPayload{Amount: uint256.NewInt(1)})
	if err := mp.Add(unsigned); err == nil {
		t.Error("unsigned tx should be rejected")
	}
	if mp.Size() != 0 {
		t.Errorf("size: got %d want 0", mp.Size())
	}
}

func TestBlockchainAddBlock(t *testing.T) {
	priv, pub, _ := crypto.GenerateKeyPair()
	other, _, _ := crypto.GenerateKeyPair()
	db := testutil.NewMemDB(t)
	bc := core.NewBlockchain(storage.NewBlockStore(db), pub)

	bad := core.NewBlock(1, core.GenesisHash, pub.Hex(), nil)
	bad.Seal(priv)
	if err := bc.AddBlock(bad); err == nil {
		t.Error("first block must be height 0")
	}

	genesis := core.NewBlock(0, core.GenesisHash, pub.Hex(), nil)
	genesis.Seal(priv)
	if err := bc.AddBlock(genesis); err != nil {
		t.Fatalf("genesis: %v", err)
	}

	forged := core.NewBlock(1, genesis.Hash, other.Public().Hex(), nil)
	forged.Seal(other)
	if err := bc.AddBlock(forged); err == nil {
		t.Error("block sealed by another key should be rejected")
	}

	unlinked := core.NewBlock(1, core.GenesisHash, pub.Hex(), nil)
	unlinked.Seal(priv)
	if err := bc.AddBlock(unlinked); err == nil {
		t.Error("block with wrong prev hash should be rejected")
	}

	next := core.NewBlock(1, genesis.Hash, pub.Hex(), nil)
	next.Seal(priv)
	if err := bc.AddBlock(next); err != nil {
		t.Fatalf("AddBlock: %v", err)
	}

	// A reloaded chain resumes from the persisted tip.
	reloaded := core.NewBlockchain(storage.NewBlockStore(db), pub)
	if err := reloaded.Init(); err != nil {
		t.Fatal(err)
	}
	if reloaded.Height() != 1 || reloaded.Tip().Hash != next.Hash {
		t.Errorf("reloaded tip: height %d", reloaded.Height())
	}
	if h, prev := reloaded.Next(); h != 2 || prev != next.Hash {
		t.Errorf("Next: got %d %s", h, prev)
	}
}
