package journal_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/events"
	"github.com/tolelom/degenchain/internal/testutil"
	"github.com/tolelom/degenchain/journal"
)

func openJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func syncJournal(t *testing.T, j *journal.Journal) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
}

func TestJournalRecordsChainEvents(t *testing.T) {
	c := testutil.NewChain(t)
	j := openJournal(t)
	j.Attach(c.Emitter)

	alice, bob := c.Wallet(), c.Wallet()
	c.Fund(alice.Address(), 100)
	c.MustSend(alice, func(n uint64) (*core.Transaction, error) {
		return alice.Transfer(n, bob.Address(), uint256.NewInt(7))
	})
	_ = c.Send(bob, func(n uint64) (*core.Transaction, error) {
		return bob.Burn(n, uint256.NewInt(8))
	})
	syncJournal(t, j)

	ctx := context.Background()
	transfers, err := j.Query(ctx, journal.Filter{Type: events.EventTransfer})
	if err != nil {
		t.Fatal(err)
	}
	if len(transfers) != 2 {
		t.Fatalf("transfers: got %d want 2", len(transfers))
	}
	if transfers[1].Data["value"] != "7" || transfers[1].TxID == "" {
		t.Errorf("transfer record: %+v", transfers[1])
	}
	if transfers[0].Seq >= transfers[1].Seq {
		t.Error("records must come back in sequence order")
	}

	failed, err := j.Count(ctx, events.EventTxFailed)
	if err != nil {
		t.Fatal(err)
	}
	if failed != 1 {
		t.Errorf("tx_failed count: got %d want 1", failed)
	}

	byTx, err := j.Query(ctx, journal.Filter{TxID: transfers[1].TxID})
	if err != nil {
		t.Fatal(err)
	}
	// the transfer itself plus TxExecuted
	if len(byTx) != 2 {
		t.Errorf("events for tx: got %d want 2", len(byTx))
	}
}

func TestJournalPaging(t *testing.T) {
	j := openJournal(t)
	for i := 0; i < 5; i++ {
		j.Record(events.Event{Type: events.EventBlockCommit, BlockHeight: int64(i + 1), Data: map[string]any{"txs": i}})
	}
	syncJournal(t, j)

	ctx := context.Background()
	page, err := j.Query(ctx, journal.Filter{Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 {
		t.Fatalf("page: got %d want 2", len(page))
	}
	next, err := j.Query(ctx, journal.Filter{AfterSeq: page[1].Seq})
	if err != nil {
		t.Fatal(err)
	}
	if len(next) != 3 || next[0].BlockHeight != 3 {
		t.Errorf("next page: %+v", next)
	}
	fromFour, _ := j.Query(ctx, journal.Filter{FromHeight: 4})
	if len(fromFour) != 2 {
		t.Errorf("from height 4: got %d want 2", len(fromFour))
	}
}

func TestJournalClosed(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
	j.Record(events.Event{Type: events.EventTxExecuted}) // must not panic
	if err := j.Sync(context.Background()); err == nil {
		t.Error("sync on closed journal should fail")
	}
	if err := j.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
