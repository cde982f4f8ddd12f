// Package journal keeps an append-only SQLite log of every published chain
// event. Writes are queued and applied by a single writer goroutine so event
// publication never waits on disk.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tolelom/degenchain/events"
)

const (
	queueSize   = 65536
	commitEvery = 1000
)

// Record is one journaled event.
type Record struct {
	Seq         int64            `json:"seq"`
	Type        events.EventType `json:"type"`
	TxID        string           `json:"tx_id,omitempty"`
	BlockHeight int64            `json:"block_height"`
	Data        map[string]any   `json:"data"`
	RecordedAt  time.Time        `json:"recorded_at"`
}

// Filter narrows a Query. Zero fields match everything.
type Filter struct {
	Type       events.EventType
	TxID       string
	FromHeight int64
	AfterSeq   int64
	Limit      int // 0 → 100
}

type req struct {
	ev   events.Event
	at   time.Time
	done chan struct{} // sync barrier when non-nil
}

// Journal is the SQLite-backed event log.
type Journal struct {
	db *sql.DB

	ch     chan req
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool
	mu     sync.RWMutex // guards ch against send-after-close

	dropped atomic.Uint64
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("empty journal path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}

	j := &Journal{db: db, ch: make(chan req, queueSize)}
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.loop()
	}()
	return j, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			tx_id TEXT NOT NULL,
			block_height INTEGER NOT NULL,
			data_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_type ON events(type, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_events_tx ON events(tx_id);`,
		`CREATE INDEX IF NOT EXISTS idx_events_height ON events(block_height);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Attach journals every event published on emitter.
func (j *Journal) Attach(emitter *events.Emitter) {
	emitter.SubscribeAll(j.Record)
}

// Record queues ev. Events are dropped, and counted, when the writer falls
// behind.
func (j *Journal) Record(ev events.Event) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed.Load() {
		return
	}
	select {
	case j.ch <- req{ev: ev, at: time.Now().UTC()}:
	default:
		if n := j.dropped.Add(1); n == 1 || n%1000 == 0 {
			log.Printf("[journal] queue full, %d events dropped", n)
		}
	}
}

// Dropped reports how many events were lost to a full queue.
func (j *Journal) Dropped() uint64 { return j.dropped.Load() }

// Sync blocks until every event queued before the call is committed.
func (j *Journal) Sync(ctx context.Context) error {
	done := make(chan struct{})
	j.mu.RLock()
	if j.closed.Load() {
		j.mu.RUnlock()
		return errors.New("journal closed")
	}
	select {
	case j.ch <- req{done: done}:
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}
	j.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes the queue and closes the database.
func (j *Journal) Close() error {
	var err error
	j.once.Do(func() {
		j.mu.Lock()
		j.closed.Store(true)
		close(j.ch)
		j.mu.Unlock()
		j.wg.Wait()
		err = j.db.Close()
	})
	return err
}

func (j *Journal) loop() {
	ctx := context.Background()
	var (
		tx      *sql.Tx
		stmt    *sql.Stmt
		opCount int
	)
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			log.Printf("[journal] commit: %v", err)
		}
		tx, stmt, opCount = nil, nil, 0
	}

	for r := range j.ch {
		if r.done != nil {
			commit()
			close(r.done)
			continue
		}
		if tx == nil {
			var err error
			if tx, err = j.db.BeginTx(ctx, nil); err != nil {
				log.Printf("[journal] begin: %v", err)
				tx = nil
				continue
			}
			stmt, err = tx.Prepare(`INSERT INTO events(type,tx_id,block_height,data_json,recorded_at) VALUES(?,?,?,?,?)`)
			if err != nil {
				log.Printf("[journal] prepare: %v", err)
				_ = tx.Rollback()
				tx = nil
				continue
			}
		}
		data, err := json.Marshal(r.ev.Data)
		if err != nil {
			log.Printf("[journal] marshal %s: %v", r.ev.Type, err)
			continue
		}
		if _, err := stmt.Exec(string(r.ev.Type), r.ev.TxID, r.ev.BlockHeight, string(data),
			r.at.Format(time.RFC3339Nano)); err != nil {
			log.Printf("[journal] insert %s: %v", r.ev.Type, err)
			continue
		}
		opCount++
		if opCount >= commitEvery || len(j.ch) == 0 {
			commit()
		}
	}
	commit()
}

// Query returns journaled events matching f in sequence order.
func (j *Journal) Query(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.TxID != "" {
		where = append(where, "tx_id = ?")
		args = append(args, f.TxID)
	}
	if f.FromHeight > 0 {
		where = append(where, "block_height >= ?")
		args = append(args, f.FromHeight)
	}
	if f.AfterSeq > 0 {
		where = append(where, "seq > ?")
		args = append(args, f.AfterSeq)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	q := "SELECT seq, type, tx_id, block_height, data_json, recorded_at FROM events"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seq LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec      Record
			typ      string
			dataJSON string
			at       string
		)
		if err := rows.Scan(&rec.Seq, &typ, &rec.TxID, &rec.BlockHeight, &dataJSON, &at); err != nil {
			return nil, err
		}
		rec.Type = events.EventType(typ)
		if err := json.Unmarshal([]byte(dataJSON), &rec.Data); err != nil {
			return nil, fmt.Errorf("journal row %d: %w", rec.Seq, err)
		}
		rec.RecordedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the number of journaled events of type typ (all when empty).
func (j *Journal) Count(ctx context.Context, typ events.EventType) (int64, error) {
	var n int64
	var err error
	if typ == "" {
		err = j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n)
	} else {
		err = j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE type = ?", string(typ)).Scan(&n)
	}
	return n, err
}
