package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it.  All prefix constants must be declared
// via this function.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated automatically by registerPrefix() below.
var statePrefixes []string

var (
	prefixMeta      = registerPrefix("meta:")
	prefixSupply    = registerPrefix("supply:")
	prefixBalance   = registerPrefix("bal:")
	prefixAllowance = registerPrefix("allow:")
	prefixNonce     = registerPrefix("nonce:")
	prefixPlayer    = registerPrefix("player:")
	prefixPlayers   = registerPrefix("players:")
	prefixProp      = registerPrefix("prop:")
	prefixOwned     = registerPrefix("owned:")
)

var (
	keyOwner       = prefixMeta + "owner"
	keyTokenInfo   = prefixMeta + "token"
	keyTotalSupply = prefixSupply + "total"
	keyPlayerCount = prefixPlayers + "len"
)

func allowanceKey(owner, spender core.Address) string {
	return prefixAllowance + owner.Hex() + ":" + spender.Hex()
}

func ownedKey(player core.Address, id core.PropID) string {
	return prefixOwned + player.Hex() + ":" + id.Hex()
}

func playerIndexKey(i uint64) string {
	return fmt.Sprintf("%s%020d", prefixPlayers, i)
}

type stateSnapshot struct {
	dirty map[string][]byte
}

// StateDB implements core.State on top of a DB with in-memory write buffer,
// snapshot/rollback, and deterministic state-root computation.
type StateDB struct {
	db        DB
	dirty     map[string][]byte
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:    db,
		dirty: make(map[string][]byte),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	s.dirty[key] = val
}

func (s *StateDB) getJSON(key string, v any) error {
	data, err := s.get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *StateDB) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

// getAmount reads a 32-byte big-endian amount; missing keys read as zero.
func (s *StateDB) getAmount(key string) (*uint256.Int, error) {
	data, err := s.get(key)
	if errors.Is(err, core.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(data), nil
}

func (s *StateDB) setAmount(key string, v *uint256.Int) error {
	if v == nil {
		return fmt.Errorf("nil amount for %s", key)
	}
	b := v.Bytes32()
	s.set(key, b[:])
	return nil
}

func (s *StateDB) getUint64(key string) (uint64, error) {
	data, err := s.get(key)
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(data), 10, 64)
}

func (s *StateDB) setUint64(key string, v uint64) {
	s.set(key, []byte(strconv.FormatUint(v, 10)))
}

// ---- Ledger ----

func (s *StateDB) GetOwner() (core.Address, error) {
	data, err := s.get(keyOwner)
	if errors.Is(err, core.ErrNotFound) {
		return core.ZeroAddress, nil
	}
	if err != nil {
		return core.ZeroAddress, err
	}
	var a core.Address
	copy(a[:], data)
	return a, nil
}

func (s *StateDB) SetOwner(owner core.Address) error {
	s.set(keyOwner, append([]byte(nil), owner[:]...))
	return nil
}

func (s *StateDB) GetTokenInfo() (*core.TokenInfo, error) {
	var info core.TokenInfo
	if err := s.getJSON(keyTokenInfo, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *StateDB) SetTokenInfo(info *core.TokenInfo) error {
	return s.setJSON(keyTokenInfo, info)
}

func (s *StateDB) GetBalance(addr core.Address) (*uint256.Int, error) {
	return s.getAmount(prefixBalance + addr.Hex())
}

func (s *StateDB) SetBalance(addr core.Address, v *uint256.Int) error {
	return s.setAmount(prefixBalance+addr.Hex(), v)
}

func (s *StateDB) GetAllowance(owner, spender core.Address) (*uint256.Int, error) {
	return s.getAmount(allowanceKey(owner, spender))
}

func (s *StateDB) SetAllowance(owner, spender core.Address, v *uint256.Int) error {
	return s.setAmount(allowanceKey(owner, spender), v)
}

func (s *StateDB) GetTotalSupply() (*uint256.Int, error) {
	return s.getAmount(keyTotalSupply)
}

func (s *StateDB) SetTotalSupply(v *uint256.Int) error {
	return s.setAmount(keyTotalSupply, v)
}

func (s *StateDB) GetNonce(addr core.Address) (uint64, error) {
	return s.getUint64(prefixNonce + addr.Hex())
}

func (s *StateDB) SetNonce(addr core.Address, nonce uint64) error {
	s.setUint64(prefixNonce+addr.Hex(), nonce)
	return nil
}

// ---- Players ----

func (s *StateDB) GetPlayer(addr core.Address) (*core.Player, error) {
	var p core.Player
	err := s.getJSON(prefixPlayer+addr.Hex(), &p)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Player{}, nil // zero-value record
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *StateDB) SetPlayer(p *core.Player) error {
	if p.ID.IsZero() {
		return errors.New("player id required")
	}
	return s.setJSON(prefixPlayer+p.ID.Hex(), p)
}

func (s *StateDB) AppendPlayer(addr core.Address) error {
	n, err := s.PlayerCount()
	if err != nil {
		return err
	}
	s.set(playerIndexKey(n), append([]byte(nil), addr[:]...))
	s.setUint64(keyPlayerCount, n+1)
	return nil
}

func (s *StateDB) PlayerCount() (uint64, error) {
	return s.getUint64(keyPlayerCount)
}

func (s *StateDB) PlayerAt(i uint64) (core.Address, error) {
	data, err := s.get(playerIndexKey(i))
	if err != nil {
		return core.ZeroAddress, fmt.Errorf("player index %d: %w", i, err)
	}
	var a core.Address
	copy(a[:], data)
	return a, nil
}

// ---- Store ----

func (s *StateDB) GetProp(id core.PropID) (*core.GameProp, error) {
	var p core.GameProp
	err := s.getJSON(prefixProp+id.Hex(), &p)
	if errors.Is(err, core.ErrNotFound) {
		return &core.GameProp{ID: id, Worth: new(uint256.Int)}, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *StateDB) SetProp(p *core.GameProp) error {
	return s.setJSON(prefixProp+p.ID.Hex(), p)
}

func (s *StateDB) GetOwnedProp(player core.Address, id core.PropID) (*core.GameProp, error) {
	var p core.GameProp
	if err := s.getJSON(ownedKey(player, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *StateDB) SetOwnedProp(player core.Address, p *core.GameProp) error {
	return s.setJSON(ownedKey(player, p.ID), p)
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	snap := stateSnapshot{dirty: make(map[string][]byte, len(s.dirty))}
	for k, v := range s.dirty {
		snap.dirty[k] = append([]byte(nil), v...)
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot
// and drops it together with every later snapshot.
func (s *StateDB) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		dirty[k] = append([]byte(nil), v...)
	}
	s.dirty = dirty
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete world state.
// It merges all persisted state entries (scanned from DB by the known state
// prefixes) with the current write buffer, then hashes the sorted key-value
// pairs using length-prefix encoding.  It does NOT flush or modify state.
func (s *StateDB) ComputeRoot() string {
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			merged[string(it.Key())] = append([]byte(nil), it.Value()...)
		}
		it.Release()
	}
	for k, v := range s.dirty {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(k)))
		buf.Write(lenBuf[:])
		buf.WriteString(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// batch and then clears it. Call ComputeRoot() before sealing the block,
// then call Commit() after the block is safely stored.
func (s *StateDB) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.snapshots = nil
	return nil
}

// Discard drops every uncommitted write, e.g. after a block failed to seal.
func (s *StateDB) Discard() {
	s.dirty = make(map[string][]byte)
	s.snapshots = nil
}
