package core

import "github.com/holiman/uint256"

// TokenInfo is the immutable metadata of the chain's fungible token.
type TokenInfo struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

// Player is a game participant. A record with a zero ID does not exist.
type Player struct {
	ID           Address `json:"id"`
	Nickname     string  `json:"nickname"`
	RegisteredAt int64   `json:"registered_at"` // unix seconds of the registering block
	Score        uint64  `json:"score"`
	IsRegistered bool    `json:"is_registered"` // false while suspended
}

// Exists reports whether the player was ever registered.
func (p *Player) Exists() bool { return !p.ID.IsZero() }

// GameProp is a purchasable store item. A zero CurrentOwner marks a
// catalog slot that was never created.
type GameProp struct {
	ID           PropID       `json:"id"`
	Name         string       `json:"name"`
	Worth        *uint256.Int `json:"worth"`
	CurrentOwner Address      `json:"current_owner"`
}

// Exists reports whether the prop was ever added to the catalog.
func (p *GameProp) Exists() bool { return !p.CurrentOwner.IsZero() }

// Copy returns a deep copy of p.
func (p *GameProp) Copy() *GameProp {
	cp := *p
	if p.Worth != nil {
		cp.Worth = new(uint256.Int).Set(p.Worth)
	}
	return &cp
}

// State is the full chain state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
// Absent balances, allowances and the supply read as zero.
type State interface {
	// Ledger
	GetOwner() (Address, error)
	SetOwner(owner Address) error
	GetTokenInfo() (*TokenInfo, error)
	SetTokenInfo(info *TokenInfo) error
	GetBalance(addr Address) (*uint256.Int, error)
	SetBalance(addr Address, v *uint256.Int) error
	GetAllowance(owner, spender Address) (*uint256.Int, error)
	SetAllowance(owner, spender Address, v *uint256.Int) error
	GetTotalSupply() (*uint256.Int, error)
	SetTotalSupply(v *uint256.Int) error

	// Replay protection
	GetNonce(addr Address) (uint64, error)
	SetNonce(addr Address, nonce uint64) error

	// Players. GetPlayer returns a zero-value record for unknown addresses.
	GetPlayer(addr Address) (*Player, error)
	SetPlayer(p *Player) error
	AppendPlayer(addr Address) error
	PlayerCount() (uint64, error)
	PlayerAt(i uint64) (Address, error)

	// Store. GetProp returns a record with a zero CurrentOwner for unknown ids;
	// GetOwnedProp returns ErrNotFound.
	GetProp(id PropID) (*GameProp, error)
	SetProp(p *GameProp) error
	GetOwnedProp(player Address, id PropID) (*GameProp, error)
	SetOwnedProp(player Address, p *GameProp) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	Commit() error
	// Discard drops the write buffer without flushing.
	Discard()
}
