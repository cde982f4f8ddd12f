package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/crypto"
)

// TxType identifies the entry point a transaction invokes.
type TxType string

const (
	// Ledger surface
	TxMint         TxType = "mint"
	TxTransfer     TxType = "transfer"
	TxTransferFrom TxType = "transfer_from"
	TxApprove      TxType = "approve"
	TxBurn         TxType = "burn"

	// Player registry
	TxRegister       TxType = "register"
	TxPlay           TxType = "play"
	TxSuspend        TxType = "suspend"
	TxReinstate      TxType = "reinstate"
	TxPlayerTransfer TxType = "player_transfer"
	TxPlayerBurn     TxType = "player_burn"

	// Rewards and store
	TxDistributeRewards TxType = "distribute_rewards"
	TxAddGameProp       TxType = "add_game_prop"
	TxBuyGameProp       TxType = "buy_game_prop"
)

// Transaction is the atomic unit of work on the chain.
// From holds the sender's full hex-encoded ed25519 public key (64 chars);
// the caller address seen by the modules is derived from it.
// Signature covers all fields except ID and Signature.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the transaction (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	body := signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = priv.Sign([]byte(hash))
	tx.ID = hash
}

// Verify checks the signature and that From is a valid public key.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	pub, err := crypto.PubKeyFromHex(tx.From)
	if err != nil {
		return fmt.Errorf("invalid from (must be ed25519 pubkey hex): %w", err)
	}
	return pub.Verify([]byte(tx.Hash()), tx.Signature)
}

// Sender returns the caller address derived from From.
func (tx *Transaction) Sender() (Address, error) {
	return AddressFromPubKey(tx.From)
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(chainID string, typ TxType, from string, nonce uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// ---- Payload types ----
// Amounts travel as quoted decimal strings.

// MintPayload creates tokens for To (owner only).
type MintPayload struct {
	To     Address      `json:"to"`
	Amount *uint256.Int `json:"amount"`
}

// TransferPayload moves tokens from the sender to To. It is shared by the
// ledger transfer and the registered-player transfer.
type TransferPayload struct {
	To     Address      `json:"to"`
	Amount *uint256.Int `json:"amount"`
}

// TransferFromPayload spends an allowance granted by From to the sender.
type TransferFromPayload struct {
	From   Address      `json:"from"`
	To     Address      `json:"to"`
	Amount *uint256.Int `json:"amount"`
}

// ApprovePayload sets the sender's allowance for Spender.
type ApprovePayload struct {
	Spender Address      `json:"spender"`
	Amount  *uint256.Int `json:"amount"`
}

// BurnPayload destroys tokens held by the sender.
type BurnPayload struct {
	Amount *uint256.Int `json:"amount"`
}

// RegisterPayload registers the sender as a player.
type RegisterPayload struct {
	Username string `json:"username"`
}

// PlayerPayload targets a player record (suspend / reinstate).
type PlayerPayload struct {
	Player Address `json:"player"`
}

// AddGamePropPayload lists a new store item (owner only).
type AddGamePropPayload struct {
	Name  string       `json:"name"`
	Worth *uint256.Int `json:"worth"`
}

// BuyGamePropPayload purchases a store item.
type BuyGamePropPayload struct {
	PropID PropID `json:"prop_id"`
}
