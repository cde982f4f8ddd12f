// Package wallet holds signing keys and builds transactions for every
// contract entry point.
package wallet

import (
	"github.com/holiman/uint256"
	"github.com/tolelom/degenchain/core"
	"github.com/tolelom/degenchain/crypto"
)

// Wallet holds a key pair bound to one chain.
type Wallet struct {
	priv    crypto.PrivateKey
	pub     crypto.PublicKey
	chainID string
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey, chainID string) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public(), chainID: chainID}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate(chainID string) (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv, chainID), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey { return w.priv }

// PubKey returns the hex-encoded ed25519 public key carried in tx.From.
func (w *Wallet) PubKey() string { return w.pub.Hex() }

// Address returns the account address derived from the public key.
func (w *Wallet) Address() core.Address { return core.Address(w.pub.AddressBytes()) }

// ChainID returns the chain the wallet signs for.
func (w *Wallet) ChainID() string { return w.chainID }

// NewTx creates a signed transaction. nonce must match the account's
// current nonce.
func (w *Wallet) NewTx(typ core.TxType, nonce uint64, payload any) (*core.Transaction, error) {
	tx, err := core.NewTransaction(w.chainID, typ, w.pub.Hex(), nonce, payload)
	if err != nil {
		return nil, err
	}
	tx.Sign(w.priv)
	return tx, nil
}

func (w *Wallet) Mint(nonce uint64, to core.Address, amount *uint256.Int) (*core.Transaction, error) {
	return w.NewTx(core.TxMint, nonce, core.MintPayload{To: to, Amount: amount})
}

func (w *Wallet) Transfer(nonce uint64, to core.Address, amount *uint256.Int) (*core.Transaction, error) {
	return w.NewTx(core.TxTransfer, nonce, core.TransferPayload{To: to, Amount: amount})
}

func (w *Wallet) TransferFrom(nonce uint64, from, to core.Address, amount *uint256.Int) (*core.Transaction, error) {
	return w.NewTx(core.TxTransferFrom, nonce, core.TransferFromPayload{From: from, To: to, Amount: amount})
}

func (w *Wallet) Approve(nonce uint64, spender core.Address, amount *uint256.Int) (*core.Transaction, error) {
	return w.NewTx(core.TxApprove, nonce, core.ApprovePayload{Spender: spender, Amount: amount})
}

func (w *Wallet) Burn(nonce uint64, amount *uint256.Int) (*core.Transaction, error) {
	return w.NewTx(core.TxBurn, nonce, core.BurnPayload{Amount: amount})
}

func (w *Wallet) Register(nonce uint64, username string) (*core.Transaction, error) {
	return w.NewTx(core.TxRegister, nonce, core.RegisterPayload{Username: username})
}

func (w *Wallet) Play(nonce uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxPlay, nonce, struct{}{})
}

func (w *Wallet) Suspend(nonce uint64, player core.Address) (*core.Transaction, error) {
	return w.NewTx(core.TxSuspend, nonce, core.PlayerPayload{Player: player})
}

func (w *Wallet) Reinstate(nonce uint64, player core.Address) (*core.Transaction, error) {
	return w.NewTx(core.TxReinstate, nonce, core.PlayerPayload{Player: player})
}

func (w *Wallet) PlayerTransfer(nonce uint64, to core.Address, amount *uint256.Int) (*core.Transaction, error) {
	return w.NewTx(core.TxPlayerTransfer, nonce, core.TransferPayload{To: to, Amount: amount})
}

func (w *Wallet) PlayerBurn(nonce uint64, amount *uint256.Int) (*core.Transaction, error) {
	return w.NewTx(core.TxPlayerBurn, nonce, core.BurnPayload{Amount: amount})
}

func (w *Wallet) DistributeRewards(nonce uint64) (*core.Transaction, error) {
	return w.NewTx(core.TxDistributeRewards, nonce, struct{}{})
}

func (w *Wallet) AddGameProp(nonce uint64, name string, worth *uint256.Int) (*core.Transaction, error) {
	return w.NewTx(core.TxAddGameProp, nonce, core.AddGamePropPayload{Name: name, Worth: worth})
}

func (w *Wallet) BuyGameProp(nonce uint64, id core.PropID) (*core.Transaction, error) {
	return w.NewTx(core.TxBuyGameProp, nonce, core.BuyGamePropPayload{PropID: id})
}
