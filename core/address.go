package core

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tolelom/degenchain/crypto"
)

// Address identifies an account. It is derived from the sender's ed25519
// public key; the all-zero value is the null address.
type Address [crypto.AddressLength]byte

// ZeroAddress is the null address used as mint source and burn sink.
var ZeroAddress Address

// AddressFromPubKey derives the account address of a hex-encoded public key.
func AddressFromPubKey(pubHex string) (Address, error) {
	pub, err := crypto.PubKeyFromHex(pubHex)
	if err != nil {
		return ZeroAddress, err
	}
	return Address(pub.AddressBytes()), nil
}

// ContractAddress derives the address a chain uses for its own holdings
// (unsold store inventory and tokens paid for props).
func ContractAddress(chainID string) Address {
	var a Address
	copy(a[:], crypto.HashBytes([]byte("contract:"+chainID)))
	return a
}

// HexToAddress parses a 40-char hex address, with or without a 0x prefix.
func HexToAddress(s string) (Address, error) {
	var a Address
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return a, fmt.Errorf("invalid address hex: %w", err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("address must be %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

func (a Address) IsZero() bool { return a == ZeroAddress }

// Hex returns the lowercase hex encoding without prefix.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

func (a Address) String() string { return "0x" + a.Hex() }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.Hex()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := HexToAddress(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// PropID is the content hash identifying a store item.
type PropID [32]byte

// HexToPropID parses a 64-char hex prop id, with or without a 0x prefix.
func HexToPropID(s string) (PropID, error) {
	var id PropID
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return id, fmt.Errorf("invalid prop id hex: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("prop id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

func (id PropID) IsZero() bool { return id == PropID{} }

func (id PropID) Hex() string { return hex.EncodeToString(id[:]) }

func (id PropID) String() string { return "0x" + id.Hex() }

func (id PropID) MarshalText() ([]byte, error) { return []byte(id.Hex()), nil }

func (id *PropID) UnmarshalText(b []byte) error {
	parsed, err := HexToPropID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
