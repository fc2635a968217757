package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable part used when rendering addresses.
type AddressPrefix string

const (
	// AccountPrefix is used for depositor, administrator and vault accounts.
	AccountPrefix AddressPrefix = "nstk"
)

// AddressLength is the size in bytes of a raw account identifier.
const AddressLength = 20

// Address represents a 20-byte account identifier with a bech32 prefix.
type Address struct {
	prefix AddressPrefix
	raw    [AddressLength]byte
}

// NewAddress wraps raw bytes in an Address. The input must be exactly 20 bytes.
func NewAddress(prefix AddressPrefix, b []byte) Address {
	if len(b) != AddressLength {
		panic("address must be 20 bytes long")
	}
	var raw [AddressLength]byte
	copy(raw[:], b)
	return Address{prefix: prefix, raw: raw}
}

// AddressFromRaw wraps a fixed-size identifier using the account prefix.
func AddressFromRaw(raw [AddressLength]byte) Address {
	return Address{prefix: AccountPrefix, raw: raw}
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.raw[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	prefix := a.prefix
	if prefix == "" {
		prefix = AccountPrefix
	}
	encoded, err := bech32.Encode(string(prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a copy of the raw identifier.
func (a Address) Bytes() []byte {
	out := make([]byte, AddressLength)
	copy(out, a.raw[:])
	return out
}

// Raw returns the fixed-size identifier used as a state key.
func (a Address) Raw() [AddressLength]byte { return a.raw }

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// IsZero reports whether every byte of the identifier is zero.
func (a Address) IsZero() bool {
	var zero [AddressLength]byte
	return a.raw == zero
}

// DecodeAddress parses a bech32 address string.
func DecodeAddress(addrStr string) (Address, error) {
	trimmed := strings.TrimSpace(addrStr)
	if trimmed == "" {
		return Address{}, errors.New("address required")
	}
	prefix, decoded, err := bech32.Decode(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("address must decode to %d bytes, got %d", AddressLength, len(conv))
	}
	return NewAddress(AddressPrefix(prefix), conv), nil
}

// DecodeRaw parses a bech32 address and returns the raw identifier.
func DecodeRaw(addrStr string) ([AddressLength]byte, error) {
	addr, err := DecodeAddress(addrStr)
	if err != nil {
		return [AddressLength]byte{}, err
	}
	return addr.Raw(), nil
}

// FormatRaw renders a raw identifier with the account prefix.
func FormatRaw(raw [AddressLength]byte) string {
	return AddressFromRaw(raw).String()
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Sign produces a 65-byte recoverable secp256k1 signature over a 32-byte digest.
func (k *PrivateKey) Sign(digest []byte) ([]byte, error) {
	if k == nil || k.PrivateKey == nil {
		return nil, errors.New("crypto: nil private key")
	}
	return crypto.Sign(digest, k.PrivateKey)
}

func (k *PublicKey) Address() Address {
	addrBytes := crypto.PubkeyToAddress(*k.PublicKey).Bytes()
	return NewAddress(AccountPrefix, addrBytes)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// RecoverAddress returns the account that produced signature over digest.
func RecoverAddress(digest, signature []byte) (Address, error) {
	if len(signature) != 65 {
		return Address{}, fmt.Errorf("signature must be 65 bytes")
	}
	pubKey, err := crypto.SigToPub(digest, signature)
	if err != nil {
		return Address{}, fmt.Errorf("invalid signature: %w", err)
	}
	return NewAddress(AccountPrefix, crypto.PubkeyToAddress(*pubKey).Bytes()), nil
}
