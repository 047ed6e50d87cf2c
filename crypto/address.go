package crypto

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable part of bech32 addresses.
type AddressPrefix string

// CreditPrefix is used for every account and module address.
const CreditPrefix AddressPrefix = "credit"

// AddressLength is the byte length of an address payload.
const AddressLength = 20

// Address represents a 20-byte address with a specific prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

// NewAddress builds an address from a 20-byte payload.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("address must be %d bytes long, got %d", AddressLength, len(b))
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}, nil
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		return ""
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		return ""
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return append([]byte(nil), a.bytes...)
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(strings.TrimSpace(addrStr))
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}

// ValidateAddress checks that addr is a well-formed address carrying the
// credit prefix.
func ValidateAddress(addr string) error {
	decoded, err := DecodeAddress(addr)
	if err != nil {
		return err
	}
	if decoded.Prefix() != CreditPrefix {
		return fmt.Errorf("unexpected address prefix %q", decoded.Prefix())
	}
	return nil
}

// ModuleAddress derives a deterministic address for a named module or test
// account from the last 20 bytes of keccak256(name).
func ModuleAddress(name string) string {
	digest := crypto.Keccak256([]byte(name))
	addr, err := NewAddress(CreditPrefix, digest[len(digest)-AddressLength:])
	if err != nil {
		return ""
	}
	return addr.String()
}
