package event

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the size of an account identity in bytes.
const AddressLength = 20

// Address identifies an account: an airline, passenger, oracle or the owner.
type Address [AddressLength]byte

// ZeroAddress is never a valid caller.
var ZeroAddress Address

// ParseAddress decodes a 0x-prefixed (or bare) 40-character hex string.
func ParseAddress(s string) (Address, error) {
	var a Address
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != AddressLength*2 {
		return a, fmt.Errorf("address %q: want %d hex chars, got %d", s, AddressLength*2, len(s))
	}
	if _, err := hex.Decode(a[:], []byte(s)); err != nil {
		return a, fmt.Errorf("address %q: %w", s, err)
	}
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes right-aligns b into an address, truncating from the left.
func AddressFromBytes(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
