package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// Address identifies a ledger party: "0x" followed by 40 lowercase hex characters.
type Address string

// ZeroAddress is never a valid party.
const ZeroAddress Address = "0x0000000000000000000000000000000000000000"

const addressHexLen = 40

// ParseAddress normalizes s and rejects malformed and zero addresses.
func ParseAddress(s string) (Address, error) {
	a := Address(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("invalid address %q", s)
	}
	return a, nil
}

// NewAddress generates a random party address.
func NewAddress() (Address, error) {
	b := make([]byte, addressHexLen/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating address: %w", err)
	}
	return Address("0x" + hex.EncodeToString(b)), nil
}

// IsZero reports whether a is empty or the all-zero address.
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

// Valid reports whether a is well-formed and non-zero.
func (a Address) Valid() bool {
	s := string(a)
	if len(s) != 2+addressHexLen || !strings.HasPrefix(s, "0x") {
		return false
	}
	if _, err := hex.DecodeString(s[2:]); err != nil {
		return false
	}
	return s == strings.ToLower(s) && !a.IsZero()
}

func (a Address) String() string {
	return string(a)
}
