package common

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
)

const (
	AddressBytes = 20
)

// Address identifies a rights holder or a gauge pool.
type Address [AddressBytes]byte

func (a *Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return a.SetString(s)
}

func (a *Address) SetString(s string) error {
	if strings.HasPrefix(s, "0x") {
		s = s[2:]
	}
	if len(s) != AddressBytes*2 {
		return ErrIllegalAddress
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	copy(a[:], raw)
	return nil
}

func (a *Address) Bytes() []byte {
	return (*a)[:]
}

func (a *Address) SetBytes(b []byte) error {
	if len(b) != AddressBytes {
		return ErrIllegalAddress
	}
	copy(a[:], b)
	return nil
}

func (a *Address) Equal(a2 *Address) bool {
	if a == nil || a2 == nil {
		return a == a2
	}
	return bytes.Equal(a[:], a2[:])
}

// Compare orders addresses lexicographically. Used for deterministic
// tie breaking of equal vote weights.
func (a *Address) Compare(a2 *Address) int {
	return bytes.Compare(a[:], a2[:])
}

func NewAddress(b []byte) *Address {
	a := new(Address)
	if err := a.SetBytes(b); err != nil {
		return nil
	}
	return a
}

func MustNewAddressFromString(s string) *Address {
	a := new(Address)
	if err := a.SetString(s); err != nil {
		panic(err)
	}
	return a
}
