package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HexBytes is a byte slice that marshals to and from a JSON hexadecimal
// string. The "0x" prefix is accepted on input and omitted on output.
type HexBytes []byte

func (b HexBytes) String() string {
	return hex.EncodeToString(b)
}

// FromString decodes a hexadecimal string (with or without "0x" prefix)
// into b.
func (b *HexBytes) FromString(s string) error {
	var err error
	*b, err = hex.DecodeString(strings.TrimPrefix(s, "0x"))
	return err
}

func (b HexBytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b))+2)
	enc[0] = '"'
	hex.Encode(enc[1:], b)
	enc[len(enc)-1] = '"'
	return enc, nil
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string: %q", data)
	}
	data = data[1 : len(data)-1]
	if len(data) >= 2 && data[0] == '0' && (data[1] == 'x' || data[1] == 'X') {
		data = data[2:]
	}
	decoded := make([]byte, hex.DecodedLen(len(data)))
	if _, err := hex.Decode(decoded, data); err != nil {
		return err
	}
	*b = decoded
	return nil
}

// Equal reports whether b and other hold the same bytes.
func (b HexBytes) Equal(other HexBytes) bool {
	return string(b) == string(other)
}
