package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hex constructs a byte slice from a series of hex strings.
// Spaces and colons are ignored, so "00 A4 04 00" and "00:a4:04:00" are equivalent.
// It panics on invalid input and is meant for fixtures and constants.
func Hex(parts ...string) []byte {
	cleanHex := strings.NewReplacer(" ", "", ":", "").Replace(strings.Join(parts, ""))

	data, err := hex.DecodeString(cleanHex)
	if err != nil {
		panic(fmt.Sprintf("invalid input '%s': %v", cleanHex, err))
	}
	return data
}
