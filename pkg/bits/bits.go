// Package bits holds the small bit-field helpers used to decode ATR and
// command header bytes. Bits are numbered 1 (LSB) to 8 (MSB), as in ISO 7816.
package bits

// Bit returns a byte with only the n-th bit set (1 to 8).
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet checks if the n-th bit is set (1 to 8).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// GetRange extracts the value from a range of bits (e.g., bits 4 to 3).
// Example: GetRange(0b00001100, 4, 3) returns 3 (0b11)
func GetRange(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}

	width := high - low + 1
	mask := byte((1 << width) - 1)

	return (b >> (low - 1)) & mask
}

// HighNibble returns bits 8-5 of b.
func HighNibble(b byte) byte {
	return GetRange(b, 8, 5)
}

// Pow2 returns 2^exp as an int. Negative exponents yield 0.
func Pow2(exp int) int {
	if exp < 0 {
		return 0
	}
	return 1 << exp
}

// Uint16 splits v into its high and low bytes (big endian).
func Uint16(v uint16) (hi, lo byte) {
	return byte(v >> 8), byte(v)
}
