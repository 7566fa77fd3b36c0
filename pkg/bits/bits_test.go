package bits

import "testing"

func TestBit(t *testing.T) {
	tests := []struct {
		n        uint
		expected byte
	}{
		{1, 0x01}, {5, 0x10}, {8, 0x80}, {0, 0x00},
		{9, 0x00}, //dumb value silently ignored
	}

	for _, tt := range tests {
		if res := Bit(tt.n); res != tt.expected {
			t.Errorf("Bit(%d) = 0x%02X; want 0x%02X", tt.n, res, tt.expected)
		}
	}
}

func TestIsSet(t *testing.T) {
	val := byte(0b10100101)
	if !IsSet(val, 8) {
		t.Error("Bit 8 should be set")
	}
	if IsSet(val, 7) {
		t.Error("Bit 7 should NOT be set")
	}
	if !IsSet(val, 1) {
		t.Error("Bit 1 should be set")
	}
}

func TestGetRange(t *testing.T) {
	tests := []struct {
		name     string
		input    byte
		high     uint
		low      uint
		expected byte
	}{
		{"Bits 4-3 of 0x0C", 0b0000_1100, 4, 3, 3},
		{"Bits 3-1 of ATR H2 0x13", 0x13, 3, 1, 3},
		{"Bits 7-4 of ATR H2 0x13", 0x13, 7, 4, 2},
		{"Bits 8-7 of 0x40", 0b0100_0000, 8, 7, 1},
		{"Full Byte", 0xAA, 8, 1, 0xAA},
		{"Inverted range", 0xFF, 1, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := GetRange(tt.input, tt.high, tt.low); res != tt.expected {
				t.Errorf("GetRange(0x%02X, %d, %d) = %d; want %d", tt.input, tt.high, tt.low, res, tt.expected)
			}
		})
	}
}

func TestHighNibble(t *testing.T) {
	for in, want := range map[byte]byte{0xA2: 0x0A, 0x3B: 0x03, 0x0F: 0x00} {
		if got := HighNibble(in); got != want {
			t.Errorf("HighNibble(0x%02X) = 0x%02X; want 0x%02X", in, got, want)
		}
	}
}

func TestPow2(t *testing.T) {
	if Pow2(0) != 1 || Pow2(6) != 64 || Pow2(21) != 1<<21 {
		t.Error("Pow2 returned a wrong power")
	}
	if Pow2(-1) != 0 {
		t.Error("Pow2(-1) should be 0")
	}
}

func TestUint16(t *testing.T) {
	hi, lo := Uint16(0x1234)
	if hi != 0x12 || lo != 0x34 {
		t.Errorf("Uint16(0x1234) = %02X %02X; want 12 34", hi, lo)
	}
}
