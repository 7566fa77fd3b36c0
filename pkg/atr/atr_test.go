package atr

import (
	"strings"
	"testing"

	"github.com/gregLibert/ct-terminal/pkg/iso7816"
	"github.com/gregLibert/ct-terminal/pkg/tlv"
)

func TestCard_Decode(t *testing.T) {
	tests := []struct {
		name      string
		atr       string
		bits      int
		blocks    int
		size      int
		structure Structure
		protocol  Protocol
		ok        bool
	}{
		{
			name:      "SLE4442 style 256 bytes",
			atr:       "A2 13 10 91 90 00",
			bits:      8,
			blocks:    256,
			size:      256,
			structure: StructureCommonUse,
			protocol:  Protocol2W,
			ok:        true,
		},
		{
			name:      "I2C 1 KiB proprietary",
			atr:       "86 23 10 00 90 00",
			bits:      8,
			blocks:    1024,
			size:      1024,
			structure: StructureProprietaryUse,
			protocol:  ProtocolI2C,
			ok:        true,
		},
		{
			name:      "3W special use, bad header",
			atr:       "93 1A 20 00 90 00",
			bits:      4,
			blocks:    512,
			size:      256,
			structure: StructureSpecialUse,
			protocol:  Protocol3W,
			ok:        false,
		},
		{
			name:      "ISO protocol and structure",
			atr:       "3C 00 10 00 90 00",
			bits:      1,
			blocks:    64,
			size:      8,
			structure: StructureISO,
			protocol:  ProtocolISO,
			ok:        true,
		},
		{
			name:      "Unknown protocol",
			atr:       "F2 13 10 00 90 00",
			bits:      8,
			blocks:    256,
			size:      256,
			structure: StructureCommonUse,
			protocol:  ProtocolUnknown,
			ok:        true,
		},
		{
			name:      "Wrong trailer",
			atr:       "A2 13 10 91 62 00",
			bits:      8,
			blocks:    256,
			size:      256,
			structure: StructureCommonUse,
			protocol:  Protocol2W,
			ok:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(iso7816.NewResponse(tlv.Hex(tt.atr)))
			if c.MemoryBits() != tt.bits {
				t.Errorf("MemoryBits() = %d, want %d", c.MemoryBits(), tt.bits)
			}
			if c.MemoryBlocks() != tt.blocks {
				t.Errorf("MemoryBlocks() = %d, want %d", c.MemoryBlocks(), tt.blocks)
			}
			if c.MemorySize() != tt.size {
				t.Errorf("MemorySize() = %d, want %d", c.MemorySize(), tt.size)
			}
			if c.Structure() != tt.structure {
				t.Errorf("Structure() = %v, want %v", c.Structure(), tt.structure)
			}
			if c.Protocol() != tt.protocol {
				t.Errorf("Protocol() = %v, want %v", c.Protocol(), tt.protocol)
			}
			if c.OK() != tt.ok {
				t.Errorf("OK() = %v, want %v", c.OK(), tt.ok)
			}
		})
	}
}

func TestCard_SizeIdentity(t *testing.T) {
	for h2 := 0; h2 < 256; h2++ {
		c := New(iso7816.NewResponse([]byte{0xA2, byte(h2), 0x10, 0x00, 0x90, 0x00}))
		if c.MemorySize() != c.MemoryBlocks()*c.MemoryBits()/8 {
			t.Fatalf("H2=%02X: size %d != %d*%d/8", h2, c.MemorySize(), c.MemoryBlocks(), c.MemoryBits())
		}
	}
}

func TestCard_ShortATR(t *testing.T) {
	for _, raw := range [][]byte{nil, {0xA2}, tlv.Hex("90 00")} {
		c := New(iso7816.NewResponse(raw))
		if c.OK() {
			t.Errorf("ATR %X must not be OK", raw)
		}
		_ = c.String()
	}

	c := New(nil)
	if c.MemoryBits() != 1 || c.MemoryBlocks() != 64 || c.MemorySize() != 8 {
		t.Errorf("empty ATR geometry = %dx%d=%d", c.MemoryBlocks(), c.MemoryBits(), c.MemorySize())
	}
}

func TestCard_String(t *testing.T) {
	c := New(iso7816.NewResponse(tlv.Hex("A2 13 10 91 90 00")))
	if got := c.String(); got != "Structure common use Protocol 2W (256x8=256B)" {
		t.Errorf("String() = %q", got)
	}
	d := c.Describe()
	if !strings.Contains(d, "A2131091900") || !strings.Contains(d, "(valid)") {
		t.Errorf("Describe() = %q", d)
	}
}
