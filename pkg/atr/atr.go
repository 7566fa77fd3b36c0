// Package atr decodes the Answer To Reset of synchronous memory cards.
//
// SYNCHRONOUS ATR (ISO 7816-10), as returned by REQUEST ICC:
//
//	H1  bits 8-5  protocol type   (0xxx ISO, 1000 I2C, 1001 3-wire, 1010 2-wire)
//	    bits 3-1  structure       (x00 ISO, 010 common use, 110 proprietary, else special)
//	H2  bits 7-4  number of blocks, as a power of two offset by 6
//	    bits 3-1  bits per block, as a power of two
//	H3  0x10 for a well formed header
//	H4  category indicator
//
// The terminal appends the status bytes 90 00, so a valid response holds
// H1..H4 followed by 90 00.
package atr

import (
	"bytes"
	"fmt"

	"github.com/gregLibert/ct-terminal/pkg/bits"
	"github.com/gregLibert/ct-terminal/pkg/iso7816"
)

// Structure classifies the data layout of a memory card.
type Structure int

const (
	StructureISO Structure = iota
	StructureCommonUse
	StructureProprietaryUse
	StructureSpecialUse
)

var structureNames = map[Structure]string{
	StructureISO:            "ISO",
	StructureCommonUse:      "common use",
	StructureProprietaryUse: "proprietary use",
	StructureSpecialUse:     "special use",
}

func (s Structure) String() string {
	return structureNames[s]
}

// Protocol is the synchronous transmission protocol of a card.
type Protocol int

const (
	ProtocolISO Protocol = iota
	ProtocolI2C
	Protocol3W
	Protocol2W
	ProtocolUnknown
)

var protocolNames = map[Protocol]string{
	ProtocolISO:     "ISO",
	ProtocolI2C:     "I2C",
	Protocol3W:      "3W",
	Protocol2W:      "2W",
	ProtocolUnknown: "unknown",
}

func (p Protocol) String() string {
	return protocolNames[p]
}

// Card is the description of an inserted card derived from its ATR response.
// It is immutable once created. Missing ATR bytes read as zero, decoding
// never fails and OK reports whether the header looks valid.
type Card struct {
	resp *iso7816.Response
}

// New creates a Card from the REQUEST ICC response. A nil response is
// treated as empty.
func New(resp *iso7816.Response) *Card {
	if resp == nil {
		resp = iso7816.NewResponse(nil)
	}
	return &Card{resp: resp}
}

// Response returns the ATR response as received, status bytes included.
func (c *Card) Response() *iso7816.Response {
	return c.resp
}

// ATR returns the raw response bytes.
func (c *Card) ATR() []byte {
	return c.resp.Bytes()
}

func (c *Card) byteAt(i int) byte {
	b, _ := c.resp.At(i)
	return b
}

// MemoryBits is the number of bits per block.
func (c *Card) MemoryBits() int {
	return bits.Pow2(int(bits.GetRange(c.byteAt(1), 3, 1)))
}

// MemoryBlocks is the number of blocks.
func (c *Card) MemoryBlocks() int {
	return bits.Pow2(int(bits.GetRange(c.byteAt(1), 7, 4)) + 6)
}

// MemorySize is the card capacity in bytes.
func (c *Card) MemorySize() int {
	return c.MemoryBlocks() * c.MemoryBits() >> 3
}

// Structure decodes bits 3-1 of H1.
func (c *Card) Structure() Structure {
	h1 := c.byteAt(0)
	switch {
	case h1&0x03 == 0:
		return StructureISO
	case h1&0x07 == 2:
		return StructureCommonUse
	case h1&0x07 == 6:
		return StructureProprietaryUse
	default:
		return StructureSpecialUse
	}
}

// Protocol decodes bits 8-5 of H1.
func (c *Card) Protocol() Protocol {
	h1 := c.byteAt(0)
	if !bits.IsSet(h1, 8) {
		return ProtocolISO
	}
	switch bits.HighNibble(h1) {
	case 0x8:
		return ProtocolI2C
	case 0x9:
		return Protocol3W
	case 0xA:
		return Protocol2W
	default:
		return ProtocolUnknown
	}
}

// OK reports whether H3 is 0x10 and the status bytes follow H4.
func (c *Card) OK() bool {
	raw := c.resp.Bytes()
	return len(raw) >= 6 && raw[2] == 0x10 && bytes.Equal(raw[4:6], []byte{0x90, 0x00})
}

// String renders "Structure common use Protocol 2W (256x8=256B)".
func (c *Card) String() string {
	return fmt.Sprintf("Structure %s Protocol %s (%dx%d=%dB)",
		c.Structure(), c.Protocol(), c.MemoryBlocks(), c.MemoryBits(), c.MemorySize())
}

// Describe returns a multi-line report including the raw ATR.
func (c *Card) Describe() string {
	status := "valid"
	if !c.OK() {
		status = "invalid"
	}
	return fmt.Sprintf("=== Card ===\n    - ATR: %X (%s)\n    - Structure: %s\n    - Protocol: %s\n    - Memory: %d blocks x %d bits = %d bytes",
		c.ATR(), status, c.Structure(), c.Protocol(), c.MemoryBlocks(), c.MemoryBits(), c.MemorySize())
}
