package iso7816

import (
	"fmt"

	"github.com/gregLibert/ct-terminal/pkg/bits"
)

// MEMORY CARD COMMANDS (ISO 7816-4, interindustry class 0x00):
//
// SELECT (A4):               00 A4 00 00 Lc FID        select by file identifier
// READ BINARY (B0):          00 B0 AH AL Le            AH/AL is the 16-bit offset
// UPDATE BINARY (D6):        00 D6 AH AL Lc DATA
// VERIFY (20):               00 20 00 00 Lc PIN
// CHANGE REFERENCE DATA (24): 00 24 00 00 Lc OLD||NEW
//
// Offsets are limited to 16 bits (P1/P2) and every length to a single byte,
// so a command moves at most 255 bytes.

// ClassInterindustry is the CLA byte of the card commands built here.
const ClassInterindustry byte = 0x00

// MaxOffset is the largest offset addressable by READ/UPDATE BINARY.
const MaxOffset = 0xFFFF

// MasterFile is the file identifier of the MF.
var MasterFile = []byte{0x3F, 0x00}

// SelectFile creates a SELECT by file identifier. The response carries no Le,
// memory cards answer with the status bytes only.
func SelectFile(fid []byte) (*Command, error) {
	if len(fid) > MaxShortLc {
		return nil, fmt.Errorf("file identifier too long: %d bytes", len(fid))
	}
	return shortCommand(INS_SELECT, 0x00, 0x00, fid), nil
}

// ReadBinary creates a READ BINARY of n bytes (1-255) at offset.
func ReadBinary(offset, n int) (*Command, error) {
	if err := checkOffset(offset); err != nil {
		return nil, err
	}
	if n < 0 || n > MaxShortLc {
		return nil, fmt.Errorf("read length %d out of range (0-%d)", n, MaxShortLc)
	}
	hi, lo := bits.Uint16(uint16(offset))
	return NewCommand(ClassInterindustry, byte(INS_READ_BINARY), hi, lo, byte(n)), nil
}

// UpdateBinary creates an UPDATE BINARY writing data (at most 255 bytes) at offset.
func UpdateBinary(offset int, data []byte) (*Command, error) {
	if err := checkOffset(offset); err != nil {
		return nil, err
	}
	if len(data) > MaxShortLc {
		return nil, fmt.Errorf("write length %d out of range (0-%d)", len(data), MaxShortLc)
	}
	hi, lo := bits.Uint16(uint16(offset))
	return shortCommand(INS_UPDATE_BINARY, hi, lo, data), nil
}

// Verify creates a VERIFY presenting pin.
func Verify(pin []byte) (*Command, error) {
	if len(pin) > MaxShortLc {
		return nil, fmt.Errorf("pin too long: %d bytes", len(pin))
	}
	return shortCommand(INS_VERIFY, 0x00, 0x00, pin), nil
}

// ChangeReferenceData creates a CHANGE REFERENCE DATA replacing oldPIN by newPIN.
func ChangeReferenceData(oldPIN, newPIN []byte) (*Command, error) {
	data := append(append([]byte(nil), oldPIN...), newPIN...)
	if len(data) > MaxShortLc {
		return nil, fmt.Errorf("old and new pin too long: %d bytes", len(data))
	}
	return shortCommand(INS_CHANGE_REFERENCE_DATA, 0x00, 0x00, data), nil
}

// shortCommand always emits Lc, even for empty data, matching what memory
// card terminals expect (BuildCommand would drop it).
func shortCommand(ins InsCode, p1, p2 byte, data []byte) *Command {
	raw := []byte{ClassInterindustry, byte(ins), p1, p2, byte(len(data))}
	raw = append(raw, data...)
	return &Command{raw: raw}
}

func checkOffset(offset int) error {
	if offset < 0 || offset > MaxOffset {
		return fmt.Errorf("offset %d out of range (0-%d)", offset, MaxOffset)
	}
	return nil
}
