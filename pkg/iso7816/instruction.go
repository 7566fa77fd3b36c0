package iso7816

import (
	"fmt"

	"github.com/gregLibert/ct-terminal/pkg/bits"
)

// Instruction Byte (INS) Logic according to ISO/IEC 7816-4 and CT-BCS.
//
// The INS byte identifies the command to be performed. Two families are used here:
//
// 1. Card commands (CLA 0x00), executed by the inserted card:
//    SELECT, READ BINARY, UPDATE BINARY, VERIFY, CHANGE REFERENCE DATA.
//
// 2. Terminal commands (CLA 0x20, CT-BCS), executed by the terminal kernel:
//    RESET CT, REQUEST ICC, GET STATUS, EJECT ICC.
//
// INS values where the upper nibble is '6' or '9' (0x6X or 0x9X) are invalid.
// These values are reserved for Status Words (SW1) or transport layer control
// procedures (ISO/IEC 7816-3).

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Instruction codes used by card terminal sessions.
const (
	// CT-BCS terminal kernel instructions.
	INS_RESET_CT    InsCode = 0x11
	INS_REQUEST_ICC InsCode = 0x12
	INS_GET_STATUS  InsCode = 0x13
	INS_EJECT_ICC   InsCode = 0x15

	// ISO 7816-4 card instructions.
	INS_VERIFY                InsCode = 0x20
	INS_CHANGE_REFERENCE_DATA InsCode = 0x24
	INS_SELECT                InsCode = 0xA4
	INS_READ_BINARY           InsCode = 0xB0
	INS_READ_BINARY_BER       InsCode = 0xB1
	INS_GET_RESPONSE          InsCode = 0xC0
	INS_UPDATE_BINARY         InsCode = 0xD6
	INS_UPDATE_BINARY_BER     InsCode = 0xD7
)

var insNames = map[InsCode]string{
	INS_RESET_CT:              "RESET CT",
	INS_REQUEST_ICC:           "REQUEST ICC",
	INS_GET_STATUS:            "GET STATUS",
	INS_EJECT_ICC:             "EJECT ICC",
	INS_VERIFY:                "VERIFY",
	INS_CHANGE_REFERENCE_DATA: "CHANGE REFERENCE DATA",
	INS_SELECT:                "SELECT",
	INS_READ_BINARY:           "READ BINARY",
	INS_READ_BINARY_BER:       "READ BINARY (BER-TLV)",
	INS_GET_RESPONSE:          "GET RESPONSE",
	INS_UPDATE_BINARY:         "UPDATE BINARY",
	INS_UPDATE_BINARY_BER:     "UPDATE BINARY (BER-TLV)",
}

// String returns the command name, or a hex placeholder for unnamed codes.
func (i InsCode) String() string {
	if name, ok := insNames[i]; ok {
		return name
	}
	return fmt.Sprintf("INS(0x%02X)", byte(i))
}

// Validate rejects '6X' and '9X' values as they are invalid according to ISO 7816-3.
func (i InsCode) Validate() error {
	high := bits.HighNibble(byte(i))
	if high == 0x6 || high == 0x9 {
		return fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", byte(i))
	}
	return nil
}

// IsBERTLV reports whether bit 1 requests BER-TLV encoded data (e.g. B0 vs B1).
func (i InsCode) IsBERTLV() bool {
	return bits.IsSet(byte(i), 1)
}
