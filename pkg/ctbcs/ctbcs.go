// Package ctbcs implements the terminal-kernel side of CT-BCS, the basic command
// set spoken by CT-API card terminals.
//
// ADDRESSING:
// Every CT_data exchange names a destination (DAD) and a source (SAD) address.
// Commands for the terminal itself go to CT from HOST; commands for a card go
// to the slot the card sits in (ICC1..ICC14) from HOST.
//
//	ICC1 = 0, CT = 1, HOST = 2, ICC2..ICC14 = 2..14
//
// HOST and ICC2 share the value 2: the meaning depends on the position
// (source or destination) of the address.
//
// KERNEL COMMANDS (CLA 0x20):
//
//	GET STATUS manufacturer   20 13 00 46 00
//	GET STATUS ICC            20 13 00 80 00
//	REQUEST ICC, get ATR      20 12 01 01 00
//	EJECT ICC                 20 15 01 00 00
//	RESET CT                  20 11 00 00 00
package ctbcs

import (
	"fmt"

	"github.com/gregLibert/ct-terminal/pkg/iso7816"
)

// Address is a CT-API destination or source address.
type Address byte

const (
	ICC1  Address = 0
	CT    Address = 1
	HOST  Address = 2
	ICC2  Address = 2
	ICC3  Address = 3
	ICC4  Address = 4
	ICC5  Address = 5
	ICC6  Address = 6
	ICC7  Address = 7
	ICC8  Address = 8
	ICC9  Address = 9
	ICC10 Address = 10
	ICC11 Address = 11
	ICC12 Address = 12
	ICC13 Address = 13
	ICC14 Address = 14
)

// String names the address as a destination.
func (a Address) String() string {
	switch {
	case a == ICC1:
		return "ICC1"
	case a == CT:
		return "CT"
	case a <= ICC14:
		return fmt.Sprintf("ICC%d", a)
	default:
		return fmt.Sprintf("ADDR(%d)", byte(a))
	}
}

// IsSlot reports whether a names a card slot.
func (a Address) IsSlot() bool {
	return a != CT && a <= ICC14
}

// Port is the physical interface a terminal is attached to.
type Port uint16

const (
	COM1    Port = 0
	COM2    Port = 1
	COM3    Port = 2
	COM4    Port = 3
	Printer Port = 4
	Modem   Port = 5
	LPT1    Port = 6
	LPT2    Port = 7
)

var portNames = map[Port]string{
	COM1:    "COM1",
	COM2:    "COM2",
	COM3:    "COM3",
	COM4:    "COM4",
	Printer: "Printer",
	Modem:   "Modem",
	LPT1:    "LPT1",
	LPT2:    "LPT2",
}

func (p Port) String() string {
	if name, ok := portNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PORT(%d)", uint16(p))
}

// CT-BCS class, parameter and data values.
const (
	CLA byte = 0x20

	P1_CT_KERNEL   byte = 0x00
	P1_INTERFACE1  byte = 0x01
	P1_INTERFACE2  byte = 0x02
	P1_INTERFACE3  byte = 0x03
	P1_INTERFACE4  byte = 0x04
	P1_INTERFACE5  byte = 0x05
	P1_INTERFACE6  byte = 0x06
	P1_INTERFACE7  byte = 0x07
	P1_INTERFACE8  byte = 0x08
	P1_INTERFACE9  byte = 0x09
	P1_INTERFACE10 byte = 0x0A
	P1_INTERFACE11 byte = 0x0B
	P1_INTERFACE12 byte = 0x0C
	P1_INTERFACE13 byte = 0x0D
	P1_INTERFACE14 byte = 0x0E

	P2_STATUS_MANUFACTURER byte = 0x46
	P2_STATUS_ICC          byte = 0x80
	P2_REQUEST_GET_ATR     byte = 0x01

	DATA_STATUS_NOCARD       byte = 0x00
	DATA_STATUS_CARD         byte = 0x01
	DATA_STATUS_CARD_CONNECT byte = 0x05
)

func kernelCommand(ins iso7816.InsCode, p1, p2 byte) *iso7816.Command {
	// Le = 0 is sent explicitly, the kernel answers with everything it has.
	return iso7816.NewCommand(CLA, byte(ins), p1, p2, 0x00)
}

// ManufacturerStatus asks the kernel for its manufacturer block.
func ManufacturerStatus() *iso7816.Command {
	return kernelCommand(iso7816.INS_GET_STATUS, P1_CT_KERNEL, P2_STATUS_MANUFACTURER)
}

// ICCStatus asks the kernel whether a card is present.
func ICCStatus() *iso7816.Command {
	return kernelCommand(iso7816.INS_GET_STATUS, P1_CT_KERNEL, P2_STATUS_ICC)
}

// RequestATR activates the card on interface 1 and asks for its ATR.
func RequestATR() *iso7816.Command {
	return kernelCommand(iso7816.INS_REQUEST_ICC, P1_INTERFACE1, P2_REQUEST_GET_ATR)
}

// EjectICC deactivates the card on interface 1.
func EjectICC() *iso7816.Command {
	return kernelCommand(iso7816.INS_EJECT_ICC, P1_INTERFACE1, 0x00)
}

// ResetCT resets the terminal kernel.
func ResetCT() *iso7816.Command {
	return kernelCommand(iso7816.INS_RESET_CT, P1_CT_KERNEL, 0x00)
}
