package iso7816

import (
	"fmt"
	"strconv"
	"strings"
)

// APDU structures and encodings according to ISO/IEC 7816-3 and 7816-4.
//
// COMMAND APDU (C-APDU):
// A command consists of a mandatory Header (4 bytes) and an optional Body.
//
// 1. Header: CLA (Class), INS (Instruction), P1, P2 (Parameters).
// 2. Body:   Lc (Length Command) + Data, and/or Le (Length Expected).
//
// ENCODING CASES (ISO 7816-3):
// - Case 1: No Data, No Response (Header only).
// - Case 2: No Data, Response Expected (Header + Le).
// - Case 3: Data Present, No Response (Header + Lc + Data).
// - Case 4: Data Present, Response Expected (Header + Lc + Data + Le).
//
// LENGTH MODES:
//   - Short Length: Lc/Le encoded on 1 byte (Max 255/256).
//   - Extended Length: Lc/Le encoded on multiple bytes (Max 65535/65536).
//     Extended mode is triggered if Lc > 255 or Le > 256.
//
// RESPONSE APDU (R-APDU):
// An optional Body followed by the mandatory Trailer SW1 SW2.

// APDU Limits according to ISO 7816-3.
const (
	// MaxShortLc is the maximum data length (Nc) encodable in Short Length mode (1 byte).
	MaxShortLc = 255

	// MaxShortLe is the maximum expected response length (Ne) encodable in Short Length mode.
	// In Short mode, 0x00 encodes 256.
	MaxShortLe = 256

	// MaxExtendedLc is the limit for Lc in Extended mode (16-bit unsigned).
	MaxExtendedLc = 65535

	// MaxExtendedLe is the maximum Ne encodable in Extended Length mode.
	// In Extended mode, 0x0000 encodes 65536.
	MaxExtendedLe = 65536
)

// FormatError reports a command string that is not a sequence of hex bytes.
type FormatError struct {
	Input string
	Token string
	Pos   int // index of the offending token, -1 when the input is empty
}

func (e *FormatError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("invalid command %q: no bytes", e.Input)
	}
	return fmt.Sprintf("invalid command %q: token %d (%q) is not a hex byte", e.Input, e.Pos, e.Token)
}

// Command is an outbound APDU. Its bytes never change after construction.
type Command struct {
	raw []byte
}

// NewCommand wraps the given bytes verbatim.
func NewCommand(raw ...byte) *Command {
	return &Command{raw: append([]byte(nil), raw...)}
}

// ParseCommand builds a Command from a string of the form "12:23:a4" or "12 23 a4".
func ParseCommand(s string) (*Command, error) {
	tokens := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ':' })
	if len(tokens) == 0 {
		return nil, &FormatError{Input: s, Pos: -1}
	}

	raw := make([]byte, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil || len(tok) > 2 {
			return nil, &FormatError{Input: s, Token: tok, Pos: i}
		}
		raw[i] = byte(v)
	}
	return &Command{raw: raw}, nil
}

// BuildCommand encodes a command from its fields. It automatically selects
// Short or Extended encoding from the length of data (Nc) and ne (0 means none).
func BuildCommand(cla byte, ins InsCode, p1, p2 byte, data []byte, ne int) (*Command, error) {
	if err := ins.Validate(); err != nil {
		return nil, err
	}

	nc := len(data)
	if nc > MaxExtendedLc {
		return nil, fmt.Errorf("data too long: %d bytes (max %d)", nc, MaxExtendedLc)
	}
	if ne < 0 || ne > MaxExtendedLe {
		return nil, fmt.Errorf("expected length %d out of range (0-%d)", ne, MaxExtendedLe)
	}

	buf := make([]byte, 0, 4+3+nc+3)
	buf = append(buf, cla, byte(ins), p1, p2)

	isExtended := nc > MaxShortLc || ne > MaxShortLe

	if nc > 0 {
		if !isExtended {
			buf = append(buf, byte(nc))
		} else {
			buf = append(buf, 0x00, byte(nc>>8), byte(nc))
		}
		buf = append(buf, data...)
	}

	if ne > 0 {
		switch {
		case !isExtended:
			// 0x00 represents 256
			buf = append(buf, byte(ne))
		default:
			// Case 2 Extended needs a leading 00 to distinguish Le from Lc.
			if nc == 0 {
				buf = append(buf, 0x00)
			}
			// 0x0000 represents 65536
			buf = append(buf, byte(ne>>8), byte(ne))
		}
	}

	return &Command{raw: buf}, nil
}

// Bytes returns a copy of the encoded command.
func (c *Command) Bytes() []byte {
	return append([]byte(nil), c.raw...)
}

// Len returns the encoded length.
func (c *Command) Len() int {
	return len(c.raw)
}

// Instruction returns the INS byte, or 0 for commands shorter than a header.
func (c *Command) Instruction() InsCode {
	if len(c.raw) < 2 {
		return 0
	}
	return InsCode(c.raw[1])
}

// String renders the command as "12:23:a4".
func (c *Command) String() string {
	return hexColon(c.raw)
}

// Response is an inbound APDU: an optional body followed by SW1 SW2.
type Response struct {
	raw []byte
}

// NewResponse wraps the bytes received from the terminal.
func NewResponse(raw []byte) *Response {
	return &Response{raw: append([]byte(nil), raw...)}
}

// Bytes returns a copy of the full response, status bytes included.
func (r *Response) Bytes() []byte {
	return append([]byte(nil), r.raw...)
}

// Len returns the full response length.
func (r *Response) Len() int {
	return len(r.raw)
}

// At returns the byte at index i. The second value is false when i is out of range.
func (r *Response) At(i int) (byte, bool) {
	if i < 0 || i >= len(r.raw) {
		return 0, false
	}
	return r.raw[i], true
}

// Data returns the body without the trailing status bytes.
func (r *Response) Data() []byte {
	if len(r.raw) < 2 {
		return nil
	}
	return append([]byte(nil), r.raw[:len(r.raw)-2]...)
}

// Status returns the trailing status word, or 0 if the response is shorter than 2 bytes.
func (r *Response) Status() StatusWord {
	n := len(r.raw)
	if n < 2 {
		return 0
	}
	return NewStatusWord(r.raw[n-2], r.raw[n-1])
}

func (r *Response) endsWith(sw StatusWord) bool {
	return len(r.raw) >= 2 && r.Status() == sw
}

// IsSuccessful is true if the response ends with 90 00.
func (r *Response) IsSuccessful() bool {
	return r.endsWith(SW_NO_ERROR)
}

// IsChanged is true if the response ends with 62 00.
func (r *Response) IsChanged() bool {
	return r.endsWith(SW_CHANGED)
}

// IsNotChanged is true if the response ends with 62 01.
func (r *Response) IsNotChanged() bool {
	return r.endsWith(SW_NOT_CHANGED)
}

// String renders the response as "90:00".
func (r *Response) String() string {
	return hexColon(r.raw)
}

func hexColon(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, ":")
}
