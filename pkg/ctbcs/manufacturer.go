package ctbcs

import (
	"strings"

	"github.com/gregLibert/ct-terminal/pkg/iso7816"
	"github.com/gregLibert/ct-terminal/pkg/tlv"
)

// MANUFACTURER STATUS:
// The answer to GET STATUS (P2 = 46) is a fixed layout block:
//
//	bytes 0-4    manufacturer (ASCII)
//	bytes 5-7    model (ASCII)
//	bytes 8-9    country code
//	bytes 10-14  revision (ASCII)
//
// Terminals are allowed to send a shorter block, fields beyond the end are empty.

// Manufacturer identifies a card terminal. It is immutable.
type Manufacturer struct {
	Name     []byte
	Model    []byte
	Revision []byte
}

// ParseManufacturer decodes a successful manufacturer status response.
// It returns nil when the response is nil or unsuccessful.
func ParseManufacturer(resp *iso7816.Response) *Manufacturer {
	if resp == nil || !resp.IsSuccessful() {
		return nil
	}
	data := resp.Data()
	return &Manufacturer{
		Name:     field(data, 0, 5),
		Model:    field(data, 5, 3),
		Revision: field(data, 10, 5),
	}
}

func field(data []byte, off, n int) []byte {
	if off >= len(data) {
		return []byte{}
	}
	end := off + n
	if end > len(data) {
		end = len(data)
	}
	return append([]byte{}, data[off:end]...)
}

// String returns "manufacturer model revision".
func (m *Manufacturer) String() string {
	if m == nil {
		return ""
	}
	return strings.Join([]string{
		tlv.MakeSafeASCII(m.Name),
		tlv.MakeSafeASCII(m.Model),
		tlv.MakeSafeASCII(m.Revision),
	}, " ")
}
