package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// WriteStructFields writes one line per non-empty []byte field of s, followed
// by any unknown tags. Lines are joined with newlines without a trailing one;
// if sb already holds content, a newline separates the two blocks.
//
// The `fmt` struct tag selects the rendering: "ascii" adds a printable view,
// "int" adds the big-endian decimal value, anything else is plain hex.
func WriteStructFields(sb *strings.Builder, prefix string, s interface{}) {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}

	typ := val.Type()
	var lines []string

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		sf := typ.Field(i)

		switch v := field.Interface().(type) {
		case []byte:
			if len(v) == 0 {
				continue
			}
			name := sf.Name
			if tag := sf.Tag.Get("tlv"); tag != "" {
				name = fmt.Sprintf("%s (%s)", name, tag)
			}
			lines = append(lines, fmt.Sprintf("    - %s.%s: %s", prefix, name, formatByteValue(v, sf.Tag.Get("fmt"))))
		case []bertlv.TLV:
			for _, t := range v {
				lines = append(lines, fmt.Sprintf("    - %s.Unknown Tag %s: %X", prefix, t.Tag, t.Value))
			}
		}
	}

	if len(lines) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.Join(lines, "\n"))
	}
}

func formatByteValue(data []byte, format string) string {
	switch format {
	case "ascii":
		return fmt.Sprintf("%X (%q)", data, MakeSafeASCII(data))
	case "int":
		return fmt.Sprintf("%X (Dec: %d)", data, BigEndian(data))
	default:
		return fmt.Sprintf("%X", data)
	}
}

// BigEndian interprets data as an unsigned big-endian integer.
func BigEndian(data []byte) int {
	var n int
	for _, b := range data {
		n = n<<8 | int(b)
	}
	return n
}

// MakeSafeASCII replaces every non-printable byte with a dot.
func MakeSafeASCII(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return '.'
	}, string(data))
}
