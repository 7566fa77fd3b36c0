// Package tlv maps BER-TLV (Basic Encoding Rules - Tag-Length-Value) data onto
// Go structures using `tlv:"<tag>"` struct tags.
//
// Only the shapes needed for file control templates are supported: []byte
// leaves, nested structs (or pointers to structs) for constructed tags, and a
// single `Unknown []bertlv.TLV` field collecting tags no other field claimed.
package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// Unmarshal parses raw BER-TLV data and maps it into a target Go struct.
func Unmarshal(data []byte, target interface{}) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	return UnmarshalFromPackets(packets, target)
}

// UnmarshalFromPackets maps pre-decoded packets onto target, which must be a
// non-nil pointer to a struct. When a tag occurs more than once, the last
// occurrence wins.
func UnmarshalFromPackets(packets []bertlv.TLV, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a non-nil pointer to a struct")
	}
	v = v.Elem()
	t := v.Type()

	consumed := make(map[int]bool)
	unknown := -1

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("tlv")
		if tag == ",unknown" {
			unknown = i
			continue
		}
		if tag == "" {
			continue
		}

		for idx, packet := range packets {
			if !strings.EqualFold(packet.Tag, tag) {
				continue
			}
			if err := assign(packet, v.Field(i)); err != nil {
				return fmt.Errorf("tag %s: %w", tag, err)
			}
			consumed[idx] = true
		}
	}

	if unknown < 0 {
		return nil
	}

	var leftovers []bertlv.TLV
	for idx, packet := range packets {
		if !consumed[idx] {
			leftovers = append(leftovers, packet)
		}
	}
	if len(leftovers) > 0 {
		v.Field(unknown).Set(reflect.ValueOf(leftovers))
	}
	return nil
}

func assign(packet bertlv.TLV, field reflect.Value) error {
	switch {
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Uint8:
		raw, err := rawValue(packet)
		if err != nil {
			return err
		}
		field.SetBytes(raw)
		return nil

	case field.Kind() == reflect.Struct:
		return nested(packet, field.Addr())

	case field.Kind() == reflect.Ptr && field.Type().Elem().Kind() == reflect.Struct:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return nested(packet, field)
	}

	return fmt.Errorf("unsupported field type %s", field.Type())
}

func nested(packet bertlv.TLV, ptr reflect.Value) error {
	if len(packet.TLVs) > 0 {
		return UnmarshalFromPackets(packet.TLVs, ptr.Interface())
	}
	return Unmarshal(packet.Value, ptr.Interface())
}

// rawValue returns the value bytes of a packet, re-encoding constructed ones.
func rawValue(p bertlv.TLV) ([]byte, error) {
	if len(p.TLVs) > 0 {
		return bertlv.Encode(p.TLVs)
	}
	return p.Value, nil
}

// GetValue scans the raw data for a specific top-level tag and returns its payload.
func GetValue(data []byte, tag uint) ([]byte, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, err
	}

	target := fmt.Sprintf("%X", tag)
	for _, p := range packets {
		if strings.EqualFold(p.Tag, target) {
			return rawValue(p)
		}
	}
	return nil, fmt.Errorf("tag %s not found", target)
}
