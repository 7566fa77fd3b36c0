package iso7816

import (
	"fmt"
	"strings"

	"github.com/gregLibert/ct-terminal/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// FILE CONTROL PARAMETERS according to ISO/IEC 7816-4.
//
// Processor cards may answer a SELECT with data describing the selected file.
// Memory cards usually answer with the status bytes only, in which case there
// is nothing to parse.
//
// STRUCTURES:
// 1. FCI (File Control Information) - Tag '6F': optional wrapper.
// 2. FCP (File Control Parameters) - Tag '62': technical attributes.
// If neither template is present, the tags are read as a flat FCP.

// FCPTemplate (File Control Parameters) - Tag '62'.
type FCPTemplate struct {
	DataSize       []byte `tlv:"80" fmt:"int"`
	TotalFileSize  []byte `tlv:"81" fmt:"int"`
	FileDescriptor []byte `tlv:"82"`
	FileIdentifier []byte `tlv:"83"`
	DFName         []byte `tlv:"84" fmt:"ascii"`
	Proprietary    []byte `tlv:"85"`
	ShortEFID      []byte `tlv:"88"`
	LifeCycle      []byte `tlv:"8A"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// FileControl is the parsed data field of a SELECT response.
type FileControl struct {
	FCP FCPTemplate
}

// ParseFileControl decodes the data field of a SELECT response.
// Empty data yields (nil, nil).
func ParseFileControl(data []byte) (*FileControl, error) {
	if len(data) == 0 {
		return nil, nil
	}

	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("BER-TLV decode failed: %w", err)
	}

	working := packets
	if p, ok := findTag(packets, "6F"); ok {
		working = p.TLVs
	}
	if p, ok := findTag(working, "62"); ok {
		working = p.TLVs
	}

	fc := &FileControl{}
	if err := tlv.UnmarshalFromPackets(working, &fc.FCP); err != nil {
		return nil, fmt.Errorf("FCP unmarshal failed: %w", err)
	}
	return fc, nil
}

// Size returns the data size (tag 80), falling back to the total size (tag 81).
func (fc *FileControl) Size() (int, bool) {
	switch {
	case len(fc.FCP.DataSize) > 0:
		return tlv.BigEndian(fc.FCP.DataSize), true
	case len(fc.FCP.TotalFileSize) > 0:
		return tlv.BigEndian(fc.FCP.TotalFileSize), true
	}
	return 0, false
}

// Describe generates a field-by-field dump of the parameters.
func (fc *FileControl) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== FILE CONTROL PARAMETERS ===")
	tlv.WriteStructFields(&sb, "FCP", &fc.FCP)
	return sb.String()
}

func findTag(packets []bertlv.TLV, tag string) (bertlv.TLV, bool) {
	for _, p := range packets {
		if strings.EqualFold(p.Tag, tag) {
			return p, true
		}
	}
	return bertlv.TLV{}, false
}
