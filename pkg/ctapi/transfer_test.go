package ctapi

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/ct-terminal/pkg/ctbcs"
	"github.com/gregLibert/ct-terminal/pkg/tlv"
)

func openFake(t *testing.T) (*Terminal, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	term, err := NewRegistry().Open(tr, ctbcs.COM1)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return term, tr
}

func TestChunkArgumentsAreCheckedFirst(t *testing.T) {
	term, tr := openFake(t)
	before := tr.exchanges()

	tests := []struct {
		name string
		call func() error
		arg  string
	}{
		{"Read chunk address", func() error { _, _, err := term.readChunk(65536, 1); return err }, "address"},
		{"Read chunk negative address", func() error { _, _, err := term.readChunk(-1, 1); return err }, "address"},
		{"Read chunk size", func() error { _, _, err := term.readChunk(0, 256); return err }, "size"},
		{"Write chunk address", func() error { _, err := term.writeChunk(65536, []byte{1}); return err }, "address"},
		{"Write chunk size", func() error { _, err := term.writeChunk(0, make([]byte, 256)); return err }, "size"},
		{"Read beyond 16 bits", func() error { _, err := term.Read(70000, 1); return err }, "address"},
		{"Write beyond 16 bits", func() error { _, err := term.Write(70000, []byte{1}); return err }, "address"},
		{"PIN too long", func() error { _, err := term.EnterPIN(make([]byte, 256)); return err }, "pin length"},
		{"PINs too long together", func() error { _, err := term.ChangePIN(make([]byte, 200), make([]byte, 56)); return err }, "old and new pin length"},
		{"Select file id too long", func() error { _, err := term.SelectFile(make([]byte, 256)...); return err }, "file identifier length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ae *ArgumentError
			if err := tt.call(); !errors.As(err, &ae) || ae.Arg != tt.arg {
				t.Fatalf("error = %v, want *ArgumentError on %q", err, tt.arg)
			}
		})
	}

	if n := tr.exchanges(); n != before {
		t.Errorf("%d exchanges reached the transport", n-before)
	}
}

func TestSetChunkSize(t *testing.T) {
	term, _ := openFake(t)

	for _, n := range []int{0, -5, 256} {
		if err := term.SetChunkSize(n); !IsArgumentError(err) {
			t.Errorf("SetChunkSize(%d) = %v, want argument error", n, err)
		}
	}
	if err := term.SetChunkSize(23); err != nil || term.ChunkSize() != 23 {
		t.Errorf("SetChunkSize(23) = %v, ChunkSize() = %d", err, term.ChunkSize())
	}
	if err := term.SetSlot(ctbcs.CT); !IsArgumentError(err) {
		t.Errorf("SetSlot(CT) = %v, want argument error", err)
	}
}

func TestTerminal_Closed(t *testing.T) {
	term, tr := openFake(t)

	if err := term.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := term.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if len(tr.closed) != 1 {
		t.Errorf("transport closed %d times, want 1", len(tr.closed))
	}

	if _, err := term.Read(0, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Read after close = %v", err)
	}
	if _, err := term.Write(0, []byte{1}); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after close = %v", err)
	}
	if _, err := term.CardStatus(); !errors.Is(err, ErrClosed) {
		t.Errorf("CardStatus after close = %v", err)
	}
	if term.Reset() != nil {
		t.Error("Reset after close should yield nil")
	}
}

// memoryCard answers READ BINARY from a 0x00, 0x01, ... pattern. shortAt
// maps an Le to the answer the card gives instead of Le bytes.
func memoryCard(shortAt map[byte][]byte) func(cmd []byte) []byte {
	return func(cmd []byte) []byte {
		if cmd[1] != 0xB0 {
			return tlv.Hex("90 00")
		}
		le := cmd[4]
		if r, ok := shortAt[le]; ok {
			return r
		}
		address := int(cmd[2])<<8 | int(cmd[3])
		out := make([]byte, 0, int(le)+2)
		for i := 0; i < int(le); i++ {
			out = append(out, byte(address+i))
		}
		return append(out, 0x90, 0x00)
	}
}

func TestRead_LengthMismatchStops(t *testing.T) {
	tests := []struct {
		name     string
		answer   []byte
		wantCmds int
	}{
		{"Wrong length status is not retried", tlv.Hex("6C 10"), 1},
		{"Short body is a failed chunk", append(make([]byte, 16), 0x90, 0x00), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTransport{cardFn: memoryCard(map[byte][]byte{23: tt.answer})}
			term, err := NewRegistry().Open(tr, ctbcs.COM1, WithChunkSize(23))
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			tr.cardCmds = nil

			data, err := term.Read(0, 46)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if len(data) != 0 {
				t.Errorf("Read() = % X, want no data", data)
			}
			if len(tr.cardCmds) != tt.wantCmds {
				t.Errorf("%d card commands sent, want %d: % X", len(tr.cardCmds), tt.wantCmds, tr.cardCmds)
			}
		})
	}
}

func TestRead_TrailingChunkLengthMismatch(t *testing.T) {
	tr := &fakeTransport{cardFn: memoryCard(map[byte][]byte{3: tlv.Hex("6C 01")})}
	term, err := NewRegistry().Open(tr, ctbcs.COM1, WithChunkSize(4))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	data, err := term.Read(0, 7)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if diff := cmp.Diff([]byte{0, 1, 2, 3}, data); diff != "" {
		t.Errorf("Read() mismatch (-want +got):\n%s", diff)
	}
}

func TestCardChanged_StatusOnlyAnswer(t *testing.T) {
	tr := &fakeTransport{iccStatus: tlv.Hex("01 90 00"), request: tlv.Hex("62 00")}
	term, err := NewRegistry().Open(tr, ctbcs.COM1)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if resp := term.Reset(); resp != nil {
		t.Errorf("Reset() = %v, want nil", resp)
	}
	if got := term.CardChanged(); got != ctbcs.ChangeUnknown {
		t.Errorf("CardChanged() = %v, want unknown", got)
	}
	if term.Card() == nil || term.Card().OK() {
		t.Errorf("Card() = %v, want a card that is not OK", term.Card())
	}
}
