package iso7816

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/ct-terminal/pkg/tlv"
)

// scriptedCard answers each Transmit with the next scripted response and
// records the commands it saw.
type scriptedCard struct {
	responses [][]byte
	seen      [][]byte
	err       error
}

func (s *scriptedCard) Transmit(cmd []byte) ([]byte, error) {
	s.seen = append(s.seen, cmd)
	if len(s.responses) == 0 {
		return nil, s.err
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r, nil
}

func TestClient_Send(t *testing.T) {
	tests := []struct {
		name      string
		cmd       *Command
		responses [][]byte
		wantSeen  [][]byte
		wantLast  []byte
	}{
		{
			name:      "Plain exchange",
			cmd:       NewCommand(tlv.Hex("00 B0 00 00 02")...),
			responses: [][]byte{tlv.Hex("CA FE 90 00")},
			wantSeen:  [][]byte{tlv.Hex("00 B0 00 00 02")},
			wantLast:  tlv.Hex("CA FE 90 00"),
		},
		{
			name:      "61XX triggers GET RESPONSE",
			cmd:       NewCommand(tlv.Hex("00 A4 00 00 02 3F 00")...),
			responses: [][]byte{tlv.Hex("61 04"), tlv.Hex("62 02 83 00 90 00")},
			wantSeen:  [][]byte{tlv.Hex("00 A4 00 00 02 3F 00"), tlv.Hex("00 C0 00 00 04")},
			wantLast:  tlv.Hex("62 02 83 00 90 00"),
		},
		{
			name:      "6CXX re-sends with corrected Le",
			cmd:       NewCommand(tlv.Hex("00 B0 00 00 00")...),
			responses: [][]byte{tlv.Hex("6C 03"), tlv.Hex("01 02 03 90 00")},
			wantSeen:  [][]byte{tlv.Hex("00 B0 00 00 00"), tlv.Hex("00 B0 00 00 03")},
			wantLast:  tlv.Hex("01 02 03 90 00"),
		},
		{
			name:      "6CXX on a command with data is not retried",
			cmd:       NewCommand(tlv.Hex("00 D6 00 00 01 AA")...),
			responses: [][]byte{tlv.Hex("6C 03")},
			wantSeen:  [][]byte{tlv.Hex("00 D6 00 00 01 AA")},
			wantLast:  tlv.Hex("6C 03"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := &scriptedCard{responses: tt.responses}
			trace, err := NewClient(card).Send(tt.cmd)
			if err != nil {
				t.Fatalf("Send failed: %v", err)
			}
			if diff := cmp.Diff(tt.wantSeen, card.seen); diff != "" {
				t.Errorf("commands mismatch (-want +got):\n%s", diff)
			}
			if len(trace) != len(tt.wantSeen) {
				t.Errorf("trace length = %d, want %d", len(trace), len(tt.wantSeen))
			}
			if diff := cmp.Diff(tt.wantLast, trace.Last().Response.Bytes()); diff != "" {
				t.Errorf("last response mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClient_SendError(t *testing.T) {
	boom := errors.New("reader unplugged")
	card := &scriptedCard{responses: [][]byte{tlv.Hex("61 02")}, err: boom}

	trace, err := NewClient(card).Send(NewCommand(tlv.Hex("00 A4 00 00 02 3F 00")...))
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped %v", err, boom)
	}
	if len(trace) != 1 {
		t.Errorf("trace should keep the completed transaction, got %d", len(trace))
	}
}

func TestClient_FollowUpsAreBounded(t *testing.T) {
	responses := make([][]byte, 0, maxFollowUps+5)
	for i := 0; i < maxFollowUps+5; i++ {
		responses = append(responses, tlv.Hex("61 01"))
	}
	card := &scriptedCard{responses: responses}

	trace, err := NewClient(card).Send(NewCommand(tlv.Hex("00 B0 00 00 01")...))
	if err != nil {
		t.Fatal(err)
	}
	if len(trace) != maxFollowUps+1 {
		t.Errorf("trace length = %d, want %d", len(trace), maxFollowUps+1)
	}
}

func TestClient_SendOnce(t *testing.T) {
	tests := []struct {
		name      string
		responses [][]byte
	}{
		{"61XX is returned as is", [][]byte{tlv.Hex("61 04"), tlv.Hex("CA FE 90 00")}},
		{"6CXX is returned as is", [][]byte{tlv.Hex("6C 10"), tlv.Hex("CA FE 90 00")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := &scriptedCard{responses: tt.responses}
			resp, err := NewClient(card).SendOnce(NewCommand(tlv.Hex("00 B0 00 00 17")...))
			if err != nil {
				t.Fatalf("SendOnce failed: %v", err)
			}
			if len(card.seen) != 1 {
				t.Errorf("%d commands transmitted, want 1", len(card.seen))
			}
			if diff := cmp.Diff(tt.responses[0], resp.Bytes()); diff != "" {
				t.Errorf("response mismatch (-want +got):\n%s", diff)
			}
		})
	}

	boom := errors.New("reader unplugged")
	if _, err := NewClient(&scriptedCard{err: boom}).SendOnce(NewCommand(tlv.Hex("00 B0 00 00 01")...)); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}
