package ctsim

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/ct-terminal/pkg/ctapi"
	"github.com/gregLibert/ct-terminal/pkg/ctbcs"
	"github.com/gregLibert/ct-terminal/pkg/iso7816"
	"github.com/gregLibert/ct-terminal/pkg/tlv"
)

var header = tlv.Hex("A2 13 10 91")

func openSim(t *testing.T, opts ...Option) *Simulator {
	t.Helper()
	s := New(opts...)
	if err := s.Open(0, ctbcs.COM1); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func exchange(t *testing.T, s *Simulator, dad ctbcs.Address, cmd string) []byte {
	t.Helper()
	resp, err := s.Exchange(0, dad, ctbcs.HOST, tlv.Hex(cmd))
	if err != nil {
		t.Fatalf("Exchange(%s) failed: %v", cmd, err)
	}
	return resp
}

func TestNewMemoryCard(t *testing.T) {
	c := NewMemoryCard(header)
	if len(c.Memory) != 256 {
		t.Errorf("memory size = %d, want 256", len(c.Memory))
	}
}

func TestSimulator_Channels(t *testing.T) {
	s := openSim(t)

	var ctErr *ctapi.Error
	if err := s.Open(0, ctbcs.COM2); !errors.As(err, &ctErr) || ctErr.Code != ctapi.ERR_INVALID {
		t.Errorf("second Open on same number = %v, want ERR_INVALID", err)
	}
	if _, err := s.Exchange(7, ctbcs.CT, ctbcs.HOST, tlv.Hex("20 13 00 46 00")); !errors.Is(err, ctapi.ErrInvalid) {
		t.Errorf("Exchange on closed number = %v, want ErrInvalid", err)
	}
	if err := s.Close(0); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if s.IsOpen(0) {
		t.Error("channel should be closed")
	}
	if err := s.Close(0); !errors.Is(err, ctapi.ErrInvalid) {
		t.Errorf("double Close = %v, want ErrInvalid", err)
	}
}

func TestSimulator_Kernel(t *testing.T) {
	s := openSim(t, WithCard(NewMemoryCard(header)))

	steps := []struct {
		name string
		cmd  string
		want []byte
	}{
		{"Manufacturer", "20 13 00 46 00", append([]byte(DefaultManufacturer), 0x90, 0x00)},
		{"Card present, not activated", "20 13 00 80 00", tlv.Hex("01 90 00")},
		{"Request returns ATR", "20 12 01 01 00", tlv.Hex("A2 13 10 91 90 00")},
		{"Card connected", "20 13 00 80 00", tlv.Hex("05 90 00")},
		{"Second request is not changed", "20 12 01 01 00", tlv.Hex("62 01")},
		{"Eject", "20 15 01 00 00", tlv.Hex("90 00")},
		{"Request after eject returns ATR", "20 12 01 01 00", tlv.Hex("A2 13 10 91 90 00")},
		{"Unknown instruction", "20 99 00 00 00", tlv.Hex("6D 00")},
		{"Wrong class", "00 13 00 46 00", tlv.Hex("6E 00")},
	}

	for _, st := range steps {
		t.Run(st.name, func(t *testing.T) {
			if diff := cmp.Diff(st.want, exchange(t, s, ctbcs.CT, st.cmd)); diff != "" {
				t.Errorf("response mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSimulator_KeepActiveOnEject(t *testing.T) {
	s := openSim(t, WithCard(NewMemoryCard(header)), WithKeepActiveOnEject(true))
	exchange(t, s, ctbcs.CT, "20 12 01 01 00")
	exchange(t, s, ctbcs.CT, "20 15 01 00 00")
	if diff := cmp.Diff(tlv.Hex("62 01"), exchange(t, s, ctbcs.CT, "20 12 01 01 00")); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestSimulator_NoCard(t *testing.T) {
	s := openSim(t)
	if diff := cmp.Diff(tlv.Hex("00 90 00"), exchange(t, s, ctbcs.CT, "20 13 00 80 00")); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(tlv.Hex("62 00"), exchange(t, s, ctbcs.CT, "20 12 01 01 00")); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(tlv.Hex("64 00"), exchange(t, s, ctbcs.ICC1, "00 B0 00 00 01")); diff != "" {
		t.Errorf("read mismatch (-want +got):\n%s", diff)
	}
}

func TestSimulator_MemoryCard(t *testing.T) {
	card := NewMemoryCard(header)
	card.PIN = tlv.Hex("12 34 56")
	s := openSim(t, WithCard(card))
	exchange(t, s, ctbcs.CT, "20 12 01 01 00")

	steps := []struct {
		name string
		cmd  string
		want []byte
	}{
		{"Select MF", "00 A4 00 00 02 3F 00", tlv.Hex("90 00")},
		{"Select unknown file", "00 A4 00 00 02 2F 01", tlv.Hex("6A 82")},
		{"Write before verify", "00 D6 00 10 02 CA FE", tlv.Hex("69 82")},
		{"Wrong PIN", "00 20 00 00 03 00 00 00", tlv.Hex("63 00")},
		{"Right PIN", "00 20 00 00 03 12 34 56", tlv.Hex("90 00")},
		{"Write", "00 D6 00 10 02 CA FE", tlv.Hex("90 00")},
		{"Read back", "00 B0 00 0F 04", tlv.Hex("00 CA FE 00 90 00")},
		{"Read past the end", "00 B0 00 FF 02", tlv.Hex("6B 00")},
		{"Change PIN, wrong old", "00 24 00 00 04 00 00 00 99", tlv.Hex("63 00")},
		{"Change PIN", "00 24 00 00 05 12 34 56 AB CD", tlv.Hex("90 00")},
		{"Lc mismatch", "00 D6 00 00 03 01", tlv.Hex("67 00")},
		{"Unknown instruction", "00 CA 00 00 00", tlv.Hex("6D 00")},
	}

	for _, st := range steps {
		t.Run(st.name, func(t *testing.T) {
			if diff := cmp.Diff(st.want, exchange(t, s, ctbcs.ICC1, st.cmd)); diff != "" {
				t.Errorf("response mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if diff := cmp.Diff(tlv.Hex("AB CD"), card.PIN); diff != "" {
		t.Errorf("PIN mismatch (-want +got):\n%s", diff)
	}
}

func TestSimulator_FailureInjection(t *testing.T) {
	s := openSim(t, WithCard(NewMemoryCard(header)))
	exchange(t, s, ctbcs.CT, "20 12 01 01 00")

	s.FailChunkAt(0x20, iso7816.SW_ERR_MEMORY_FAILURE)
	if diff := cmp.Diff(tlv.Hex("65 81"), exchange(t, s, ctbcs.ICC1, "00 B0 00 20 01")); diff != "" {
		t.Errorf("injected status mismatch (-want +got):\n%s", diff)
	}

	boom := errors.New("cable pulled")
	s.BreakChunkAt(0x40, boom)
	if _, err := s.Exchange(0, ctbcs.ICC1, ctbcs.HOST, tlv.Hex("00 D6 00 40 01 00")); !errors.Is(err, boom) {
		t.Errorf("injected error = %v, want %v", err, boom)
	}

	s.FailInstruction(iso7816.INS_EJECT_ICC, boom)
	if _, err := s.Exchange(0, ctbcs.CT, ctbcs.HOST, tlv.Hex("20 15 01 00 00")); !errors.Is(err, boom) {
		t.Errorf("eject error = %v, want %v", err, boom)
	}
	s.FailInstruction(iso7816.INS_EJECT_ICC, nil)
	exchange(t, s, ctbcs.CT, "20 15 01 00 00")
}

func TestSimulator_Log(t *testing.T) {
	s := openSim(t, WithCard(NewMemoryCard(header)))
	exchange(t, s, ctbcs.CT, "20 12 01 01 00")
	exchange(t, s, ctbcs.ICC1, "00 B0 00 00 01")
	exchange(t, s, ctbcs.ICC1, "00 B0 00 01 01")

	if n := s.Count(iso7816.INS_READ_BINARY); n != 2 {
		t.Errorf("Count(READ BINARY) = %d, want 2", n)
	}
	log := s.Exchanges()
	if len(log) != 3 || log[0].DAD != ctbcs.CT || log[1].DAD != ctbcs.ICC1 {
		t.Errorf("unexpected log %+v", log)
	}
	s.ResetLog()
	if len(s.Exchanges()) != 0 {
		t.Error("log should be empty")
	}
}

func TestSimulator_RemoveAndInsert(t *testing.T) {
	s := openSim(t, WithCard(NewMemoryCard(header)))
	exchange(t, s, ctbcs.CT, "20 12 01 01 00")
	s.Remove()
	if diff := cmp.Diff(tlv.Hex("00 90 00"), exchange(t, s, ctbcs.CT, "20 13 00 80 00")); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	s.Insert(NewMemoryCard(tlv.Hex("86 23 10 00")))
	if diff := cmp.Diff(tlv.Hex("86 23 10 00 90 00"), exchange(t, s, ctbcs.CT, "20 12 01 01 00")); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}
