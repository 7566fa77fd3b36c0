package ctapi

import (
	"fmt"
	"log/slog"

	"github.com/gregLibert/ct-terminal/pkg/atr"
	"github.com/gregLibert/ct-terminal/pkg/ctbcs"
	"github.com/gregLibert/ct-terminal/pkg/iso7816"
)

// State is the lifecycle state of a Terminal.
type State int

const (
	StateOpening State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal is an open CT-API session. A Terminal is meant to be used by one
// goroutine at a time.
type Terminal struct {
	reg *Registry
	tr  Transport
	log *slog.Logger

	number    int
	port      ctbcs.Port
	slot      ctbcs.Address
	chunkSize int
	trace     bool
	session   string
	state     State

	// ownsNumber is set when this session took its number while it was free.
	ownsNumber bool

	manufacturer *ctbcs.Manufacturer
	card         *atr.Card
	previousCard *atr.Card

	// lastRequest is the raw answer to the last REQUEST ICC, nil if none was received.
	lastRequest *iso7816.Response
}

func newTerminal(reg *Registry, tr Transport, number int, port ctbcs.Port, cfg Config) *Terminal {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	session := newSessionID()
	return &Terminal{
		reg:       reg,
		tr:        tr,
		log:       logger.With("terminal", number, "session", session, "port", port.String()),
		number:    number,
		port:      port,
		slot:      cfg.Slot,
		chunkSize: cfg.ChunkSize,
		trace:     cfg.Trace,
		session:   session,
		state:     StateOpening,
	}
}

func (t *Terminal) ctn() uint16 {
	return uint16(t.number)
}

// Number returns the terminal number.
func (t *Terminal) Number() int { return t.number }

// Port returns the interface the terminal was opened on.
func (t *Terminal) Port() ctbcs.Port { return t.port }

// Slot returns the card slot addressed by card commands.
func (t *Terminal) Slot() ctbcs.Address { return t.slot }

// SetSlot changes the card slot addressed by card commands.
func (t *Terminal) SetSlot(slot ctbcs.Address) error {
	if !slot.IsSlot() {
		return &ArgumentError{Op: "set slot", Arg: "slot", Value: int(slot), Reason: "must be ICC1..ICC14"}
	}
	t.slot = slot
	return nil
}

// ChunkSize returns the maximum data size per READ/UPDATE BINARY.
func (t *Terminal) ChunkSize() int { return t.chunkSize }

// SetChunkSize sets the maximum data size per READ/UPDATE BINARY (1-255).
func (t *Terminal) SetChunkSize(n int) error {
	if err := checkChunkSize("set chunk size", n); err != nil {
		return err
	}
	t.chunkSize = n
	return nil
}

// Manufacturer returns the terminal identification, nil if the terminal
// did not answer the manufacturer status.
func (t *Terminal) Manufacturer() *ctbcs.Manufacturer { return t.manufacturer }

// Card returns the current card, nil if none was activated.
func (t *Terminal) Card() *atr.Card { return t.card }

// PreviousCard returns the card that was current before the last REQUEST ICC.
func (t *Terminal) PreviousCard() *atr.Card { return t.previousCard }

// SessionID identifies the session in logs.
func (t *Terminal) SessionID() string { return t.session }

// State returns the lifecycle state.
func (t *Terminal) State() State { return t.state }

// Data sends each command from sad to dad, in order, and returns the trace
// of the exchanges. It stops at the first transport error and returns the
// trace completed so far together with the error.
func (t *Terminal) Data(dad, sad ctbcs.Address, cmds ...*iso7816.Command) (iso7816.Trace, error) {
	if t.state == StateClosed {
		return nil, ErrClosed
	}

	client := iso7816.NewClient(t.transmitter(dad, sad))
	var trace iso7816.Trace
	for _, cmd := range cmds {
		sub, err := client.Send(cmd)
		trace = append(trace, sub...)
		if err != nil {
			return trace, fmt.Errorf("terminal %d to %s: %w", t.number, dad, err)
		}
	}
	return trace, nil
}

// Send sends a single command and returns its final response.
func (t *Terminal) Send(dad, sad ctbcs.Address, cmd *iso7816.Command) (*iso7816.Response, error) {
	trace, err := t.Data(dad, sad, cmd)
	if err != nil {
		return nil, err
	}
	return trace.Last().Response, nil
}

// exchange sends cmd once from sad to dad. 61XX and 6CXX answers are
// returned as is.
func (t *Terminal) exchange(dad, sad ctbcs.Address, cmd *iso7816.Command) (*iso7816.Response, error) {
	if t.state == StateClosed {
		return nil, ErrClosed
	}
	resp, err := iso7816.NewClient(t.transmitter(dad, sad)).SendOnce(cmd)
	if err != nil {
		return nil, fmt.Errorf("terminal %d to %s: %w", t.number, dad, err)
	}
	return resp, nil
}

func (t *Terminal) transmitter(dad, sad ctbcs.Address) iso7816.TransmitFunc {
	return func(cmd []byte) ([]byte, error) {
		if t.trace {
			t.log.Debug(">>> "+iso7816.NewCommand(cmd...).String(), "dad", dad.String())
		}
		resp, err := t.tr.Exchange(t.ctn(), dad, sad, cmd)
		if err != nil {
			if t.trace {
				t.log.Debug("<<< error", "dad", dad.String(), "err", err)
			}
			return nil, err
		}
		if t.trace {
			t.log.Debug("<<< "+iso7816.NewResponse(resp).String(), "dad", dad.String())
		}
		return resp, nil
	}
}

// SelectFile selects fid on the card, the master file when fid is empty.
// It reports whether the card answered 90 00.
func (t *Terminal) SelectFile(fid ...byte) (bool, error) {
	cmd, err := selectCommand(fid)
	if err != nil {
		return false, err
	}
	resp, err := t.exchange(t.slot, ctbcs.HOST, cmd)
	if err != nil {
		return false, err
	}
	return resp.IsSuccessful(), nil
}

// FileInfo selects fid and decodes the control parameters the card returned.
// It returns nil when the selection failed or the card returned no data.
// Unlike SelectFile, a 61XX answer is followed by GET RESPONSE.
func (t *Terminal) FileInfo(fid ...byte) (*iso7816.FileControl, error) {
	cmd, err := selectCommand(fid)
	if err != nil {
		return nil, err
	}
	resp, err := t.Send(t.slot, ctbcs.HOST, cmd)
	if err != nil || !resp.IsSuccessful() {
		return nil, err
	}
	return iso7816.ParseFileControl(resp.Data())
}

func selectCommand(fid []byte) (*iso7816.Command, error) {
	if len(fid) == 0 {
		fid = iso7816.MasterFile
	}
	cmd, err := iso7816.SelectFile(fid)
	if err != nil {
		return nil, &ArgumentError{Op: "select file", Arg: "file identifier length", Value: len(fid), Reason: "must be <= 255"}
	}
	return cmd, nil
}

// Close ends the session and releases the terminal number. Closing a closed
// terminal is a no-op.
func (t *Terminal) Close() error {
	if t.state == StateClosed {
		return nil
	}
	t.state = StateClosed
	err := t.tr.Close(t.ctn())
	if t.ownsNumber {
		t.reg.Release(t.number)
	}
	if err != nil {
		return fmt.Errorf("close terminal %d: %w", t.number, err)
	}
	t.log.Debug("terminal closed")
	return nil
}

// String renders "terminal 0 on COM1".
func (t *Terminal) String() string {
	return fmt.Sprintf("terminal %d on %s", t.number, t.port)
}
