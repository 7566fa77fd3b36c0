// Package pcsc bridges CT-API terminals onto PC/SC readers.
//
// PORT MAPPING:
// CT-API opens a terminal on a port number. Here the port number is the index
// of the reader in the PC/SC reader list (COM1 is the first reader).
//
// KERNEL EMULATION:
// PC/SC has no CT-BCS kernel, so commands addressed to CT are answered from the
// reader state:
//
//	GET STATUS 46   15 byte manufacturer block built from the reader name
//	GET STATUS 80   00 empty, 01 card present, 05 card connected
//	REQUEST ICC     connect and return the card header + 90 00,
//	                62 01 if already connected, 62 00 if the reader is empty
//	EJECT ICC       disconnect (unpower) the card
//	RESET CT        same as EJECT ICC
//
// Commands addressed to ICC1 are transmitted to the connected card as is.
//
// SYNCHRONOUS CARDS:
// Readers report memory cards with an ISO ATR "3B 04" followed by the 4 byte
// synchronous header. REQUEST ICC answers with the header only, which is what
// a CT-API terminal returns.
package pcsc

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ebfe/scard"
	"github.com/gregLibert/ct-terminal/pkg/ctapi"
	"github.com/gregLibert/ct-terminal/pkg/ctbcs"
	"github.com/gregLibert/ct-terminal/pkg/iso7816"
)

// pcscContext is the subset of *scard.Context used by the bridge.
type pcscContext interface {
	ListReaders() ([]string, error)
	GetStatusChange(readerStates []scard.ReaderState, timeout time.Duration) error
	Connect(reader string) (pcscCard, error)
	Release() error
}

// pcscCard is the subset of *scard.Card used by the bridge.
type pcscCard interface {
	Transmit(cmd []byte) ([]byte, error)
	Status() (*scard.CardStatus, error)
	Disconnect(d scard.Disposition) error
}

type scardContext struct {
	*scard.Context
}

func (c scardContext) Connect(reader string) (pcscCard, error) {
	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors
	return c.Context.Connect(reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
}

func establish() (pcscContext, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish PC/SC context: %w", err)
	}
	return scardContext{ctx}, nil
}

type channel struct {
	reader string
	card   pcscCard
}

// Transport implements ctapi.Transport over PC/SC. It is safe for
// concurrent use. The PC/SC context lives while at least one terminal is open.
type Transport struct {
	mu        sync.Mutex
	establish func() (pcscContext, error)
	ctx       pcscContext
	channels  map[uint16]*channel
	log       *slog.Logger
}

// New creates a PC/SC transport. A nil logger means slog.Default().
func New(logger *slog.Logger) *Transport {
	return newTransport(establish, logger)
}

func newTransport(fn func() (pcscContext, error), logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		establish: fn,
		channels:  make(map[uint16]*channel),
		log:       logger.With("transport", "pcsc"),
	}
}

func invalid(op string) error {
	return &ctapi.Error{Op: op, Code: ctapi.ERR_INVALID}
}

// Readers lists the readers in port order.
func (t *Transport) Readers() ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.ensureContext(); err != nil {
		return nil, err
	}
	defer t.releaseIfIdle()
	return t.ctx.ListReaders()
}

func (t *Transport) ensureContext() error {
	if t.ctx != nil {
		return nil
	}
	ctx, err := t.establish()
	if err != nil {
		return err
	}
	t.ctx = ctx
	return nil
}

func (t *Transport) releaseIfIdle() {
	if len(t.channels) > 0 || t.ctx == nil {
		return
	}
	if err := t.ctx.Release(); err != nil {
		t.log.Warn("failed to release context", "err", err)
	}
	t.ctx = nil
}

// Open implements ctapi.Transport. The port selects the reader by index.
func (t *Transport) Open(ctn uint16, port ctbcs.Port) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, open := t.channels[ctn]; open {
		return invalid("CT_init")
	}
	if err := t.ensureContext(); err != nil {
		return fmt.Errorf("%w: %w", &ctapi.Error{Op: "CT_init", Code: ctapi.ERR_HTSI}, err)
	}

	readers, err := t.ctx.ListReaders()
	if err != nil || int(port) >= len(readers) {
		t.releaseIfIdle()
		if err == nil {
			err = fmt.Errorf("no reader for %s (%d readers)", port, len(readers))
		}
		return fmt.Errorf("%w: %w", invalid("CT_init"), err)
	}

	t.channels[ctn] = &channel{reader: readers[port]}
	t.log.Debug("reader bound", "ctn", ctn, "port", port.String(), "reader", readers[port])
	return nil
}

// Close implements ctapi.Transport. The card is left powered for other
// applications.
func (t *Transport) Close(ctn uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, open := t.channels[ctn]
	if !open {
		return invalid("CT_close")
	}
	var err error
	if ch.card != nil {
		err = ch.card.Disconnect(scard.LeaveCard)
	}
	delete(t.channels, ctn)
	t.releaseIfIdle()
	if err != nil {
		return fmt.Errorf("%w: %w", &ctapi.Error{Op: "CT_close", Code: ctapi.ERR_CT}, err)
	}
	return nil
}

// Exchange implements ctapi.Transport.
func (t *Transport) Exchange(ctn uint16, dad, sad ctbcs.Address, cmd []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, open := t.channels[ctn]
	if !open || sad != ctbcs.HOST || len(cmd) < 4 {
		return nil, invalid("CT_data")
	}

	switch dad {
	case ctbcs.CT:
		return t.kernel(ch, cmd)
	case ctbcs.ICC1:
		if ch.card == nil {
			return status(iso7816.SW_ERR_EXEC_NO_INFO), nil
		}
		resp, err := ch.card.Transmit(cmd)
		if err != nil {
			if cardGone(err) {
				ch.card = nil
			}
			return nil, fmt.Errorf("%w: %w", &ctapi.Error{Op: "CT_data", Code: ctapi.ERR_TRANS}, err)
		}
		return resp, nil
	default:
		return nil, invalid("CT_data")
	}
}

func status(sw iso7816.StatusWord) []byte {
	return []byte{sw.SW1(), sw.SW2()}
}

func withStatus(data []byte, sw iso7816.StatusWord) []byte {
	return append(append([]byte(nil), data...), sw.SW1(), sw.SW2())
}

func (t *Transport) kernel(ch *channel, cmd []byte) ([]byte, error) {
	if cmd[0] != ctbcs.CLA {
		return status(iso7816.SW_ERR_CLA_NOT_SUPPORTED), nil
	}

	switch iso7816.InsCode(cmd[1]) {
	case iso7816.INS_GET_STATUS:
		switch cmd[3] {
		case ctbcs.P2_STATUS_MANUFACTURER:
			return withStatus(manufacturerBlock(ch.reader), iso7816.SW_NO_ERROR), nil
		case ctbcs.P2_STATUS_ICC:
			present, err := t.present(ch.reader)
			if err != nil {
				return nil, err
			}
			state := ctbcs.DATA_STATUS_NOCARD
			switch {
			case present && ch.card != nil:
				state = ctbcs.DATA_STATUS_CARD_CONNECT
			case present:
				state = ctbcs.DATA_STATUS_CARD
			}
			return withStatus([]byte{state}, iso7816.SW_NO_ERROR), nil
		default:
			return status(iso7816.SW_ERR_WRONG_P1P2), nil
		}

	case iso7816.INS_REQUEST_ICC:
		if ch.card != nil {
			return status(iso7816.SW_NOT_CHANGED), nil
		}
		present, err := t.present(ch.reader)
		if err != nil {
			return nil, err
		}
		if !present {
			return status(iso7816.SW_CHANGED), nil
		}
		card, err := t.ctx.Connect(ch.reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", &ctapi.Error{Op: "CT_data", Code: ctapi.ERR_TRANS}, err)
		}
		st, err := card.Status()
		if err != nil {
			_ = card.Disconnect(scard.LeaveCard)
			return nil, fmt.Errorf("%w: %w", &ctapi.Error{Op: "CT_data", Code: ctapi.ERR_TRANS}, err)
		}
		ch.card = card
		return withStatus(header(st.Atr), iso7816.SW_NO_ERROR), nil

	case iso7816.INS_EJECT_ICC, iso7816.INS_RESET_CT:
		if ch.card != nil {
			if err := ch.card.Disconnect(scard.UnpowerCard); err != nil {
				t.log.Warn("failed to disconnect card", "reader", ch.reader, "err", err)
			}
			ch.card = nil
		}
		return status(iso7816.SW_NO_ERROR), nil

	default:
		return status(iso7816.SW_ERR_INS_INVALID), nil
	}
}

func (t *Transport) present(reader string) (bool, error) {
	readerStates := []scard.ReaderState{
		{Reader: reader, CurrentState: scard.StateUnaware},
	}
	if err := t.ctx.GetStatusChange(readerStates, 0); err != nil {
		return false, fmt.Errorf("%w: %w", &ctapi.Error{Op: "CT_data", Code: ctapi.ERR_CT}, err)
	}
	return readerStates[0].EventState&scard.StatePresent != 0, nil
}

var syncPrefix = []byte{0x3B, 0x04}

// header strips the ISO wrapper readers put around synchronous card headers.
func header(atr []byte) []byte {
	if len(atr) == 6 && bytes.HasPrefix(atr, syncPrefix) {
		return atr[2:]
	}
	return atr
}

// manufacturerBlock lays out the reader name as a CT-BCS manufacturer block:
// the first word as manufacturer, the second as model, "PCSC" as revision.
func manufacturerBlock(reader string) []byte {
	words := strings.Fields(reader)
	word := func(i int) string {
		if i < len(words) {
			return words[i]
		}
		return ""
	}
	return []byte(pad(word(0), 5) + pad(word(1), 3) + "  " + pad("PCSC", 5))
}

func pad(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}

func cardGone(err error) bool {
	return errors.Is(err, scard.ErrRemovedCard) ||
		errors.Is(err, scard.ErrResetCard) ||
		errors.Is(err, scard.ErrNoSmartcard) ||
		errors.Is(err, scard.ErrUnpoweredCard)
}
