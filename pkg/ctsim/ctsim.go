// Package ctsim is an in-memory CT-API terminal with a synchronous memory
// card. It implements ctapi.Transport and records every exchange, so sessions
// can be driven end to end without hardware.
//
// Example:
//
//	sim := ctsim.New(ctsim.WithCard(ctsim.NewMemoryCard(tlv.Hex("A2 13 10 91"))))
//	t, err := ctapi.NewRegistry().Open(sim, ctbcs.COM1)
package ctsim

import (
	"bytes"
	"sync"

	"github.com/gregLibert/ct-terminal/pkg/atr"
	"github.com/gregLibert/ct-terminal/pkg/ctapi"
	"github.com/gregLibert/ct-terminal/pkg/ctbcs"
	"github.com/gregLibert/ct-terminal/pkg/iso7816"
)

// DefaultManufacturer is the manufacturer block of a simulator.
const DefaultManufacturer = "SIMCTMC1DE01.00"

// Card is a synchronous memory card.
type Card struct {
	// ATR holds H1..H4, the simulator appends 90 00.
	ATR []byte

	// Memory is the card content. Its length is the card capacity.
	Memory []byte

	// PIN protects UPDATE BINARY when non empty.
	PIN []byte

	verified bool
}

// NewMemoryCard creates a blank card sized after its ATR.
func NewMemoryCard(header []byte) *Card {
	resp := iso7816.NewResponse(append(append([]byte(nil), header...), 0x90, 0x00))
	return &Card{
		ATR:    append([]byte(nil), header...),
		Memory: make([]byte, atr.New(resp).MemorySize()),
	}
}

// Exchange is one recorded CT_data call.
type Exchange struct {
	Ctn      uint16
	DAD, SAD ctbcs.Address
	Command  []byte
	Response []byte
	Err      error
}

// Ins returns the instruction byte of the command.
func (e Exchange) Ins() iso7816.InsCode {
	return iso7816.NewCommand(e.Command...).Instruction()
}

// Simulator is a CT-BCS terminal with one slot. It is safe for concurrent use.
type Simulator struct {
	mu sync.Mutex

	manufacturer []byte
	keepActive   bool
	channels     map[uint16]ctbcs.Port
	card         *Card
	activated    bool

	failSW    map[int]iso7816.StatusWord
	failErr   map[int]error
	failIns   map[iso7816.InsCode]error
	exchanges []Exchange

	// OpenError, if set, is returned by Open.
	OpenError error

	// CloseError, if set, is returned by Close.
	CloseError error
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithCard inserts card before the first exchange.
func WithCard(card *Card) Option {
	return func(s *Simulator) {
		s.card = card
	}
}

// WithManufacturer sets the manufacturer block returned by GET STATUS.
func WithManufacturer(block string) Option {
	return func(s *Simulator) {
		s.manufacturer = []byte(block)
	}
}

// WithKeepActiveOnEject leaves the card activated on EJECT ICC, so the next
// REQUEST ICC answers 62 01.
func WithKeepActiveOnEject(keep bool) Option {
	return func(s *Simulator) {
		s.keepActive = keep
	}
}

// New creates a simulator.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		manufacturer: []byte(DefaultManufacturer),
		channels:     make(map[uint16]ctbcs.Port),
		failSW:       make(map[int]iso7816.StatusWord),
		failErr:      make(map[int]error),
		failIns:      make(map[iso7816.InsCode]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert puts card in the slot, replacing any card there.
func (s *Simulator) Insert(card *Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.card = card
	s.activated = false
}

// Remove empties the slot.
func (s *Simulator) Remove() {
	s.Insert(nil)
}

// FailChunkAt makes READ/UPDATE BINARY at address answer sw.
func (s *Simulator) FailChunkAt(address int, sw iso7816.StatusWord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSW[address] = sw
}

// BreakChunkAt makes READ/UPDATE BINARY at address fail with a transport error.
func (s *Simulator) BreakChunkAt(address int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr[address] = err
}

// FailInstruction makes every command with ins fail with err. A nil err
// clears the failure.
func (s *Simulator) FailInstruction(ins iso7816.InsCode, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failIns, ins)
		return
	}
	s.failIns[ins] = err
}

// Exchanges returns a copy of the recorded exchanges.
func (s *Simulator) Exchanges() []Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Exchange(nil), s.exchanges...)
}

// Count returns how many recorded commands carried ins.
func (s *Simulator) Count(ins iso7816.InsCode) int {
	n := 0
	for _, e := range s.Exchanges() {
		if e.Ins() == ins {
			n++
		}
	}
	return n
}

// ResetLog clears the recorded exchanges.
func (s *Simulator) ResetLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = nil
}

// Open implements ctapi.Transport (CT_init).
func (s *Simulator) Open(ctn uint16, port ctbcs.Port) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenError != nil {
		return s.OpenError
	}
	if _, open := s.channels[ctn]; open {
		return &ctapi.Error{Op: "CT_init", Code: ctapi.ERR_INVALID}
	}
	s.channels[ctn] = port
	return nil
}

// Close implements ctapi.Transport (CT_close).
func (s *Simulator) Close(ctn uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, open := s.channels[ctn]; !open {
		return &ctapi.Error{Op: "CT_close", Code: ctapi.ERR_INVALID}
	}
	delete(s.channels, ctn)
	return s.CloseError
}

// IsOpen reports whether ctn is open.
func (s *Simulator) IsOpen(ctn uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, open := s.channels[ctn]
	return open
}

// Exchange implements ctapi.Transport (CT_data).
func (s *Simulator) Exchange(ctn uint16, dad, sad ctbcs.Address, cmd []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.exchange(ctn, dad, sad, cmd)
	s.exchanges = append(s.exchanges, Exchange{
		Ctn:      ctn,
		DAD:      dad,
		SAD:      sad,
		Command:  append([]byte(nil), cmd...),
		Response: append([]byte(nil), resp...),
		Err:      err,
	})
	return resp, err
}

func (s *Simulator) exchange(ctn uint16, dad, sad ctbcs.Address, cmd []byte) ([]byte, error) {
	if _, open := s.channels[ctn]; !open {
		return nil, &ctapi.Error{Op: "CT_data", Code: ctapi.ERR_INVALID}
	}
	if len(cmd) < 4 {
		return nil, &ctapi.Error{Op: "CT_data", Code: ctapi.ERR_INVALID}
	}
	if err := s.failIns[iso7816.InsCode(cmd[1])]; err != nil {
		return nil, err
	}

	switch {
	case dad == ctbcs.CT && sad == ctbcs.HOST:
		return s.kernel(cmd), nil
	case dad == ctbcs.ICC1 && sad == ctbcs.HOST:
		return s.cardCommand(cmd)
	default:
		return nil, &ctapi.Error{Op: "CT_data", Code: ctapi.ERR_INVALID}
	}
}

func status(sw iso7816.StatusWord) []byte {
	return []byte{sw.SW1(), sw.SW2()}
}

func withStatus(data []byte, sw iso7816.StatusWord) []byte {
	return append(append([]byte(nil), data...), sw.SW1(), sw.SW2())
}

func (s *Simulator) kernel(cmd []byte) []byte {
	if cmd[0] != ctbcs.CLA {
		return status(iso7816.SW_ERR_CLA_NOT_SUPPORTED)
	}

	switch iso7816.InsCode(cmd[1]) {
	case iso7816.INS_GET_STATUS:
		switch cmd[3] {
		case ctbcs.P2_STATUS_MANUFACTURER:
			return withStatus(s.manufacturer, iso7816.SW_NO_ERROR)
		case ctbcs.P2_STATUS_ICC:
			state := ctbcs.DATA_STATUS_NOCARD
			if s.card != nil {
				state = ctbcs.DATA_STATUS_CARD
				if s.activated {
					state = ctbcs.DATA_STATUS_CARD_CONNECT
				}
			}
			return withStatus([]byte{state}, iso7816.SW_NO_ERROR)
		default:
			return status(iso7816.SW_ERR_WRONG_P1P2)
		}

	case iso7816.INS_REQUEST_ICC:
		switch {
		case s.card == nil:
			return status(iso7816.SW_CHANGED)
		case s.activated:
			return status(iso7816.SW_NOT_CHANGED)
		}
		s.activated = true
		s.card.verified = false
		return withStatus(s.card.ATR, iso7816.SW_NO_ERROR)

	case iso7816.INS_EJECT_ICC:
		if !s.keepActive {
			s.activated = false
		}
		return status(iso7816.SW_NO_ERROR)

	case iso7816.INS_RESET_CT:
		s.activated = false
		return status(iso7816.SW_NO_ERROR)

	default:
		return status(iso7816.SW_ERR_INS_INVALID)
	}
}

func (s *Simulator) cardCommand(cmd []byte) ([]byte, error) {
	if s.card == nil || !s.activated {
		return status(iso7816.SW_ERR_EXEC_NO_INFO), nil
	}
	if cmd[0] != iso7816.ClassInterindustry {
		return status(iso7816.SW_ERR_CLA_NOT_SUPPORTED), nil
	}

	ins := iso7816.InsCode(cmd[1])
	address := int(cmd[2])<<8 | int(cmd[3])
	var body []byte
	if len(cmd) > 5 {
		body = cmd[5:]
	}
	if len(cmd) < 5 || (len(cmd) > 5 && len(body) != int(cmd[4])) {
		return status(iso7816.SW_ERR_WRONG_LENGTH), nil
	}

	if ins == iso7816.INS_READ_BINARY || ins == iso7816.INS_UPDATE_BINARY {
		if err := s.failErr[address]; err != nil {
			return nil, err
		}
		if sw, ok := s.failSW[address]; ok {
			return status(sw), nil
		}
	}

	card := s.card
	switch ins {
	case iso7816.INS_SELECT:
		if bytes.Equal(body, iso7816.MasterFile) {
			return status(iso7816.SW_NO_ERROR), nil
		}
		return status(iso7816.SW_ERR_FILE_NOT_FOUND), nil

	case iso7816.INS_READ_BINARY:
		n := int(cmd[4])
		if n == 0 {
			n = iso7816.MaxShortLe
		}
		if address+n > len(card.Memory) {
			return status(iso7816.SW_ERR_WRONG_P1P2), nil
		}
		return withStatus(card.Memory[address:address+n], iso7816.SW_NO_ERROR), nil

	case iso7816.INS_UPDATE_BINARY:
		if len(card.PIN) > 0 && !card.verified {
			return status(iso7816.SW_ERR_SECURITY_STATUS_NOT_SAT), nil
		}
		if address+len(body) > len(card.Memory) {
			return status(iso7816.SW_ERR_WRONG_P1P2), nil
		}
		copy(card.Memory[address:], body)
		return status(iso7816.SW_NO_ERROR), nil

	case iso7816.INS_VERIFY:
		if len(card.PIN) > 0 && !bytes.Equal(body, card.PIN) {
			card.verified = false
			return status(iso7816.SW_WARN_NV_CHANGED_NO_INFO), nil
		}
		card.verified = true
		return status(iso7816.SW_NO_ERROR), nil

	case iso7816.INS_CHANGE_REFERENCE_DATA:
		n := len(card.PIN)
		if len(body) < n || !bytes.Equal(body[:n], card.PIN) {
			return status(iso7816.SW_WARN_NV_CHANGED_NO_INFO), nil
		}
		card.PIN = append([]byte(nil), body[n:]...)
		card.verified = true
		return status(iso7816.SW_NO_ERROR), nil

	default:
		return status(iso7816.SW_ERR_INS_INVALID), nil
	}
}
