package ctbcs

import "github.com/gregLibert/ct-terminal/pkg/iso7816"

// CardStatus is the slot state reported by GET STATUS (P2 = 80).
type CardStatus int

const (
	StatusUnknown CardStatus = iota
	NoCard
	Card
	CardConnect
)

func (s CardStatus) String() string {
	switch s {
	case NoCard:
		return "no card"
	case Card:
		return "card"
	case CardConnect:
		return "card connected"
	default:
		return "unknown"
	}
}

// Inserted reports whether a card sits in the slot, activated or not.
func (s CardStatus) Inserted() bool {
	return s == Card || s == CardConnect
}

// ParseCardStatus maps the first byte of an ICC status response. A nil,
// empty or unsuccessful response yields StatusUnknown.
func ParseCardStatus(resp *iso7816.Response) CardStatus {
	if resp == nil || !resp.IsSuccessful() {
		return StatusUnknown
	}
	b, ok := resp.At(0)
	if !ok || resp.Len() < 3 {
		return StatusUnknown
	}
	switch b {
	case DATA_STATUS_NOCARD:
		return NoCard
	case DATA_STATUS_CARD:
		return Card
	case DATA_STATUS_CARD_CONNECT:
		return CardConnect
	default:
		return StatusUnknown
	}
}

// CardChange is the outcome of a reset compared to the previous one.
type CardChange int

const (
	// ChangeUnknown means the reset failed, nothing can be said.
	ChangeUnknown CardChange = iota
	CardUnchanged
	CardReplaced
)

func (c CardChange) String() string {
	switch c {
	case CardUnchanged:
		return "unchanged"
	case CardReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}
