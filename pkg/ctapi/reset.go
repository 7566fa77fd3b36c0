package ctapi

import (
	"github.com/gregLibert/ct-terminal/pkg/atr"
	"github.com/gregLibert/ct-terminal/pkg/ctbcs"
	"github.com/gregLibert/ct-terminal/pkg/iso7816"
)

// RESET STATE MACHINE:
// A reset is EJECT ICC followed by REQUEST ICC. REQUEST ICC first asks the
// kernel whether a card is present, then requests the ATR:
//
//	no card / status failed  -> no current card
//	62 01 (not changed)      -> the previous Card instance stays current
//	anything else            -> a new Card is built from the answer
//
// Transport failures during a reset are logged, never returned. A reset whose
// eject failed still requests the card but reports no ATR.

// EjectICC deactivates the card. The response is not interpreted.
func (t *Terminal) EjectICC() (*iso7816.Response, error) {
	return t.Send(ctbcs.CT, ctbcs.HOST, ctbcs.EjectICC())
}

// RequestICC activates the card and returns the ATR response of the current
// card, nil when there is none.
func (t *Terminal) RequestICC() *iso7816.Response {
	if t.card != nil {
		t.previousCard = t.card
	}
	t.card = nil
	t.lastRequest = nil

	inserted, err := t.CardInserted()
	if err != nil {
		t.log.Warn("card status failed", "err", err)
		return nil
	}
	if !inserted {
		t.log.Debug("no card inserted")
		return nil
	}

	resp, err := t.Send(ctbcs.CT, ctbcs.HOST, ctbcs.RequestATR())
	if err != nil {
		t.log.Warn("request icc failed", "err", err)
		return nil
	}
	t.lastRequest = resp

	if resp.IsNotChanged() && t.previousCard != nil {
		t.card = t.previousCard
	} else {
		t.card = atr.New(resp)
	}
	t.log.Debug("card activated", "card", t.card.String(), "atr", resp.String())
	return t.card.Response()
}

// Reset ejects and requests the card. It returns the ATR response of the
// current card when both steps succeeded, nil otherwise.
func (t *Terminal) Reset() *iso7816.Response {
	_, ejectErr := t.EjectICC()
	if ejectErr != nil {
		t.log.Warn("eject icc failed", "err", ejectErr)
	}
	resp := t.RequestICC()
	if ejectErr != nil || resp == nil || !resp.IsSuccessful() {
		return nil
	}
	return resp
}

// RequestCardStatus asks the kernel for the slot state. It returns nil when
// the answer is unsuccessful.
func (t *Terminal) RequestCardStatus() (*iso7816.Response, error) {
	resp, err := t.Send(ctbcs.CT, ctbcs.HOST, ctbcs.ICCStatus())
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccessful() {
		return nil, nil
	}
	return resp, nil
}

// CardStatus returns the slot state.
func (t *Terminal) CardStatus() (ctbcs.CardStatus, error) {
	resp, err := t.RequestCardStatus()
	if err != nil {
		return ctbcs.StatusUnknown, err
	}
	return ctbcs.ParseCardStatus(resp), nil
}

// CardInserted reports whether a card sits in the terminal.
func (t *Terminal) CardInserted() (bool, error) {
	status, err := t.CardStatus()
	if err != nil {
		return false, err
	}
	return status.Inserted(), nil
}

// CardChanged resets the terminal and tells whether the card was replaced
// since the previous reset.
//
// Any failed reset gives ChangeUnknown. This includes a terminal answering
// 62 00 without ATR bytes: the Card built from that answer is current but
// not OK, and its geometry is decoded from the status bytes.
func (t *Terminal) CardChanged() ctbcs.CardChange {
	if t.Reset() == nil {
		return ctbcs.ChangeUnknown
	}
	if t.lastRequest != nil && t.lastRequest.IsNotChanged() {
		return ctbcs.CardUnchanged
	}
	return ctbcs.CardReplaced
}
