package ctapi

import (
	"github.com/gregLibert/ct-terminal/pkg/ctbcs"
	"github.com/gregLibert/ct-terminal/pkg/iso7816"
)

// EnterPIN presents pin to the card (VERIFY).
func (t *Terminal) EnterPIN(pin []byte) (bool, error) {
	if len(pin) > MaxChunkSize {
		return false, &ArgumentError{Op: "enter pin", Arg: "pin length", Value: len(pin), Reason: "must be <= 255"}
	}
	cmd, err := iso7816.Verify(pin)
	if err != nil {
		return false, err
	}
	return t.sendCard(cmd)
}

// ChangePIN replaces oldPIN by newPIN (CHANGE REFERENCE DATA).
func (t *Terminal) ChangePIN(oldPIN, newPIN []byte) (bool, error) {
	if n := len(oldPIN) + len(newPIN); n > MaxChunkSize {
		return false, &ArgumentError{Op: "change pin", Arg: "old and new pin length", Value: n, Reason: "must be <= 255"}
	}
	cmd, err := iso7816.ChangeReferenceData(oldPIN, newPIN)
	if err != nil {
		return false, err
	}
	return t.sendCard(cmd)
}

func (t *Terminal) sendCard(cmd *iso7816.Command) (bool, error) {
	resp, err := t.exchange(t.slot, ctbcs.HOST, cmd)
	if err != nil {
		return false, err
	}
	return resp.IsSuccessful(), nil
}
