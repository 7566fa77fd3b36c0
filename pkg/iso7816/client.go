package iso7816

import (
	"fmt"
)

// CLIENT & PROTOCOL LOGIC:
// The Client sends commands to one destination (a card slot) over a
// Transmitter and resolves the two T=0 transport behaviors that reach
// the application layer:
//
// 1. "61 XX" (Response Available):
//    XX bytes are waiting. The client sends GET RESPONSE with Le = XX, in the
//    class of the original command.
//
// 2. "6C XX" (Wrong Length):
//    Le was wrong and XX is the right one. The client re-sends the original
//    command with Le = XX. Only header + Le commands (Case 2 short) are retried.
//
// Send() returns every transaction made to fulfill the request. SendOnce()
// makes a single exchange and hands 61XX/6CXX answers back unresolved.

// maxFollowUps bounds the chain of 61XX/6CXX round trips of a single Send.
const maxFollowUps = 8

// Transmitter abstracts the connection to one destination.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// TransmitFunc adapts a function to the Transmitter interface.
type TransmitFunc func(cmd []byte) ([]byte, error)

// Transmit calls f(cmd).
func (f TransmitFunc) Transmit(cmd []byte) ([]byte, error) {
	return f(cmd)
}

// Client manages the high-level communication with the card.
type Client struct {
	Card Transmitter
}

// NewClient creates a new Client instance.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card}
}

// Send transmits a command and handles protocol logic (61xx, 6Cxx).
// On a transmission error the trace holds the transactions completed so far.
func (c *Client) Send(cmd *Command) (Trace, error) {
	var trace Trace

	for hop := 0; ; hop++ {
		rawResp, err := c.Card.Transmit(cmd.Bytes())
		if err != nil {
			return trace, fmt.Errorf("transmission error: %w", err)
		}
		resp := NewResponse(rawResp)
		trace = append(trace, Transaction{Command: cmd, Response: resp})

		if hop == maxFollowUps || resp.Len() != 2 {
			return trace, nil
		}

		sw := resp.Status()
		var next *Command
		switch sw.SW1() {
		case 0x61:
			next = getResponse(cmd, sw.SW2())
		case 0x6C:
			next = withLe(cmd, sw.SW2())
		}
		if next == nil {
			return trace, nil
		}
		cmd = next
	}
}

// SendOnce transmits cmd without any follow-up command.
func (c *Client) SendOnce(cmd *Command) (*Response, error) {
	rawResp, err := c.Card.Transmit(cmd.Bytes())
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}
	return NewResponse(rawResp), nil
}

func getResponse(orig *Command, le byte) *Command {
	cla := ClassInterindustry
	if orig.Len() > 0 {
		cla = orig.raw[0]
	}
	return NewCommand(cla, byte(INS_GET_RESPONSE), 0x00, 0x00, le)
}

func withLe(orig *Command, le byte) *Command {
	if orig.Len() != 5 {
		return nil
	}
	raw := orig.Bytes()
	raw[4] = le
	return &Command{raw: raw}
}
