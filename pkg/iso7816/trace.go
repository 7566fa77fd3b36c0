package iso7816

// TRANSACTION:
// A Transaction is the atomic unit of communication with a card terminal:
// one Command APDU sent by the host, followed by one Response APDU returned by
// the terminal or by the card behind it.
//
// TRACE:
// A Trace is a chronological sequence of Transactions. A single logical call may
// send several commands in a row (e.g. "status, then request"), and the Trace
// keeps every response. IsSuccess() evaluates the final outcome.

// Transaction represents a completed Command-Response pair.
type Transaction struct {
	Command  *Command
	Response *Response
}

// IsSuccess checks if the transaction ended with 90 00.
// It returns false if the response is missing.
func (t *Transaction) IsSuccess() bool {
	if t.Response == nil {
		return false
	}
	return t.Response.IsSuccessful()
}

// Trace is a sequence of transactions (Command-Response pairs).
type Trace []Transaction

// Last returns the final transaction of the trace.
// Returns nil if the trace is empty.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess checks if the FINAL transaction in the trace was successful.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}

// Responses returns the responses in order.
func (t Trace) Responses() []*Response {
	out := make([]*Response, len(t))
	for i := range t {
		out[i] = t[i].Response
	}
	return out
}
