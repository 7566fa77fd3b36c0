package ctapi

import (
	"errors"
	"fmt"
)

// ReturnCode is a CT-API function result.
type ReturnCode int8

const (
	OK          ReturnCode = 0
	ERR_INVALID ReturnCode = -1
	ERR_CT      ReturnCode = -8
	ERR_TRANS   ReturnCode = -10
	ERR_MEMORY  ReturnCode = -11
	ERR_HTSI    ReturnCode = -128
)

func (c ReturnCode) String() string {
	switch c {
	case OK:
		return "OK"
	case ERR_INVALID:
		return "invalid parameter or value"
	case ERR_CT:
		return "card terminal error"
	case ERR_TRANS:
		return "transmission error"
	case ERR_MEMORY:
		return "memory allocation error"
	case ERR_HTSI:
		return "host transport service interface error"
	default:
		return fmt.Sprintf("unknown return code %d", int8(c))
	}
}

// Error is a CT-API call that returned a code other than OK.
type Error struct {
	Op   string // CT_init, CT_data or CT_close
	Code ReturnCode
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("ctapi: %s (%d)", e.Code, int8(e.Code))
	}
	return fmt.Sprintf("ctapi: %s: %s (%d)", e.Op, e.Code, int8(e.Code))
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

var (
	ErrInvalid = &Error{Code: ERR_INVALID}
	ErrCT      = &Error{Code: ERR_CT}
	ErrTrans   = &Error{Code: ERR_TRANS}
	ErrMemory  = &Error{Code: ERR_MEMORY}
	ErrHTSI    = &Error{Code: ERR_HTSI}
)

// CheckReturnCode returns nil for OK and an *Error otherwise.
func CheckReturnCode(op string, rc ReturnCode) error {
	if rc == OK {
		return nil
	}
	return &Error{Op: op, Code: rc}
}

// ErrClosed is returned by operations on a closed terminal.
var ErrClosed = errors.New("ctapi: terminal closed")

// ArgumentError reports an argument outside its allowed range. Nothing has
// been sent to the terminal when it is returned.
type ArgumentError struct {
	Op     string
	Arg    string
	Value  int
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: invalid %s %d: %s", e.Op, e.Arg, e.Value, e.Reason)
}

// IsArgumentError returns true if err is or wraps an *ArgumentError.
func IsArgumentError(err error) bool {
	var ae *ArgumentError
	return errors.As(err, &ae)
}
