package ctapi

import (
	"log/slog"

	"github.com/gregLibert/ct-terminal/pkg/ctbcs"
)

// Limits of a terminal session.
const (
	// AnyNumber lets the registry pick the smallest free terminal number.
	AnyNumber = -1

	// MaxNumber is the largest CT-API terminal number.
	MaxNumber = 0xFFFF

	// MaxChunkSize is the largest chunk a single READ/UPDATE BINARY can move.
	MaxChunkSize = 255
)

// Config holds the terminal configuration.
type Config struct {
	// Number is the requested terminal number, AnyNumber by default.
	Number int

	// Slot is the card slot addressed by card commands. Default is ICC1.
	Slot ctbcs.Address

	// ChunkSize is the maximum data size per READ/UPDATE BINARY (1-255).
	ChunkSize int

	// Logger receives session events. Default is slog.Default().
	Logger *slog.Logger

	// Trace logs every command and response at debug level.
	Trace bool
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Number:    AnyNumber,
		Slot:      ctbcs.ICC1,
		ChunkSize: MaxChunkSize,
	}
}

func (c *Config) validate() error {
	if c.Number < AnyNumber || c.Number > MaxNumber {
		return &ArgumentError{Op: "open", Arg: "terminal number", Value: c.Number, Reason: "must be in 0-65535"}
	}
	if err := checkChunkSize("open", c.ChunkSize); err != nil {
		return err
	}
	if !c.Slot.IsSlot() {
		return &ArgumentError{Op: "open", Arg: "slot", Value: int(c.Slot), Reason: "must be ICC1..ICC14"}
	}
	return nil
}

func checkChunkSize(op string, n int) error {
	if n <= 0 {
		return &ArgumentError{Op: op, Arg: "chunk size", Value: n, Reason: "must be > 0"}
	}
	if n > MaxChunkSize {
		return &ArgumentError{Op: op, Arg: "chunk size", Value: n, Reason: "must be <= 255"}
	}
	return nil
}

// Option is a functional option for configuring a Terminal.
type Option func(*Config)

// WithNumber requests a specific terminal number. The registry hands it out
// even if another session holds it; only the session that took the number
// while it was free releases it.
//
// Example:
//
//	t, err := reg.Open(tr, ctbcs.COM1, ctapi.WithNumber(2))
func WithNumber(n int) Option {
	return func(c *Config) {
		c.Number = n
	}
}

// WithSlot sets the card slot addressed by card commands.
func WithSlot(slot ctbcs.Address) Option {
	return func(c *Config) {
		c.Slot = slot
	}
}

// WithChunkSize sets the maximum data size per READ/UPDATE BINARY.
//
// Example:
//
//	t, err := reg.Open(tr, ctbcs.COM1, ctapi.WithChunkSize(23))
func WithChunkSize(n int) Option {
	return func(c *Config) {
		c.ChunkSize = n
	}
}

// WithLogger sets the logger of the session.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTrace enables command/response tracing at debug level.
func WithTrace(enabled bool) Option {
	return func(c *Config) {
		c.Trace = enabled
	}
}
