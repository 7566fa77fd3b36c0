package ctapi

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/gregLibert/ct-terminal/pkg/ctbcs"
	"github.com/gregLibert/ct-terminal/pkg/iso7816"
)

// Registry hands out terminal numbers. It is safe for concurrent use; the
// lock only guards the number map and is never held during terminal I/O.
type Registry struct {
	mu   sync.Mutex
	used map[int]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{used: make(map[int]struct{})}
}

// Allocate marks a terminal number as occupied and returns it. A requested
// number >= 0 is taken as is; AnyNumber picks the smallest free number.
func (r *Registry) Allocate(requested int) int {
	n, _ := r.allocate(requested)
	return n
}

// allocate is Allocate that also reports whether n was free before.
func (r *Registry) allocate(requested int) (n int, inserted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n = requested
	if n < 0 {
		for n = 0; ; n++ {
			if _, taken := r.used[n]; !taken {
				break
			}
		}
	}
	if _, taken := r.used[n]; taken {
		return n, false
	}
	r.used[n] = struct{}{}
	return n, true
}

// Release frees a terminal number. Releasing a free number is a no-op.
func (r *Registry) Release(n int) {
	r.mu.Lock()
	delete(r.used, n)
	r.mu.Unlock()
}

// InUse reports whether n is occupied.
func (r *Registry) InUse(n int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.used[n]
	return ok
}

// Numbers returns the occupied numbers in ascending order.
func (r *Registry) Numbers() []int {
	r.mu.Lock()
	out := make([]int, 0, len(r.used))
	for n := range r.used {
		out = append(out, n)
	}
	r.mu.Unlock()
	slices.Sort(out)
	return out
}

// Open starts a terminal session on port. See the package documentation for
// the opening sequence. A card that is missing or fails to reset does not
// make Open fail.
func (r *Registry) Open(tr Transport, port ctbcs.Port, opts ...Option) (*Terminal, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	n, owned := r.allocate(cfg.Number)
	if n > MaxNumber {
		if owned {
			r.Release(n)
		}
		return nil, &ArgumentError{Op: "open", Arg: "terminal number", Value: n, Reason: "no free number left"}
	}

	t := newTerminal(r, tr, n, port, cfg)
	t.ownsNumber = owned

	if err := tr.Open(t.ctn(), port); err != nil {
		if owned {
			r.Release(n)
		}
		return nil, fmt.Errorf("open terminal %d on %s: %w", n, port, err)
	}
	t.state = StateActive
	t.log.Debug("terminal opened")

	resp, err := t.Send(ctbcs.CT, ctbcs.HOST, ctbcs.ManufacturerStatus())
	if err != nil {
		if cerr := t.Close(); cerr != nil {
			t.log.Warn("close after failed open", "err", cerr)
		}
		return nil, fmt.Errorf("terminal %d manufacturer status: %w", n, err)
	}
	t.manufacturer = ctbcs.ParseManufacturer(resp)

	t.Reset()

	if ok, err := t.SelectFile(iso7816.MasterFile...); err != nil || !ok {
		t.log.Debug("select master file failed", "err", err)
	}
	return t, nil
}

// With opens a terminal, runs fn and closes the terminal on every exit path,
// panics included. The error of fn takes precedence over the close error.
func (r *Registry) With(tr Transport, port ctbcs.Port, fn func(*Terminal) error, opts ...Option) (err error) {
	t, err := r.Open(tr, port, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := t.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(t)
}

func newSessionID() string {
	return uuid.NewString()
}
