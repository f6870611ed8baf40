// Package bootstrap performs the one-time wiring of the processing context on the
// first invocation a worker process receives.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/aura-studio/lambda-bridge/registry"
)

var (
	ErrInitialization  = errors.New("bootstrap: initialization failed")
	ErrForeignRegistry = errors.New("bootstrap: gate already wired a different registry")
)

// InitError reports a failed wiring attempt. The gate stays uninitialized so the
// next invocation retries.
type InitError struct {
	Attempt int
	Err     error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("bootstrap: initialization attempt %d failed: %v", e.Attempt, e.Err)
}

func (e *InitError) Unwrap() []error {
	return []error{ErrInitialization, e.Err}
}

// Initializer wires the processing context into reg.
type Initializer func(ctx context.Context, reg *registry.Registry) error

// FromFactory returns an Initializer that builds the entry point and registers
// it under the registry's recognized name.
func FromFactory(f registry.Factory) Initializer {
	return func(ctx context.Context, reg *registry.Registry) error {
		if f == nil {
			return errors.New("nil entry point factory")
		}
		ep, err := f()
		if err != nil {
			return err
		}
		_, err = reg.Add(reg.Name(), ep)
		return err
	}
}

type Gate struct {
	// sem admits one wiring attempt at a time; waiting on it honours ctx.
	sem         chan struct{}
	initialized atomic.Bool
	wired       atomic.Pointer[registry.Registry]
	attempts    atomic.Int32
	DebugMode   bool
}

func NewGate() *Gate {
	return &Gate{
		sem: make(chan struct{}, 1),
	}
}

var gates sync.Map // *registry.Registry -> *Gate

// For returns the process-wide gate of reg. Every bridge wiring reg shares it,
// and bridges wiring different registries never skip each other's wiring.
func For(reg *registry.Registry) *Gate {
	if g, ok := gates.Load(reg); ok {
		return g.(*Gate)
	}
	g, _ := gates.LoadOrStore(reg, NewGate())
	return g.(*Gate)
}

// EnsureInitialized runs wire against reg unless a previous call already
// succeeded. Concurrent first callers block until the running attempt finishes
// or ctx is done.
func (g *Gate) EnsureInitialized(ctx context.Context, reg *registry.Registry, wire Initializer) error {
	if g.initialized.Load() {
		return g.checkRegistry(reg)
	}

	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return &InitError{Attempt: int(g.attempts.Load()), Err: fmt.Errorf("waiting for bootstrap: %w", ctx.Err())}
	}
	defer func() { <-g.sem }()

	if g.initialized.Load() {
		return g.checkRegistry(reg)
	}

	attempt := int(g.attempts.Add(1))
	if g.DebugMode {
		log.Printf("[Bootstrap] Wiring processing context (attempt %d)", attempt)
	}

	if err := g.run(ctx, reg, wire); err != nil {
		log.Printf("[Bootstrap] Attempt %d failed: %v", attempt, err)
		return &InitError{Attempt: attempt, Err: err}
	}

	g.wired.Store(reg)
	g.initialized.Store(true)
	if g.DebugMode {
		log.Printf("[Bootstrap] Processing context ready")
	}
	return nil
}

func (g *Gate) run(ctx context.Context, reg *registry.Registry, wire Initializer) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
		}
	}()

	if wire == nil {
		return errors.New("nil initializer")
	}
	if reg == nil {
		return errors.New("nil registry")
	}
	return wire(ctx, reg)
}

// checkRegistry refuses a registry the gate never wired; skipping its wiring
// would leave it without an entry point.
func (g *Gate) checkRegistry(reg *registry.Registry) error {
	if w := g.wired.Load(); w != nil && w != reg {
		return &InitError{Attempt: int(g.attempts.Load()), Err: ErrForeignRegistry}
	}
	return nil
}

func (g *Gate) Initialized() bool {
	return g.initialized.Load()
}

// Attempts returns how many times the wiring procedure has been started.
func (g *Gate) Attempts() int {
	return int(g.attempts.Load())
}
