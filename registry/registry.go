// Package registry is the restricted registration surface the bootstrap wiring
// sees. It holds a single slot for the dispatcher entry point and refuses every
// other registration.
package registry

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// DispatcherName is the only entry point name a default Registry accepts.
const DispatcherName = "dispatcher"

var (
	ErrUnsupportedRegistration = errors.New("registry: only the dispatcher entry point is supported")
	ErrNotFound                = errors.New("registry: entry point not found")
	ErrEntryPointInit          = errors.New("registry: entry point init failed")
)

// EntryPoint processes translated requests for the lifetime of the process.
type EntryPoint interface {
	http.Handler
	Init(Config) error
}

// Factory builds an entry point. The registry never calls one itself.
type Factory func() (EntryPoint, error)

// Config is handed to EntryPoint.Init. The bridge carries no external
// configuration, so it exposes no init parameters.
type Config interface {
	Name() string
	Registry() *Registry
	InitParameter(name string) (string, bool)
	InitParameterNames() []string
}

type Registration struct {
	name string
}

func (r *Registration) Name() string { return r.name }

type Registry struct {
	name string

	mu      sync.RWMutex
	slot    EntryPoint
	pending bool
}

func New(name string) *Registry {
	if name == "" {
		name = DispatcherName
	}
	return &Registry{name: name}
}

// Name returns the recognized entry point name.
func (r *Registry) Name() string { return r.name }

// AddNamed is the registration-by-type-name shape. It always fails.
func (r *Registry) AddNamed(name string, typeName string) (*Registration, error) {
	return nil, fmt.Errorf("%w: AddNamed(%q, %q)", ErrUnsupportedRegistration, name, typeName)
}

// AddFactory is the registration-by-factory shape. It always fails.
func (r *Registry) AddFactory(name string, f Factory) (*Registration, error) {
	return nil, fmt.Errorf("%w: AddFactory(%q)", ErrUnsupportedRegistration, name)
}

// Add registers ep under name and initializes it with a synthetic config.
// It fails for any name but the recognized one and once the slot is taken.
func (r *Registry) Add(name string, ep EntryPoint) (*Registration, error) {
	if name != r.name {
		return nil, fmt.Errorf("%w: Add(%q)", ErrUnsupportedRegistration, name)
	}
	if ep == nil {
		return nil, fmt.Errorf("%w: Add(%q): nil entry point", ErrUnsupportedRegistration, name)
	}

	r.mu.Lock()
	if r.slot != nil || r.pending {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: Add(%q): already registered", ErrUnsupportedRegistration, name)
	}
	// reserve the slot, Init runs unlocked
	r.pending = true
	r.mu.Unlock()

	err := r.initEntryPoint(ep, name)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = false
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrEntryPointInit, name, err)
	}
	r.slot = ep
	return &Registration{name: name}, nil
}

// initEntryPoint runs Init, turning a panic into an error so the reservation is
// always released.
func (r *Registry) initEntryPoint(ep EntryPoint, name string) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
		}
	}()
	return ep.Init(&syntheticConfig{name: name, registry: r})
}

func (r *Registry) Lookup(name string) (EntryPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name != r.name || r.slot == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return r.slot, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.slot == nil {
		return 0
	}
	return 1
}

type syntheticConfig struct {
	name     string
	registry *Registry
}

func (c *syntheticConfig) Name() string { return c.name }

func (c *syntheticConfig) Registry() *Registry { return c.registry }

func (c *syntheticConfig) InitParameter(string) (string, bool) { return "", false }

func (c *syntheticConfig) InitParameterNames() []string { return []string{} }
