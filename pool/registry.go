// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pool

import (
	"cmp"
	"errors"
	"slices"
	"strings"
	"sync"
)

// Options configures a pool created through the registry. Backends ignore
// the fields they have no use for.
type Options struct {
	// Capacity is the number of slots; 0 selects MaxCapacity.
	Capacity int

	// Defaults is the geometry reported by Pool.Defaults. The zero value
	// keeps the backend default.
	Defaults Spec

	// AutoRelease recycles posted buffers without a consumer.
	AutoRelease bool

	// Device is a backend-specific device handle (hal.Device for "hal").
	Device any

	// BudgetBytes caps the memory a GPU backend may allocate; 0 selects the
	// backend default.
	BudgetBytes uint64
}

// HubOptions translates the generic options into Hub options.
func (o Options) HubOptions() []HubOption {
	opts := []HubOption{WithCapacity(o.Capacity)}
	if o.Defaults != (Spec{}) {
		opts = append(opts, WithDefaults(o.Defaults))
	}
	if o.AutoRelease {
		opts = append(opts, WithAutoRelease())
	}
	return opts
}

// Factory creates a pool backend instance.
type Factory func(opts Options) (Exchange, error)

// Backend is a registered pool backend.
type Backend struct {
	Name string

	// Priority orders NewBest's choice: GPU backends register at 100, the
	// CPU memory backend at 10.
	Priority int

	Factory Factory

	// Available reports whether the backend can run on this system.
	Available func() bool
}

// Registry maps backend names to factories.
//
// Backends register themselves from init:
//
//	func init() {
//	    pool.Register("hal", 100, newHALPool, nil)
//	}
//
// and callers pick one by name or by priority:
//
//	p, err := pool.New("memory", pool.Options{Capacity: 3})
//	p, err := pool.NewBest(pool.Options{})
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

var defaultRegistry Registry

// Register adds a backend to the default registry. A nil available means
// always available; a repeated name replaces the earlier backend.
func Register(name string, priority int, factory Factory, available func() bool) {
	defaultRegistry.Register(name, priority, factory, available)
}

// Backends returns the backends of the default registry, highest priority
// first.
func Backends() []Backend { return defaultRegistry.Backends() }

// New creates a pool from the named backend of the default registry.
func New(name string, opts Options) (Exchange, error) { return defaultRegistry.New(name, opts) }

// NewBest creates a pool from the best available backend of the default
// registry.
func NewBest(opts Options) (Exchange, error) { return defaultRegistry.NewBest(opts) }

// Register adds a backend to r.
func (r *Registry) Register(name string, priority int, factory Factory, available func() bool) {
	if available == nil {
		available = func() bool { return true }
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backends == nil {
		r.backends = make(map[string]Backend)
	}
	r.backends[name] = Backend{Name: name, Priority: priority, Factory: factory, Available: available}
}

// Backends returns the registered backends, highest priority first and by
// name among equal priorities.
func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	out := make([]Backend, 0, len(r.backends))
	for _, b := range r.backends {
		out = append(out, b)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Backend) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// New creates a pool from the named backend.
func (r *Registry) New(name string, opts Options) (Exchange, error) {
	r.mu.RLock()
	b, ok := r.backends[name]
	r.mu.RUnlock()

	switch {
	case !ok:
		return nil, &BackendNotFoundError{Name: name}
	case !b.Available():
		return nil, &BackendUnavailableError{Name: name}
	}
	return b.Factory(opts)
}

// NewBest tries the available backends in priority order and returns the
// first pool that could be created, or the last factory error.
func (r *Registry) NewBest(opts Options) (Exchange, error) {
	err := ErrNoBackendAvailable
	for _, b := range r.Backends() {
		if !b.Available() {
			continue
		}
		p, ferr := b.Factory(opts)
		if ferr == nil {
			return p, nil
		}
		Logger().Warn("pool: backend failed, trying next", "backend", b.Name, "err", ferr)
		err = ferr
	}
	return nil, err
}

// ErrNoBackendAvailable is returned by NewBest when no registered backend
// is available.
var ErrNoBackendAvailable = errors.New("pool: no backend available")

// BackendNotFoundError indicates a named backend is not registered.
type BackendNotFoundError struct {
	Name string
}

func (e *BackendNotFoundError) Error() string {
	return "pool: backend not found: " + e.Name
}

// BackendUnavailableError indicates a backend exists but is not available.
type BackendUnavailableError struct {
	Name string
}

func (e *BackendUnavailableError) Error() string {
	return "pool: backend unavailable: " + e.Name
}

// init registers the built-in CPU memory backend.
func init() {
	Register("memory", 10, func(opts Options) (Exchange, error) {
		return NewHub(opts.HubOptions()...), nil
	}, nil)
}
