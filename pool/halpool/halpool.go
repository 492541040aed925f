// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package halpool provides a buffer pool whose buffers are wgpu HAL
// textures.
//
// The slot bookkeeping is the one of pool.Hub; only allocation differs.
// Every texture is charged against a byte budget, and an allocation that
// would exceed it, or that the device rejects for lack of memory, fails with
// pool.ErrNoMemory.
//
// Importing this package registers the "hal" backend in the pool registry
// at priority 100. It requires pool.Options.Device to hold a hal.Device:
//
//	p, err := pool.New("hal", pool.Options{Device: device, Capacity: 3})
package halpool

import (
	"errors"
	"fmt"

	"github.com/gogpu/bufferqueue/pool"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrNoDevice is returned when a pool is created without a HAL device.
var ErrNoDevice = errors.New("halpool: no hal device")

// Pool is a pool.Exchange backed by HAL textures.
type Pool struct {
	*pool.Hub
	device hal.Device
	alloc  *textureAllocator
}

var _ pool.Exchange = (*Pool)(nil)

// Option configures a Pool during creation.
type Option func(*options)

type options struct {
	hub    []pool.HubOption
	budget uint64
}

// WithCapacity limits the number of slots.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.hub = append(o.hub, pool.WithCapacity(n))
	}
}

// WithDefaults sets the geometry reported by Defaults. Zero usage selects
// DefaultUsage.
func WithDefaults(spec pool.Spec) Option {
	return func(o *options) {
		if spec.Usage == 0 {
			spec.Usage = DefaultUsage
		}
		o.hub = append(o.hub, pool.WithDefaults(spec))
	}
}

// WithAutoRelease recycles posted textures without a consumer.
func WithAutoRelease() Option {
	return func(o *options) {
		o.hub = append(o.hub, pool.WithAutoRelease())
	}
}

// WithBudget caps the texture memory of the pool. Values below
// MinBudgetBytes select DefaultBudgetBytes.
func WithBudget(bytes uint64) Option {
	return func(o *options) {
		o.budget = bytes
	}
}

// New creates a pool allocating textures on device.
func New(device hal.Device, opts ...Option) (*Pool, error) {
	if device == nil {
		return nil, ErrNoDevice
	}

	o := options{budget: DefaultBudgetBytes}
	for _, opt := range opts {
		opt(&o)
	}

	alloc := &textureAllocator{
		device: device,
		budget: newBudget(o.budget),
	}
	hubOpts := append(o.hub, pool.WithAllocator(alloc))

	p := &Pool{
		Hub:    pool.NewHub(hubOpts...),
		device: device,
		alloc:  alloc,
	}
	pool.Logger().Debug("halpool: created", "budget", alloc.budget.total, "defaults", p.Defaults().String())
	return p, nil
}

// FromProvider creates a pool on the device of a gpucontext provider. The
// provider must expose its HAL device, either through a HalDevice() any
// method or by returning a hal.Device from Device(). The provider's surface
// format becomes the default format unless opts override it.
func FromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Pool, error) {
	if provider == nil {
		return nil, ErrNoDevice
	}

	type halProvider interface {
		HalDevice() any
	}

	var device hal.Device
	if hp, ok := provider.(halProvider); ok {
		device, _ = hp.HalDevice().(hal.Device)
	}
	if device == nil {
		device, _ = provider.Device().(hal.Device)
	}
	if device == nil {
		return nil, fmt.Errorf("%w: provider %T does not expose one", ErrNoDevice, provider)
	}

	if format := provider.SurfaceFormat(); format != gputypes.TextureFormatUndefined {
		defaults := []Option{WithDefaults(pool.Spec{Width: 1, Height: 1, Format: format})}
		opts = append(defaults, opts...)
	}
	return New(device, opts...)
}

// Device returns the HAL device textures are allocated on.
func (p *Pool) Device() hal.Device { return p.device }

// MemoryStats returns the texture memory usage.
func (p *Pool) MemoryStats() MemoryStats { return p.alloc.budget.stats() }

// NewFence creates a fence on the pool's device that signals at value.
func (p *Pool) NewFence(value uint64) (*Fence, error) {
	return NewFence(p.device, value)
}

func init() {
	pool.Register("hal", 100, func(opts pool.Options) (pool.Exchange, error) {
		device, ok := opts.Device.(hal.Device)
		if !ok {
			return nil, fmt.Errorf("%w: options carry %T", ErrNoDevice, opts.Device)
		}
		var halOpts []Option
		if opts.Capacity > 0 {
			halOpts = append(halOpts, WithCapacity(opts.Capacity))
		}
		if opts.Defaults != (pool.Spec{}) {
			halOpts = append(halOpts, WithDefaults(opts.Defaults))
		}
		if opts.AutoRelease {
			halOpts = append(halOpts, WithAutoRelease())
		}
		if opts.BudgetBytes > 0 {
			halOpts = append(halOpts, WithBudget(opts.BudgetBytes))
		}
		return New(device, halOpts...)
	}, nil)
}
