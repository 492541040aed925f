package halpool

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/gogpu/bufferqueue/pool"
	"github.com/gogpu/wgpu/hal"
)

// Fence is a pool.Fence backed by a HAL timeline fence. It is signalled once
// the fence reaches its target value.
type Fence struct {
	device   hal.Device
	raw      hal.Fence
	value    uint64
	released atomic.Bool
}

var _ pool.Fence = (*Fence)(nil)

// NewFence creates a fence on device that signals at value.
func NewFence(device hal.Device, value uint64) (*Fence, error) {
	raw, err := device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("halpool: create fence: %w", err)
	}
	return &Fence{device: device, raw: raw, value: value}, nil
}

// Wait implements pool.Fence.
func (f *Fence) Wait(timeout time.Duration) error {
	if f.released.Load() {
		return nil
	}
	if timeout < 0 {
		timeout = time.Duration(math.MaxInt64)
	}
	ok, err := f.device.Wait(f.raw, f.value, timeout)
	if err != nil {
		if errors.Is(err, hal.ErrTimeout) {
			return fmt.Errorf("%w: %w", pool.ErrTimedOut, err)
		}
		return fmt.Errorf("halpool: wait fence: %w", err)
	}
	if !ok {
		return pool.ErrTimedOut
	}
	return nil
}

// Signaled implements pool.Fence.
func (f *Fence) Signaled() bool {
	if f.released.Load() {
		return true
	}
	ok, err := f.device.Wait(f.raw, f.value, 0)
	return err == nil && ok
}

// Valid implements pool.Fence. A released fence is no longer valid.
func (f *Fence) Valid() bool { return !f.released.Load() }

// Raw returns the underlying HAL fence.
func (f *Fence) Raw() hal.Fence { return f.raw }

// Value returns the value the fence signals at.
func (f *Fence) Value() uint64 { return f.value }

// Release destroys the HAL fence. Extra calls are ignored.
func (f *Fence) Release() {
	if f.released.CompareAndSwap(false, true) {
		f.device.DestroyFence(f.raw)
	}
}
