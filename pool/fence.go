package pool

import (
	"sync"
	"time"
)

// Fence is a synchronization token marking the completion of prior work on
// a buffer.
type Fence interface {
	// Wait blocks until the fence signals or timeout elapses, in which case
	// it returns ErrTimedOut. A negative timeout waits forever.
	Wait(timeout time.Duration) error

	// Signaled reports whether the fence has signalled, without blocking.
	Signaled() bool

	// Valid reports whether the fence refers to real pending work. NoFence
	// is not valid but always signalled.
	Valid() bool
}

// NoFence is an already-signalled placeholder fence.
var NoFence Fence = noFence{}

type noFence struct{}

func (noFence) Wait(time.Duration) error { return nil }
func (noFence) Signaled() bool           { return true }
func (noFence) Valid() bool              { return false }

// SignalFence is a CPU-side fence signalled explicitly by Signal.
//
// SignalFence is safe for concurrent use.
type SignalFence struct {
	once sync.Once
	done chan struct{}
}

// NewSignalFence creates an unsignalled fence.
func NewSignalFence() *SignalFence {
	return &SignalFence{done: make(chan struct{})}
}

// Signal marks the fence as signalled. Extra calls are ignored.
func (f *SignalFence) Signal() {
	f.once.Do(func() { close(f.done) })
}

// Wait implements Fence.
func (f *SignalFence) Wait(timeout time.Duration) error {
	if f.Signaled() {
		return nil
	}
	if timeout < 0 {
		<-f.done
		return nil
	}
	if timeout == 0 {
		return ErrTimedOut
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-f.done:
		return nil
	case <-timer.C:
		return ErrTimedOut
	}
}

// Signaled implements Fence.
func (f *SignalFence) Signaled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Valid implements Fence.
func (f *SignalFence) Valid() bool { return true }
