package bufferqueue

import (
	"errors"
	"fmt"

	"github.com/gogpu/bufferqueue/pool"
)

// Producer errors. Every error returned by a Producer matches exactly one of
// these with errors.Is.
var (
	// ErrNotInitialized is returned when no client API is connected.
	ErrNotInitialized = errors.New("bufferqueue: no connected producer")

	// ErrInvalidArgument is returned for a bad slot index, a slot in the
	// wrong state or an invalid parameter. It indicates a caller bug.
	ErrInvalidArgument = errors.New("bufferqueue: invalid argument")

	// ErrNoMemory is returned when the pool could not allocate or hand out a
	// buffer. Callers may retry.
	ErrNoMemory = errors.New("bufferqueue: out of memory")

	// ErrTimedOut is returned when no buffer became available within the
	// dequeue timeout. Callers may retry.
	ErrTimedOut = errors.New("bufferqueue: timed out")

	// ErrUnsupported is returned by operations this queue does not implement.
	ErrUnsupported = errors.New("bufferqueue: operation not supported")

	// ErrInternalInconsistency is returned when the pool breaks its contract
	// (for example by handing out a slot the producer still owns). The
	// producer is unusable afterwards: every later call returns this error.
	ErrInternalInconsistency = errors.New("bufferqueue: internal inconsistency")
)

// SlotError describes a call rejected because of the state of a slot.
// It matches ErrInvalidArgument.
type SlotError struct {
	Op     string
	Slot   int
	State  SlotState
	Reason string
}

func (e *SlotError) Error() string {
	return fmt.Sprintf("bufferqueue: %s: slot %d (%s): %s", e.Op, e.Slot, e.State, e.Reason)
}

// Is reports whether target is ErrInvalidArgument.
func (e *SlotError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// UnsupportedError is returned by operations this queue does not implement.
// It matches ErrUnsupported.
type UnsupportedError struct {
	Op string
}

func (e *UnsupportedError) Error() string {
	return "bufferqueue: " + e.Op + " not supported"
}

// Is reports whether target is ErrUnsupported.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

func invalidArgf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidArgument}, args...)...)
}

// poolError maps an error returned by the pool onto the producer taxonomy.
// The pool error stays in the chain. fallback is used for errors the pool
// does not classify.
func poolError(op string, err error, fallback error) error {
	var kind error
	switch {
	case errors.Is(err, pool.ErrTimedOut):
		kind = ErrTimedOut
	case errors.Is(err, pool.ErrNoMemory):
		kind = ErrNoMemory
	case errors.Is(err, pool.ErrClosed):
		kind = ErrNotInitialized
	case errors.Is(err, pool.ErrInvalidSlot):
		kind = ErrInternalInconsistency
	default:
		kind = fallback
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}
