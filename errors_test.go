package bufferqueue

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gogpu/bufferqueue/pool"
)

func TestPoolErrorMapping(t *testing.T) {
	other := errors.New("backend exploded")
	tests := []struct {
		name     string
		err      error
		fallback error
		want     error
	}{
		{"timed out", fmt.Errorf("%w: after 1s", pool.ErrTimedOut), ErrNoMemory, ErrTimedOut},
		{"no memory", fmt.Errorf("%w: all slots bound", pool.ErrNoMemory), ErrInternalInconsistency, ErrNoMemory},
		{"closed", pool.ErrClosed, ErrNoMemory, ErrNotInitialized},
		{"invalid slot", pool.ErrInvalidSlot, ErrNoMemory, ErrInternalInconsistency},
		{"unclassified", other, ErrNoMemory, ErrNoMemory},
	}
	all := []error{ErrNotInitialized, ErrInvalidArgument, ErrNoMemory, ErrTimedOut, ErrUnsupported, ErrInternalInconsistency}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := poolError("op", tt.err, tt.fallback)
			if !errors.Is(got, tt.err) {
				t.Errorf("poolError() = %v, lost the pool error", got)
			}
			for _, sentinel := range all {
				if errors.Is(got, sentinel) != (sentinel == tt.want) {
					t.Errorf("errors.Is(%v, %v) = %t", got, sentinel, !(sentinel == tt.want))
				}
			}
		})
	}
}

func TestSlotError(t *testing.T) {
	err := error(&SlotError{Op: "queue", Slot: 2, State: SlotFree, Reason: "not owned by the producer"})

	if !errors.Is(err, ErrInvalidArgument) {
		t.Error("SlotError does not match ErrInvalidArgument")
	}
	if errors.Is(err, ErrUnsupported) {
		t.Error("SlotError matches ErrUnsupported")
	}
	want := "bufferqueue: queue: slot 2 (free): not owned by the producer"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := fmt.Errorf("frame 3: %w", err)
	var se *SlotError
	if !errors.As(wrapped, &se) || se.Slot != 2 {
		t.Errorf("errors.As(wrapped) = %v", se)
	}
}

func TestUnsupportedError(t *testing.T) {
	err := error(&UnsupportedError{Op: "attach buffer"})
	if !errors.Is(err, ErrUnsupported) {
		t.Error("UnsupportedError does not match ErrUnsupported")
	}
	if got := err.Error(); got != "bufferqueue: attach buffer not supported" {
		t.Errorf("Error() = %q", got)
	}
}
