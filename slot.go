package bufferqueue

import (
	"fmt"

	"github.com/gogpu/bufferqueue/pool"
	"github.com/gogpu/gputypes"
)

// SlotState is the ownership state of a slot as seen by the producer.
type SlotState uint8

// Slot states.
const (
	// SlotFree slots are owned by the pool and have never been dequeued
	// since their buffer was bound.
	SlotFree SlotState = iota
	// SlotDequeued slots are owned by the client.
	SlotDequeued
	// SlotQueued slots were posted to the consumer.
	SlotQueued
	// SlotCancelled slots were returned unused and wait in the pool.
	SlotCancelled
)

func (s SlotState) String() string {
	switch s {
	case SlotFree:
		return "free"
	case SlotDequeued:
		return "dequeued"
	case SlotQueued:
		return "queued"
	case SlotCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("SlotState(%d)", s)
	}
}

// dequeueable reports whether the pool may hand out a slot in this state.
func (s SlotState) dequeueable() bool {
	return s == SlotFree || s == SlotQueued || s == SlotCancelled
}

// slot is one entry of the slot table.
type slot struct {
	state SlotState

	// buffer is the pool buffer bound to the slot, nil until the first
	// dequeue and between a detach and the next dequeue.
	buffer pool.Buffer

	// graphicBuffer is the object handed to the client by RequestBuffer.
	graphicBuffer *GraphicBuffer

	// requestFulfilled is set once RequestBuffer succeeded for the bound
	// buffer. It is cleared with the binding.
	requestFulfilled bool

	// needsReallocation is set when the slot's buffer was detached because
	// it did not match a request. The next DequeueBuffer returning the slot
	// reports BufferNeedsReallocation and clears it.
	needsReallocation bool

	// pendingFence is the fence passed to the last CancelBuffer.
	pendingFence Fence
}

// unbind drops the buffer binding and everything derived from it. The
// reallocation flag survives.
func (s *slot) unbind() {
	s.buffer = nil
	s.graphicBuffer = nil
	s.requestFulfilled = false
	s.pendingFence = nil
	s.state = SlotFree
}

// bind attaches buf to the slot. Rebinding the same buffer keeps the
// client's GraphicBuffer valid.
func (s *slot) bind(buf pool.Buffer) {
	if s.buffer == buf {
		return
	}
	s.buffer = buf
	s.graphicBuffer = nil
	s.requestFulfilled = false
}

// SlotInfo is a snapshot of one slot, returned by Producer.Snapshot.
type SlotInfo struct {
	Index             int
	State             SlotState
	HasBuffer         bool
	Width             uint32
	Height            uint32
	Format            gputypes.TextureFormat
	RequestFulfilled  bool
	NeedsReallocation bool
	HasPendingFence   bool
}

func (i SlotInfo) String() string {
	if !i.HasBuffer {
		return fmt.Sprintf("slot %d: %s, no buffer", i.Index, i.State)
	}
	return fmt.Sprintf("slot %d: %s, %dx%d %s, requested=%t", i.Index, i.State, i.Width, i.Height, i.Format, i.RequestFulfilled)
}

func (s *slot) info(index int) SlotInfo {
	info := SlotInfo{
		Index:             index,
		State:             s.state,
		HasBuffer:         s.buffer != nil,
		RequestFulfilled:  s.requestFulfilled,
		NeedsReallocation: s.needsReallocation,
		HasPendingFence:   s.pendingFence != nil && s.pendingFence.Valid(),
	}
	if s.buffer != nil {
		info.Width = s.buffer.Width()
		info.Height = s.buffer.Height()
		info.Format = s.buffer.Format()
	}
	return info
}
