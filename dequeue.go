package bufferqueue

import (
	"fmt"

	"github.com/gogpu/bufferqueue/pool"
	"github.com/gogpu/gputypes"
)

// DequeueBuffer hands a slot whose buffer has the requested width, height
// and format to the client.
//
// While the pool holds fewer buffers than the dequeue ceiling, one buffer is
// allocated first. A buffer of the wrong geometry is detached and replaced,
// and the pool is asked again, at most MaxBufferCount times; the slot that
// finally matches reports BufferNeedsReallocation if its buffer was
// replaced. The returned fence is the one the pool returned with the
// buffer, NoFence when the pool already waited for it.
//
// Errors: ErrNotInitialized when disconnected, ErrTimedOut or ErrNoMemory
// when the pool cannot deliver, ErrInternalInconsistency when the pool
// hands out a slot the producer does not consider free.
func (p *Producer) DequeueBuffer(width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) (DequeueOutput, error) {
	const op = "dequeue"

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.readyLocked(op); err != nil {
		return DequeueOutput{Slot: -1}, err
	}

	spec := pool.Spec{Width: width, Height: height, Format: format, Usage: usage}
	Logger().Debug("bufferqueue: dequeue", "spec", spec.String(), "usage", uint32(usage))

	if p.pool.Capacity() < p.maxDequeuedCount {
		if err := p.allocateLocked(op, spec); err != nil {
			return DequeueOutput{Slot: -1}, err
		}
	}

	index := -1
	var buf pool.Buffer
	var fence Fence
	for attempt := 0; attempt < p.maxBufferCount; attempt++ {
		s, b, f, err := p.pool.Dequeue(p.dequeueTimeout)
		if err != nil {
			return DequeueOutput{Slot: -1}, p.poolFailLocked(op, err, ErrNoMemory)
		}
		if s < 0 || s >= len(p.slots) || b == nil {
			return DequeueOutput{Slot: -1}, p.poisonLocked(op, "pool returned slot %d outside [0, %d)", s, len(p.slots))
		}
		if st := p.slots[s].state; !st.dequeueable() {
			return DequeueOutput{Slot: -1}, p.poisonLocked(op, "pool returned slot %d which is %s", s, st)
		}

		if spec.Matches(b) {
			index, buf, fence = s, b, f
			break
		}

		Logger().Info("bufferqueue: reallocating buffer",
			"slot", s,
			"requested", spec.String(),
			"have", fmt.Sprintf("%dx%d %s", b.Width(), b.Height(), b.Format()))
		p.slots[s].needsReallocation = true
		if err := p.detachLocked(op, s); err != nil {
			return DequeueOutput{Slot: -1}, err
		}
		// The pool may hand out another slot before the new buffer.
		if err := p.allocateLocked(op, spec); err != nil {
			return DequeueOutput{Slot: -1}, err
		}
	}
	if index < 0 {
		return DequeueOutput{Slot: -1}, fmt.Errorf("%w: %s: no %s buffer after %d attempts", ErrNoMemory, op, spec, p.maxBufferCount)
	}

	s := &p.slots[index]
	s.bind(buf)
	s.state = SlotDequeued
	s.pendingFence = nil

	if fence == nil {
		fence = NoFence
	}
	out := DequeueOutput{Slot: index, Fence: fence}
	if s.needsReallocation {
		out.Status |= BufferNeedsReallocation
		s.needsReallocation = false
	}
	Logger().Debug("bufferqueue: dequeued", "slot", index, "status", uint32(out.Status))
	return out, nil
}

// RequestBuffer returns the buffer of a freshly dequeued slot. It must be
// called once after the first dequeue of a slot and again whenever
// DequeueBuffer reports BufferNeedsReallocation; a second call for the same
// buffer fails with ErrInvalidArgument.
func (p *Producer) RequestBuffer(index int) (*GraphicBuffer, error) {
	const op = "request buffer"

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.readyLocked(op); err != nil {
		return nil, err
	}
	s, err := p.dequeuedLocked(op, index)
	if err != nil {
		return nil, err
	}
	if s.graphicBuffer != nil {
		Logger().Error("bufferqueue: buffer already requested", "slot", index)
		return nil, &SlotError{Op: op, Slot: index, State: s.state, Reason: "buffer already requested"}
	}
	if s.buffer == nil {
		Logger().Error("bufferqueue: no buffer bound", "slot", index)
		return nil, &SlotError{Op: op, Slot: index, State: s.state, Reason: "no buffer bound"}
	}

	s.graphicBuffer = newGraphicBuffer(s.buffer)
	s.requestFulfilled = true
	Logger().Debug("bufferqueue: buffer requested", "slot", index, "handle", s.buffer.Handle())
	return s.graphicBuffer, nil
}

// allocateLocked grows the pool by one buffer. Caller must hold mu.
func (p *Producer) allocateLocked(op string, spec pool.Spec) error {
	bound, err := p.pool.Allocate(spec, 1)
	if err != nil {
		return p.poolFailLocked(op, err, ErrNoMemory)
	}
	for _, i := range bound {
		if i < 0 || i >= len(p.slots) {
			return p.poisonLocked(op, "pool bound a buffer to slot %d outside [0, %d)", i, len(p.slots))
		}
		if p.slots[i].buffer != nil {
			return p.poisonLocked(op, "pool bound a buffer to slot %d which still holds one", i)
		}
	}
	return nil
}

// detachLocked destroys the buffer of a slot the pool just handed out.
// Caller must hold mu.
func (p *Producer) detachLocked(op string, index int) error {
	if err := p.pool.Detach(index); err != nil {
		return p.poolFailLocked(op, err, ErrInternalInconsistency)
	}
	p.slots[index].unbind()
	return nil
}
