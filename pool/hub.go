package pool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/gogpu/gputypes"
)

// memoryRowAlign is the row alignment, in bytes, of CPU buffers.
const memoryRowAlign = 64

// fenceRecheckInterval is how often a blocked Dequeue polls the fences of
// buffers that are available but not yet signalled.
const fenceRecheckInterval = time.Millisecond

// Allocator creates and destroys the buffers a Hub hands out.
// Buffers must be pointer types: the Hub compares them by identity.
type Allocator interface {
	AllocateBuffer(spec Spec) (Buffer, error)
	FreeBuffer(buf Buffer)
}

// Consumer is the consumer half of a buffer exchange.
type Consumer interface {
	// Acquire takes the oldest posted frame.
	Acquire(timeout time.Duration) (Frame, error)

	// Release hands an acquired buffer back for reuse once fence signals.
	Release(slot int, fence Fence) error
}

// Exchange is a pool together with its consumer half.
type Exchange interface {
	Pool
	Consumer
}

// Frame is a posted buffer as seen by the consumer.
type Frame struct {
	Slot     int
	Buffer   Buffer
	Fence    Fence
	Metadata Metadata
}

type slotState uint8

const (
	slotEmpty slotState = iota
	slotAvailable
	slotDequeued
	slotPosted
	slotAcquired
)

func (s slotState) String() string {
	switch s {
	case slotEmpty:
		return "empty"
	case slotAvailable:
		return "available"
	case slotDequeued:
		return "dequeued"
	case slotPosted:
		return "posted"
	case slotAcquired:
		return "acquired"
	default:
		return fmt.Sprintf("slotState(%d)", s)
	}
}

type hubSlot struct {
	buf   Buffer
	state slotState
}

// fencedSlot is an entry of the available FIFO.
type fencedSlot struct {
	slot  int
	fence Fence
}

type postedFrame struct {
	slot  int
	fence Fence
	meta  []byte
}

// HubStats is a snapshot of a Hub's slot usage.
type HubStats struct {
	Slots     int
	Bound     int
	Available int
	Dequeued  int
	Posted    int
	Acquired  int
}

// String returns a human-readable summary.
func (s HubStats) String() string {
	return fmt.Sprintf("Hub[%d/%d bound, %d available, %d dequeued, %d posted, %d acquired]",
		s.Bound, s.Slots, s.Available, s.Dequeued, s.Posted, s.Acquired)
}

// Hub is a fixed-capacity buffer exchange.
//
// Buffers are bound to the lowest free slot on allocation and handed out in
// FIFO order. A buffer returned with a fence is handed out again only after
// the fence signals; signalled buffers queued behind it go first.
//
// Hub is safe for concurrent use.
type Hub struct {
	mu   sync.Mutex
	cond *sync.Cond

	slots     []hubSlot
	bound     int
	available *queue.Queue // of fencedSlot
	posted    *queue.Queue // of postedFrame

	defaults    Spec
	alloc       Allocator
	autoRelease bool
	closed      bool
}

var _ Exchange = (*Hub)(nil)

// HubOption configures a Hub during creation.
type HubOption func(*hubOptions)

type hubOptions struct {
	capacity    int
	defaults    Spec
	autoRelease bool
	alloc       Allocator
}

func defaultHubOptions() hubOptions {
	return hubOptions{
		capacity: MaxCapacity,
		defaults: Spec{
			Width:  1,
			Height: 1,
			Format: gputypes.TextureFormatRGBA8Unorm,
			Usage:  gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding,
		},
	}
}

// WithCapacity limits the number of slots. Values outside (0, MaxCapacity]
// select MaxCapacity.
func WithCapacity(n int) HubOption {
	return func(o *hubOptions) {
		if n <= 0 || n > MaxCapacity {
			n = MaxCapacity
		}
		o.capacity = n
	}
}

// WithDefaults sets the geometry reported by Defaults.
func WithDefaults(spec Spec) HubOption {
	return func(o *hubOptions) {
		o.defaults = spec
	}
}

// WithAutoRelease makes posted buffers available again as soon as their
// fence signals, as if an instantaneous consumer acquired and released them.
func WithAutoRelease() HubOption {
	return func(o *hubOptions) {
		o.autoRelease = true
	}
}

// WithAllocator replaces the CPU memory allocator.
func WithAllocator(a Allocator) HubOption {
	return func(o *hubOptions) {
		o.alloc = a
	}
}

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	o := defaultHubOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.alloc == nil {
		o.alloc = &memoryAllocator{}
	}
	h := &Hub{
		slots:       make([]hubSlot, o.capacity),
		available:   queue.New(),
		posted:      queue.New(),
		defaults:    o.defaults,
		alloc:       o.alloc,
		autoRelease: o.autoRelease,
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Capacity implements Pool.
func (h *Hub) Capacity() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bound
}

// Defaults implements Pool.
func (h *Hub) Defaults() Spec {
	return h.defaults
}

// Allocate implements Pool.
func (h *Hub) Allocate(spec Spec, count int) ([]int, error) {
	if count <= 0 {
		return nil, fmt.Errorf("pool: invalid allocation count %d", count)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	bound := make([]int, 0, count)
	defer func() {
		if len(bound) > 0 {
			h.cond.Broadcast()
		}
	}()

	for i := 0; i < count; i++ {
		idx := h.firstEmptyLocked()
		if idx < 0 {
			return bound, fmt.Errorf("%w: all %d slots bound", ErrNoMemory, len(h.slots))
		}
		buf, err := h.alloc.AllocateBuffer(spec)
		if err != nil {
			return bound, err
		}
		h.slots[idx] = hubSlot{buf: buf, state: slotAvailable}
		h.bound++
		h.available.Add(fencedSlot{slot: idx, fence: NoFence})
		bound = append(bound, idx)
		Logger().Debug("pool: allocated buffer", "slot", idx, "spec", spec.String())
	}
	return bound, nil
}

// Dequeue implements Pool. It hands out the oldest available buffer whose
// fence has signalled, so a buffer returned behind pending work never holds
// up one that is ready. The returned fence is always NoFence.
func (h *Hub) Dequeue(timeout time.Duration) (int, Buffer, Fence, error) {
	deadline := time.Now().Add(timeout)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		if h.closed {
			return -1, nil, nil, ErrClosed
		}
		if entry, ok := h.takeSignaledLocked(); ok {
			s := &h.slots[entry.slot]
			s.state = slotDequeued
			return entry.slot, s.buf, NoFence, nil
		}

		// Fences have no wakeup hook, so pending ones are re-checked on a
		// short interval while waiting for the cond.
		var poll time.Duration
		if h.available.Length() > 0 {
			poll = fenceRecheckInterval
		}
		if !h.waitLocked(timeout, deadline, poll) {
			if n := h.available.Length(); n > 0 {
				return -1, nil, nil, fmt.Errorf("%w: %d buffers still behind fences after %v", ErrTimedOut, n, timeout)
			}
			return -1, nil, nil, fmt.Errorf("%w: no buffer available after %v", ErrTimedOut, timeout)
		}
	}
}

// Enqueue implements Pool.
func (h *Hub) Enqueue(slot int, buf Buffer, fence Fence) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkLocked(slot, buf, slotDequeued); err != nil {
		return err
	}
	h.makeAvailableLocked(slot, fence)
	return nil
}

// Detach implements Pool.
func (h *Hub) Detach(slot int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkLocked(slot, nil, slotDequeued); err != nil {
		return err
	}
	h.alloc.FreeBuffer(h.slots[slot].buf)
	h.slots[slot] = hubSlot{}
	h.bound--
	Logger().Debug("pool: detached buffer", "slot", slot)
	return nil
}

// Post implements Pool.
func (h *Hub) Post(slot int, buf Buffer, fence Fence, meta []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkLocked(slot, buf, slotDequeued); err != nil {
		return err
	}
	if fence == nil {
		fence = NoFence
	}
	if h.autoRelease {
		h.makeAvailableLocked(slot, fence)
		return nil
	}
	h.slots[slot].state = slotPosted
	h.posted.Add(postedFrame{slot: slot, fence: fence, meta: meta})
	h.cond.Broadcast()
	return nil
}

// Acquire implements Consumer.
func (h *Hub) Acquire(timeout time.Duration) (Frame, error) {
	deadline := time.Now().Add(timeout)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		if h.closed {
			return Frame{}, ErrClosed
		}
		if h.posted.Length() > 0 {
			break
		}
		if !h.waitLocked(timeout, deadline, 0) {
			return Frame{}, fmt.Errorf("%w: no frame posted after %v", ErrTimedOut, timeout)
		}
	}

	p, _ := h.posted.Remove().(postedFrame)
	meta, err := DecodeMetadata(p.meta)
	if err != nil {
		h.makeAvailableLocked(p.slot, p.fence)
		return Frame{}, err
	}
	h.slots[p.slot].state = slotAcquired
	return Frame{
		Slot:     p.slot,
		Buffer:   h.slots[p.slot].buf,
		Fence:    p.fence,
		Metadata: meta,
	}, nil
}

// Release implements Consumer.
func (h *Hub) Release(slot int, fence Fence) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.checkLocked(slot, nil, slotAcquired); err != nil {
		return err
	}
	h.makeAvailableLocked(slot, fence)
	return nil
}

// Close implements Pool.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	for i := range h.slots {
		if h.slots[i].buf != nil {
			h.alloc.FreeBuffer(h.slots[i].buf)
		}
		h.slots[i] = hubSlot{}
	}
	h.bound = 0
	h.available = queue.New()
	h.posted = queue.New()
	h.closed = true
	h.cond.Broadcast()
	return nil
}

// Stats returns a snapshot of slot usage.
func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := HubStats{Slots: len(h.slots), Bound: h.bound}
	for _, s := range h.slots {
		switch s.state {
		case slotAvailable:
			st.Available++
		case slotDequeued:
			st.Dequeued++
		case slotPosted:
			st.Posted++
		case slotAcquired:
			st.Acquired++
		}
	}
	return st
}

// checkLocked validates that slot is in the wanted state and, when buf is
// not nil, that buf is the buffer bound to it. Caller must hold mu.
func (h *Hub) checkLocked(slot int, buf Buffer, want slotState) error {
	if h.closed {
		return ErrClosed
	}
	if slot < 0 || slot >= len(h.slots) {
		return fmt.Errorf("%w: slot %d out of range [0, %d)", ErrInvalidSlot, slot, len(h.slots))
	}
	s := h.slots[slot]
	if s.state != want {
		return fmt.Errorf("%w: slot %d is %s, want %s", ErrInvalidSlot, slot, s.state, want)
	}
	if buf != nil && s.buf != buf {
		return fmt.Errorf("%w: slot %d is bound to another buffer", ErrInvalidSlot, slot)
	}
	return nil
}

// makeAvailableLocked queues slot for reuse behind fence. Caller must hold mu.
func (h *Hub) makeAvailableLocked(slot int, fence Fence) {
	if fence == nil {
		fence = NoFence
	}
	h.slots[slot].state = slotAvailable
	h.available.Add(fencedSlot{slot: slot, fence: fence})
	h.cond.Broadcast()
}

func (h *Hub) firstEmptyLocked() int {
	for i := range h.slots {
		if h.slots[i].state == slotEmpty {
			return i
		}
	}
	return -1
}

// takeSignaledLocked removes the first available entry whose fence has
// signalled, keeping the others in order. Caller must hold mu.
func (h *Hub) takeSignaledLocked() (fencedSlot, bool) {
	var (
		found fencedSlot
		ok    bool
	)
	for n := h.available.Length(); n > 0; n-- {
		e, _ := h.available.Remove().(fencedSlot)
		if !ok && e.fence.Signaled() {
			found, ok = e, true
			continue
		}
		h.available.Add(e)
	}
	return found, ok
}

// waitLocked blocks on cond until woken or the deadline passes. A non-zero
// poll bounds a single wait, infinite timeouts included. It returns false
// when the deadline has already passed. Caller must hold mu.
func (h *Hub) waitLocked(timeout time.Duration, deadline time.Time, poll time.Duration) bool {
	d := poll
	if timeout >= 0 {
		left := time.Until(deadline)
		if left <= 0 {
			return false
		}
		if d == 0 || left < d {
			d = left
		}
	}
	if d == 0 {
		h.cond.Wait()
		return true
	}
	t := time.AfterFunc(d, func() {
		h.mu.Lock()
		h.cond.Broadcast()
		h.mu.Unlock()
	})
	h.cond.Wait()
	t.Stop()
	return true
}

// memBuffer is a CPU memory buffer.
type memBuffer struct {
	spec   Spec
	stride uint32
	handle uintptr
	pixels []byte
	freed  atomic.Bool
}

func (b *memBuffer) Width() uint32                  { return b.spec.Width }
func (b *memBuffer) Height() uint32                 { return b.spec.Height }
func (b *memBuffer) Format() gputypes.TextureFormat { return b.spec.Format }
func (b *memBuffer) Usage() gputypes.TextureUsage   { return b.spec.Usage }
func (b *memBuffer) Stride() uint32                 { return b.stride }
func (b *memBuffer) Handle() uintptr                { return b.handle }
func (b *memBuffer) Valid() bool                    { return !b.freed.Load() }
func (b *memBuffer) Bytes() []byte                  { return b.pixels }

// memoryAllocator backs buffers with Go byte slices.
type memoryAllocator struct {
	next atomic.Uintptr
}

func (a *memoryAllocator) AllocateBuffer(spec Spec) (Buffer, error) {
	if spec.Width == 0 || spec.Height == 0 {
		return nil, fmt.Errorf("%w: cannot allocate empty buffer %s", ErrNoMemory, spec)
	}
	stride := AlignedStride(spec.Width, spec.Format, memoryRowAlign)
	return &memBuffer{
		spec:   spec,
		stride: stride,
		handle: a.next.Add(1),
		pixels: make([]byte, SizeBytes(spec, stride)),
	}, nil
}

func (a *memoryAllocator) FreeBuffer(buf Buffer) {
	if mb, ok := buf.(*memBuffer); ok {
		mb.freed.Store(true)
	}
}
