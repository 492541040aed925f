package bufferqueue

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/bufferqueue/pool"
)

// ConsumerName is returned by Producer.ConsumerName. A pool may feed any
// number of consumers, so the producer has no real consumer identity.
const ConsumerName = "bufferqueue.PlaceholderConsumer"

// Producer is the producer end of a buffer queue.
//
// It owns a fixed table of slots and drives a pool.Pool through them:
// DequeueBuffer hands a slot to the client, RequestBuffer exposes its
// buffer, QueueBuffer posts it to the consumer and CancelBuffer returns it
// unused. Buffers are allocated lazily and reallocated when a request
// changes geometry or format.
//
// Producer is safe for concurrent use. All operations are serialized by one
// mutex, which DequeueBuffer holds while it waits for the pool.
type Producer struct {
	mu sync.Mutex

	pool  pool.Pool
	slots []slot

	maxBufferCount   int
	maxDequeuedCount int
	dequeueTimeout   time.Duration
	generation       uint32
	uniqueID         uint64
	connected        API

	// poisoned is set once the pool broke its contract.
	poisoned error
}

// New creates a producer over p. The slot table has WithMaxBufferCount
// entries; p must never hand out a slot index beyond it.
func New(p pool.Pool, opts ...Option) (*Producer, error) {
	if p == nil {
		return nil, invalidArgf("nil pool")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxBufferCount <= 0 || o.maxBufferCount > MaxQueueCapacity {
		return nil, invalidArgf("max buffer count %d out of range (0, %d]", o.maxBufferCount, MaxQueueCapacity)
	}
	if o.maxDequeuedCount <= 0 || o.maxDequeuedCount > o.maxBufferCount {
		return nil, invalidArgf("max dequeued buffer count %d out of range (0, %d]", o.maxDequeuedCount, o.maxBufferCount)
	}
	if !o.hasUniqueID {
		o.uniqueID = newUniqueID()
	}

	return &Producer{
		pool:             p,
		slots:            make([]slot, o.maxBufferCount),
		maxBufferCount:   o.maxBufferCount,
		maxDequeuedCount: o.maxDequeuedCount,
		dequeueTimeout:   o.dequeueTimeout,
		generation:       o.generation,
		uniqueID:         o.uniqueID,
	}, nil
}

// Connect makes api the sole client of the queue. It fails with
// ErrInvalidArgument if a client is already connected or api is not a
// client API. On success out receives the pool's default geometry.
func (p *Producer) Connect(api API, producerControlledByApp bool, out *QueueBufferOutput) error {
	if out == nil {
		return invalidArgf("connect: nil output")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.poisoned != nil {
		return p.poisoned
	}
	if p.connected != NoAPI {
		Logger().Error("bufferqueue: connect rejected", "api", api, "connected", p.connected)
		return invalidArgf("connect: already connected to %s", p.connected)
	}
	if !api.Valid() {
		Logger().Error("bufferqueue: connect rejected", "api", api)
		return invalidArgf("connect: unknown API %s", api)
	}

	p.connected = api
	d := p.pool.Defaults()
	*out = QueueBufferOutput{Width: d.Width, Height: d.Height}
	Logger().Debug("bufferqueue: connected", "api", api, "controlledByApp", producerControlledByApp)
	return nil
}

// Disconnect releases the connection held by api. It fails with
// ErrInvalidArgument, changing nothing, when api is not the connected one.
// Buffers stay in their slots.
func (p *Producer) Disconnect(api API, mode DisconnectMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !api.Valid() || api != p.connected {
		Logger().Error("bufferqueue: disconnect rejected", "api", api, "connected", p.connected)
		return invalidArgf("disconnect: %s is not connected (connected: %s)", api, p.connected)
	}
	p.connected = NoAPI
	Logger().Debug("bufferqueue: disconnected", "api", api, "mode", int(mode))
	return nil
}

// ConnectedAPI returns the connected client API, or NoAPI.
func (p *Producer) ConnectedAPI() API {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// SetMaxDequeuedBufferCount sets the ceiling on simultaneously dequeued
// buffers. It rejects values outside (0, MaxQueueCapacity], values larger
// than the slot table, and values below the number of buffers currently
// dequeued.
func (p *Producer) SetMaxDequeuedBufferCount(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.poisoned != nil {
		return p.poisoned
	}
	if n <= 0 || n > MaxQueueCapacity {
		return invalidArgf("set max dequeued buffer count: %d out of range (0, %d]", n, MaxQueueCapacity)
	}
	if n > p.maxBufferCount {
		return invalidArgf("set max dequeued buffer count: %d exceeds the %d slots", n, p.maxBufferCount)
	}
	if dequeued := p.countLocked(SlotDequeued); dequeued > n {
		return invalidArgf("set max dequeued buffer count: %d buffers are dequeued, cannot lower the limit to %d", dequeued, n)
	}
	p.maxDequeuedCount = n
	return nil
}

// MaxDequeuedBufferCount returns the ceiling on dequeued buffers.
func (p *Producer) MaxDequeuedBufferCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxDequeuedCount
}

// MaxBufferCount returns the size of the slot table.
func (p *Producer) MaxBufferCount() int {
	return p.maxBufferCount
}

// SetDequeueTimeout sets how long DequeueBuffer waits for the pool. A
// negative timeout waits forever.
func (p *Producer) SetDequeueTimeout(d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dequeueTimeout = d
	return nil
}

// DequeueTimeout returns the dequeue timeout.
func (p *Producer) DequeueTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dequeueTimeout
}

// SetGenerationNumber stores the generation number. The queue itself does
// not use it.
func (p *Producer) SetGenerationNumber(gen uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation = gen
	return nil
}

// GenerationNumber returns the generation number.
func (p *Producer) GenerationNumber() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// UniqueID returns the queue identity.
func (p *Producer) UniqueID() uint64 {
	return p.uniqueID
}

// ConsumerName returns a fixed placeholder.
func (p *Producer) ConsumerName() string {
	Logger().Warn("bufferqueue: consumer name requested, returning placeholder")
	return ConsumerName
}

// SetAsyncMode has no effect: the queue is always asynchronous.
func (p *Producer) SetAsyncMode(async bool) error {
	if async {
		Logger().Warn("bufferqueue: queue is always asynchronous, async mode has no effect")
	}
	return nil
}

// Snapshot returns a copy of the slot table.
func (p *Producer) Snapshot() []SlotInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	infos := make([]SlotInfo, len(p.slots))
	for i := range p.slots {
		infos[i] = p.slots[i].info(i)
	}
	return infos
}

// readyLocked checks that the producer can run a slot operation. Caller
// must hold mu.
func (p *Producer) readyLocked(op string) error {
	if p.poisoned != nil {
		return p.poisoned
	}
	if p.connected == NoAPI {
		Logger().Error("bufferqueue: no connected producer", "op", op)
		return fmt.Errorf("%w: %s", ErrNotInitialized, op)
	}
	return nil
}

// dequeuedLocked returns the slot at index if it is owned by the client.
// Caller must hold mu.
func (p *Producer) dequeuedLocked(op string, index int) (*slot, error) {
	if index < 0 || index >= len(p.slots) {
		Logger().Error("bufferqueue: slot out of range", "op", op, "slot", index, "max", len(p.slots))
		return nil, invalidArgf("%s: slot index %d out of range [0, %d)", op, index, len(p.slots))
	}
	s := &p.slots[index]
	if s.state != SlotDequeued {
		Logger().Error("bufferqueue: slot not owned by the producer", "op", op, "slot", index, "state", s.state)
		return nil, &SlotError{Op: op, Slot: index, State: s.state, Reason: "not owned by the producer"}
	}
	return s, nil
}

func (p *Producer) countLocked(state SlotState) int {
	n := 0
	for i := range p.slots {
		if p.slots[i].state == state {
			n++
		}
	}
	return n
}

// poisonLocked records a broken pool contract. Every later operation
// fails with the returned error. Caller must hold mu.
func (p *Producer) poisonLocked(op string, format string, args ...any) error {
	err := fmt.Errorf("%w: %s: %s", ErrInternalInconsistency, op, fmt.Sprintf(format, args...))
	Logger().Error("bufferqueue: internal inconsistency", "op", op, "err", err)
	p.poisoned = err
	return err
}

// poolFailLocked maps a pool error and poisons the producer when it reveals
// an inconsistency. Caller must hold mu.
func (p *Producer) poolFailLocked(op string, err error, fallback error) error {
	mapped := poolError(op, err, fallback)
	if errors.Is(mapped, ErrInternalInconsistency) {
		Logger().Error("bufferqueue: internal inconsistency", "op", op, "err", mapped)
		p.poisoned = mapped
	}
	return mapped
}
