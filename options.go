package bufferqueue

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// Option configures a Producer during creation.
// Use functional options to customize the queue's tunables.
//
// Example:
//
//	// Defaults: 64 slots, one dequeued buffer at a time, blocking dequeue
//	p, err := bufferqueue.New(hub)
//
//	// Triple buffering with a bounded dequeue wait
//	p, err := bufferqueue.New(hub,
//	    bufferqueue.WithMaxBufferCount(3),
//	    bufferqueue.WithMaxDequeuedBufferCount(2),
//	    bufferqueue.WithDequeueTimeout(16*time.Millisecond))
type Option func(*options)

// options holds optional configuration for Producer creation.
type options struct {
	maxBufferCount   int
	maxDequeuedCount int
	dequeueTimeout   time.Duration
	uniqueID         uint64
	hasUniqueID      bool
	generation       uint32
}

// defaultOptions returns the default producer options.
func defaultOptions() options {
	return options{
		maxBufferCount:   MaxQueueCapacity,
		maxDequeuedCount: 1,
		dequeueTimeout:   infiniteTimeout,
	}
}

// WithMaxBufferCount sets the size of the slot table, in (0, MaxQueueCapacity].
// New rejects other values.
func WithMaxBufferCount(n int) Option {
	return func(o *options) {
		o.maxBufferCount = n
	}
}

// WithMaxDequeuedBufferCount sets the initial ceiling on simultaneously
// dequeued buffers. It is also the number of buffers allocated lazily
// before dequeue starts recycling. New rejects values outside
// (0, max buffer count].
func WithMaxDequeuedBufferCount(n int) Option {
	return func(o *options) {
		o.maxDequeuedCount = n
	}
}

// WithDequeueTimeout sets how long DequeueBuffer may wait for the pool.
// A negative timeout waits forever, zero never waits.
func WithDequeueTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dequeueTimeout = d
	}
}

// WithUniqueID sets the queue identity returned by UniqueID. Without it the
// identity is derived from a random UUID.
func WithUniqueID(id uint64) Option {
	return func(o *options) {
		o.uniqueID = id
		o.hasUniqueID = true
	}
}

// WithGenerationNumber sets the initial generation number.
func WithGenerationNumber(gen uint32) Option {
	return func(o *options) {
		o.generation = gen
	}
}

// newUniqueID folds a random UUID into 64 bits.
func newUniqueID() uint64 {
	u := uuid.New()
	return binary.BigEndian.Uint64(u[:8]) ^ binary.BigEndian.Uint64(u[8:])
}
