// Package bufferqueue implements the producer end of a zero-copy graphics
// buffer queue.
//
// # Overview
//
// A queue is a fixed table of buffer slots shared between a producer, which
// fills buffers with pixels, and a consumer, which displays or processes
// them. Buffers live in a pool (see package pool) and are never copied: the
// producer hands slot indices back and forth and the pool moves the buffers.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/bufferqueue"
//	    "github.com/gogpu/bufferqueue/pool"
//	    "github.com/gogpu/gputypes"
//	)
//
//	hub := pool.NewHub(pool.WithCapacity(3))
//	bq, _ := bufferqueue.New(hub, bufferqueue.WithMaxBufferCount(3))
//
//	var out bufferqueue.QueueBufferOutput
//	_ = bq.Connect(bufferqueue.APICPU, true, &out)
//
//	d, _ := bq.DequeueBuffer(640, 480, gputypes.TextureFormatRGBA8Unorm, 0)
//	gb, _ := bq.RequestBuffer(d.Slot) // first use or BufferNeedsReallocation
//	draw(gb.Bytes())
//	_ = bq.QueueBuffer(d.Slot, bufferqueue.QueueBufferInput{Fence: bufferqueue.NoFence}, &out)
//
// # Slots
//
// Every slot is Free, Dequeued, Queued or Cancelled. DequeueBuffer moves a
// Free, Queued or Cancelled slot handed out by the pool to Dequeued.
// QueueBuffer moves it to Queued once its buffer has been requested;
// CancelBuffer moves it to Cancelled. All other calls on a slot that is not
// Dequeued fail with ErrInvalidArgument.
//
// Buffers are allocated lazily: DequeueBuffer grows the pool while it holds
// fewer buffers than MaxDequeuedBufferCount. When the pool hands out a
// buffer whose size or format differs from the request, the buffer is
// destroyed and replaced, and the caller learns it from
// BufferNeedsReallocation.
//
// # Errors
//
// Errors match one of ErrNotInitialized, ErrInvalidArgument, ErrNoMemory,
// ErrTimedOut, ErrUnsupported or ErrInternalInconsistency with errors.Is.
// ErrTimedOut and ErrNoMemory are worth retrying; ErrInternalInconsistency
// means the pool broke its contract and the producer refuses further work.
//
// # Logging
//
// The package is silent by default. See SetLogger.
package bufferqueue
