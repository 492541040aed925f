// Package pool defines the buffer pool collaborator used by the bufferqueue
// producer, together with an in-memory implementation.
//
// A pool owns the physical buffer memory. The producer only ever sees slot
// indices and Buffer handles; it asks the pool to allocate, dequeue, enqueue
// (return a cancelled buffer), detach and post. Buffers are never copied: the
// Buffer returned by Dequeue is the same object the consumer later acquires.
//
// # Implementations
//
//   - Hub: fixed-capacity, CPU memory, FIFO hand-out of available slots. It
//     also exposes the consumer half (Acquire/Release) used by tests and the
//     demo command.
//   - halpool.Pool (sub-package): the same bookkeeping with buffers backed by
//     wgpu HAL textures and fences backed by hal.Fence.
//
// Backends register themselves in a priority registry so that callers can
// pick one by name:
//
//	p, err := pool.New("memory", pool.Options{Capacity: 3})
//
// # Fences
//
// Every hand-over may carry a Fence. A buffer returned to the pool with a
// fence is not handed out again until the fence signals. NoFence is the
// always-signalled placeholder.
package pool
