package pool

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
)

// MaxCapacity is the largest number of buffers any pool tracks.
const MaxCapacity = 64

// Pool errors.
var (
	// ErrNoMemory is returned when a buffer cannot be allocated, either
	// because every slot is bound or because the backing allocator failed.
	ErrNoMemory = errors.New("pool: out of memory")

	// ErrTimedOut is returned when no buffer became available in time.
	ErrTimedOut = errors.New("pool: timed out")

	// ErrInvalidSlot is returned when a slot index is out of range or the
	// slot is not in the state the operation requires.
	ErrInvalidSlot = errors.New("pool: invalid slot")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("pool: closed")
)

// Spec describes the geometry and type of a buffer.
type Spec struct {
	Width  uint32
	Height uint32
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage
}

// Matches reports whether a buffer has the width, height and format of s.
// Usage is not compared: a buffer allocated with more usage bits can serve
// a narrower request.
func (s Spec) Matches(b Buffer) bool {
	return b.Width() == s.Width && b.Height() == s.Height && b.Format() == s.Format
}

func (s Spec) String() string {
	return fmt.Sprintf("%dx%d %s", s.Width, s.Height, s.Format)
}

// Buffer is an allocated graphics buffer owned by a pool.
type Buffer interface {
	Width() uint32
	Height() uint32
	Format() gputypes.TextureFormat
	Usage() gputypes.TextureUsage

	// Stride is the row pitch in pixels.
	Stride() uint32

	// Handle returns the native handle shared across components.
	Handle() uintptr

	// Valid reports whether the buffer is still backed by memory.
	Valid() bool
}

// CPUBuffer is implemented by buffers whose pixels are addressable from Go.
// The returned slice aliases the buffer memory.
type CPUBuffer interface {
	Buffer
	Bytes() []byte
}

// Pool is the producer-facing contract of a buffer pool.
//
// Timeouts: a negative timeout blocks until a buffer is available, zero
// polls once.
type Pool interface {
	// Capacity returns the number of buffers currently allocated.
	Capacity() int

	// Defaults returns the geometry used when a client does not specify one.
	Defaults() Spec

	// Allocate grows the pool by count buffers of the given spec and returns
	// the slots they were bound to. New buffers are immediately available.
	Allocate(spec Spec, count int) ([]int, error)

	// Dequeue hands out an available buffer together with the fence guarding
	// its last access.
	Dequeue(timeout time.Duration) (slot int, buf Buffer, fence Fence, err error)

	// Enqueue returns a dequeued buffer unused. The buffer is handed out again
	// only after fence signals.
	Enqueue(slot int, buf Buffer, fence Fence) error

	// Detach destroys the buffer bound to a dequeued slot and frees the slot.
	Detach(slot int) error

	// Post publishes a filled buffer to the consumer side. meta is an opaque
	// metadata block, see EncodeMetadata.
	Post(slot int, buf Buffer, fence Fence, meta []byte) error

	// Close releases every buffer. Blocked calls return ErrClosed.
	Close() error
}

// BytesPerPixel returns the texel size of the formats buffers are
// typically allocated with. Unknown formats are treated as 4 bytes.
func BytesPerPixel(f gputypes.TextureFormat) uint32 {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRG8Unorm, gputypes.TextureFormatR16Float:
		return 2
	case gputypes.TextureFormatRGBA16Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	default:
		return 4
	}
}

// AlignedStride returns the row pitch in pixels for a buffer of the given
// width when rows must start on an align-byte boundary. align must be a
// multiple of the pixel size.
func AlignedStride(width uint32, f gputypes.TextureFormat, align uint32) uint32 {
	bpp := BytesPerPixel(f)
	if align == 0 {
		return width
	}
	row := width * bpp
	row = (row + align - 1) / align * align
	return row / bpp
}

// SizeBytes returns the memory footprint of a buffer with the given spec
// and stride.
func SizeBytes(s Spec, stride uint32) uint64 {
	return uint64(stride) * uint64(s.Height) * uint64(BytesPerPixel(s.Format))
}
