package bufferqueue

import (
	"github.com/gogpu/bufferqueue/pool"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// GraphicBuffer is the client-visible view of a slot's buffer, returned by
// RequestBuffer. It shares memory and handle with the pool buffer; nothing
// is copied.
//
// A GraphicBuffer stays valid until DequeueBuffer reports
// BufferNeedsReallocation for its slot.
type GraphicBuffer struct {
	buf pool.Buffer
}

var _ gpucontext.Texture = (*GraphicBuffer)(nil)

func newGraphicBuffer(buf pool.Buffer) *GraphicBuffer {
	return &GraphicBuffer{buf: buf}
}

// Width returns the buffer width in pixels.
func (g *GraphicBuffer) Width() int { return int(g.buf.Width()) }

// Height returns the buffer height in pixels.
func (g *GraphicBuffer) Height() int { return int(g.buf.Height()) }

// Format returns the pixel format the buffer was allocated with.
func (g *GraphicBuffer) Format() gputypes.TextureFormat { return g.buf.Format() }

// Usage returns the usage flags the buffer was allocated with.
func (g *GraphicBuffer) Usage() gputypes.TextureUsage { return g.buf.Usage() }

// Stride returns the row pitch in pixels.
func (g *GraphicBuffer) Stride() uint32 { return g.buf.Stride() }

// Handle returns the native handle shared with the consumer.
func (g *GraphicBuffer) Handle() uintptr { return g.buf.Handle() }

// LayerCount is always 1.
func (g *GraphicBuffer) LayerCount() uint32 { return 1 }

// Valid reports whether the underlying buffer is still allocated.
func (g *GraphicBuffer) Valid() bool { return g.buf.Valid() }

// Buffer returns the pool buffer, for clients that need backend-specific
// access such as halpool.Texture.Raw.
func (g *GraphicBuffer) Buffer() pool.Buffer { return g.buf }

// Bytes returns the pixels of CPU-addressable buffers and nil otherwise.
// The slice aliases buffer memory; rows are Stride pixels apart.
func (g *GraphicBuffer) Bytes() []byte {
	if cb, ok := g.buf.(pool.CPUBuffer); ok {
		return cb.Bytes()
	}
	return nil
}
