package bufferqueue

import "github.com/gogpu/gputypes"

// The pool owns every buffer, so operations that move buffers in or out of
// the queue, or change how the consumer acquires them, are not supported.
// They fail with an *UnsupportedError and never change state.

func unsupported(op string) error {
	Logger().Error("bufferqueue: operation not supported", "op", op)
	return &UnsupportedError{Op: op}
}

// DetachBuffer is not supported.
func (p *Producer) DetachBuffer(slot int) error {
	return unsupported("detach buffer")
}

// DetachNextBuffer is not supported.
func (p *Producer) DetachNextBuffer() (*GraphicBuffer, Fence, error) {
	return nil, nil, unsupported("detach next buffer")
}

// AttachBuffer is not supported.
func (p *Producer) AttachBuffer(buf *GraphicBuffer) (int, error) {
	return -1, unsupported("attach buffer")
}

// AllocateBuffers is not supported: buffers are allocated on demand by
// DequeueBuffer.
func (p *Producer) AllocateBuffers(width, height uint32, format gputypes.TextureFormat, usage gputypes.TextureUsage) error {
	return unsupported("allocate buffers")
}

// AllowAllocation is not supported.
func (p *Producer) AllowAllocation(allow bool) error {
	return unsupported("allow allocation")
}

// SetSharedBufferMode is not supported.
func (p *Producer) SetSharedBufferMode(shared bool) error {
	return unsupported("shared buffer mode")
}

// SetAutoRefresh is not supported.
func (p *Producer) SetAutoRefresh(autoRefresh bool) error {
	return unsupported("auto refresh")
}

// SetSidebandStream accepts only a nil stream, which is a no-op.
func (p *Producer) SetSidebandStream(stream SidebandStream) error {
	if stream != nil {
		return unsupported("sideband stream")
	}
	return nil
}

// GetLastQueuedBuffer is not supported.
func (p *Producer) GetLastQueuedBuffer() (*GraphicBuffer, Fence, [16]float32, error) {
	return nil, nil, [16]float32{}, unsupported("last queued buffer")
}

// GetFrameTimestamps is not supported.
func (p *Producer) GetFrameTimestamps() error {
	return unsupported("frame timestamps")
}
