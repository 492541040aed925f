package bufferqueue

import (
	"fmt"
	"image"

	"github.com/gogpu/bufferqueue/pool"
)

// QueueBuffer posts a filled slot to the consumer.
//
// The slot must be dequeued and its buffer requested. in.Crop must lie
// within the buffer: it is not clamped. in.Fence is required and is handed
// to the consumer, which waits on it before reading.
//
// TransformHint, NumPendingBuffers and NextFrameNumber of out are zero.
func (p *Producer) QueueBuffer(index int, in QueueBufferInput, out *QueueBufferOutput) error {
	const op = "queue"

	if out == nil {
		return invalidArgf("%s: nil output", op)
	}
	if !in.ScalingMode.Valid() {
		Logger().Error("bufferqueue: unknown scaling mode", "mode", int32(in.ScalingMode))
		return invalidArgf("%s: unknown scaling mode %d", op, in.ScalingMode)
	}
	if in.Fence == nil {
		Logger().Error("bufferqueue: nil fence", "op", op, "slot", index)
		return invalidArgf("%s: nil fence", op)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.readyLocked(op); err != nil {
		return err
	}
	s, err := p.dequeuedLocked(op, index)
	if err != nil {
		return err
	}
	if !s.requestFulfilled || s.graphicBuffer == nil {
		Logger().Error("bufferqueue: buffer not requested", "slot", index)
		return &SlotError{Op: op, Slot: index, State: s.state, Reason: "buffer not requested"}
	}

	buf := s.buffer
	bounds := image.Rect(0, 0, int(buf.Width()), int(buf.Height()))
	if !cropWithin(in.Crop, bounds) {
		Logger().Error("bufferqueue: crop out of bounds", "slot", index, "crop", in.Crop.String(), "bounds", bounds.String())
		return invalidArgf("%s: slot %d: crop %v exceeds buffer bounds %v", op, index, in.Crop, bounds)
	}

	meta, err := pool.EncodeMetadata(pool.Metadata{
		Timestamp:     in.Timestamp,
		AutoTimestamp: in.IsAutoTimestamp,
		Dataspace:     int32(in.Dataspace),
		Crop: pool.CropRect{
			Left:   int32(in.Crop.Min.X),
			Top:    int32(in.Crop.Min.Y),
			Right:  int32(in.Crop.Max.X),
			Bottom: int32(in.Crop.Max.Y),
		},
		ScalingMode: int32(in.ScalingMode),
		Transform:   uint32(in.Transform),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidArgument, op, err)
	}

	if err := p.pool.Post(index, buf, in.Fence, meta); err != nil {
		return p.poolFailLocked(op, err, ErrInternalInconsistency)
	}
	s.state = SlotQueued

	*out = QueueBufferOutput{Width: buf.Width(), Height: buf.Height()}
	Logger().Debug("bufferqueue: queued", "slot", index, "timestamp", in.Timestamp)
	return nil
}

// CancelBuffer returns a dequeued slot to the pool unused. The pool hands
// the buffer out again only after fence signals. fence is required.
func (p *Producer) CancelBuffer(index int, fence Fence) error {
	const op = "cancel"

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.readyLocked(op); err != nil {
		return err
	}
	s, err := p.dequeuedLocked(op, index)
	if err != nil {
		return err
	}
	if fence == nil {
		Logger().Error("bufferqueue: nil fence", "op", op, "slot", index)
		return invalidArgf("%s: nil fence", op)
	}

	if err := p.pool.Enqueue(index, s.buffer, fence); err != nil {
		return p.poolFailLocked(op, err, ErrInternalInconsistency)
	}
	s.state = SlotCancelled
	s.pendingFence = fence
	Logger().Debug("bufferqueue: cancelled", "slot", index, "fenced", fence.Valid())
	return nil
}

// cropWithin reports whether crop lies inside bounds. The zero rectangle
// means no crop. Other empty rectangles are checked coordinate by
// coordinate, so a degenerate crop outside the buffer or with inverted
// corners is rejected.
func cropWithin(crop, bounds image.Rectangle) bool {
	if crop == (image.Rectangle{}) {
		return true
	}
	if crop.Min.X > crop.Max.X || crop.Min.Y > crop.Max.Y {
		return false
	}
	return crop.Min.X >= bounds.Min.X && crop.Min.Y >= bounds.Min.Y &&
		crop.Max.X <= bounds.Max.X && crop.Max.Y <= bounds.Max.Y
}
