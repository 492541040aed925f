package bufferqueue

import (
	"fmt"
	"image"
	"time"

	"github.com/gogpu/bufferqueue/pool"
)

// MaxQueueCapacity is the largest number of slots a queue can have.
const MaxQueueCapacity = pool.MaxCapacity

// Fence marks the completion of prior work on a buffer.
type Fence = pool.Fence

// NoFence is the already-signalled fence.
var NoFence = pool.NoFence

// API identifies the kind of client connected to a queue.
type API int

// Client APIs. The zero value means no client is connected.
const (
	NoAPI     API = 0
	APIEGL    API = 1
	APICPU    API = 2
	APIMedia  API = 3
	APICamera API = 4
)

// Valid reports whether a is one of the connectable client APIs.
func (a API) Valid() bool {
	switch a {
	case APIEGL, APICPU, APIMedia, APICamera:
		return true
	default:
		return false
	}
}

func (a API) String() string {
	switch a {
	case NoAPI:
		return "none"
	case APIEGL:
		return "egl"
	case APICPU:
		return "cpu"
	case APIMedia:
		return "media"
	case APICamera:
		return "camera"
	default:
		return fmt.Sprintf("API(%d)", int(a))
	}
}

// ParseAPI returns the API named by s, as printed by API.String.
func ParseAPI(s string) (API, error) {
	for _, a := range []API{APIEGL, APICPU, APIMedia, APICamera} {
		if a.String() == s {
			return a, nil
		}
	}
	return NoAPI, invalidArgf("unknown client API %q", s)
}

// ScalingMode tells the consumer how to fit a buffer to its window.
type ScalingMode int32

// Scaling modes.
const (
	ScalingFreeze ScalingMode = iota
	ScalingScaleToWindow
	ScalingScaleCrop
	ScalingNoScaleCrop
)

// Valid reports whether m is a known scaling mode.
func (m ScalingMode) Valid() bool {
	return m >= ScalingFreeze && m <= ScalingNoScaleCrop
}

// Transform is a bit set of flips and rotations applied by the consumer.
type Transform uint32

// Transform bits.
const (
	TransformFlipH Transform = 1 << iota
	TransformFlipV
	TransformRot90
)

// Dataspace describes the color space of buffer contents.
type Dataspace int32

// DisconnectMode selects what Disconnect tears down.
type DisconnectMode int

// Disconnect modes.
const (
	// DisconnectAPI disconnects only the given API.
	DisconnectAPI DisconnectMode = iota
	// DisconnectAllLocal disconnects every API of the calling process.
	DisconnectAllLocal
)

// QueueBufferInput is the per-frame description passed to QueueBuffer.
type QueueBufferInput struct {
	// Timestamp is the presentation time in nanoseconds.
	Timestamp       int64
	IsAutoTimestamp bool
	Dataspace       Dataspace

	// Crop must lie within the buffer with Min <= Max. The zero rectangle
	// means no crop.
	Crop        image.Rectangle
	ScalingMode ScalingMode
	Transform   Transform

	// Fence signals when the client has finished writing the buffer. It is
	// required; use NoFence when writes are already complete.
	Fence Fence
}

// QueueBufferOutput reports the state of the queue after Connect or
// QueueBuffer.
//
// TransformHint, NumPendingBuffers and NextFrameNumber are always zero: the
// consumer side acquires frames on its own, so the producer cannot observe
// them.
type QueueBufferOutput struct {
	Width             uint32
	Height            uint32
	TransformHint     Transform
	NumPendingBuffers uint32
	NextFrameNumber   uint64
}

// DequeueStatus is a set of flags returned with a dequeued slot.
type DequeueStatus uint32

// Dequeue status flags.
const (
	// BufferNeedsReallocation means the slot's buffer was replaced. The
	// client must drop any GraphicBuffer it cached for the slot and call
	// RequestBuffer again.
	BufferNeedsReallocation DequeueStatus = 1 << iota
)

// NeedsReallocation reports whether BufferNeedsReallocation is set.
func (s DequeueStatus) NeedsReallocation() bool {
	return s&BufferNeedsReallocation != 0
}

// DequeueOutput is the result of DequeueBuffer.
type DequeueOutput struct {
	Slot   int
	Fence  Fence
	Status DequeueStatus
}

// QueryKey selects the value returned by Query.
type QueryKey int

// Query keys.
const (
	QueryWidth                 QueryKey = 0
	QueryHeight                QueryKey = 1
	QueryFormat                QueryKey = 2
	QueryMinUndequeuedBuffers  QueryKey = 3
	QueryConsumerRunningBehind QueryKey = 9
	QueryConsumerUsageBits     QueryKey = 10
	QueryStickyTransform       QueryKey = 11
	QueryDefaultDataspace      QueryKey = 12
	QueryBufferAge             QueryKey = 13
)

func (k QueryKey) String() string {
	switch k {
	case QueryWidth:
		return "width"
	case QueryHeight:
		return "height"
	case QueryFormat:
		return "format"
	case QueryMinUndequeuedBuffers:
		return "min-undequeued-buffers"
	case QueryConsumerRunningBehind:
		return "consumer-running-behind"
	case QueryConsumerUsageBits:
		return "consumer-usage-bits"
	case QueryStickyTransform:
		return "sticky-transform"
	case QueryDefaultDataspace:
		return "default-dataspace"
	case QueryBufferAge:
		return "buffer-age"
	default:
		return fmt.Sprintf("QueryKey(%d)", int(k))
	}
}

// SidebandStream is a stream of buffers delivered outside the queue.
type SidebandStream interface {
	NativeHandle() uintptr
}

// infiniteTimeout makes a dequeue wait until a buffer becomes available.
const infiniteTimeout time.Duration = -1
