package bufferqueue

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/bufferqueue/pool"
	"github.com/gogpu/gputypes"
)

const testFormat = gputypes.TextureFormatRGBA8Unorm

var testDefaults = pool.Spec{Width: 640, Height: 480, Format: testFormat}

// newTestProducer creates a producer over a hub that recycles queued
// buffers immediately, with a non-blocking dequeue.
func newTestProducer(t *testing.T, maxBufferCount int, opts ...Option) (*Producer, *pool.Hub) {
	t.Helper()
	hub := pool.NewHub(
		pool.WithCapacity(maxBufferCount),
		pool.WithDefaults(testDefaults),
		pool.WithAutoRelease(),
	)
	t.Cleanup(func() { _ = hub.Close() })

	opts = append([]Option{WithMaxBufferCount(maxBufferCount), WithDequeueTimeout(0)}, opts...)
	p, err := New(hub, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, hub
}

func newConnectedProducer(t *testing.T, maxBufferCount int, opts ...Option) *Producer {
	t.Helper()
	p, _ := newTestProducer(t, maxBufferCount, opts...)
	connect(t, p)
	return p
}

func connect(t *testing.T, p *Producer) {
	t.Helper()
	var out QueueBufferOutput
	if err := p.Connect(APICPU, true, &out); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func dequeue(t *testing.T, p *Producer, width, height uint32) DequeueOutput {
	t.Helper()
	out, err := p.DequeueBuffer(width, height, testFormat, 0)
	if err != nil {
		t.Fatalf("DequeueBuffer(%dx%d): %v", width, height, err)
	}
	return out
}

// cycleFrame dequeues, requests the buffer when the client has no valid
// copy of it, and queues it back.
func cycleFrame(t *testing.T, p *Producer, width, height uint32) DequeueOutput {
	t.Helper()
	d := dequeue(t, p, width, height)
	if d.Status.NeedsReallocation() || !p.Snapshot()[d.Slot].RequestFulfilled {
		if _, err := p.RequestBuffer(d.Slot); err != nil {
			t.Fatalf("RequestBuffer(%d): %v", d.Slot, err)
		}
	}
	var out QueueBufferOutput
	if err := p.QueueBuffer(d.Slot, QueueBufferInput{Fence: NoFence}, &out); err != nil {
		t.Fatalf("QueueBuffer(%d): %v", d.Slot, err)
	}
	return d
}

func TestNewValidation(t *testing.T) {
	hub := pool.NewHub()
	defer hub.Close()

	tests := []struct {
		name string
		pool pool.Pool
		opts []Option
	}{
		{"nil pool", nil, nil},
		{"zero buffers", hub, []Option{WithMaxBufferCount(0)}},
		{"too many buffers", hub, []Option{WithMaxBufferCount(MaxQueueCapacity + 1)}},
		{"zero dequeued", hub, []Option{WithMaxDequeuedBufferCount(0)}},
		{"dequeued above table", hub, []Option{WithMaxBufferCount(2), WithMaxDequeuedBufferCount(3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.pool, tt.opts...); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("New() = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	p, _ := newTestProducer(t, 4)

	if p.MaxBufferCount() != 4 {
		t.Errorf("MaxBufferCount() = %d, want 4", p.MaxBufferCount())
	}
	if p.MaxDequeuedBufferCount() != 1 {
		t.Errorf("MaxDequeuedBufferCount() = %d, want 1", p.MaxDequeuedBufferCount())
	}
	if p.ConnectedAPI() != NoAPI {
		t.Errorf("ConnectedAPI() = %s, want none", p.ConnectedAPI())
	}
	for _, info := range p.Snapshot() {
		if info.State != SlotFree || info.HasBuffer {
			t.Errorf("fresh %s", info)
		}
	}

	hub := pool.NewHub()
	defer hub.Close()
	p1, _ := New(hub)
	p2, _ := New(hub)
	if p1.UniqueID() == p2.UniqueID() {
		t.Error("two queues share a unique id")
	}
	if p1.DequeueTimeout() >= 0 {
		t.Errorf("default DequeueTimeout() = %v, want negative (forever)", p1.DequeueTimeout())
	}
	if p1.MaxBufferCount() != MaxQueueCapacity {
		t.Errorf("default MaxBufferCount() = %d, want %d", p1.MaxBufferCount(), MaxQueueCapacity)
	}
}

func TestConnect(t *testing.T) {
	p, _ := newTestProducer(t, 3)

	var out QueueBufferOutput
	if err := p.Connect(APIEGL, false, &out); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if out.Width != 640 || out.Height != 480 {
		t.Errorf("Connect output = %dx%d, want pool defaults 640x480", out.Width, out.Height)
	}
	if out.NumPendingBuffers != 0 || out.NextFrameNumber != 0 || out.TransformHint != 0 {
		t.Errorf("Connect output carries untracked fields: %+v", out)
	}
	if p.ConnectedAPI() != APIEGL {
		t.Errorf("ConnectedAPI() = %s, want egl", p.ConnectedAPI())
	}
}

func TestConnectTwice(t *testing.T) {
	p := newConnectedProducer(t, 3)

	var out QueueBufferOutput
	err := p.Connect(APICPU, true, &out)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("second Connect = %v, want ErrInvalidArgument", err)
	}
	if err := p.Connect(APIMedia, true, &out); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Connect of another API = %v, want ErrInvalidArgument", err)
	}
	if p.ConnectedAPI() != APICPU {
		t.Errorf("ConnectedAPI() = %s, want cpu", p.ConnectedAPI())
	}
}

func TestConnectInvalid(t *testing.T) {
	p, _ := newTestProducer(t, 3)

	if err := p.Connect(APICPU, true, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Connect(nil output) = %v, want ErrInvalidArgument", err)
	}
	var out QueueBufferOutput
	for _, api := range []API{NoAPI, API(5), API(-1)} {
		if err := p.Connect(api, true, &out); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Connect(%s) = %v, want ErrInvalidArgument", api, err)
		}
	}
	if p.ConnectedAPI() != NoAPI {
		t.Errorf("failed Connect left API %s connected", p.ConnectedAPI())
	}
}

func TestDisconnect(t *testing.T) {
	p := newConnectedProducer(t, 3)

	if err := p.Disconnect(APIEGL, DisconnectAPI); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Disconnect(egl) = %v, want ErrInvalidArgument", err)
	}
	if p.ConnectedAPI() != APICPU {
		t.Fatal("rejected Disconnect changed the connection")
	}

	if err := p.Disconnect(APICPU, DisconnectAPI); err != nil {
		t.Fatalf("Disconnect(cpu): %v", err)
	}
	if _, err := p.DequeueBuffer(8, 8, testFormat, 0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("DequeueBuffer after Disconnect = %v, want ErrNotInitialized", err)
	}

	// Reconnect with another API.
	var out QueueBufferOutput
	if err := p.Connect(APICamera, false, &out); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	dequeue(t, p, 8, 8)
}

func TestNotInitialized(t *testing.T) {
	p, _ := newTestProducer(t, 3)

	if _, err := p.DequeueBuffer(8, 8, testFormat, 0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("DequeueBuffer = %v, want ErrNotInitialized", err)
	}
	if _, err := p.RequestBuffer(0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("RequestBuffer = %v, want ErrNotInitialized", err)
	}
	var out QueueBufferOutput
	if err := p.QueueBuffer(0, QueueBufferInput{Fence: NoFence}, &out); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("QueueBuffer = %v, want ErrNotInitialized", err)
	}
	if err := p.CancelBuffer(0, NoFence); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("CancelBuffer = %v, want ErrNotInitialized", err)
	}
}

func TestSetMaxDequeuedBufferCount(t *testing.T) {
	p := newConnectedProducer(t, 4, WithMaxDequeuedBufferCount(3))

	for i := 0; i < 3; i++ {
		dequeue(t, p, 32, 32)
	}

	if err := p.SetMaxDequeuedBufferCount(2); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("lowering below 3 dequeued = %v, want ErrInvalidArgument", err)
	}
	if p.MaxDequeuedBufferCount() != 3 {
		t.Errorf("rejected call changed the limit to %d", p.MaxDequeuedBufferCount())
	}
	if err := p.SetMaxDequeuedBufferCount(3); err != nil {
		t.Errorf("SetMaxDequeuedBufferCount(3) = %v", err)
	}
	if err := p.SetMaxDequeuedBufferCount(4); err != nil {
		t.Errorf("SetMaxDequeuedBufferCount(4) = %v", err)
	}

	for _, n := range []int{0, -1, 5, MaxQueueCapacity + 1} {
		if err := p.SetMaxDequeuedBufferCount(n); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SetMaxDequeuedBufferCount(%d) = %v, want ErrInvalidArgument", n, err)
		}
	}
}

func TestTunables(t *testing.T) {
	p, _ := newTestProducer(t, 3, WithGenerationNumber(7), WithUniqueID(42))

	if p.GenerationNumber() != 7 {
		t.Errorf("GenerationNumber() = %d, want 7", p.GenerationNumber())
	}
	if err := p.SetGenerationNumber(8); err != nil {
		t.Fatal(err)
	}
	if p.GenerationNumber() != 8 {
		t.Errorf("GenerationNumber() = %d, want 8", p.GenerationNumber())
	}

	if err := p.SetDequeueTimeout(5 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if p.DequeueTimeout() != 5*time.Millisecond {
		t.Errorf("DequeueTimeout() = %v, want 5ms", p.DequeueTimeout())
	}

	if p.UniqueID() != 42 {
		t.Errorf("UniqueID() = %d, want 42", p.UniqueID())
	}
	if p.ConsumerName() != ConsumerName {
		t.Errorf("ConsumerName() = %q", p.ConsumerName())
	}
	if err := p.SetAsyncMode(true); err != nil {
		t.Errorf("SetAsyncMode(true) = %v", err)
	}
	if err := p.SetAsyncMode(false); err != nil {
		t.Errorf("SetAsyncMode(false) = %v", err)
	}
}

func TestAPIString(t *testing.T) {
	for _, api := range []API{APIEGL, APICPU, APIMedia, APICamera} {
		got, err := ParseAPI(api.String())
		if err != nil || got != api {
			t.Errorf("ParseAPI(%q) = %v, %v", api.String(), got, err)
		}
	}
	if _, err := ParseAPI("vulkan"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseAPI(vulkan) = %v, want ErrInvalidArgument", err)
	}
}
