package halpool

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gogpu/bufferqueue/pool"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// rowAlign is the row pitch alignment, in bytes, required for texture to
// buffer copies.
const rowAlign = 256

// DefaultUsage is the usage given to textures allocated with no usage bits.
const DefaultUsage = gputypes.TextureUsageCopySrc |
	gputypes.TextureUsageCopyDst |
	gputypes.TextureUsageTextureBinding |
	gputypes.TextureUsageRenderAttachment

// Texture is a pool buffer backed by a HAL texture.
type Texture struct {
	spec   pool.Spec
	stride uint32
	size   uint64
	handle uintptr
	raw    hal.Texture
	freed  atomic.Bool
}

var _ pool.Buffer = (*Texture)(nil)

func (t *Texture) Width() uint32                  { return t.spec.Width }
func (t *Texture) Height() uint32                 { return t.spec.Height }
func (t *Texture) Format() gputypes.TextureFormat { return t.spec.Format }
func (t *Texture) Usage() gputypes.TextureUsage   { return t.spec.Usage }
func (t *Texture) Stride() uint32                 { return t.stride }
func (t *Texture) Handle() uintptr                { return t.handle }
func (t *Texture) Valid() bool                    { return !t.freed.Load() }

// Raw returns the underlying HAL texture. It must not be destroyed by the
// caller.
func (t *Texture) Raw() hal.Texture { return t.raw }

// SizeBytes returns the memory charged against the pool budget.
func (t *Texture) SizeBytes() uint64 { return t.size }

// textureAllocator creates HAL textures within a memory budget.
type textureAllocator struct {
	device hal.Device
	budget *budget

	// synthetic handles for backends without native handles
	next atomic.Uintptr
}

func (a *textureAllocator) AllocateBuffer(spec pool.Spec) (pool.Buffer, error) {
	if spec.Width == 0 || spec.Height == 0 {
		return nil, fmt.Errorf("%w: cannot allocate empty texture %s", pool.ErrNoMemory, spec)
	}
	if spec.Usage == 0 {
		spec.Usage = DefaultUsage
	}

	stride := pool.AlignedStride(spec.Width, spec.Format, rowAlign)
	size := pool.SizeBytes(spec, stride)
	if err := a.budget.reserve(size); err != nil {
		return nil, err
	}

	raw, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "bufferqueue-slot",
		Size:          hal.Extent3D{Width: spec.Width, Height: spec.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        spec.Format,
		Usage:         spec.Usage,
	})
	if err != nil {
		a.budget.release(size)
		if errors.Is(err, hal.ErrDeviceOutOfMemory) {
			return nil, fmt.Errorf("%w: %w", pool.ErrNoMemory, err)
		}
		return nil, fmt.Errorf("halpool: create texture %s: %w", spec, err)
	}

	handle := raw.NativeHandle()
	if handle == 0 {
		handle = a.next.Add(1)
	}
	pool.Logger().Debug("halpool: created texture", "spec", spec.String(), "bytes", size)
	return &Texture{
		spec:   spec,
		stride: stride,
		size:   size,
		handle: handle,
		raw:    raw,
	}, nil
}

func (a *textureAllocator) FreeBuffer(buf pool.Buffer) {
	t, ok := buf.(*Texture)
	if !ok || !t.freed.CompareAndSwap(false, true) {
		return
	}
	a.device.DestroyTexture(t.raw)
	a.budget.release(t.size)
}
