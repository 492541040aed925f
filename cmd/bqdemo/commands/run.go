package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/gogpu/bufferqueue"
	"github.com/gogpu/bufferqueue/pool"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/spf13/cobra"

	// Registers the "hal" pool backend.
	_ "github.com/gogpu/bufferqueue/pool/halpool"
)

// frameInterval is the presentation time step between frames (60 Hz).
const frameInterval = int64(time.Second / 60)

func newRunCommand() *cobra.Command {
	var (
		cfgFile  string
		override Config
	)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run frames through a buffer queue",
		Long: `Run frames through a buffer queue.

Each frame is dequeued, requested when the queue reports a new buffer,
queued with metadata, then acquired and released by the consumer side.
Changing the size with --resize-at makes the queue reallocate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := DefaultConfig()
			if cfgFile != "" {
				var err error
				if cfg, err = LoadConfig(cfgFile); err != nil {
					return err
				}
			}

			// Command-line overrides
			flags := cmd.Flags()
			if flags.Changed("backend") {
				cfg.Backend = override.Backend
			}
			if flags.Changed("max-buffers") {
				cfg.MaxBufferCount = override.MaxBufferCount
			}
			if flags.Changed("max-dequeued") {
				cfg.MaxDequeuedBufferCount = override.MaxDequeuedBufferCount
			}
			if flags.Changed("timeout") {
				cfg.DequeueTimeout = override.DequeueTimeout
			}
			if flags.Changed("frames") {
				cfg.Frames = override.Frames
			}
			if flags.Changed("width") {
				cfg.Width = override.Width
			}
			if flags.Changed("height") {
				cfg.Height = override.Height
			}
			if flags.Changed("format") {
				cfg.Format = override.Format
			}
			if flags.Changed("resize-at") {
				cfg.Resize.At = override.Resize.At
			}
			if flags.Changed("resize-width") {
				cfg.Resize.Width = override.Resize.Width
			}
			if flags.Changed("resize-height") {
				cfg.Resize.Height = override.Resize.Height
			}

			_, err := Run(cmd.OutOrStdout(), cfg)
			return err
		},
	}

	f := runCmd.Flags()
	f.StringVar(&cfgFile, "config", "", "YAML configuration file")
	f.StringVar(&override.Backend, "backend", "", "pool backend (see 'bqdemo backends')")
	f.IntVar(&override.MaxBufferCount, "max-buffers", 0, "slot table size")
	f.IntVar(&override.MaxDequeuedBufferCount, "max-dequeued", 0, "buffers the producer may hold at once")
	f.StringVar(&override.DequeueTimeout, "timeout", "", "dequeue timeout, or \"forever\"")
	f.IntVar(&override.Frames, "frames", 0, "number of frames")
	f.Uint32Var(&override.Width, "width", 0, "frame width")
	f.Uint32Var(&override.Height, "height", 0, "frame height")
	f.StringVar(&override.Format, "format", "", "pixel format, e.g. RGBA8Unorm")
	f.IntVar(&override.Resize.At, "resize-at", 0, "first frame using the resize geometry")
	f.Uint32Var(&override.Resize.Width, "resize-width", 0, "width from --resize-at on")
	f.Uint32Var(&override.Resize.Height, "resize-height", 0, "height from --resize-at on")
	return runCmd
}

// Summary is the outcome of a demo run.
type Summary struct {
	Frames        int
	Reallocations int
	Capacity      int
	Slots         []bufferqueue.SlotInfo
}

// Run executes the frame plan of cfg and writes a report to w.
func Run(w io.Writer, cfg *Config) (Summary, error) {
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	timeout, _ := cfg.timeout()
	format, _ := cfg.format()

	ex, err := pool.New(cfg.Backend, pool.Options{
		Capacity:    cfg.MaxBufferCount,
		Defaults:    pool.Spec{Width: cfg.Width, Height: cfg.Height, Format: format},
		Device:      &noop.Device{},
		BudgetBytes: cfg.BudgetMB << 20,
	})
	if err != nil {
		return Summary{}, fmt.Errorf("create %s pool: %w", cfg.Backend, err)
	}
	defer ex.Close()

	bq, err := bufferqueue.New(ex,
		bufferqueue.WithMaxBufferCount(cfg.MaxBufferCount),
		bufferqueue.WithMaxDequeuedBufferCount(cfg.MaxDequeuedBufferCount),
		bufferqueue.WithDequeueTimeout(timeout),
	)
	if err != nil {
		return Summary{}, err
	}

	var out bufferqueue.QueueBufferOutput
	if err := bq.Connect(bufferqueue.APICPU, true, &out); err != nil {
		return Summary{}, err
	}
	defer bq.Disconnect(bufferqueue.APICPU, bufferqueue.DisconnectAPI)

	fmt.Fprintf(w, "backend %s, queue %d, defaults %dx%d %s\n", cfg.Backend, bq.UniqueID(), out.Width, out.Height, format)

	sum := Summary{Frames: cfg.Frames}
	for i := 0; i < cfg.Frames; i++ {
		width, height := cfg.sizeAt(i)
		realloc, err := produceFrame(bq, i, width, height, format)
		if err != nil {
			return sum, fmt.Errorf("frame %d: %w", i, err)
		}

		frame, err := ex.Acquire(timeout)
		if err != nil {
			return sum, fmt.Errorf("frame %d: acquire: %w", i, err)
		}
		if err := ex.Release(frame.Slot, pool.NoFence); err != nil {
			return sum, fmt.Errorf("frame %d: release: %w", i, err)
		}

		mark := ""
		if realloc {
			sum.Reallocations++
			mark = "  [realloc]"
		}
		fmt.Fprintf(w, "frame %3d: slot %d %dx%d ts=%d%s\n",
			i, frame.Slot, frame.Buffer.Width(), frame.Buffer.Height(), frame.Metadata.Timestamp, mark)
	}

	sum.Capacity = ex.Capacity()
	sum.Slots = bq.Snapshot()
	fmt.Fprintf(w, "%d frames, %d reallocations, %d buffers\n", sum.Frames, sum.Reallocations, sum.Capacity)
	writeSlots(w, sum.Slots)
	return sum, nil
}

// produceFrame runs one producer cycle and reports whether the buffer was
// reallocated.
func produceFrame(bq *bufferqueue.Producer, index int, width, height uint32, format gputypes.TextureFormat) (bool, error) {
	d, err := bq.DequeueBuffer(width, height, format, 0)
	if err != nil {
		return false, err
	}
	if err := d.Fence.Wait(-1); err != nil {
		return false, err
	}

	realloc := d.Status.NeedsReallocation()
	if realloc || !bq.Snapshot()[d.Slot].RequestFulfilled {
		gb, err := bq.RequestBuffer(d.Slot)
		if err != nil {
			return false, err
		}
		fill(gb, byte(index))
	}

	var out bufferqueue.QueueBufferOutput
	return realloc, bq.QueueBuffer(d.Slot, bufferqueue.QueueBufferInput{
		Timestamp:   int64(index) * frameInterval,
		ScalingMode: bufferqueue.ScalingScaleToWindow,
		Fence:       bufferqueue.NoFence,
	}, &out)
}

// fill paints CPU buffers with a flat value; GPU buffers are left alone.
func fill(gb *bufferqueue.GraphicBuffer, v byte) {
	px := gb.Bytes()
	for i := range px {
		px[i] = v
	}
}

func writeSlots(w io.Writer, slots []bufferqueue.SlotInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tSTATE\tBUFFER\tREQUESTED")
	for _, s := range slots {
		if !s.HasBuffer && s.State == bufferqueue.SlotFree {
			continue
		}
		buffer := "-"
		if s.HasBuffer {
			buffer = fmt.Sprintf("%dx%d %s", s.Width, s.Height, s.Format)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\n", s.Index, s.State, buffer, s.RequestFulfilled)
	}
	tw.Flush()
}
