package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/bufferqueue"
	"github.com/gogpu/bufferqueue/pool"
)

func TestRunResize(t *testing.T) {
	for _, backend := range []string{"memory", "hal"} {
		t.Run(backend, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend = backend
			cfg.Frames = 6
			cfg.Width, cfg.Height = 100, 100
			cfg.Resize = Resize{At: 3, Width: 200, Height: 200}

			var out bytes.Buffer
			sum, err := Run(&out, cfg)
			if err != nil {
				t.Fatalf("Run: %v\n%s", err, out.String())
			}
			if sum.Frames != 6 || sum.Reallocations != 1 {
				t.Errorf("summary = %d frames, %d reallocations, want 6 and 1", sum.Frames, sum.Reallocations)
			}
			if sum.Capacity != 1 {
				t.Errorf("Capacity = %d, want 1", sum.Capacity)
			}
			if got := strings.Count(out.String(), "[realloc]"); got != 1 {
				t.Errorf("report marks %d reallocations, want 1:\n%s", got, out.String())
			}
			if !strings.Contains(out.String(), "frame   5: slot 0 200x200") {
				t.Errorf("report misses the last frame:\n%s", out.String())
			}
			for _, s := range sum.Slots {
				if s.State == bufferqueue.SlotDequeued {
					t.Errorf("slot left dequeued: %s", s)
				}
			}
		})
	}
}

func TestRunMultipleDequeued(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBufferCount = 3
	cfg.MaxDequeuedBufferCount = 3
	cfg.Frames = 5

	var out bytes.Buffer
	sum, err := Run(&out, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Reallocations != 0 {
		t.Errorf("Reallocations = %d, want 0", sum.Reallocations)
	}
	if sum.Capacity != 3 {
		t.Errorf("Capacity = %d, want 3 (one buffer per dequeue until the ceiling)", sum.Capacity)
	}
}

func TestRunErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "vulkan"
	_, err := Run(&bytes.Buffer{}, cfg)
	var nf *pool.BackendNotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("Run(unknown backend) = %v, want *pool.BackendNotFoundError", err)
	}

	cfg = DefaultConfig()
	cfg.MaxDequeuedBufferCount = 4
	if _, err := Run(&bytes.Buffer{}, cfg); !errors.Is(err, bufferqueue.ErrInvalidArgument) {
		t.Errorf("Run(max dequeued above table) = %v, want ErrInvalidArgument", err)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"backends", []string{"backends"}, []string{"NAME", "hal", "memory"}},
		{"run", []string{"run", "--frames", "4", "--width", "64", "--height", "32", "--resize-at", "2", "--resize-width", "32", "--resize-height", "32"},
			[]string{"frame   1: slot 0 64x32", "frame   2: slot 0 32x32", "[realloc]", "4 frames, 1 reallocations"}},
		{"run hal", []string{"run", "--backend", "hal", "--frames", "2", "--timeout", "forever"}, []string{"backend hal", "2 frames"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRootCommand()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(tt.args)
			if err := cmd.Execute(); err != nil {
				t.Fatalf("Execute(%v): %v\n%s", tt.args, err, out.String())
			}
			for _, want := range tt.want {
				if !strings.Contains(out.String(), want) {
					t.Errorf("output misses %q:\n%s", want, out.String())
				}
			}
		})
	}
}

func TestRunCommandConfigFile(t *testing.T) {
	path := writeConfig(t, "frames: 2\nwidth: 16\nheight: 16\n")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"run", "--config", path, "--frames", "3"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "3 frames") {
		t.Errorf("flag did not override the file:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "16x16") {
		t.Errorf("file geometry not used:\n%s", out.String())
	}
}
