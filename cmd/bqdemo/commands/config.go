package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/gogpu/bufferqueue"
	"github.com/gogpu/gputypes"
)

// Config is the demo configuration, loaded from YAML and overridden by flags.
type Config struct {
	Backend                string `yaml:"backend"`
	MaxBufferCount         int    `yaml:"max_buffer_count"`
	MaxDequeuedBufferCount int    `yaml:"max_dequeued_buffer_count"`
	DequeueTimeout         string `yaml:"dequeue_timeout"`
	BudgetMB               uint64 `yaml:"budget_mb"`

	Frames int    `yaml:"frames"`
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
	Format string `yaml:"format"`
	Resize Resize `yaml:"resize"`
}

// Resize switches the requested geometry from frame At onwards. At 0
// disables it.
type Resize struct {
	At     int    `yaml:"at"`
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Backend:                "memory",
		MaxBufferCount:         3,
		MaxDequeuedBufferCount: 1,
		DequeueTimeout:         "1s",
		Frames:                 10,
		Width:                  640,
		Height:                 480,
		Format:                 "RGBA8Unorm",
	}
}

// LoadConfig reads a YAML file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration before any pool is created.
func (c *Config) Validate() error {
	if c.Frames <= 0 {
		return fmt.Errorf("frames must be positive, got %d", c.Frames)
	}
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("invalid size %dx%d", c.Width, c.Height)
	}
	if c.MaxBufferCount <= 0 || c.MaxBufferCount > bufferqueue.MaxQueueCapacity {
		return fmt.Errorf("max_buffer_count must be in [1, %d], got %d", bufferqueue.MaxQueueCapacity, c.MaxBufferCount)
	}
	if c.Resize.At < 0 {
		return fmt.Errorf("resize.at must not be negative, got %d", c.Resize.At)
	}
	if c.Resize.At > 0 && (c.Resize.Width == 0 || c.Resize.Height == 0) {
		return fmt.Errorf("invalid resize size %dx%d", c.Resize.Width, c.Resize.Height)
	}
	if _, err := c.timeout(); err != nil {
		return err
	}
	if _, err := c.format(); err != nil {
		return err
	}
	return nil
}

// timeout parses DequeueTimeout. "forever" or an empty string blocks.
func (c *Config) timeout() (time.Duration, error) {
	switch c.DequeueTimeout {
	case "", "forever":
		return -1, nil
	}
	d, err := time.ParseDuration(c.DequeueTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid dequeue_timeout: %w", err)
	}
	return d, nil
}

var formats = []gputypes.TextureFormat{
	gputypes.TextureFormatRGBA8Unorm,
	gputypes.TextureFormatBGRA8Unorm,
	gputypes.TextureFormatR8Unorm,
	gputypes.TextureFormatRG8Unorm,
	gputypes.TextureFormatRGBA16Float,
	gputypes.TextureFormatRGBA32Float,
}

func (c *Config) format() (gputypes.TextureFormat, error) {
	for _, f := range formats {
		if strings.EqualFold(f.String(), c.Format) {
			return f, nil
		}
	}
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.String()
	}
	return gputypes.TextureFormatUndefined, fmt.Errorf("unsupported format %q (want one of %s)", c.Format, strings.Join(names, ", "))
}

// sizeAt returns the geometry requested for a frame.
func (c *Config) sizeAt(frame int) (uint32, uint32) {
	if c.Resize.At > 0 && frame >= c.Resize.At {
		return c.Resize.Width, c.Resize.Height
	}
	return c.Width, c.Height
}
