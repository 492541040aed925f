// bqdemo drives a buffer queue producer through a series of frames.
//
// It plays both ends of the queue: the producer dequeues, requests and
// queues buffers, and the consumer acquires and releases them. Every frame
// prints the slot it used and whether the buffer had to be reallocated.
//
// Usage:
//
//	bqdemo run                              # 10 frames, memory backend
//	bqdemo run --backend hal --frames 20    # GPU pool on a no-op HAL device
//	bqdemo run --resize-at 5 --resize-width 1280 --resize-height 720
//	bqdemo run --config demo.yaml
//	bqdemo backends                         # list pool backends
package main

import (
	"os"

	"github.com/gogpu/bufferqueue/cmd/bqdemo/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
