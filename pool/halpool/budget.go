package halpool

import (
	"fmt"
	"sync"

	"github.com/gogpu/bufferqueue/pool"
)

// Default memory limits.
const (
	// DefaultBudgetBytes is the default texture memory budget (256 MB).
	DefaultBudgetBytes = 256 * 1024 * 1024

	// MinBudgetBytes is the smallest budget accepted by WithBudget (1 MB).
	MinBudgetBytes = 1024 * 1024
)

// MemoryStats contains texture memory usage statistics.
type MemoryStats struct {
	// TotalBytes is the total memory budget in bytes.
	TotalBytes uint64

	// UsedBytes is the currently allocated memory in bytes.
	UsedBytes uint64

	// AvailableBytes is the remaining memory budget.
	AvailableBytes uint64

	// TextureCount is the number of live textures.
	TextureCount int

	// Utilization is the fraction of budget used (0.0 to 1.0).
	Utilization float64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d KB, %d textures]",
		s.Utilization*100,
		s.UsedBytes/1024,
		s.TotalBytes/1024,
		s.TextureCount)
}

// budget tracks texture memory against a fixed limit.
//
// budget is safe for concurrent use.
type budget struct {
	mu       sync.Mutex
	total    uint64
	used     uint64
	textures int
}

func newBudget(total uint64) *budget {
	if total < MinBudgetBytes {
		total = DefaultBudgetBytes
	}
	return &budget{total: total}
}

// reserve accounts for a texture of n bytes, failing with pool.ErrNoMemory
// when it does not fit.
func (b *budget) reserve(n uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.total-b.used {
		return fmt.Errorf("%w: texture needs %d bytes, budget has %d of %d left",
			pool.ErrNoMemory, n, b.total-b.used, b.total)
	}
	b.used += n
	b.textures++
	return nil
}

// release returns n bytes reserved earlier.
func (b *budget) release(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.used {
		n = b.used
	}
	b.used -= n
	if b.textures > 0 {
		b.textures--
	}
}

func (b *budget) stats() MemoryStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return MemoryStats{
		TotalBytes:     b.total,
		UsedBytes:      b.used,
		AvailableBytes: b.total - b.used,
		TextureCount:   b.textures,
		Utilization:    float64(b.used) / float64(b.total),
	}
}
