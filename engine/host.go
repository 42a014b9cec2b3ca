package engine

import (
	"context"
	"math"
	"runtime"
	"time"
)

// Host is anything that consumes host cycles
type Host interface {
	ProcessBlock(b Block)
}

// BlockClock stands in for an audio host: it calls ProcessBlock about
// sampleRate/blockSize times per second with the samples that actually
// elapsed. Trigger notes reach the engine through Engine.HandleNote.
type BlockClock struct {
	host       Host
	sampleRate int
	blockSize  int
	carry      float64
}

// NewBlockClock creates a clock; non-positive sizes fall back to defaults.
func NewBlockClock(host Host, sampleRate, blockSize int) *BlockClock {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if blockSize <= 0 {
		blockSize = 512
	}
	return &BlockClock{
		host:       host,
		sampleRate: sampleRate,
		blockSize:  blockSize,
	}
}

// Interval is the nominal time between cycles
func (c *BlockClock) Interval() time.Duration {
	return time.Duration(float64(time.Second) * float64(c.blockSize) / float64(c.sampleRate))
}

// Run cycles the host until ctx is done.
func (c *BlockClock) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ticker := time.NewTicker(c.Interval())
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.Tick(now.Sub(last))
			last = now
		}
	}
}

// Tick runs one cycle covering elapsed wall time.
func (c *BlockClock) Tick(elapsed time.Duration) {
	c.host.ProcessBlock(Block{Samples: c.samples(elapsed)})
}

// samples converts elapsed time to whole samples, carrying the remainder
// so no time is lost across cycles.
func (c *BlockClock) samples(elapsed time.Duration) int {
	if elapsed < 0 {
		elapsed = 0
	}
	exact := elapsed.Seconds()*float64(c.sampleRate) + c.carry
	n := math.Floor(exact)
	c.carry = exact - n
	return int(n)
}
