package registry

import (
	"context"
	"sync"
	"time"

	"github.com/alxayo/go-livestream/internal/media"
)

// fanoutCapacity is the default per-viewer packet channel depth. 512 matches
// the original implementation's mpsc::channel(512); far larger than the
// per-connection ingest queue (internal/ingest's 256) since a splitter
// target has to absorb jitter across many concurrent viewers, not just one
// socket's read loop. Overridable per-Registry via SetFanoutCapacity (the
// config.Config.ChannelCapacity knob).
const fanoutCapacity = 512

// splitterTarget pairs a viewer's packet channel with the context whose
// cancellation stands in for the original's "closed receiver" signal: Go
// channels don't observably close themselves from the reader side, so the
// viewer's ctx.Done() is checked alongside the channel-full case.
type splitterTarget struct {
	ch   chan media.Packet
	done <-chan struct{}
}

// Splitter tees one broadcaster's packets to any number of attached
// viewers. The ingester is the sole producer (WritePacket); viewer tasks
// each own exactly one receiver obtained from Attach.
type Splitter struct {
	mu       sync.Mutex
	movie    media.Movie
	targets  []splitterTarget
	metrics  MetricsSink
	capacity int
}

func newSplitter(movie media.Movie, metrics MetricsSink, capacity int) *Splitter {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if capacity < 1 {
		capacity = fanoutCapacity
	}
	return &Splitter{movie: movie, metrics: metrics, capacity: capacity}
}

// Attach registers a new bounded output channel and returns the Movie in
// effect for this broadcast plus a receive-only view of the channel. The
// channel is closed if the splitter later fails to keep up with it (full)
// or if ctx is cancelled.
func (sp *Splitter) Attach(ctx context.Context) (media.Movie, <-chan media.Packet) {
	ch := make(chan media.Packet, sp.capacity)
	sp.mu.Lock()
	sp.targets = append(sp.targets, splitterTarget{ch: ch, done: ctx.Done()})
	movie := sp.movie
	sp.mu.Unlock()
	sp.metrics.ViewerAttached()
	return movie, ch
}

// WritePacket attempts a non-blocking send to every attached target.
// Targets that are full or whose viewer context has been cancelled are
// pruned after the sweep completes (indices collected first, removed in
// reverse order, matching the original's two-pass prune-after-iterate
// shape so the slice isn't mutated mid-range).
func (sp *Splitter) WritePacket(pkt media.Packet) {
	start := time.Now()
	sp.mu.Lock()
	defer sp.mu.Unlock()

	var dead []int
	full := 0
	for i, t := range sp.targets {
		select {
		case <-t.done:
			dead = append(dead, i)
			continue
		default:
		}
		select {
		case t.ch <- pkt:
		default:
			dead = append(dead, i)
			full++
		}
	}
	for i := len(dead) - 1; i >= 0; i-- {
		idx := dead[i]
		close(sp.targets[idx].ch)
		sp.targets = append(sp.targets[:idx], sp.targets[idx+1:]...)
	}
	for i := 0; i < full; i++ {
		sp.metrics.SlowViewerEvicted()
	}
	for range dead {
		sp.metrics.ViewerDetached()
	}
	sp.metrics.ObserveFanoutLatency(time.Since(start).Seconds())
}

// closeAll closes every attached target's channel, used when the
// broadcaster stops so that every viewer sees its channel close.
func (sp *Splitter) closeAll() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	for _, t := range sp.targets {
		close(t.ch)
		sp.metrics.ViewerDetached()
	}
	sp.targets = nil
}

// ViewerCount reports the current number of attached targets.
func (sp *Splitter) ViewerCount() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.targets)
}
