// Package registry implements the process-wide Live-Stream Registry: the
// mapping from broadcaster name to LiveStream, the GOP cache, and the
// broadcaster-to-many-viewer fan-out splitter.
//
// Lock order is always Registry -> LiveStream fields -> Splitter.targets;
// no call path acquires a higher-level lock while holding a lower one.
package registry

import (
	"sync"

	"github.com/alxayo/go-livestream/internal/media"
)

// StartedNotifier is invoked once, fire-and-forget, whenever a broadcast
// successfully starts. Implementations must not block the ingest path.
type StartedNotifier interface {
	StreamStarted(name string)
}

// MetricsSink receives the registry and fan-out observations internal/metrics
// turns into Prometheus collectors. A nil-safe no-op implementation is the
// default so callers that never wire metrics pay nothing for it.
type MetricsSink interface {
	StreamStarted()
	StreamStopped()
	ViewerAttached()
	ViewerDetached()
	SlowViewerEvicted()
	ObserveFanoutLatency(seconds float64)
}

type noopMetrics struct{}

func (noopMetrics) StreamStarted()                    {}
func (noopMetrics) StreamStopped()                    {}
func (noopMetrics) ViewerAttached()                    {}
func (noopMetrics) ViewerDetached()                    {}
func (noopMetrics) SlowViewerEvicted()                 {}
func (noopMetrics) ObserveFanoutLatency(seconds float64) {}

// Registry maps broadcaster name to LiveStream, shared process-wide.
type Registry struct {
	mu              sync.RWMutex
	streams         map[string]*LiveStream
	notifier        StartedNotifier
	metrics         MetricsSink
	fanoutCapacity  int
}

// New builds an empty Registry. notifier may be nil (no notifications
// sent). Viewer fan-out channels default to fanoutCapacity (512); use
// SetFanoutCapacity to override before the first NewStream.
func New(notifier StartedNotifier) *Registry {
	return &Registry{
		streams:        make(map[string]*LiveStream),
		notifier:       notifier,
		metrics:        noopMetrics{},
		fanoutCapacity: fanoutCapacity,
	}
}

// SetMetrics wires a MetricsSink into the registry and every stream it
// creates from this point on. Call it once during startup, before the first
// NewStream.
func (r *Registry) SetMetrics(m MetricsSink) {
	if m == nil {
		m = noopMetrics{}
	}
	r.metrics = m
}

// SetFanoutCapacity overrides the per-viewer channel capacity new splitters
// are created with (the config.Config.ChannelCapacity knob). Values less
// than 1 are ignored. Call before the first NewStream; streams already live
// keep whatever capacity their splitter was created with.
func (r *Registry) SetFanoutCapacity(n int) {
	if n < 1 {
		return
	}
	r.mu.Lock()
	r.fanoutCapacity = n
	r.mu.Unlock()
}

// NewStream upserts a LiveStream for name and starts a broadcast on it,
// returning the freshly created Splitter the ingest loop should feed.
// Fails with a PolicyError("already_live") if a broadcast is already in
// progress for this name.
func (r *Registry) NewStream(name string, movie media.Movie) (*Splitter, *LiveStream, error) {
	stream := r.upsert(name)

	r.mu.RLock()
	capacity := r.fanoutCapacity
	r.mu.RUnlock()

	splitter, err := stream.startStream(movie, r.metrics, capacity)
	if err != nil {
		return nil, nil, err
	}

	r.metrics.StreamStarted()
	if r.notifier != nil {
		go r.notifier.StreamStarted(name)
	}
	return splitter, stream, nil
}

// upsert returns the LiveStream for name, creating an empty (not-live) one
// under the registry write lock if none exists yet.
func (r *Registry) upsert(name string) *LiveStream {
	r.mu.RLock()
	stream, ok := r.streams[name]
	r.mu.RUnlock()
	if ok {
		return stream
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if stream, ok := r.streams[name]; ok {
		return stream
	}
	stream = newLiveStream(name)
	r.streams[name] = stream
	return stream
}

// StopStream marks the named broadcast as no longer live. A no-op if no
// entry exists for name.
func (r *Registry) StopStream(name string) {
	r.mu.RLock()
	stream, ok := r.streams[name]
	r.mu.RUnlock()
	if !ok {
		return
	}
	if stream.stopStream() {
		r.metrics.StreamStopped()
	}
}

// Stream looks up the LiveStream entry for name.
func (r *Registry) Stream(name string) (*LiveStream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stream, ok := r.streams[name]
	return stream, ok
}

// List returns a snapshot Info for every known broadcaster, live or not.
func (r *Registry) List() []Info {
	r.mu.RLock()
	streams := make([]*LiveStream, 0, len(r.streams))
	for _, s := range r.streams {
		streams = append(streams, s)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(streams))
	for _, s := range streams {
		infos = append(infos, s.Info())
	}
	return infos
}
