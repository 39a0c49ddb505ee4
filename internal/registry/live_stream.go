package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alxayo/go-livestream/internal/errors"
	"github.com/alxayo/go-livestream/internal/media"
)

// Info is a read-only snapshot of a LiveStream's state, safe to hand to
// HTTP handlers without exposing the mutex-guarded struct itself.
type Info struct {
	Name        string
	IsLive      bool
	StartedAt   time.Time
	StoppedAt   *time.Time
	ViewerCount int
}

// LiveStream is a single broadcaster's entry in the Registry. It is created
// on first successful ingest and, per spec, persists with IsLive=false
// after the broadcast ends so listings and previews survive a disconnect.
type LiveStream struct {
	name string

	mu        sync.RWMutex
	startedAt time.Time
	stoppedAt *time.Time
	isLive    bool
	movie     media.Movie
	splitter  *Splitter
	gop       []media.Packet
}

func newLiveStream(name string) *LiveStream {
	return &LiveStream{name: name}
}

// Name returns the broadcaster name this entry is keyed under.
func (s *LiveStream) Name() string { return s.name }

// Info returns a point-in-time snapshot of this stream's state.
func (s *LiveStream) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{Name: s.name, IsLive: s.isLive, StartedAt: s.startedAt, StoppedAt: s.stoppedAt}
	if s.splitter != nil {
		info.ViewerCount = s.splitter.ViewerCount()
	}
	return info
}

// startStream transitions this entry to live, publishing a fresh Splitter
// and resetting the GOP cache. Returns ErrAlreadyLive-equivalent PolicyError
// if a broadcaster is already publishing under this name.
func (s *LiveStream) startStream(movie media.Movie, metrics MetricsSink, capacity int) (*Splitter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isLive {
		return nil, errors.NewPolicyError("registry.new_stream", "already_live",
			fmt.Errorf("stream %q is already live", s.name))
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	splitter := newSplitter(movie, metrics, capacity)
	s.splitter = splitter
	s.movie = movie
	s.isLive = true
	s.startedAt = time.Now()
	s.stoppedAt = nil
	s.gop = nil
	return splitter, nil
}

// stopStream transitions this entry to not-live and drops the splitter
// (closing every attached viewer channel). The entry itself, and its last
// GOP/Movie, are retained for listings and previews. Reports whether the
// stream was actually live (false on a redundant stop), so callers can avoid
// double-counting the live-stream gauge.
func (s *LiveStream) stopStream() bool {
	s.mu.Lock()
	wasLive := s.isLive
	splitter := s.splitter
	s.isLive = false
	now := time.Now()
	s.stoppedAt = &now
	s.splitter = nil
	s.mu.Unlock()

	if splitter != nil {
		splitter.closeAll()
	}
	return wasLive
}

// ResetGOP atomically replaces the GOP cache with a fresh one starting at
// pkt. Called on arrival of a video keyframe, per spec: the cache must show
// the new keyframe immediately, not after the group of pictures it starts
// has finished arriving.
func (s *LiveStream) ResetGOP(pkt media.Packet) {
	s.mu.Lock()
	s.gop = []media.Packet{pkt}
	s.mu.Unlock()
}

// AppendGOP extends the current GOP cache with a non-key video packet. A
// no-op if no keyframe has started a cache yet (nothing to extend).
func (s *LiveStream) AppendGOP(pkt media.Packet) {
	s.mu.Lock()
	if len(s.gop) > 0 {
		s.gop = append(s.gop, pkt)
	}
	s.mu.Unlock()
}

// ErrNoGOP is returned by Preview when no keyframe has been received yet.
var ErrNoGOP = fmt.Errorf("registry: no GOP cached for this stream")

// Preview returns the cached GOP and the Movie it belongs to, suitable for
// building a throwaway fragmented-MP4 snapshot. Returns ErrNoGOP if the GOP
// cache is empty (never streamed, or stopped before any keyframe arrived).
func (s *LiveStream) Preview() ([]media.Packet, media.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.gop) == 0 {
		return nil, media.Movie{}, ErrNoGOP
	}
	gop := append([]media.Packet(nil), s.gop...)
	return gop, s.movie, nil
}

// Attach borrows the current splitter (if any) and registers a new bounded
// viewer channel on it. Returns a PolicyError (attach_on_dead_stream) if the
// broadcast is not currently live.
func (s *LiveStream) Attach(ctx context.Context) (media.Movie, <-chan media.Packet, error) {
	s.mu.RLock()
	splitter := s.splitter
	s.mu.RUnlock()
	if splitter == nil {
		return media.Movie{}, nil, errors.NewPolicyError("registry.attach", "attach_on_dead_stream",
			fmt.Errorf("stream %q is not live", s.name))
	}
	movie, ch := splitter.Attach(ctx)
	return movie, ch, nil
}
