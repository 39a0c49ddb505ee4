// Package notify provides the external stream-started notification
// collaborator, invoked fire-and-forget by internal/registry whenever a
// broadcast starts.
package notify

import (
	"log/slog"

	"github.com/alxayo/go-livestream/internal/logger"
)

// Notifier is invoked once per successful stream start. Implementations
// must not block the caller; Async wraps a slow Notifier to guarantee that.
type Notifier interface {
	StreamStarted(name string)
}

// Async dispatches StreamStarted calls on a single background goroutine fed
// by a bounded channel, so a slow or blocking downstream notifier (web push,
// webhook) never stalls the Registry's ingest path. Mirrors the original's
// tokio::spawn-and-forget shape (server/src/stream.rs's
// handle_rtmp_request spawning notification::on_stream_started) with a
// worker pool of one instead of a fresh task per event.
type Async struct {
	inner Notifier
	queue chan string
	log   *slog.Logger
}

// queueCapacity bounds how many pending stream-started events Async will
// buffer; once it is full each new event is dropped (logged, and no error
// surfaces) while the queued ones are kept -- notifications are best-effort.
const queueCapacity = 64

// NewAsync wraps inner and starts its dispatch goroutine. Call Close to stop
// it.
func NewAsync(inner Notifier) *Async {
	a := &Async{
		inner: inner,
		queue: make(chan string, queueCapacity),
		log:   logger.Logger().With("component", "notify"),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	for name := range a.queue {
		a.inner.StreamStarted(name)
	}
}

// StreamStarted enqueues name for dispatch, or drops it and logs if the
// queue is full.
func (a *Async) StreamStarted(name string) {
	select {
	case a.queue <- name:
	default:
		a.log.Warn("dropping stream started notification, queue full", "name", name)
	}
}

// Close stops accepting new events and lets the dispatch goroutine drain
// and exit once the queue is empty.
func (a *Async) Close() { close(a.queue) }

// Noop discards every notification; useful as a default collaborator when
// no push/webhook backend is configured.
type Noop struct{}

// StreamStarted implements Notifier by doing nothing.
func (Noop) StreamStarted(string) {}
