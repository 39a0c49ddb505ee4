// Package metrics exposes the Prometheus counters, gauges, and histograms
// this module's connection, registry, and fan-out paths report against.
// Grounded on github.com/prometheus/client_golang, the metrics stack seen in
// _examples/snapetech-plexTuner/go.mod.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder wraps a dedicated prometheus.Registry (never the global
// DefaultRegisterer, so tests can build throwaway Recorders without colliding
// with one another) plus the collectors this module updates.
type Recorder struct {
	registry *prometheus.Registry

	connectionsAccepted prometheus.Counter
	connectionsRejected prometheus.Counter
	liveStreams         prometheus.Gauge
	viewers             prometheus.Gauge
	fanoutLatency       prometheus.Histogram
	slowViewerEvictions prometheus.Counter
}

// New builds a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		connectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "livestream_rtmp_connections_accepted_total",
			Help: "RTMP connections that completed the handshake and publish handshake successfully.",
		}),
		connectionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "livestream_rtmp_connections_rejected_total",
			Help: "RTMP connections rejected during accept, handshake, or authentication.",
		}),
		liveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "livestream_live_streams",
			Help: "Number of broadcasts currently live.",
		}),
		viewers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "livestream_viewers",
			Help: "Number of WebSocket viewers currently attached across all streams.",
		}),
		fanoutLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "livestream_fanout_write_seconds",
			Help:    "Time taken to fan a single packet out to all attached viewers.",
			Buckets: prometheus.DefBuckets,
		}),
		slowViewerEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "livestream_slow_viewer_evictions_total",
			Help: "Viewers pruned from a splitter because their channel was full.",
		}),
	}
}

// Handler serves this Recorder's registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ConnectionAccepted() { r.connectionsAccepted.Inc() }
func (r *Recorder) ConnectionRejected() { r.connectionsRejected.Inc() }
func (r *Recorder) StreamStarted()      { r.liveStreams.Inc() }
func (r *Recorder) StreamStopped()      { r.liveStreams.Dec() }
func (r *Recorder) ViewerAttached()     { r.viewers.Inc() }
func (r *Recorder) ViewerDetached()     { r.viewers.Dec() }
func (r *Recorder) SlowViewerEvicted()  { r.slowViewerEvictions.Inc() }

// ObserveFanoutLatency records how long one WritePacket call took to sweep
// every attached viewer.
func (r *Recorder) ObserveFanoutLatency(seconds float64) {
	r.fanoutLatency.Observe(seconds)
}
