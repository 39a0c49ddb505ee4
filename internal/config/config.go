// Package config holds the typed, validated server configuration that
// cmd/rtmp-server's flag parsing translates into and internal/server consumes.
// Keeping the typed record separate from the CLI front-end mirrors the
// teacher's cmd/rtmp-server/flags.go -> server.Config split.
package config

import "time"

// Config is the complete set of knobs the ingest/playback server needs at
// startup. Every field has a documented default applied by Defaults.
type Config struct {
	// RTMPAddr is the TCP address the RTMP ingest listener binds.
	RTMPAddr string
	// HTTPAddr is the address the viewer-facing HTTP/WebSocket surface
	// (internal/httpapi) binds.
	HTTPAddr string

	// ChunkSize is validated and carried in Config, but internal/rtmp/conn
	// does not read it: conn.Accept starts both directions at 128 (this
	// field's default) and its control burst advertises 4096 to the peer.
	ChunkSize uint32

	// ChannelCapacity bounds each viewer's fan-out channel in
	// internal/registry.Splitter.
	ChannelCapacity int

	// GOPCapBytes bounds how many bytes of video payload the ingest loop
	// accumulates into a single GOP cache entry between keyframes. Zero
	// means unlimited, matching the original's unbounded Vec<Packet>.
	GOPCapBytes int64

	// AcceptsPerSecond and AcceptBurst configure internal/ingest.Listener's
	// accept-rate limiter.
	AcceptsPerSecond float64
	AcceptBurst      int

	// CORSOrigins is the allow-list internal/httpapi checks the Origin
	// header against. Empty means no Access-Control-Allow-Origin header is
	// ever sent.
	CORSOrigins []string

	// LogLevel is one of debug|info|warn|error.
	LogLevel string

	// ShutdownTimeout bounds how long Stop waits for in-flight sessions and
	// the HTTP server to drain before returning.
	ShutdownTimeout time.Duration
}

// Defaults returns a Config with every field set to its documented default.
// Callers overlay flag-supplied values onto this before validating.
func Defaults() Config {
	return Config{
		RTMPAddr:         ":1935",
		HTTPAddr:         ":8080",
		ChunkSize:        128,
		ChannelCapacity:  512,
		GOPCapBytes:      0,
		AcceptsPerSecond: 50,
		AcceptBurst:      100,
		LogLevel:         "info",
		ShutdownTimeout:  5 * time.Second,
	}
}
