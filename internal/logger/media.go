package logger

import "log/slog"

// WithTrack attaches track identity fields for ingest/registry/mux log lines.
func WithTrack(l *slog.Logger, trackID uint32, kind string) *slog.Logger {
	return l.With("track_id", trackID, "track_kind", kind)
}

// WithPacket attaches per-packet fields (pts in the track's own timebase, and
// whether the packet is a keyframe) for ingest/fan-out debug logging.
func WithPacket(l *slog.Logger, pts int64, key bool) *slog.Logger {
	return l.With("pts", pts, "key", key)
}
