package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/alxayo/go-livestream/internal/media"
	"github.com/alxayo/go-livestream/internal/mp4"
	"github.com/alxayo/go-livestream/internal/registry"
)

// streamListing is the wire shape of one entry in GET /api/stream, matching
// the field names server/src/stream.rs's get_streams returns.
type streamListing struct {
	Name      string     `json:"name"`
	IsLive    bool       `json:"is_live"`
	Started   time.Time  `json:"started"`
	Stopped   *time.Time `json:"stopped,omitempty"`
	Viewers   int        `json:"viewers"`
}

// listStreams handles GET /api/stream: every known broadcaster, live or
// stopped.
func (s *Server) listStreams(w http.ResponseWriter, r *http.Request) {
	infos := s.registry.List()
	out := make([]streamListing, 0, len(infos))
	for _, info := range infos {
		out = append(out, streamListing{
			Name:    info.Name,
			IsLive:  info.IsLive,
			Started: info.StartedAt,
			Stopped: info.StoppedAt,
			Viewers: info.ViewerCount,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.log.Warn("encoding stream listing failed", "error", err)
	}
}

// preview handles GET /api/stream/{name}/preview: a standalone fragmented
// MP4 built from the broadcaster's cached GOP, grounded on stream.rs's
// get_preview/snapshot_mp4. 404s if the broadcaster is unknown or has no
// cached GOP yet (registry.ErrNoGOP).
func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	stream, ok := s.registry.Stream(name)
	if !ok {
		http.NotFound(w, r)
		return
	}

	gop, movie, err := stream.Preview()
	if err != nil {
		if err == registry.ErrNoGOP {
			http.Error(w, "no preview available yet", http.StatusNotFound)
			return
		}
		s.log.Error("preview lookup failed", "stream", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	body, err := snapshotMp4(movie, gop)
	if err != nil {
		s.log.Error("preview muxing failed", "stream", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.Write(body)
}

// snapshotMp4 builds a standalone fragmented MP4 (init segment followed by
// one media segment per packet) from a GOP, mirroring snapshot_mp4's
// [init_segment, write_many_media_segments(&packets)] concatenation.
// internal/mp4.Muxer has no batch "write many segments" method, so this
// loops over WriteMediaSegment once per packet and concatenates the results.
func snapshotMp4(movie media.Movie, gop []media.Packet) ([]byte, error) {
	muxer := mp4.New(movie)

	init, err := muxer.InitializationSegment()
	if err != nil {
		return nil, err
	}

	spans := make([]media.Span, 0, len(gop)+1)
	spans = append(spans, init)
	for _, pkt := range gop {
		seg, err := muxer.WriteMediaSegment(pkt)
		if err != nil {
			return nil, err
		}
		if seg.IsEmpty() {
			// WriteMediaSegment returns a zero Span, no error, for a packet
			// whose track id it doesn't recognize (spec.md §7 invariant
			// violation, swallowed at the muxer). Drop it rather than
			// failing the whole preview.
			continue
		}
		spans = append(spans, seg)
	}

	return media.Concat(spans...).Bytes(), nil
}
