package media

import "strings"

// Movie is an ordered sequence of Tracks plus an (empty in this core)
// attachments list, matching spec.md §3.
type Movie struct {
	Tracks      []Track
	Attachments []Span
}

// NewMovie builds a Movie from an ordered track list.
func NewMovie(tracks ...Track) Movie {
	return Movie{Tracks: tracks}
}

// VideoTracks returns the subset of tracks carrying video, in order.
func (m Movie) VideoTracks() []Track {
	var out []Track
	for _, t := range m.Tracks {
		if t.IsVideo() {
			out = append(out, t)
		}
	}
	return out
}

// AudioTracks returns the subset of tracks carrying audio, in order.
func (m Movie) AudioTracks() []Track {
	var out []Track
	for _, t := range m.Tracks {
		if t.IsAudio() {
			out = append(out, t)
		}
	}
	return out
}

// TrackByID looks up a track by its stable id.
func (m Movie) TrackByID(id uint32) (Track, bool) {
	for _, t := range m.Tracks {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

// CodecString joins every track's CodecString with commas, suitable for the
// `video/mp4; codecs="..."` MIME type sent as the first WebSocket frame.
func (m Movie) CodecString() string {
	parts := make([]string, 0, len(m.Tracks))
	for _, t := range m.Tracks {
		if s := t.CodecString(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ",")
}

// MimeType formats the full content-type string for the WebSocket video
// protocol's initial text frame.
func (m Movie) MimeType() string {
	return `video/mp4; codecs="` + m.CodecString() + `"`
}
