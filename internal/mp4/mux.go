package mp4

import (
	"bytes"
	"encoding/binary"

	"github.com/alxayo/go-livestream/internal/media"
	"github.com/alxayo/go-livestream/internal/nal"
)

// defaultSampleDurationMillis is the fallback used when the inter-packet delta is
// zero (typically the first packet on a track). spec.md §9 Open Question:
// this module keeps the 16ms heuristic rather than deriving 1/framerate,
// since VideoInfo does not carry an explicit framerate field (see
// DESIGN.md).
const defaultSampleDurationMillis = 16

// Muxer turns a Movie's Packets into ISO-BMFF fragments: one
// ftyp+moov initialization segment, and one moof+mdat media segment per
// packet. It is not safe for concurrent use — callers (each live WebSocket
// viewer and each preview request in internal/httpapi) own one Muxer
// instance.
type Muxer struct {
	movie        media.Movie
	video        *media.Track
	audio        *media.Track
	trackMapping map[uint32]uint32 // source track id -> internal (1-based) track id
	startTime    map[uint32]media.MediaTime
	prevTime     map[uint32]media.MediaTime
	seq          uint64
}

// New builds a Muxer for the given Movie's tracks, assigning video (if
// present) internal track id 1 and audio (if present) the next id, matching
// spec.md §4.3's track-id assignment rule.
func New(movie media.Movie) *Muxer {
	m := &Muxer{
		movie:        movie,
		trackMapping: make(map[uint32]uint32),
		startTime:    make(map[uint32]media.MediaTime),
		prevTime:     make(map[uint32]media.MediaTime),
	}
	nextID := uint32(1)
	if vids := movie.VideoTracks(); len(vids) > 0 {
		v := vids[0]
		m.video = &v
		m.trackMapping[v.ID] = nextID
		nextID++
	}
	if auds := movie.AudioTracks(); len(auds) > 0 {
		a := auds[0]
		m.audio = &a
		m.trackMapping[a.ID] = nextID
		nextID++
	}
	return m
}

// InitializationSegment emits exactly one ftyp followed by one moov. It is
// idempotent: repeated calls on the same Muxer (or a freshly constructed
// Muxer with the same tracks) return byte-identical spans, and it never
// advances the media-segment sequence counter.
func (m *Muxer) InitializationSegment() (media.Span, error) {
	var buf bytes.Buffer

	if err := writeBox(&buf, "ftyp", func(b *bytes.Buffer) error {
		b.WriteString("isom")
		putU32(b, 0)
		b.WriteString("isom")
		b.WriteString("iso5")
		b.WriteString("dash")
		return nil
	}); err != nil {
		return media.Span{}, err
	}

	if err := writeBox(&buf, "moov", func(b *bytes.Buffer) error {
		if err := m.writeMvhd(b); err != nil {
			return err
		}
		if err := m.writeMvex(b); err != nil {
			return err
		}
		if m.video != nil {
			if err := writeVideoTrak(b, *m.video, m.trackMapping[m.video.ID]); err != nil {
				return err
			}
		}
		if m.audio != nil {
			if err := writeAudioTrak(b, *m.audio, m.trackMapping[m.audio.ID]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return media.Span{}, err
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return media.NewSpan(out), nil
}

func (m *Muxer) writeMvhd(buf *bytes.Buffer) error {
	return writeBox(buf, "mvhd", func(b *bytes.Buffer) error {
		putU32(b, 1<<24) // version 1, flags 0
		putU64(b, 0)     // creation_time
		putU64(b, 0)     // modification_time
		putU32(b, 1000)  // timescale
		putU64(b, 0)     // duration (unknown)
		putU32(b, 0x00010000)
		putU16(b, 0x0100)
		putU16(b, 0)
		putU64(b, 0)
		putIdentityMatrix(b)
		for i := 0; i < 6; i++ {
			putU32(b, 0)
		}
		putU32(b, uint32(len(m.trackMapping)+1)) // next_track_id
		return nil
	})
}

func (m *Muxer) writeMvex(buf *bytes.Buffer) error {
	return writeBox(buf, "mvex", func(b *bytes.Buffer) error {
		if err := writeBox(b, "mehd", func(b *bytes.Buffer) error {
			putU32(b, 1<<24)
			putU64(b, 0)
			return nil
		}); err != nil {
			return err
		}
		if m.video != nil {
			if err := writeTrex(b, m.trackMapping[m.video.ID]); err != nil {
				return err
			}
		}
		if m.audio != nil {
			if err := writeTrex(b, m.trackMapping[m.audio.ID]); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeTrex(buf *bytes.Buffer, trackID uint32) error {
	return writeBox(buf, "trex", func(b *bytes.Buffer) error {
		putU32(b, 0)
		putU32(b, trackID)
		putU32(b, 1) // sample_description_index
		putU32(b, 0) // default_sample_duration
		putU32(b, 0) // default_sample_size
		putU32(b, 0) // default_sample_flags
		return nil
	})
}

// WriteMediaSegment emits moof+mdat for one packet. Per-track start_time is
// captured on the first packet seen for that track; prev_time is updated
// after every packet. seq is shared across all tracks and increments by one
// per call.
func (m *Muxer) WriteMediaSegment(p media.Packet) (media.Span, error) {
	internalID, ok := m.trackMapping[p.TrackID]
	if !ok {
		// Invariant violation per spec.md §7: unknown track id, drop the
		// packet rather than failing the whole stream. The returned Span is
		// empty; the httpapi callers skip empty segments and continue.
		return media.Span{}, nil
	}

	prevTime, hasPrev := m.prevTime[p.TrackID]
	if !hasPrev {
		prevTime = p.Time
	}
	startTime, hasStart := m.startTime[p.TrackID]
	if !hasStart {
		startTime = p.Time
		m.startTime[p.TrackID] = startTime
	}

	delta := p.Time.Sub(prevTime)
	baseOffset := prevTime.Sub(startTime)

	duration := delta.Ticks
	if duration == 0 {
		if p.Duration != nil {
			duration = p.Duration.Ticks
		} else {
			fallback := media.MediaDuration{Timebase: media.Fraction{Num: 1, Den: 1000}, Ticks: defaultSampleDurationMillis}
			duration = fallback.Rescale(p.Time.Timebase).Ticks
		}
	}

	track, _ := m.movie.TrackByID(p.TrackID)

	var moof bytes.Buffer
	var dataOffsetPos int
	if err := writeBox(&moof, "moof", func(b *bytes.Buffer) error {
		if err := writeBox(b, "mfhd", func(b *bytes.Buffer) error {
			putU32(b, 0)
			putU32(b, uint32(m.seq))
			return nil
		}); err != nil {
			return err
		}
		return writeBox(b, "traf", func(b *bytes.Buffer) error {
			if err := writeBox(b, "tfhd", func(b *bytes.Buffer) error {
				putU32(b, 0x020000) // base_is_moof
				putU32(b, internalID)
				return nil
			}); err != nil {
				return err
			}
			if err := writeBox(b, "trun", func(b *bytes.Buffer) error {
				flags := uint32(0x000001 | 0x000004 | 0x000100 | 0x000200)
				putU32(b, flags)
				putU32(b, 1) // sample_count
				dataOffsetPos = b.Len()
				putU32(b, 0) // data_offset, backpatched below
				firstSampleFlags := uint32(0)
				if p.Key {
					firstSampleFlags = 0x00010000
				}
				putU32(b, firstSampleFlags)
				putU32(b, uint32(duration))
				putU32(b, uint32(p.Buffer.Len()))
				return nil
			}); err != nil {
				return err
			}
			return writeBox(b, "tfdt", func(b *bytes.Buffer) error {
				putU32(b, 1<<24)
				putU64(b, uint64(baseOffset.Ticks))
				return nil
			})
		})
	}); err != nil {
		return media.Span{}, err
	}

	// data_offset points past the end of moof to the first byte of the mdat
	// payload (i.e. moof_len + 8 bytes of mdat header).
	dataOffset := uint32(moof.Len() + 8)
	binary.BigEndian.PutUint32(moof.Bytes()[dataOffsetPos:dataOffsetPos+4], dataOffset)

	moofBytes := make([]byte, moof.Len())
	copy(moofBytes, moof.Bytes())

	var mdatHeader bytes.Buffer
	putU32(&mdatHeader, uint32(p.Buffer.Len()+8))
	mdatHeader.WriteString("mdat")
	mdatHeaderBytes := make([]byte, mdatHeader.Len())
	copy(mdatHeaderBytes, mdatHeader.Bytes())

	sampleData := p.Buffer
	if track.IsVideo() && track.Kind.Video.Codec.Kind == media.VideoCodecH264 {
		converted, err := nal.Convert(p.Buffer, track.Kind.Video.Framing, media.FourByteLength)
		if err != nil {
			return media.Span{}, newMuxError("write_media_segment.convert_bitstream", err)
		}
		sampleData = converted
	}

	m.seq++
	m.prevTime[p.TrackID] = p.Time

	return media.Concat(media.NewSpan(moofBytes), media.NewSpan(mdatHeaderBytes), sampleData), nil
}
