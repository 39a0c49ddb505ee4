package ingest

import (
	"context"
	"fmt"
	"time"

	ingesterrors "github.com/alxayo/go-livestream/internal/errors"
	"github.com/alxayo/go-livestream/internal/media"
	rtmpmedia "github.com/alxayo/go-livestream/internal/rtmp/media"

	"github.com/alxayo/go-livestream/internal/rtmp/chunk"
)

// rtmpTimebase is shared by every track ingest produces: RTMP timestamps are
// always millisecond-resolution, so video and audio both get 1/1000 rather
// than audio's native sample rate — this matches the S1 scenario's expected
// "timebase 1/1000" video track and keeps PTS/DTS arithmetic between the two
// tracks directly comparable.
var rtmpTimebase = media.Fraction{Num: 1, Den: 1000}

const (
	videoTrackID = 1
	audioTrackID = 2
)

// streamsTimeout bounds how long Session.Streams waits for both an audio and
// a video sequence header before giving up and returning whichever tracks
// were actually announced. A var rather than a const so tests can shorten it.
var streamsTimeout = 5 * time.Second

// Session owns an ingest connection from the moment it is authenticated
// through to disconnection. Streams must be called exactly once; ReadFrame
// is then called repeatedly from a single goroutine until it errors.
type Session struct {
	req           *Request
	pending       []*chunk.Message
	videoTrack    *media.Track
	audioTrack    *media.Track
	streamsCalled bool
}

// Streams blocks until both audio and video sequence headers have been
// observed, or until streamsTimeout elapses, and returns whichever tracks
// were announced. Any ordinary media message seen while waiting is retained
// and replayed by the first subsequent ReadFrame calls.
func (s *Session) Streams(ctx context.Context) (media.Movie, error) {
	if s.streamsCalled {
		return media.Movie{}, ingesterrors.NewProtocolError("session.streams", fmt.Errorf("streams already called"))
	}
	s.streamsCalled = true

	timer := time.NewTimer(streamsTimeout)
	defer timer.Stop()

loop:
	for s.videoTrack == nil || s.audioTrack == nil {
		select {
		case msg, ok := <-s.req.frames:
			if !ok {
				break loop
			}
			if !s.tryConsumeSequenceHeader(msg) {
				s.pending = append(s.pending, msg)
			}
		case <-timer.C:
			break loop
		case <-ctx.Done():
			return media.Movie{}, ctx.Err()
		}
	}

	var tracks []media.Track
	if s.videoTrack != nil {
		tracks = append(tracks, *s.videoTrack)
	}
	if s.audioTrack != nil {
		tracks = append(tracks, *s.audioTrack)
	}
	if len(tracks) == 0 {
		return media.Movie{}, ingesterrors.NewProtocolError("session.streams",
			fmt.Errorf("no sequence headers observed within %s", streamsTimeout))
	}
	return media.NewMovie(tracks...), nil
}

// tryConsumeSequenceHeader populates videoTrack/audioTrack from msg if it is
// the (first) sequence header for that media type. Returns false if msg was
// not a sequence header it consumed, meaning the caller should retain it.
func (s *Session) tryConsumeSequenceHeader(msg *chunk.Message) bool {
	switch msg.TypeID {
	case 9:
		if s.videoTrack != nil {
			return false
		}
		vm, err := rtmpmedia.ParseVideoMessage(msg.Payload)
		if err != nil || vm.PacketType != rtmpmedia.AVCPacketTypeSequenceHeader {
			return false
		}
		info, err := parseAVCDecoderConfig(vm.Payload)
		if err != nil {
			s.req.log().Warn("discarding unparseable avcC sequence header", "error", err)
			return false
		}
		t := media.Track{ID: videoTrackID, Kind: media.NewVideoKind(info), Timebase: rtmpTimebase}
		s.videoTrack = &t
		return true
	case 8:
		if s.audioTrack != nil {
			return false
		}
		am, err := rtmpmedia.ParseAudioMessage(msg.Payload)
		if err != nil || am.PacketType != rtmpmedia.AACPacketTypeSequenceHeader {
			return false
		}
		info, err := parseAudioSpecificConfig(am.Payload)
		if err != nil {
			s.req.log().Warn("discarding unparseable AudioSpecificConfig", "error", err)
			return false
		}
		t := media.Track{ID: audioTrackID, Kind: media.NewAudioKind(info), Timebase: rtmpTimebase}
		s.audioTrack = &t
		return true
	default:
		return false
	}
}

// ReadFrame returns the next media Packet, first draining any messages
// buffered during Streams(), then reading fresh ones off the connection.
// Sequence-header re-announcements (a mid-stream codec change) and
// unparseable tags are silently skipped rather than surfaced as errors,
// matching the drop-and-continue posture spec.md §7 assigns to unknown/
// malformed input at this layer.
func (s *Session) ReadFrame(ctx context.Context) (media.Packet, error) {
	for {
		msg, err := s.nextMessage(ctx)
		if err != nil {
			return media.Packet{}, err
		}
		if pkt, ok := s.toPacket(msg); ok {
			return pkt, nil
		}
	}
}

func (s *Session) nextMessage(ctx context.Context) (*chunk.Message, error) {
	if len(s.pending) > 0 {
		msg := s.pending[0]
		s.pending = s.pending[1:]
		return msg, nil
	}
	select {
	case msg, ok := <-s.req.frames:
		if !ok {
			return nil, ingesterrors.NewProtocolError("session.read_frame", fmt.Errorf("disconnected"))
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) toPacket(msg *chunk.Message) (media.Packet, bool) {
	switch msg.TypeID {
	case 9:
		if s.videoTrack == nil {
			return media.Packet{}, false
		}
		vm, err := rtmpmedia.ParseVideoMessage(msg.Payload)
		if err != nil || vm.PacketType != rtmpmedia.AVCPacketTypeNALU {
			return media.Packet{}, false
		}
		pts := int64(msg.Timestamp)
		dts := pts - int64(vm.CompositionTime)
		t := media.NewMediaTime(rtmpTimebase, pts).WithDTS(dts)
		return media.NewPacket(s.videoTrack.ID, t, media.NewSpan(vm.Payload), vm.FrameType == rtmpmedia.VideoFrameTypeKey), true
	case 8:
		if s.audioTrack == nil {
			return media.Packet{}, false
		}
		am, err := rtmpmedia.ParseAudioMessage(msg.Payload)
		if err != nil || am.PacketType != rtmpmedia.AACPacketTypeRaw {
			return media.Packet{}, false
		}
		t := media.NewMediaTime(rtmpTimebase, int64(msg.Timestamp))
		return media.NewPacket(s.audioTrack.ID, t, media.NewSpan(am.Payload), true), true
	default:
		return media.Packet{}, false
	}
}
