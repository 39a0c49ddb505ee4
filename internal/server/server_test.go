package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alxayo/go-livestream/internal/account"
	"github.com/alxayo/go-livestream/internal/config"
	"github.com/alxayo/go-livestream/internal/media"
	"github.com/alxayo/go-livestream/internal/metrics"
	"github.com/alxayo/go-livestream/internal/notify"
)

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.RTMPAddr = ":0"
	cfg.HTTPAddr = ":0"
	return cfg
}

func newTestServer(cfg config.Config) *Server {
	return New(cfg, account.NewInMemoryStore(true), notify.Noop{}, metrics.New())
}

func TestServerStartStop(t *testing.T) {
	s := newTestServer(testConfig())
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if s.Addr() == nil {
		t.Fatal("expected non-nil addr after start")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	// Second stop must be a no-op, not a panic or error.
	if err := s.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
}

func TestServerAcceptsTCPConnections(t *testing.T) {
	s := newTestServer(testConfig())
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	addr := s.Addr().String()
	time.Sleep(50 * time.Millisecond)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	conn.Close()
}

func TestRejectReasonMapsKnownPolicyCodes(t *testing.T) {
	store := account.NewInMemoryStore(false)
	_, err := store.ByStreamKey(context.Background(), "unknown")
	if got := rejectReason(err); got != "unknown_account" {
		t.Fatalf("expected unknown_account, got %q", got)
	}
}

func testMovie() media.Movie {
	return media.NewMovie(media.Track{
		ID:       1,
		Kind:     media.NewVideoKind(media.VideoInfo{Width: 640, Height: 480}),
		Timebase: media.Fraction{Num: 1, Den: 1000},
	})
}

func testPacket(pts int64, key bool) media.Packet {
	return media.NewPacket(1, media.NewMediaTime(media.Fraction{Num: 1, Den: 1000}, pts), media.NewSpan(make([]byte, 10)), key)
}

func TestRecordAndForwardMakesKeyframeVisibleImmediately(t *testing.T) {
	s := newTestServer(testConfig())
	movie := testMovie()
	splitter, stream, err := s.registry.NewStream("alice", movie)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	var gopBytes int64

	gopBytes = s.recordAndForward(testPacket(0, true), movie, stream, splitter, gopBytes)

	gop, _, err := stream.Preview()
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(gop) != 1 || !gop[0].Key {
		t.Fatalf("expected the cache to show just the new keyframe immediately, got %+v", gop)
	}

	gopBytes = s.recordAndForward(testPacket(10, false), movie, stream, splitter, gopBytes)

	gop, _, err = stream.Preview()
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(gop) != 2 {
		t.Fatalf("expected the delta frame to extend the same cache in real time, got %d packets", len(gop))
	}

	gopBytes = s.recordAndForward(testPacket(20, true), movie, stream, splitter, gopBytes)

	gop, _, err = stream.Preview()
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(gop) != 1 || gop[0].Time.PTS != 20 {
		t.Fatalf("expected the next keyframe to atomically replace the cache, got %+v", gop)
	}
	_ = gopBytes
}

func TestRecordAndForwardHonorsGOPCapBytes(t *testing.T) {
	cfg := testConfig()
	cfg.GOPCapBytes = 15 // smaller than two 10-byte packets combined
	s := newTestServer(cfg)
	movie := testMovie()
	splitter, stream, err := s.registry.NewStream("bob", movie)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	var gopBytes int64
	gopBytes = s.recordAndForward(testPacket(0, true), movie, stream, splitter, gopBytes)
	gopBytes = s.recordAndForward(testPacket(10, false), movie, stream, splitter, gopBytes)

	gop, _, err := stream.Preview()
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(gop) != 1 {
		t.Fatalf("expected cap to stop accumulation after the first packet, got %d cached", len(gop))
	}
	_ = gopBytes
}

func TestRecordAndForwardIgnoresAudioPackets(t *testing.T) {
	s := newTestServer(testConfig())
	movie := media.NewMovie(
		media.Track{ID: 1, Kind: media.NewVideoKind(media.VideoInfo{Width: 640, Height: 480}), Timebase: media.Fraction{Num: 1, Den: 1000}},
		media.Track{ID: 2, Kind: media.NewAudioKind(media.AudioInfo{SampleRate: 44100, Channels: 2}), Timebase: media.Fraction{Num: 1, Den: 1000}},
	)
	splitter, stream, err := s.registry.NewStream("carol", movie)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	audioPkt := media.NewPacket(2, media.NewMediaTime(media.Fraction{Num: 1, Den: 1000}, 0), media.NewSpan(make([]byte, 4)), true)

	gopBytes := s.recordAndForward(audioPkt, movie, stream, splitter, 0)

	if gopBytes != 0 {
		t.Fatalf("expected audio packets to never enter the GOP byte count, got %d bytes", gopBytes)
	}
	if _, _, err := stream.Preview(); err == nil {
		t.Fatal("expected no GOP cached from an audio-only stream")
	}
}
