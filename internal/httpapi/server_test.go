package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alxayo/go-livestream/internal/media"
	"github.com/alxayo/go-livestream/internal/metrics"
	"github.com/alxayo/go-livestream/internal/registry"
)

func testMovie() media.Movie {
	return media.NewMovie(media.Track{
		ID:       1,
		Kind:     media.NewVideoKind(media.VideoInfo{Width: 1280, Height: 720}),
		Timebase: media.Fraction{Num: 1, Den: 1000},
	})
}

func testPacket(pts int64, key bool) media.Packet {
	return media.NewPacket(1, media.NewMediaTime(media.Fraction{Num: 1, Den: 1000}, pts), media.NewSpan([]byte{0x01, 0x02}), key)
}

func newTestServer() (*Server, *registry.Registry) {
	reg := registry.New(nil)
	rec := metrics.New()
	reg.SetMetrics(rec)
	return New(reg, rec, nil), reg
}

func TestListStreamsReturnsJSON(t *testing.T) {
	s, reg := newTestServer()
	if _, _, err := reg.NewStream("alice", testMovie()); err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var listings []streamListing
	if err := json.Unmarshal(rr.Body.Bytes(), &listings); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(listings) != 1 || listings[0].Name != "alice" || !listings[0].IsLive {
		t.Fatalf("unexpected listing: %+v", listings)
	}
}

func TestPreviewReturns404ForUnknownStream(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/stream/nope/preview", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPreviewReturns404WithNoGOP(t *testing.T) {
	s, reg := newTestServer()
	if _, _, err := reg.NewStream("bob", testMovie()); err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stream/bob/preview", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPreviewReturnsMp4Bytes(t *testing.T) {
	s, reg := newTestServer()
	_, stream, err := reg.NewStream("carol", testMovie())
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	recordGOP(stream, []media.Packet{testPacket(0, true), testPacket(1, false)})

	req := httptest.NewRequest(http.MethodGet, "/api/stream/carol/preview", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Fatalf("expected video/mp4 content type, got %q", ct)
	}
	if rr.Body.Len() == 0 {
		t.Fatal("expected non-empty mp4 body")
	}
	if !strings.HasPrefix(string(rr.Body.Bytes()[4:8]), "ftyp") {
		t.Fatalf("expected body to start with an ftyp box, got %x", rr.Body.Bytes()[:16])
	}
}

func TestLiveReturns404ForUnknownStream(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/live/nope", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestLiveReturns404WhenNotLive(t *testing.T) {
	s, reg := newTestServer()
	if _, _, err := reg.NewStream("dave", testMovie()); err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	reg.StopStream("dave")

	req := httptest.NewRequest(http.MethodGet, "/api/live/dave", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestLiveStreamsInitAndMediaFrames(t *testing.T) {
	s, reg := newTestServer()
	splitter, _, err := reg.NewStream("erin", testMovie())
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live/erin"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dialing websocket: %v", err)
	}
	defer conn.Close()

	// Give the handler a moment to attach before writing packets.
	time.Sleep(50 * time.Millisecond)
	splitter.WritePacket(testPacket(0, true))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading mime frame: %v", err)
	}
	if mt != websocket.TextMessage || !strings.HasPrefix(string(data), "video/mp4") {
		t.Fatalf("expected mime text frame, got type %d data %q", mt, data)
	}

	mt, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading init segment: %v", err)
	}
	if mt != websocket.BinaryMessage || len(data) == 0 {
		t.Fatalf("expected non-empty binary init segment, got type %d len %d", mt, len(data))
	}

	mt, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading first media segment: %v", err)
	}
	if mt != websocket.BinaryMessage || len(data) == 0 {
		t.Fatalf("expected non-empty binary media segment, got type %d len %d", mt, len(data))
	}
}

func TestCORSHeaderOnlyForAllowedOrigin(t *testing.T) {
	reg := registry.New(nil)
	rec := metrics.New()
	s := New(reg, rec, []string{"https://allowed.example"})

	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	req.Header.Set("Origin", "https://allowed.example")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://allowed.example" {
		t.Fatalf("expected CORS header for allowed origin, got %q", got)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/stream", nil)
	req2.Header.Set("Origin", "https://evil.example")
	rr2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr2, req2)
	if got := rr2.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header for disallowed origin, got %q", got)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "livestream_") {
		t.Fatalf("expected livestream_* metric names in output, got: %s", rr.Body.String())
	}
}

// recordGOP populates a stream's GOP cache the way the ingest orchestrator
// does as packets arrive: the first (keyframe) packet starts the cache,
// every subsequent packet extends it.
func recordGOP(stream *registry.LiveStream, gop []media.Packet) {
	for i, pkt := range gop {
		if i == 0 {
			stream.ResetGOP(pkt)
		} else {
			stream.AppendGOP(pkt)
		}
	}
}
