// Package server wires the ingest, registry, and HTTP layers into a single
// runnable process: accept RTMP publishers, resolve their stream key to an
// account, start a broadcast in the registry, and pump packets from the
// session into the registry's fan-out splitter and GOP cache until the
// publisher disconnects. Grounded on internal/rtmp/server/server.go's
// Start/acceptLoop/Stop/Addr shape, adapted from an FLV chunk relay onto the
// Packet-oriented ingest/registry pair this module builds to spec.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/alxayo/go-livestream/internal/account"
	"github.com/alxayo/go-livestream/internal/config"
	liveErrors "github.com/alxayo/go-livestream/internal/errors"
	"github.com/alxayo/go-livestream/internal/httpapi"
	"github.com/alxayo/go-livestream/internal/ingest"
	"github.com/alxayo/go-livestream/internal/logger"
	"github.com/alxayo/go-livestream/internal/media"
	"github.com/alxayo/go-livestream/internal/metrics"
	"github.com/alxayo/go-livestream/internal/notify"
	"github.com/alxayo/go-livestream/internal/registry"
)

// Server is the top-level process: one RTMP ingest listener, one HTTP
// server, and the Registry they share.
type Server struct {
	cfg      config.Config
	accounts account.Lookup
	notifier notify.Notifier
	metrics  *metrics.Recorder
	registry *registry.Registry
	log      *slog.Logger

	ingestListener *ingest.Listener
	httpServer     *http.Server

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	closing     bool
	acceptingWg sync.WaitGroup
	sessionsWg  sync.WaitGroup
}

// New builds an unstarted Server. accounts resolves stream keys to
// broadcaster identities; notifier is fired, fire-and-forget, whenever a
// broadcast starts; rec records Prometheus metrics. Neither accounts nor
// notifier nor rec may be nil — callers that don't need one should pass
// account.NewInMemoryStore(false), notify.Noop{}, or metrics.New().
func New(cfg config.Config, accounts account.Lookup, notifier notify.Notifier, rec *metrics.Recorder) *Server {
	reg := registry.New(notifier)
	reg.SetMetrics(rec)
	reg.SetFanoutCapacity(cfg.ChannelCapacity)

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		accounts: accounts,
		notifier: notifier,
		metrics:  rec,
		registry: reg,
		log:      logger.Logger().With("component", "server"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start binds both the RTMP and HTTP listeners and launches the accept loop.
// Safe to call only once.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.ingestListener != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	ln, err := ingest.NewListener(s.cfg.RTMPAddr, s.cfg.AcceptsPerSecond, s.cfg.AcceptBurst)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.ingestListener = ln

	api := httpapi.New(s.registry, s.metrics, s.cfg.CORSOrigins)
	s.httpServer = &http.Server{Addr: s.cfg.HTTPAddr, Handler: api.Handler()}
	s.mu.Unlock()

	httpLn, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		_ = ln.Close()
		return err
	}

	s.log.Info("rtmp ingest listening", "addr", ln.Addr().String())
	s.log.Info("http surface listening", "addr", httpLn.Addr().String())

	go func() {
		if err := s.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", "error", err)
		}
	}()

	s.acceptingWg.Add(1)
	go s.acceptLoop()
	return nil
}

// acceptLoop runs until the listener is closed or the server's context is
// cancelled, spawning one goroutine per accepted publisher.
func (s *Server) acceptLoop() {
	defer s.acceptingWg.Done()
	for {
		req, err := s.ingestListener.Accept(s.ctx)
		if err != nil {
			s.mu.RLock()
			closing := s.closing
			s.mu.RUnlock()
			if closing || s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("ingest accept error", "error", err)
			continue
		}

		s.sessionsWg.Add(1)
		go func() {
			defer s.sessionsWg.Done()
			s.handlePublisher(req)
		}()
	}
}

// handlePublisher drives one publisher's connection from authentication
// through to disconnection: account lookup, registry registration, then the
// read-frame/fan-out/GOP-bookkeeping loop. Mirrors the original's
// handle_rtmp_request (server/src/stream.rs).
func (s *Server) handlePublisher(req *ingest.Request) {
	log := logger.WithStream(logger.WithConn(s.log, "", req.Addr()), req.Key())

	acct, err := s.accounts.ByStreamKey(s.ctx, req.Key())
	if err != nil {
		s.metrics.ConnectionRejected()
		log.Warn("rejecting publish, account lookup failed", "error", err)
		req.Reject(rejectReason(err))
		return
	}

	session, err := req.Authenticate(s.ctx)
	if err != nil {
		s.metrics.ConnectionRejected()
		log.Warn("authenticate failed", "error", err)
		_ = req.Close()
		return
	}

	movie, err := session.Streams(s.ctx)
	if err != nil {
		s.metrics.ConnectionRejected()
		log.Warn("waiting for sequence headers failed", "error", err)
		_ = req.Close()
		return
	}

	splitter, stream, err := s.registry.NewStream(acct.Username, movie)
	if err != nil {
		s.metrics.ConnectionRejected()
		log.Warn("registry refused new stream", "error", err)
		req.Reject(rejectReason(err))
		return
	}

	s.metrics.ConnectionAccepted()
	log.Info("broadcast started", "username", acct.Username)

	s.pumpFrames(s.ctx, session, movie, stream, splitter, log)

	s.registry.StopStream(acct.Username)
	_ = req.Close()
	log.Info("broadcast stopped", "username", acct.Username)
}

// pumpFrames reads packets until the session errors (disconnect, protocol
// violation, context cancellation), forwarding every packet to the splitter
// and maintaining the video-only GOP cache. Per spec, a keyframe's arrival
// makes the cache visible as [keyframe] immediately; every following packet
// up to the next keyframe extends that same cache in real time, so a late
// viewer's preview is never more than one packet stale.
func (s *Server) pumpFrames(ctx context.Context, session *ingest.Session, movie media.Movie, stream *registry.LiveStream, splitter *registry.Splitter, log *slog.Logger) {
	var gopBytes int64

	for {
		pkt, err := session.ReadFrame(ctx)
		if err != nil {
			log.Debug("ingest read ended", "error", err)
			return
		}
		gopBytes = s.recordAndForward(pkt, movie, stream, splitter, gopBytes)
	}
}

// recordAndForward applies one packet's GOP bookkeeping and forwards it to
// the splitter, returning the byte count the next call should use. Factored
// out of pumpFrames so the bookkeeping rule is unit-testable without a live
// ingest.Session.
func (s *Server) recordAndForward(pkt media.Packet, movie media.Movie, stream *registry.LiveStream, splitter *registry.Splitter, gopBytes int64) int64 {
	track, ok := movie.TrackByID(pkt.TrackID)
	if ok && track.IsVideo() {
		if pkt.Key {
			stream.ResetGOP(pkt)
			gopBytes = int64(pkt.Buffer.Len())
		} else if s.cfg.GOPCapBytes == 0 || gopBytes < s.cfg.GOPCapBytes {
			stream.AppendGOP(pkt)
			gopBytes += int64(pkt.Buffer.Len())
		}
	}

	splitter.WritePacket(pkt)
	return gopBytes
}

// rejectReason extracts a short, client-safe reason string from an error
// returned by account lookup or registry.NewStream.
func rejectReason(err error) string {
	for _, code := range []string{"unknown_account", "already_live"} {
		if liveErrors.IsPolicyError(err, code) {
			return code
		}
	}
	return "rejected"
}

// Stop gracefully shuts down the server: stops accepting new publishers,
// cancels every in-flight session and viewer loop via context, and waits
// for them (and the HTTP server) to finish, up to cfg.ShutdownTimeout.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.ingestListener == nil {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	ln := s.ingestListener
	httpSrv := s.httpServer
	s.mu.Unlock()

	s.cancel()
	_ = ln.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Error("http server shutdown error", "error", err)
	}

	done := make(chan struct{})
	go func() {
		s.acceptingWg.Wait()
		s.sessionsWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.log.Warn("shutdown timed out waiting for sessions to drain")
	}

	s.log.Info("server stopped")
	return nil
}

// Addr returns the bound RTMP ingest address, or nil if not started.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ingestListener == nil {
		return nil
	}
	return s.ingestListener.Addr()
}

// Registry exposes the underlying Registry, primarily for tests that want
// to assert on stream state without going through the network.
func (s *Server) Registry() *registry.Registry { return s.registry }
