package ingest

import (
	"context"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/alxayo/go-livestream/internal/errors"
	"github.com/alxayo/go-livestream/internal/rtmp/chunk"
	"github.com/alxayo/go-livestream/internal/rtmp/conn"
	"github.com/alxayo/go-livestream/internal/rtmp/rpc"
)

// frameQueueCapacity bounds how many reassembled audio/video messages an
// ingest connection buffers between its readLoop and the consumer calling
// Session.ReadFrame. It is deliberately smaller than the registry fan-out
// channel (512, see internal/registry): this is a single producer/single
// consumer queue, not a fan-out target. When it is full, further audio/video
// messages are dropped (logged at debug) rather than blocking the readLoop.
const frameQueueCapacity = 256

// publishDeadline bounds how long Accept waits, after a TCP connection
// completes its RTMP handshake, for the client to send connect, createStream
// and publish. Clients that never publish (e.g. port scanners, play-only
// clients hitting the ingest port by mistake) are disconnected instead of
// occupying a goroutine indefinitely.
const publishDeadline = 10 * time.Second

// Listener accepts RTMP connections, drives each one through handshake and
// the connect/createStream/publish command sequence, and hands back a
// Request exposing the announced app/stream key before any media flows.
// Accepts are rate-limited with golang.org/x/time/rate instead of a
// hand-rolled token bucket.
type Listener struct {
	ln      net.Listener
	limiter *rate.Limiter
}

// NewListener binds addr and wraps it with an accept-rate limiter: at most
// acceptsPerSecond new connections admitted per second, with burst allowed
// immediately after idle periods.
func NewListener(addr string, acceptsPerSecond float64, burst int) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, newIngestError("listen", err)
	}
	if burst < 1 {
		burst = 1
	}
	return &Listener{
		ln:      ln,
		limiter: rate.NewLimiter(rate.Limit(acceptsPerSecond), burst),
	}, nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Accept blocks for the next RTMP connection, performing handshake and the
// connect/createStream/publish command sequence inline so that the returned
// Request already knows its app and stream key (per the public contract:
// App()/Key()/Addr() are callable before Authenticate()). Authenticate()
// itself is a lightweight continuation matching spec semantics even though
// by the time Accept returns, the heavy lifting is already done.
func (l *Listener) Accept(ctx context.Context) (*Request, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	c, err := conn.Accept(l.ln)
	if err != nil {
		return nil, errors.NewHandshakeError("ingest.accept", err)
	}

	req := &Request{
		conn:   c,
		addr:   c.NetConn().RemoteAddr().String(),
		frames: make(chan *chunk.Message, frameQueueCapacity),
		ready:  make(chan struct{}),
	}

	var connectCmd *rpc.ConnectCommand
	dispatcher := rpc.NewDispatcher(func() string {
		if connectCmd == nil {
			return ""
		}
		return connectCmd.App
	})

	dispatcher.OnConnect = func(cc *rpc.ConnectCommand, msg *chunk.Message) error {
		connectCmd = cc
		resp, err := buildConnectResult(cc.TransactionID, msg.MessageStreamID)
		if err != nil {
			return err
		}
		return c.SendMessage(resp)
	}
	dispatcher.OnCreateStream = func(cs *rpc.CreateStreamCommand, msg *chunk.Message) error {
		resp, err := buildCreateStreamResult(cs.TransactionID, publishStreamID)
		if err != nil {
			return err
		}
		return c.SendMessage(resp)
	}
	dispatcher.OnPublish = func(pc *rpc.PublishCommand, msg *chunk.Message) error {
		if connectCmd == nil {
			return errors.NewProtocolError("ingest.publish", errNoConnect)
		}
		req.app = connectCmd.App
		req.streamKey = pc.StreamKey
		req.publishMsg = msg
		close(req.ready)
		return nil
	}

	c.SetMessageHandler(func(msg *chunk.Message) {
		switch msg.TypeID {
		case rpc.CommandMessageAMF0TypeIDForTest():
			if err := dispatcher.Dispatch(msg); err != nil {
				req.log().Warn("command dispatch failed", "error", err)
			}
		case 8, 9: // audio, video
			select {
			case req.frames <- msg:
			default:
				req.log().Debug("dropping media message, frame queue full")
			}
		}
	})
	c.Start()

	select {
	case <-req.ready:
		return req, nil
	case <-ctx.Done():
		_ = c.Close()
		return nil, ctx.Err()
	case <-time.After(publishDeadline):
		_ = c.Close()
		return nil, errors.NewProtocolError("ingest.accept", errPublishTimeout)
	}
}

// publishStreamID is the NetStream id assigned to every createStream reply.
// RTMP allows multiplexing several streams per connection; ingest only ever
// needs one per connection (one publisher), so a constant is sufficient.
const publishStreamID = 1
