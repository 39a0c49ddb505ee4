package ingest

import (
	"context"
	"errors"
	"log/slog"

	ingesterrors "github.com/alxayo/go-livestream/internal/errors"
	"github.com/alxayo/go-livestream/internal/logger"
	"github.com/alxayo/go-livestream/internal/rtmp/chunk"
	"github.com/alxayo/go-livestream/internal/rtmp/conn"
)

var (
	errNoConnect      = errors.New("publish received before connect")
	errPublishTimeout = errors.New("timed out waiting for connect/createStream/publish")
)

// Request is returned by Listener.Accept once a client has completed the
// RTMP handshake and announced its app and stream key via
// connect/createStream/publish. App, Key and Addr are safe to call
// immediately; Authenticate must be called exactly once to obtain a Session,
// or Reject to refuse the publish attempt (e.g. unknown stream key, or a
// stream that is already live).
type Request struct {
	conn       *conn.Connection
	addr       string
	app        string
	streamKey  string
	publishMsg *chunk.Message
	frames     chan *chunk.Message
	ready      chan struct{}
}

// App returns the negotiated RTMP application name (the connect command's
// "app" property).
func (r *Request) App() string { return r.app }

// Key returns the announced stream key (app + "/" + publishingName).
func (r *Request) Key() string { return r.streamKey }

// Addr returns the remote peer address.
func (r *Request) Addr() string { return r.addr }

func (r *Request) log() *slog.Logger {
	return logger.WithStream(logger.WithConn(logger.Logger(), r.conn.ID(), r.addr), r.streamKey)
}

// Authenticate completes the session handshake from the ingest side: it
// sends NetStream.Publish.Start and returns a Session ready for Streams()
// then repeated ReadFrame(). The caller is expected to have already
// validated the stream key (e.g. against an account store) before calling
// this — Reject should be used instead when that validation fails.
func (r *Request) Authenticate(ctx context.Context) (*Session, error) {
	resp, err := buildPublishStart(r.streamKey, r.publishMsg.MessageStreamID)
	if err != nil {
		return nil, err
	}
	if err := r.conn.SendMessage(resp); err != nil {
		return nil, ingesterrors.NewProtocolError("ingest.authenticate", err)
	}
	return &Session{req: r}, nil
}

// Reject declines the publish attempt with an AuthRejected-equivalent
// onStatus (NetStream.Publish.BadName) describing reason, then closes the
// underlying connection.
func (r *Request) Reject(reason string) {
	if resp, err := buildPublishRejected(r.streamKey, reason, r.publishMsg.MessageStreamID); err == nil {
		_ = r.conn.SendMessage(resp)
	}
	_ = r.conn.Close()
}

// Close abandons the request's connection without sending a rejection
// status, used when the caller already closed the path some other way.
func (r *Request) Close() error { return r.conn.Close() }
