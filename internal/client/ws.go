// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package client

import (
	"context"
	"crypto/tls"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/protocol"
)

const (
	writeWait    = 10 * time.Second
	streamBuffer = 256
)

// CodeConnClosed reports use of a closed connection.
const CodeConnClosed = "CONNECTION_CLOSED"

// WSConn is a Conn over a WebSocket.
type WSConn struct {
	ws      *websocket.Conn
	welcome protocol.Welcome
	nextID  atomic.Uint64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan *protocol.Envelope
	streams map[string]chan protocol.Event
	err     error

	done chan struct{}
}

// DialOption configures the WebSocket dialer.
type DialOption func(*websocket.Dialer)

// WithTLSConfig sets the client TLS configuration for wss:// endpoints.
func WithTLSConfig(cfg *tls.Config) DialOption {
	return func(d *websocket.Dialer) { d.TLSClientConfig = cfg }
}

// Dial connects to a server WebSocket endpoint and completes the
// handshake.
func Dial(ctx context.Context, url, token string, opts ...DialOption) (*WSConn, error) {
	dialer := *websocket.DefaultDialer
	for _, opt := range opts {
		opt(&dialer)
	}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, oops.With("url", url).Wrapf(err, "dial")
	}
	c := &WSConn{
		ws:      ws,
		pending: make(map[uint64]chan *protocol.Envelope),
		streams: make(map[string]chan protocol.Event),
		done:    make(chan struct{}),
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(deadline)
	}
	if err := c.write(protocol.TypeHello, 0, "", protocol.Hello{Version: protocol.Version, Token: token}); err != nil {
		_ = ws.Close()
		return nil, err
	}
	env, err := c.read()
	if err == nil {
		err = responseError(env)
	}
	if err == nil {
		err = env.Unmarshal(&c.welcome)
	}
	if err != nil {
		_ = ws.Close()
		return nil, oops.Wrapf(err, "handshake")
	}
	_ = ws.SetReadDeadline(time.Time{})

	go c.readLoop()
	return c, nil
}

// ClientID returns the id the server assigned to this connection.
func (c *WSConn) ClientID() string { return c.welcome.ClientID }

// Subject returns the authenticated subject.
func (c *WSConn) Subject() string { return c.welcome.Subject }

func (c *WSConn) read() (*protocol.Envelope, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return protocol.Decode(data)
}

func (c *WSConn) write(t protocol.MessageType, requestID uint64, documentID string, payload any) error {
	data, err := protocol.Encode(t, requestID, documentID, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return oops.Wrap(err)
	}
	return oops.Wrap(c.ws.WriteMessage(websocket.TextMessage, data))
}

func (c *WSConn) readLoop() {
	defer close(c.done)
	for {
		env, err := c.read()
		if err != nil {
			c.fail(err)
			return
		}
		switch env.Type {
		case protocol.TypeEvent:
			var ev protocol.Event
			if err := env.Unmarshal(&ev); err != nil {
				c.fail(err)
				return
			}
			c.deliver(ev)
		case protocol.TypeClosed:
			if env.RequestID == 0 {
				c.endStream(env.DocumentID)
				continue
			}
			c.respond(env)
		default:
			c.respond(env)
		}
	}
}

func (c *WSConn) deliver(ev protocol.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.streams[ev.DocumentID]
	if !ok {
		return
	}
	select {
	case ch <- ev:
	default:
		// The replica fell behind; drop the stream so it reopens.
		close(ch)
		delete(c.streams, ev.DocumentID)
	}
}

func (c *WSConn) endStream(documentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.streams[documentID]; ok {
		close(ch)
		delete(c.streams, documentID)
	}
}

func (c *WSConn) respond(env *protocol.Envelope) {
	c.mu.Lock()
	ch, ok := c.pending[env.RequestID]
	delete(c.pending, env.RequestID)
	c.mu.Unlock()
	if ok {
		ch <- env
	}
}

func (c *WSConn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = oops.Code(CodeConnClosed).Wrap(err)
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	for id, ch := range c.streams {
		close(ch)
		delete(c.streams, id)
	}
}

func (c *WSConn) request(ctx context.Context, t protocol.MessageType, documentID string, payload any) (*protocol.Envelope, error) {
	id := c.nextID.Add(1)
	ch := make(chan *protocol.Envelope, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(t, id, documentID, payload); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case env, ok := <-ch:
		if !ok {
			c.mu.Lock()
			defer c.mu.Unlock()
			return nil, c.err
		}
		if err := responseError(env); err != nil {
			return nil, err
		}
		return env, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

func responseError(env *protocol.Envelope) error {
	if env.Type != protocol.TypeError {
		return nil
	}
	var e protocol.Error
	if err := env.Unmarshal(&e); err != nil {
		return err
	}
	return oops.Code(e.Code).With("document_id", env.DocumentID).Errorf("%s", e.Message)
}

// Open implements Conn.
func (c *WSConn) Open(ctx context.Context, documentID string) (*protocol.Snapshot, <-chan protocol.Event, error) {
	events := make(chan protocol.Event, streamBuffer)
	c.mu.Lock()
	if _, ok := c.streams[documentID]; ok {
		c.mu.Unlock()
		return nil, nil, oops.With("document_id", documentID).Errorf("document already open")
	}
	c.streams[documentID] = events
	c.mu.Unlock()

	env, err := c.request(ctx, protocol.TypeOpen, documentID, nil)
	if err == nil {
		var snap protocol.Snapshot
		if err = env.Unmarshal(&snap); err == nil {
			return &snap, events, nil
		}
	}
	c.mu.Lock()
	if c.streams[documentID] == events {
		delete(c.streams, documentID)
		close(events)
	}
	c.mu.Unlock()
	return nil, nil, err
}

// CloseDocument implements Conn.
func (c *WSConn) CloseDocument(ctx context.Context, documentID string) error {
	_, err := c.request(ctx, protocol.TypeClose, documentID, nil)
	c.endStream(documentID)
	return err
}

// Submit implements Conn.
func (c *WSConn) Submit(ctx context.Context, documentID string, cmd protocol.Command) (protocol.Ack, error) {
	env, err := c.request(ctx, protocol.TypeCommand, documentID, cmd)
	if err != nil {
		return protocol.Ack{}, err
	}
	var ack protocol.Ack
	err = env.Unmarshal(&ack)
	return ack, err
}

// Create asks the server for a new document and returns its id.
func (c *WSConn) Create(ctx context.Context, kind, id string) (string, error) {
	env, err := c.request(ctx, protocol.TypeCreate, "", protocol.Create{Kind: kind, ID: id})
	if err != nil {
		return "", err
	}
	var created protocol.Created
	err = env.Unmarshal(&created)
	return created.ID, err
}

// List returns the server's documents.
func (c *WSConn) List(ctx context.Context) ([]protocol.DocumentInfo, error) {
	env, err := c.request(ctx, protocol.TypeList, "", nil)
	if err != nil {
		return nil, err
	}
	var docs protocol.Documents
	err = env.Unmarshal(&docs)
	return docs.Documents, err
}

// Close shuts the connection down and waits for the reader to stop.
func (c *WSConn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	err := c.ws.Close()
	<-c.done
	return err
}
