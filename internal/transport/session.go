// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/document"
	"github.com/sceneforge/sceneforge/internal/hub"
	"github.com/sceneforge/sceneforge/internal/ids"
	"github.com/sceneforge/sceneforge/internal/protocol"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = pongWait * 9 / 10
	handshakeTimeout = 10 * time.Second
	sendBuffer       = 64
)

// session is one WebSocket client. The read loop handles requests in
// order; a single writer goroutine owns the socket's write side.
type session struct {
	server *Server
	ws     *websocket.Conn
	origin document.Origin

	send       chan []byte
	writerDone chan struct{}
	forwarders sync.WaitGroup

	mu   sync.Mutex
	subs map[string]*hub.Subscription

	closeOnce sync.Once
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "error", err)
		return
	}

	origin, err := s.handshake(r.Context(), ws)
	if err != nil {
		slog.WarnContext(r.Context(), "handshake failed", "remote", r.RemoteAddr, "code", errutil.Code(err), "error", err)
		if data, encErr := protocol.Encode(protocol.TypeError, 0, "", protocol.ErrorFor(err)); encErr == nil {
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = ws.WriteMessage(websocket.TextMessage, data)
		}
		_ = ws.Close()
		return
	}

	sess := &session{
		server:     s,
		ws:         ws,
		origin:     origin,
		send:       make(chan []byte, sendBuffer),
		writerDone: make(chan struct{}),
		subs:       make(map[string]*hub.Subscription),
	}
	s.mu.Lock()
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess)
		s.mu.Unlock()
	}()

	slog.InfoContext(r.Context(), "session started", "client_id", origin.ClientID, "subject", origin.Subject)
	sess.run(r.Context())
	slog.InfoContext(r.Context(), "session ended", "client_id", origin.ClientID)
}

func (s *Server) handshake(ctx context.Context, ws *websocket.Conn) (document.Origin, error) {
	_ = ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := ws.ReadMessage()
	if err != nil {
		return document.Origin{}, oops.Wrapf(err, "read hello")
	}
	env, err := protocol.Decode(data)
	if err != nil {
		return document.Origin{}, err
	}
	if env.Type != protocol.TypeHello {
		return document.Origin{}, oops.Code(protocol.CodeMalformed).Errorf("expected hello, got %s", env.Type)
	}
	var hello protocol.Hello
	if err := env.Unmarshal(&hello); err != nil {
		return document.Origin{}, err
	}
	if _, err := protocol.Negotiate(hello.Version); err != nil {
		return document.Origin{}, err
	}
	subject, err := s.auth.Authenticate(ctx, hello.Token)
	if err != nil {
		return document.Origin{}, err
	}

	origin := document.Origin{ClientID: ids.New(), Subject: subject}
	welcome, err := protocol.Encode(protocol.TypeWelcome, env.RequestID, "", protocol.Welcome{
		Version:  protocol.Version,
		ClientID: origin.ClientID,
		Subject:  subject,
	})
	if err != nil {
		return document.Origin{}, err
	}
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(websocket.TextMessage, welcome); err != nil {
		return document.Origin{}, oops.Wrapf(err, "write welcome")
	}
	return origin, nil
}

func (sess *session) run(ctx context.Context) {
	go sess.writePump()

	_ = sess.ws.SetReadDeadline(time.Now().Add(pongWait))
	sess.ws.SetPongHandler(func(string) error {
		return sess.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := sess.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.DebugContext(ctx, "session read failed", "client_id", sess.origin.ClientID, "error", err)
			}
			break
		}
		env, err := protocol.Decode(data)
		if err != nil {
			sess.replyError(ctx, &protocol.Envelope{}, err)
			continue
		}
		sess.handle(ctx, env)
	}

	sess.mu.Lock()
	subs := sess.subs
	sess.subs = make(map[string]*hub.Subscription)
	sess.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
	sess.forwarders.Wait()
	close(sess.send)
	<-sess.writerDone
	_ = sess.ws.Close()
}

func (sess *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(sess.writerDone)
	}()
	for {
		select {
		case msg, ok := <-sess.send:
			_ = sess.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sess.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := sess.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Debug("session write failed", "client_id", sess.origin.ClientID, "error", err)
				sess.close()
				sess.drain()
				return
			}
		case <-ticker.C:
			_ = sess.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sess.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				sess.close()
				sess.drain()
				return
			}
		}
	}
}

// drain discards queued messages once the socket is unusable, so senders
// never block on a dead writer.
func (sess *session) drain() {
	for range sess.send {
	}
}

// close makes the read loop fail, which ends the session.
func (sess *session) close() {
	sess.closeOnce.Do(func() { _ = sess.ws.Close() })
}

func (sess *session) enqueue(t protocol.MessageType, requestID uint64, documentID string, payload any) {
	data, err := protocol.Encode(t, requestID, documentID, payload)
	if err != nil {
		errutil.LogError(slog.Default(), "encode message failed", err)
		return
	}
	sess.send <- data
}

func (sess *session) replyError(ctx context.Context, env *protocol.Envelope, err error) {
	slog.WarnContext(ctx, "request failed",
		"client_id", sess.origin.ClientID,
		"type", string(env.Type),
		"document_id", env.DocumentID,
		"code", errutil.Code(err),
		"error", err,
	)
	sess.enqueue(protocol.TypeError, env.RequestID, env.DocumentID, protocol.ErrorFor(err))
}

func (sess *session) handle(ctx context.Context, env *protocol.Envelope) {
	h := sess.server.hub
	switch env.Type {
	case protocol.TypeOpen:
		sess.open(ctx, env)

	case protocol.TypeClose:
		sess.mu.Lock()
		sub, ok := sess.subs[env.DocumentID]
		delete(sess.subs, env.DocumentID)
		sess.mu.Unlock()
		if ok {
			sub.Close()
		}
		sess.enqueue(protocol.TypeClosed, env.RequestID, env.DocumentID, nil)

	case protocol.TypeCommand:
		var cmd protocol.Command
		if err := env.Unmarshal(&cmd); err != nil {
			sess.replyError(ctx, env, err)
			return
		}
		ack, err := h.Submit(ctx, sess.origin, env.DocumentID, cmd)
		if err != nil {
			sess.replyError(ctx, env, err)
			return
		}
		sess.enqueue(protocol.TypeAck, env.RequestID, env.DocumentID, ack)

	case protocol.TypeCreate:
		var req protocol.Create
		if err := env.Unmarshal(&req); err != nil {
			sess.replyError(ctx, env, err)
			return
		}
		id, err := h.Create(ctx, sess.origin.Subject, req.Kind, req.ID)
		if err != nil {
			sess.replyError(ctx, env, err)
			return
		}
		sess.enqueue(protocol.TypeCreated, env.RequestID, id, protocol.Created{ID: id})

	case protocol.TypeList:
		infos, err := h.List(ctx)
		if err != nil {
			sess.replyError(ctx, env, err)
			return
		}
		docs := protocol.Documents{Documents: make([]protocol.DocumentInfo, 0, len(infos))}
		for _, info := range infos {
			docs.Documents = append(docs.Documents, protocol.DocumentInfo{ID: info.ID, Kind: info.Kind})
		}
		sess.enqueue(protocol.TypeDocuments, env.RequestID, "", docs)

	default:
		sess.replyError(ctx, env, oops.Code(protocol.CodeMalformed).With("type", string(env.Type)).Errorf("unexpected message type %s", env.Type))
	}
}

func (sess *session) open(ctx context.Context, env *protocol.Envelope) {
	sess.mu.Lock()
	_, open := sess.subs[env.DocumentID]
	sess.mu.Unlock()
	if open {
		sess.replyError(ctx, env, oops.Code(protocol.CodeMalformed).With("document_id", env.DocumentID).Errorf("document already open"))
		return
	}

	sub, err := sess.server.hub.Open(ctx, sess.origin, env.DocumentID)
	if err != nil {
		sess.replyError(ctx, env, err)
		return
	}
	sess.mu.Lock()
	sess.subs[env.DocumentID] = sub
	sess.mu.Unlock()

	// The snapshot is queued before any event of this subscription.
	sess.enqueue(protocol.TypeSnapshot, env.RequestID, env.DocumentID, sub.Snapshot)
	sess.forwarders.Add(1)
	go sess.forward(env.DocumentID, sub)
}

// forward relays a subscription's events. When the hub ends the stream
// on its own, the client is told with an unsolicited closed message.
func (sess *session) forward(documentID string, sub *hub.Subscription) {
	defer sess.forwarders.Done()
	for ev := range sub.Events() {
		sess.enqueue(protocol.TypeEvent, 0, documentID, ev)
	}

	sess.mu.Lock()
	evicted := sess.subs[documentID] == sub
	if evicted {
		delete(sess.subs, documentID)
	}
	sess.mu.Unlock()
	if evicted {
		sub.Close()
		sess.enqueue(protocol.TypeClosed, 0, documentID, nil)
	}
}
