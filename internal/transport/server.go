// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package transport exposes the hub over HTTP and WebSocket.
package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/access"
	"github.com/sceneforge/sceneforge/internal/hub"
	"github.com/sceneforge/sceneforge/internal/protocol"
	"github.com/sceneforge/sceneforge/internal/store"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

// Server serves editing sessions and the document API.
type Server struct {
	addr     string
	hub      *hub.Hub
	auth     Authenticator
	upgrader websocket.Upgrader
	tls      *tls.Config

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool

	mu       sync.Mutex
	sessions map[*session]struct{}
}

// NewServer creates a server for h listening on addr.
func NewServer(addr string, h *hub.Hub, auth Authenticator) *Server {
	return &Server{
		addr: addr,
		hub:  h,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		sessions: make(map[*session]struct{}),
	}
}

// SetTLSConfig makes the server accept only TLS connections. It must be
// called before Start.
func (s *Server) SetTLSConfig(cfg *tls.Config) {
	s.tls = cfg
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if !s.hub.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			//nolint:errcheck // client may have gone away
			w.Write([]byte("not ready\n"))
			return
		}
		//nolint:errcheck // client may have gone away
		w.Write([]byte("ok\n"))
	})
	r.Get("/ws", s.serveWS)
	r.Route("/api/documents", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/", s.listDocuments)
		r.Post("/", s.createDocument)
		r.Get("/{id}/references", s.documentReferences)
		r.Delete("/{id}", s.deleteDocument)
	})
	return r
}

// Start begins serving. The returned channel reports serve errors and is
// closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("server already running")
	}
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	if s.tls != nil {
		listener = tls.NewListener(listener, s.tls)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("server started", "addr", listener.Addr().String(), "tls", s.tls != nil)
	return errCh, nil
}

// Stop shuts the HTTP server down and ends every editing session.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.close()
	}
	if err != nil {
		return oops.With("operation", "shutdown_server").Wrap(err)
	}
	slog.Info("server stopped")
	return nil
}

// Addr returns the listen address, or "" when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	infos, err := s.hub.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	docs := protocol.Documents{Documents: make([]protocol.DocumentInfo, 0, len(infos))}
	for _, info := range infos {
		docs.Documents = append(docs.Documents, protocol.DocumentInfo{ID: info.ID, Kind: info.Kind})
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	var req protocol.Create
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, oops.Code(protocol.CodeMalformed).Wrap(err))
		return
	}
	id, err := s.hub.Create(r.Context(), access.SubjectFrom(r.Context()), req.Kind, req.ID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, protocol.Created{ID: id})
}

func (s *Server) documentReferences(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	g := s.hub.Graph()
	writeJSON(w, http.StatusOK, map[string][]string{
		"dependencies": g.Dependencies(id),
		"referrers":    g.Referrers(id),
	})
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.hub.Delete(r.Context(), access.SubjectFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch errutil.Code(err) {
	case access.CodePermissionDenied:
		return http.StatusForbidden
	case store.CodeNotFound:
		return http.StatusNotFound
	case store.CodeExists, hub.CodeInUse:
		return http.StatusConflict
	case hub.CodeUnknownKind, protocol.CodeMalformed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		errutil.LogError(slog.Default(), "request failed", err)
	}
	writeJSON(w, status, protocol.ErrorFor(err))
}
