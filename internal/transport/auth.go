// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package transport

import (
	"context"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/access"
)

// Authenticator resolves a client token to an access subject.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (subject string, err error)
}

// Tokens authenticates against a fixed token to subject table.
type Tokens map[string]string

// Authenticate implements Authenticator.
func (t Tokens) Authenticate(_ context.Context, token string) (string, error) {
	if subject, ok := t[token]; ok && token != "" {
		return subject, nil
	}
	return "", oops.Code(access.CodePermissionDenied).Errorf("invalid token")
}

// Anonymous accepts every token as the same subject. Used for local,
// single-user setups.
type Anonymous string

// Authenticate implements Authenticator.
func (a Anonymous) Authenticate(context.Context, string) (string, error) {
	return string(a), nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// authenticate attaches the request's subject to its context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, err := s.auth.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(access.WithSubject(r.Context(), subject)))
	})
}
