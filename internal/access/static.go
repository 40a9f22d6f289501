// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package access

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Static grants permissions through roles made of glob patterns over
// "action:resource", with ':' as separator.
//
// roles is immutable after construction; subjects is guarded by mu.
type Static struct {
	roles       map[string][]compiledPermission
	defaultRole string

	mu       sync.RWMutex
	subjects map[string]string
}

type compiledPermission struct {
	pattern string
	glob    glob.Glob
}

// DefaultRoles returns the built-in roles.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		"viewer": {"read:**"},
		"editor": {"read:**", "write:**", "create:**"},
		"admin":  {"**"},
	}
}

// StaticOption configures Static.
type StaticOption func(*Static)

// WithDefaultRole assigns role to subjects without an explicit assignment.
func WithDefaultRole(role string) StaticOption {
	return func(s *Static) { s.defaultRole = role }
}

// NewStatic compiles roles. Invalid patterns fail with
// INVALID_PERMISSION_PATTERN.
func NewStatic(roles map[string][]string, opts ...StaticOption) (*Static, error) {
	compiled := make(map[string][]compiledPermission, len(roles))
	for role, patterns := range roles {
		perms := make([]compiledPermission, 0, len(patterns))
		for _, p := range patterns {
			g, err := glob.Compile(p, ':')
			if err != nil {
				return nil, oops.In("access").
					Code("INVALID_PERMISSION_PATTERN").
					With("role", role).
					With("pattern", p).
					Wrap(err)
			}
			perms = append(perms, compiledPermission{pattern: p, glob: g})
		}
		compiled[role] = perms
	}

	s := &Static{roles: compiled, subjects: make(map[string]string)}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultRole != "" {
		if _, ok := s.roles[s.defaultRole]; !ok {
			return nil, oops.In("access").Code("UNKNOWN_ROLE").With("role", s.defaultRole).New("unknown default role")
		}
	}
	return s, nil
}

// Check implements Control.
func (s *Static) Check(_ context.Context, subject, action, resource string) bool {
	if subject == SubjectSystem {
		return true
	}
	if subject == "" {
		return false
	}

	role := s.Role(subject)
	if role == "" {
		slog.Debug("access denied: no role", "subject", subject, "action", action, "resource", resource)
		return false
	}
	requested := action + ":" + resource
	for _, perm := range s.roles[role] {
		if perm.glob.Match(requested) {
			return true
		}
	}
	return false
}

// Assign sets the role of subject.
func (s *Static) Assign(subject, role string) error {
	if subject == "" {
		return oops.In("access").Code("INVALID_SUBJECT").New("subject cannot be empty")
	}
	if _, ok := s.roles[role]; !ok {
		return oops.In("access").Code("UNKNOWN_ROLE").With("role", role).New("unknown role")
	}
	s.mu.Lock()
	s.subjects[subject] = role
	s.mu.Unlock()
	return nil
}

// Revoke removes the explicit role of subject.
func (s *Static) Revoke(subject string) {
	s.mu.Lock()
	delete(s.subjects, subject)
	s.mu.Unlock()
}

// Role returns the effective role of subject.
func (s *Static) Role(subject string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if role, ok := s.subjects[subject]; ok {
		return role
	}
	return s.defaultRole
}

// Roles lists the role names, sorted.
func (s *Static) Roles() []string {
	names := make([]string, 0, len(s.roles))
	for name := range s.roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
