// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package access decides which subjects may read or edit documents.
//
// Parameters use prefixed strings:
//   - subject: "user:alice", "token:ci", "system"
//   - action: "read", "write", "create", "delete"
//   - resource: "document:<kind>:<id>"
package access

import (
	"context"
	"strings"
)

// Actions checked by the server.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionCreate = "create"
	ActionDelete = "delete"
)

// CodePermissionDenied is returned when a check fails.
const CodePermissionDenied = "PERMISSION_DENIED"

// SubjectSystem bypasses every check.
const SubjectSystem = "system"

// Control checks permissions.
type Control interface {
	// Check reports whether subject may perform action on resource. Unknown
	// subjects are denied.
	Check(ctx context.Context, subject, action, resource string) bool
}

// Resource names a document for Check.
func Resource(kind, id string) string {
	return "document:" + kind + ":" + id
}

// ParseSubject splits a subject into prefix and id. "system" has no id;
// unprefixed subjects return an empty prefix.
func ParseSubject(subject string) (prefix, id string) {
	if subject == SubjectSystem {
		return SubjectSystem, ""
	}
	prefix, id, ok := strings.Cut(subject, ":")
	if !ok {
		return "", subject
	}
	return prefix, id
}

// AllowAll grants everything. It backs local tools and tests.
type AllowAll struct{}

// Check implements Control.
func (AllowAll) Check(context.Context, string, string, string) bool { return true }
