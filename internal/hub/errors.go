// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package hub

import (
	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/access"
)

// Error codes for hub failures.
const (
	CodeUnknownKind = "UNKNOWN_KIND"
	CodeClosed      = "HUB_CLOSED"
	CodeInUse       = "DOCUMENT_IN_USE"
)

// ErrPermissionDenied reports a failed access check.
func ErrPermissionDenied(subject, action, resource string) error {
	return oops.Code(access.CodePermissionDenied).
		With("subject", subject).
		With("action", action).
		With("resource", resource).
		Errorf("permission denied")
}

// ErrUnknownKind reports a document kind no registered Kind handles.
func ErrUnknownKind(kind string) error {
	return oops.Code(CodeUnknownKind).With("kind", kind).Errorf("unknown document kind: %s", kind)
}

// ErrClosed reports use of a closed hub.
func ErrClosed() error {
	return oops.Code(CodeClosed).Errorf("hub is closed")
}

// ErrInUse reports an operation that needs the document to be idle.
func ErrInUse(id, reason string) error {
	return oops.Code(CodeInUse).With("document_id", id).With("reason", reason).Errorf("document %s is in use: %s", id, reason)
}
