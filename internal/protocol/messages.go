// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package protocol

import (
	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/access"
	"github.com/sceneforge/sceneforge/internal/component"
	"github.com/sceneforge/sceneforge/internal/schema"
	"github.com/sceneforge/sceneforge/internal/scene"
	"github.com/sceneforge/sceneforge/internal/store"
	"github.com/sceneforge/sceneforge/internal/tree"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

const fallbackMessage = "Something went wrong. Try again."

// ErrorFor converts err to a wire error with a user-facing message.
func ErrorFor(err error) Error {
	return Error{Code: errutil.Code(err), Message: ClientMessage(err)}
}

// ClientMessage extracts a user-facing message from an error. Internal
// details never leak; unknown errors get a generic message.
func ClientMessage(err error) string {
	if err == nil {
		return fallbackMessage
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return fallbackMessage
	}

	switch oopsErr.Code() {
	case tree.CodeInvalidNode:
		return "That node no longer exists."
	case tree.CodeInvalidParent:
		return "A node cannot be moved there."
	case schema.CodeSchemaViolation:
		return "Invalid value: " + oopsErr.Error()
	case component.CodeUnknownCommand:
		return "That command is not available for this document."
	case component.CodeInvalidComponent:
		return "That component no longer exists."
	case component.CodeUnknownComponentType:
		return "Unknown component type."
	case scene.CodeCyclicReference:
		return "A scene cannot contain itself as a prefab."
	case scene.CodeStructuralConstraint:
		if reason, ok := oopsErr.Context()["reason"].(string); ok && reason != "" {
			return "Not allowed: " + reason + "."
		}
		return "That change would break the document structure."
	case access.CodePermissionDenied:
		return "You don't have permission to do that."
	case store.CodeNotFound:
		return "Document not found."
	case store.CodeExists:
		return "A document with that id already exists."
	case CodeMalformed:
		return "Malformed message."
	case CodeUnsupportedVersion:
		return "Your client is not compatible with this server. Please update."
	default:
		return fallbackMessage
	}
}
