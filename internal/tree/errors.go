// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package tree

import "github.com/samber/oops"

// Error codes for tree store failures.
const (
	CodeInvalidNode   = "INVALID_NODE"
	CodeInvalidParent = "INVALID_PARENT"
)

// InvalidNodeError reports a node id that does not resolve in the store.
func InvalidNodeError(id string) error {
	return oops.Code(CodeInvalidNode).
		With("node_id", id).
		Errorf("invalid node id: %s", id)
}

// InvalidParentError reports a parent that is unknown or structurally
// disallowed.
func InvalidParentError(parentID, reason string) error {
	return oops.Code(CodeInvalidParent).
		With("parent_id", parentID).
		With("reason", reason).
		Errorf("invalid parent %s: %s", parentID, reason)
}
