// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package document

import (
	"github.com/samber/oops"

	"github.com/sceneforge/sceneforge/internal/component"
)

// UnknownCommandError reports a command the document kind does not handle.
func UnknownCommandError(kind, command string) error {
	return oops.Code(component.CodeUnknownCommand).
		With("kind", kind).
		With("command", command).
		Errorf("unknown command %s for %s documents", command, kind)
}
