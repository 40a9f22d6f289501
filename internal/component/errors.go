// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package component

import "github.com/samber/oops"

// Error codes for component failures.
const (
	CodeUnknownCommand       = "UNKNOWN_COMMAND"
	CodeInvalidComponent     = "INVALID_COMPONENT"
	CodeUnknownComponentType = "UNKNOWN_COMPONENT_TYPE"
)

// UnknownCommandError reports a command the component type does not handle.
func UnknownCommandError(typeName, command string) error {
	return oops.Code(CodeUnknownCommand).
		With("component_type", typeName).
		With("command", command).
		Errorf("unknown command %s for component type %s", command, typeName)
}

// InvalidComponentError reports an unknown component id.
func InvalidComponentError(id string) error {
	return oops.Code(CodeInvalidComponent).
		With("component_id", id).
		Errorf("invalid component id: %s", id)
}

// UnknownTypeError reports a component type missing from the registry.
func UnknownTypeError(name string) error {
	return oops.Code(CodeUnknownComponentType).
		With("component_type", name).
		Errorf("unknown component type: %s", name)
}
