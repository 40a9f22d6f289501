// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package scene

import "github.com/samber/oops"

// Error codes for scene rules.
const (
	CodeCyclicReference      = "CYCLIC_REFERENCE"
	CodeStructuralConstraint = "STRUCTURAL_CONSTRAINT"
)

// CyclicReferenceError reports a prefab reference that would loop back to
// the scene being edited.
func CyclicReferenceError(sceneID, targetID string) error {
	return oops.Code(CodeCyclicReference).
		With("scene_id", sceneID).
		With("target_id", targetID).
		Errorf("using %s as a prefab in %s would create a cycle", targetID, sceneID)
}

// StructuralConstraintError reports a change the scene's structure forbids.
func StructuralConstraintError(sceneID, reason string) error {
	return oops.Code(CodeStructuralConstraint).
		With("scene_id", sceneID).
		With("reason", reason).
		Errorf("%s", reason)
}
