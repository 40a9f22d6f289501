// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package schema

import (
	"fmt"

	"github.com/samber/oops"
)

// CodeSchemaViolation is the oops code carried by every validation failure.
const CodeSchemaViolation = "SCHEMA_VIOLATION"

// Violation describes which rule rejected which value.
type Violation struct {
	Path    string
	Rule    Type
	Value   any
	Message string
}

func (v *Violation) Error() string {
	if v.Path == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

func violation(path string, rule *Rule, value any, message string) error {
	v := &Violation{Path: path, Value: value, Message: message}
	if rule != nil {
		v.Rule = rule.Type
	}
	return oops.Code(CodeSchemaViolation).
		With("path", path).
		With("rule", string(v.Rule)).
		Wrap(v)
}
