// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package errutil

import "github.com/samber/oops"

// Code returns the oops code carried by err, or "" when there is none.
func Code(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		code, _ := oopsErr.Code().(string)
		return code
	}
	return ""
}
