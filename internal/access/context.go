// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package access

import "context"

type subjectKey struct{}

// WithSubject attaches the authenticated subject to ctx.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFrom returns the subject attached by WithSubject, or "".
func SubjectFrom(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}
