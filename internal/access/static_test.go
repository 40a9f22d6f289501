// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package access_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sceneforge/sceneforge/internal/access"
	"github.com/sceneforge/sceneforge/pkg/errutil"
)

func TestStatic_Check(t *testing.T) {
	ac, err := access.NewStatic(map[string][]string{
		"viewer":       {"read:**"},
		"editor":       {"read:**", "write:**"},
		"scene-artist": {"read:**", "write:document:scene:*"},
	})
	require.NoError(t, err)
	require.NoError(t, ac.Assign("user:vera", "viewer"))
	require.NoError(t, ac.Assign("user:eli", "editor"))
	require.NoError(t, ac.Assign("user:sam", "scene-artist"))

	scene := access.Resource("scene", "01ABC")
	model := access.Resource("cubicModel", "01XYZ")

	tests := []struct {
		name     string
		subject  string
		action   string
		resource string
		want     bool
	}{
		{"system bypasses", access.SubjectSystem, access.ActionDelete, scene, true},
		{"empty subject denied", "", access.ActionRead, scene, false},
		{"unknown subject denied", "user:nobody", access.ActionRead, scene, false},
		{"viewer reads", "user:vera", access.ActionRead, scene, true},
		{"viewer cannot write", "user:vera", access.ActionWrite, scene, false},
		{"editor writes", "user:eli", access.ActionWrite, model, true},
		{"editor cannot delete", "user:eli", access.ActionDelete, model, false},
		{"kind scoped write", "user:sam", access.ActionWrite, scene, true},
		{"kind scoped write elsewhere", "user:sam", access.ActionWrite, model, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ac.Check(context.Background(), tt.subject, tt.action, tt.resource))
		})
	}
}

func TestStatic_DefaultRole(t *testing.T) {
	ac, err := access.NewStatic(access.DefaultRoles(), access.WithDefaultRole("viewer"))
	require.NoError(t, err)

	res := access.Resource("scene", "s1")
	assert.True(t, ac.Check(context.Background(), "user:anyone", access.ActionRead, res))
	assert.False(t, ac.Check(context.Background(), "user:anyone", access.ActionWrite, res))

	require.NoError(t, ac.Assign("user:anyone", "admin"))
	assert.True(t, ac.Check(context.Background(), "user:anyone", access.ActionDelete, res))
	ac.Revoke("user:anyone")
	assert.Equal(t, "viewer", ac.Role("user:anyone"))
}

func TestStatic_Errors(t *testing.T) {
	_, err := access.NewStatic(map[string][]string{"bad": {"read:[unclosed"}})
	errutil.AssertErrorCode(t, err, "INVALID_PERMISSION_PATTERN")

	_, err = access.NewStatic(access.DefaultRoles(), access.WithDefaultRole("ghost"))
	errutil.AssertErrorCode(t, err, "UNKNOWN_ROLE")

	ac, err := access.NewStatic(access.DefaultRoles())
	require.NoError(t, err)
	errutil.AssertErrorCode(t, ac.Assign("", "viewer"), "INVALID_SUBJECT")
	errutil.AssertErrorCode(t, ac.Assign("user:x", "ghost"), "UNKNOWN_ROLE")
	assert.Equal(t, []string{"admin", "editor", "viewer"}, ac.Roles())
}

func TestParseSubject(t *testing.T) {
	p, id := access.ParseSubject("user:alice")
	assert.Equal(t, "user", p)
	assert.Equal(t, "alice", id)

	p, id = access.ParseSubject(access.SubjectSystem)
	assert.Equal(t, access.SubjectSystem, p)
	assert.Empty(t, id)

	p, id = access.ParseSubject("bare")
	assert.Empty(t, p)
	assert.Equal(t, "bare", id)
}

func TestSubjectContext(t *testing.T) {
	ctx := access.WithSubject(context.Background(), "user:alice")
	assert.Equal(t, "user:alice", access.SubjectFrom(ctx))
	assert.Empty(t, access.SubjectFrom(context.Background()))
}
