// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package project_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sceneforge/sceneforge/internal/project"
)

func TestGraph(t *testing.T) {
	g := project.NewGraph()
	g.Add("level", "enemy", "tree")
	g.Add("forest", "tree")

	assert.True(t, g.IsReferenced("tree"))
	assert.False(t, g.IsReferenced("level"))
	assert.Equal(t, []string{"enemy", "tree"}, g.Dependencies("level"))
	assert.Equal(t, []string{"forest", "level"}, g.Referrers("tree"))

	g.Remove("level", "tree")
	assert.Equal(t, []string{"forest"}, g.Referrers("tree"))

	g.Forget("forest")
	assert.False(t, g.IsReferenced("tree"))
	assert.Empty(t, g.Dependencies("forest"))
	assert.True(t, g.IsReferenced("enemy"))
}

func TestGraph_SelfReferenceDoesNotCount(t *testing.T) {
	g := project.NewGraph()
	g.Add("a", "a")
	assert.False(t, g.IsReferenced("a"))
	g.Remove("a", "missing")
	assert.Equal(t, []string{"a"}, g.Dependencies("a"))
}
