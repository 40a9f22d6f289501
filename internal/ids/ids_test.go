// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Monotonic(t *testing.T) {
	prev := New()
	for range 100 {
		next := New()
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestParse(t *testing.T) {
	id := NewULID()
	parsed, err := Parse(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = Parse("not-a-ulid")
	assert.Error(t, err)
}

func TestSequence(t *testing.T) {
	gen := Sequence("n")
	assert.Equal(t, "n1", gen())
	assert.Equal(t, "n2", gen())
	for range 8 {
		gen()
	}
	assert.Equal(t, "n11", gen())
}
