// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package ids generates the identifiers assigned by the server to documents,
// nodes and components.
package ids

import (
	"crypto/rand"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewULID generates a new monotonic ULID.
func NewULID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// New returns a new identifier in its canonical string form.
func New() string {
	return NewULID().String()
}

// Parse parses a ULID string.
func Parse(s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, oops.With("id", s).Wrapf(err, "invalid ULID")
	}
	return id, nil
}

// Generator produces identifiers. Stores accept one so tests can inject
// deterministic sequences.
type Generator func() string

// Sequence returns a Generator yielding prefix1, prefix2, ... in order.
func Sequence(prefix string) Generator {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + strconv.Itoa(n)
	}
}
