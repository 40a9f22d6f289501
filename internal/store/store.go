// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package store persists documents and their side payloads. Documents are
// stored in their encoded JSON form together with their kind; migrating
// old formats happens when they are decoded, not here.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/samber/oops"
)

// Error codes returned by every Store.
const (
	CodeNotFound = "DOCUMENT_NOT_FOUND"
	CodeExists   = "DOCUMENT_EXISTS"
)

// Record is one stored document.
type Record struct {
	ID        string
	Kind      string
	Data      json.RawMessage
	UpdatedAt time.Time
}

// Info describes a stored document without its payload.
type Info struct {
	ID        string    `json:"id" yaml:"id"`
	Kind      string    `json:"kind" yaml:"kind"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Store is implemented by every backend.
type Store interface {
	// Get loads a document. Unknown ids fail with CodeNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	// Create stores a new document. Existing ids fail with CodeExists.
	Create(ctx context.Context, rec *Record) error
	// Put creates or replaces a document.
	Put(ctx context.Context, rec *Record) error
	// Delete removes a document and its blobs.
	Delete(ctx context.Context, id string) error
	// List returns every document sorted by id.
	List(ctx context.Context) ([]Info, error)
	// Blobs loads every side payload of a document.
	Blobs(ctx context.Context, id string) (map[string][]byte, error)
	// PutBlob stores one side payload of an existing document.
	PutBlob(ctx context.Context, id, name string, data []byte) error
	Close() error
}

// NotFoundError reports an unknown document.
func NotFoundError(id string) error {
	return oops.Code(CodeNotFound).With("document_id", id).Errorf("document %s not found", id)
}

// ExistsError reports a duplicate document id.
func ExistsError(id string) error {
	return oops.Code(CodeExists).With("document_id", id).Errorf("document %s already exists", id)
}
