// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

// Package protocol defines the messages exchanged between editing clients
// and the server.
//
// Every frame is an Envelope. Requests carry a client chosen RequestID that
// the matching response echoes. Events carry no RequestID and are delivered
// in commit order per document.
package protocol

import (
	"encoding/json"

	"github.com/samber/oops"
)

// MessageType names an envelope payload.
type MessageType string

// Message types.
const (
	TypeHello     MessageType = "hello"
	TypeWelcome   MessageType = "welcome"
	TypeOpen      MessageType = "open"
	TypeSnapshot  MessageType = "snapshot"
	TypeClose     MessageType = "close"
	TypeClosed    MessageType = "closed"
	TypeCommand   MessageType = "command"
	TypeAck       MessageType = "ack"
	TypeEvent     MessageType = "event"
	TypeError     MessageType = "error"
	TypeCreate    MessageType = "create"
	TypeCreated   MessageType = "created"
	TypeList      MessageType = "list"
	TypeDocuments MessageType = "documents"
)

// Error codes produced by this package.
const (
	CodeMalformed          = "MALFORMED_MESSAGE"
	CodeUnsupportedVersion = "UNSUPPORTED_VERSION"
)

// Envelope frames every message.
type Envelope struct {
	Type       MessageType     `json:"type"`
	RequestID  uint64          `json:"requestId,omitempty"`
	DocumentID string          `json:"documentId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Hello opens a session.
type Hello struct {
	Version string `json:"version"`
	Token   string `json:"token,omitempty"`
}

// Welcome accepts a session.
type Welcome struct {
	Version  string `json:"version"`
	ClientID string `json:"clientId"`
	Subject  string `json:"subject"`
}

// Snapshot is the state of a document when a client opens it. Events with
// Seq greater than Snapshot.Seq follow.
type Snapshot struct {
	DocumentID string            `json:"documentId"`
	Kind       string            `json:"kind"`
	Seq        uint64            `json:"seq"`
	Data       json.RawMessage   `json:"data"`
	Blobs      map[string][]byte `json:"blobs,omitempty"`
}

// Command asks the server to run a document command.
type Command struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Ack confirms a committed command. Its event carries the same Seq.
type Ack struct {
	Seq uint64 `json:"seq"`
}

// Event is a committed command with its server-final arguments.
type Event struct {
	DocumentID string          `json:"documentId"`
	Seq        uint64          `json:"seq"`
	ClientID   string          `json:"clientId,omitempty"`
	Command    string          `json:"command"`
	Result     json.RawMessage `json:"result"`
}

// Error reports a failed request. Message is safe to show to users.
type Error struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Create asks for a new empty document.
type Create struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

// Created answers Create.
type Created struct {
	ID string `json:"id"`
}

// DocumentInfo lists one stored document.
type DocumentInfo struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// Documents answers List.
type Documents struct {
	Documents []DocumentInfo `json:"documents"`
}

// Encode builds an envelope around payload. A nil payload is omitted.
func Encode(t MessageType, requestID uint64, documentID string, payload any) ([]byte, error) {
	env := Envelope{Type: t, RequestID: requestID, DocumentID: documentID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, oops.With("type", string(t)).Wrapf(err, "encode payload")
		}
		env.Payload = data
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, oops.With("type", string(t)).Wrapf(err, "encode envelope")
	}
	return data, nil
}

// Decode parses an envelope.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, oops.Code(CodeMalformed).Wrapf(err, "decode envelope")
	}
	if env.Type == "" {
		return nil, oops.Code(CodeMalformed).Errorf("message has no type")
	}
	return &env, nil
}

// Unmarshal decodes the envelope payload into v.
func (e *Envelope) Unmarshal(v any) error {
	if len(e.Payload) == 0 {
		return oops.Code(CodeMalformed).With("type", string(e.Type)).Errorf("%s message has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return oops.Code(CodeMalformed).With("type", string(e.Type)).Wrapf(err, "decode payload")
	}
	return nil
}
