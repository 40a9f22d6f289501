// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package protocol

import (
	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
)

// Version is the protocol version spoken by this build.
const Version = "1.0.0"

// Compatible is the range of client versions the server accepts.
const Compatible = "^1.0.0"

// Negotiate checks a client version against Compatible.
func Negotiate(clientVersion string) (*semver.Version, error) {
	v, err := semver.NewVersion(clientVersion)
	if err != nil {
		return nil, oops.Code(CodeUnsupportedVersion).
			With("client_version", clientVersion).
			Wrapf(err, "invalid protocol version")
	}
	c, err := semver.NewConstraint(Compatible)
	if err != nil {
		return nil, oops.Wrapf(err, "parse compatibility range")
	}
	if !c.Check(v) {
		return nil, oops.Code(CodeUnsupportedVersion).
			With("client_version", clientVersion).
			With("server_version", Version).
			Errorf("protocol version %s is not supported, server speaks %s", clientVersion, Version)
	}
	return v, nil
}
