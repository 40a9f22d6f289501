// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package store

import (
	"context"

	"github.com/samber/oops"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string
	DSN         string
	RedisAddr   string
	RedisPrefix string
}

// Open creates the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverPostgres:
		return NewPostgres(ctx, opts.DSN)
	case DriverRedis:
		var ropts []RedisOption
		if opts.RedisPrefix != "" {
			ropts = append(ropts, WithRedisPrefix(opts.RedisPrefix))
		}
		return NewRedis(opts.RedisAddr, ropts...), nil
	default:
		return nil, oops.Code("INVALID_CONFIG").With("driver", opts.Driver).Errorf("unknown store driver %q", opts.Driver)
	}
}
