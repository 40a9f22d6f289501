// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultRedisPrefix namespaces every key written by Redis.
const DefaultRedisPrefix = "sceneforge:"

// Redis stores each document as a hash with a sibling hash of blobs and a
// sorted set indexing ids.
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *Redis) { s.prefix = prefix }
}

// NewRedis connects to addr.
func NewRedis(addr string, opts ...RedisOption) *Redis {
	return NewRedisFromClient(redis.NewClient(&redis.Options{Addr: addr}), opts...)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, opts ...RedisOption) *Redis {
	s := &Redis{client: client, prefix: DefaultRedisPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Redis) docKey(id string) string  { return s.prefix + "doc:" + id }
func (s *Redis) blobKey(id string) string { return s.prefix + "blobs:" + id }
func (s *Redis) indexKey() string         { return s.prefix + "index" }

// Get implements Store.
func (s *Redis) Get(ctx context.Context, id string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, s.docKey(id)).Result()
	if err != nil {
		return nil, oops.With("operation", "get document").With("document_id", id).Wrap(err)
	}
	if len(fields) == 0 {
		return nil, NotFoundError(id)
	}
	rec := &Record{ID: id, Kind: fields["kind"], Data: []byte(fields["data"])}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated"]); err != nil {
		return nil, oops.With("operation", "get document").With("document_id", id).Wrapf(err, "corrupt timestamp")
	}
	return rec, nil
}

// Create implements Store.
func (s *Redis) Create(ctx context.Context, rec *Record) error {
	key := s.docKey(rec.ID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ExistsError(rec.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, rec)
			return nil
		})
		return err
	}, key)
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.TxFailedErr) {
		return ExistsError(rec.ID)
	}
	var oopsErr oops.OopsError
	if errors.As(err, &oopsErr) && oopsErr.Code() == CodeExists {
		return err
	}
	return oops.With("operation", "create document").With("document_id", rec.ID).Wrap(err)
}

// Put implements Store.
func (s *Redis) Put(ctx context.Context, rec *Record) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.write(ctx, pipe, rec)
		return nil
	})
	if err != nil {
		return oops.With("operation", "put document").With("document_id", rec.ID).Wrap(err)
	}
	return nil
}

func (s *Redis) write(ctx context.Context, pipe redis.Pipeliner, rec *Record) {
	rec.UpdatedAt = s.now().UTC()
	pipe.HSet(ctx, s.docKey(rec.ID),
		"kind", rec.Kind,
		"data", string(rec.Data),
		"updated", rec.UpdatedAt.Format(time.RFC3339Nano),
	)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: 0, Member: rec.ID})
}

// Delete implements Store.
func (s *Redis) Delete(ctx context.Context, id string) error {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, s.docKey(id))
		pipe.Del(ctx, s.blobKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return oops.With("operation", "delete document").With("document_id", id).Wrap(err)
	}
	if removed.Val() == 0 {
		return NotFoundError(id)
	}
	return nil
}

// List implements Store.
func (s *Redis) List(ctx context.Context) ([]Info, error) {
	ids, err := s.client.ZRangeByLex(ctx, s.indexKey(), &redis.ZRangeBy{Min: "-", Max: "+"}).Result()
	if err != nil {
		return nil, oops.With("operation", "list documents").Wrap(err)
	}
	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			var oopsErr oops.OopsError
			if errors.As(err, &oopsErr) && oopsErr.Code() == CodeNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, Info{ID: rec.ID, Kind: rec.Kind, UpdatedAt: rec.UpdatedAt})
	}
	return out, nil
}

// Blobs implements Store.
func (s *Redis) Blobs(ctx context.Context, id string) (map[string][]byte, error) {
	n, err := s.client.Exists(ctx, s.docKey(id)).Result()
	if err != nil {
		return nil, oops.With("operation", "get blobs").With("document_id", id).Wrap(err)
	}
	if n == 0 {
		return nil, NotFoundError(id)
	}
	fields, err := s.client.HGetAll(ctx, s.blobKey(id)).Result()
	if err != nil {
		return nil, oops.With("operation", "get blobs").With("document_id", id).Wrap(err)
	}
	out := make(map[string][]byte, len(fields))
	for name, data := range fields {
		out[name] = []byte(data)
	}
	return out, nil
}

// PutBlob implements Store.
func (s *Redis) PutBlob(ctx context.Context, id, name string, data []byte) error {
	n, err := s.client.Exists(ctx, s.docKey(id)).Result()
	if err != nil {
		return oops.With("operation", "put blob").With("document_id", id).Wrap(err)
	}
	if n == 0 {
		return NotFoundError(id)
	}
	if err := s.client.HSet(ctx, s.blobKey(id), name, data).Err(); err != nil {
		return oops.With("operation", "put blob").With("document_id", id).With("blob", name).Wrap(err)
	}
	return nil
}

// Close implements Store.
func (s *Redis) Close() error {
	return s.client.Close()
}
