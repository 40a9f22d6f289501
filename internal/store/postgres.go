// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SceneForge Contributors

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// poolIface is the subset of pgxpool.Pool used here; pgxmock implements it.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres stores documents in PostgreSQL. The schema is managed by
// Migrator.
type Postgres struct {
	pool poolIface
}

// NewPostgres connects to dsn, retrying with backoff until the database
// answers or ctx ends.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("driver", "postgres").Wrap(err)
	}

	backoff := retry.WithMaxRetries(8, retry.NewExponential(250*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").With("driver", "postgres").Wrap(err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool poolIface) *Postgres {
	return &Postgres{pool: pool}
}

// Get implements Store.
func (s *Postgres) Get(ctx context.Context, id string) (*Record, error) {
	rec := &Record{ID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT kind, data, updated_at FROM documents WHERE id = $1`, id).
		Scan(&rec.Kind, &rec.Data, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundError(id)
	}
	if err != nil {
		return nil, oops.With("operation", "get document").With("document_id", id).Wrap(err)
	}
	return rec, nil
}

// Create implements Store.
func (s *Postgres) Create(ctx context.Context, rec *Record) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO documents (id, kind, data) VALUES ($1, $2, $3) RETURNING updated_at`,
		rec.ID, rec.Kind, rec.Data).Scan(&rec.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ExistsError(rec.ID)
	}
	if err != nil {
		return oops.With("operation", "create document").With("document_id", rec.ID).Wrap(err)
	}
	return nil
}

// Put implements Store.
func (s *Postgres) Put(ctx context.Context, rec *Record) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO documents (id, kind, data) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET kind = $2, data = $3, updated_at = now()
		 RETURNING updated_at`,
		rec.ID, rec.Kind, rec.Data).Scan(&rec.UpdatedAt)
	if err != nil {
		return oops.With("operation", "put document").With("document_id", rec.ID).Wrap(err)
	}
	return nil
}

// Delete implements Store.
func (s *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return oops.With("operation", "delete document").With("document_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError(id)
	}
	return nil
}

// List implements Store.
func (s *Postgres) List(ctx context.Context) ([]Info, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, kind, updated_at FROM documents ORDER BY id`)
	if err != nil {
		return nil, oops.With("operation", "list documents").Wrap(err)
	}
	defer rows.Close()

	var out []Info
	for rows.Next() {
		var info Info
		if err := rows.Scan(&info.ID, &info.Kind, &info.UpdatedAt); err != nil {
			return nil, oops.With("operation", "scan document row").Wrap(err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate documents").Wrap(err)
	}
	return out, nil
}

// Blobs implements Store.
func (s *Postgres) Blobs(ctx context.Context, id string) (map[string][]byte, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT name, data FROM document_blobs WHERE document_id = $1`, id)
	if err != nil {
		return nil, oops.With("operation", "get blobs").With("document_id", id).Wrap(err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var name string
		var data []byte
		if err := rows.Scan(&name, &data); err != nil {
			return nil, oops.With("operation", "scan blob row").Wrap(err)
		}
		out[name] = data
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate blobs").Wrap(err)
	}
	return out, nil
}

// PutBlob implements Store.
func (s *Postgres) PutBlob(ctx context.Context, id, name string, data []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO document_blobs (document_id, name, data) VALUES ($1, $2, $3)
		 ON CONFLICT (document_id, name) DO UPDATE SET data = $3, updated_at = now()`,
		id, name, data)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		return NotFoundError(id)
	}
	if err != nil {
		return oops.With("operation", "put blob").With("document_id", id).With("blob", name).Wrap(err)
	}
	return nil
}

// Close implements Store.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
