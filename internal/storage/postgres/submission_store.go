// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/plotter-web/internal/gcode"
	"github.com/JakeFAU/plotter-web/internal/plotter"
)

const defaultTable = "submissions"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// SubmissionStoreConfig controls the Postgres connection pool used for submission rows.
type SubmissionStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// SubmissionStore reads and writes submission rows in Postgres.
type SubmissionStore struct {
	pool  pool
	table string
}

// NewSubmissionStore connects to Postgres using cfg.
func NewSubmissionStore(ctx context.Context, cfg SubmissionStoreConfig) (*SubmissionStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &SubmissionStore{pool: p, table: table}, nil
}

// NewSubmissionStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewSubmissionStoreWithPool(p pool, table string) (*SubmissionStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &SubmissionStore{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		return defaultTable, nil
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *SubmissionStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *SubmissionStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the submission table when it does not exist yet.
func (s *SubmissionStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            TEXT PRIMARY KEY,
	submitted_at  TIMESTAMPTZ NOT NULL,
	content_hash  TEXT NOT NULL,
	blob_uri      TEXT NOT NULL DEFAULT '',
	line_count    INTEGER NOT NULL,
	command_count INTEGER NOT NULL,
	bounds        JSONB,
	preview       TEXT NOT NULL,
	remote_addr   TEXT NOT NULL DEFAULT ''
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// CreateSubmission inserts a submission row.
func (s *SubmissionStore) CreateSubmission(ctx context.Context, sub plotter.Submission) error {
	if sub.ID == "" {
		return fmt.Errorf("submission id is required")
	}
	var bounds []byte
	if sub.Bounds != nil {
		var err error
		if bounds, err = json.Marshal(sub.Bounds); err != nil {
			return fmt.Errorf("marshal bounds: %w", err)
		}
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	submitted_at,
	content_hash,
	blob_uri,
	line_count,
	command_count,
	bounds,
	preview,
	remote_addr
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, s.table)

	args := []any{
		sub.ID,
		sub.SubmittedAt,
		sub.ContentHash,
		sub.BlobURI,
		sub.LineCount,
		sub.CommandCount,
		bounds,
		sub.Preview,
		sub.RemoteAddr,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// GetSubmission loads a submission by ID. Missing rows yield plotter.ErrNotFound.
func (s *SubmissionStore) GetSubmission(ctx context.Context, id string) (plotter.Submission, error) {
	query := fmt.Sprintf(`
SELECT id, submitted_at, content_hash, blob_uri, line_count, command_count, bounds, preview, remote_addr
FROM %s
WHERE id = $1`, s.table)

	var (
		sub    plotter.Submission
		bounds []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&sub.ID,
		&sub.SubmittedAt,
		&sub.ContentHash,
		&sub.BlobURI,
		&sub.LineCount,
		&sub.CommandCount,
		&bounds,
		&sub.Preview,
		&sub.RemoteAddr,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return plotter.Submission{}, fmt.Errorf("get submission %s: %w", id, plotter.ErrNotFound)
	}
	if err != nil {
		return plotter.Submission{}, fmt.Errorf("select submission: %w", err)
	}
	if len(bounds) > 0 {
		var box gcode.BoundingBox
		if err := json.Unmarshal(bounds, &box); err != nil {
			return plotter.Submission{}, fmt.Errorf("unmarshal bounds: %w", err)
		}
		sub.Bounds = &box
	}
	return sub, nil
}
