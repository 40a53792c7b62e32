// Package postgres implements docstore.Store on a single Postgres JSONB table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/dining-menu-sync/internal/docstore"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for documents.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store keeps every document as one JSONB row keyed by its path.
type Store struct {
	pool  pool
	table string
	now   func() time.Time
}

// New creates a pool from cfg and returns a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
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
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewWithPool(p, cfg.Table)
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "documents"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: p, table: table, now: func() time.Time { return time.Now().UTC() }}, nil
}

// EnsureSchema creates the documents table when it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	path TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	data JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, classify(err))
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Get reads one document.
func (s *Store) Get(ctx context.Context, ref docstore.Ref) (docstore.Fields, error) {
	var raw []byte
	query := fmt.Sprintf(`SELECT data FROM %s WHERE path = $1`, s.table)
	if err := s.pool.QueryRow(ctx, query, ref.Path()).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get %s: %w", ref, docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", ref, classify(err))
	}
	return decode(raw)
}

// SetMerge applies a single merge write.
func (s *Store) SetMerge(ctx context.Context, ref docstore.Ref, fields docstore.Fields) error {
	b := s.NewBatch()
	b.SetMerge(ref, fields)
	return b.Commit(ctx)
}

// NewBatch starts an empty batch; a batch commits as one transaction.
func (s *Store) NewBatch() docstore.Batch {
	return &batch{store: s}
}

// DeleteCollection deletes every document whose path lies under collection,
// sub-collections included.
func (s *Store) DeleteCollection(ctx context.Context, collection string) (int, error) {
	collection = strings.Trim(collection, "/")
	if collection == "" || strings.ContainsAny(collection, `%_\`) {
		return 0, fmt.Errorf("invalid collection %q", collection)
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE path LIKE $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, collection+"/%")
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", collection, classify(err))
	}
	return int(tag.RowsAffected()), nil
}

type write struct {
	ref    docstore.Ref
	fields docstore.Fields
}

type batch struct {
	store  *Store
	writes []write
}

func (b *batch) SetMerge(ref docstore.Ref, fields docstore.Fields) {
	b.writes = append(b.writes, write{ref: ref, fields: fields})
}

func (b *batch) Len() int { return len(b.writes) }

// Commit locks each touched row, merges in memory and upserts the results.
func (b *batch) Commit(ctx context.Context) (err error) {
	if len(b.writes) == 0 {
		return nil
	}
	s := b.store
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", classify(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := s.now()
	staged := make(map[string]docstore.Fields)
	var order []docstore.Ref
	for _, w := range b.writes {
		current, ok := staged[w.ref.Path()]
		if !ok {
			current, err = s.lockedRead(ctx, tx, w.ref)
			if err != nil {
				return err
			}
			order = append(order, w.ref)
		}
		merged, applyErr := docstore.Apply(current, w.fields, now)
		if applyErr != nil {
			return fmt.Errorf("apply %s: %w", w.ref, applyErr)
		}
		staged[w.ref.Path()] = merged
	}

	upsert := fmt.Sprintf(`
INSERT INTO %s (path, collection, data, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (path) DO UPDATE
SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`, s.table)
	for _, ref := range order {
		data, marshalErr := json.Marshal(staged[ref.Path()])
		if marshalErr != nil {
			return fmt.Errorf("marshal %s: %w", ref, marshalErr)
		}
		if _, err = tx.Exec(ctx, upsert, ref.Path(), ref.Collection(), data, now); err != nil {
			return fmt.Errorf("upsert %s: %w", ref, classify(err))
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch of %d writes: %w", len(b.writes), classify(err))
	}
	return nil
}

func (s *Store) lockedRead(ctx context.Context, tx pgx.Tx, ref docstore.Ref) (docstore.Fields, error) {
	var raw []byte
	query := fmt.Sprintf(`SELECT data FROM %s WHERE path = $1 FOR UPDATE`, s.table)
	if err := tx.QueryRow(ctx, query, ref.Path()).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return docstore.Fields{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", ref, classify(err))
	}
	return decode(raw)
}

func decode(raw []byte) (docstore.Fields, error) {
	fields := docstore.Fields{}
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return fields, nil
}

// classify maps SQLSTATE class 53 (insufficient resources) and
// too_many_connections onto docstore.ErrQuotaExceeded.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "53") {
		return fmt.Errorf("%w: %w", docstore.ErrQuotaExceeded, err)
	}
	return err
}
