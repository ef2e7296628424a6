package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"planningpoker/internal/kv"
)

// ErrSchemaMissing means the kv tables do not exist; migrations were not applied.
var ErrSchemaMissing = errors.New("kv tables missing, apply db migrations")

// undefinedTable is the Postgres SQLSTATE for a missing relation.
const undefinedTable = "42P01"

func wrapErr(op, key string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%s %s: %w: %v", op, key, ErrSchemaMissing, err)
	}
	return fmt.Errorf("%s %s: %w", op, key, err)
}

// PostgresKV implements kv.Store with two tables: kv_entries for whole values
// and kv_set_members for set membership.
type PostgresKV struct {
	db *sql.DB
}

var _ kv.Store = (*PostgresKV)(nil)

func NewPostgresKV(db *sql.DB) *PostgresKV {
	return &PostgresKV{db: db}
}

func (s *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key=$1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("get", key, err)
	}
	return value, nil
}

func (s *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return wrapErr("set", key, err)
	}
	return nil
}

func (s *PostgresKV) Del(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key=$1`, key); err != nil {
		return wrapErr("del", key, err)
	}
	return nil
}

func (s *PostgresKV) AddToSet(ctx context.Context, setKey, member string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_set_members (set_key, member)
		VALUES ($1, $2)
		ON CONFLICT (set_key, member) DO NOTHING
	`, setKey, member)
	if err != nil {
		return wrapErr("sadd", setKey, err)
	}
	return nil
}

func (s *PostgresKV) RemoveFromSet(ctx context.Context, setKey string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_set_members WHERE set_key=$1 AND member = ANY($2)`, setKey, members)
	if err != nil {
		return wrapErr("srem", setKey, err)
	}
	return nil
}

func (s *PostgresKV) ListSet(ctx context.Context, setKey string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT member FROM kv_set_members WHERE set_key=$1 ORDER BY member`, setKey)
	if err != nil {
		return nil, wrapErr("smembers", setKey, err)
	}
	defer rows.Close()

	members := make([]string, 0)
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (s *PostgresKV) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresKV) Close() error {
	return s.db.Close()
}
