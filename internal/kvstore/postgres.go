package kvstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      JSONB NOT NULL,
	expires_at TIMESTAMPTZ
)`

// Postgres keeps every key in one kv_store table. Values must be valid JSON.
type Postgres struct {
	DB *pgxpool.Pool
}

func NewPostgres(ctx context.Context, db *pgxpool.Pool) (*Postgres, error) {
	if _, err := db.Exec(ctx, schema); err != nil {
		return nil, err
	}
	return &Postgres{DB: db}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := p.DB.QueryRow(ctx, `
		SELECT value FROM kv_store
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := p.DB.Exec(ctx, `
		INSERT INTO kv_store (key, value, expires_at) VALUES ($1, $2::jsonb, NULL)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = NULL`,
		key, string(value))
	return err
}

// SetNX also takes over a key whose previous value has expired.
func (p *Postgres) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var expires *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expires = &t
	}
	tag, err := p.DB.Exec(ctx, `
		INSERT INTO kv_store (key, value, expires_at) VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
		WHERE kv_store.expires_at IS NOT NULL AND kv_store.expires_at <= now()`,
		key, string(value), expires)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := p.DB.Exec(ctx, `DELETE FROM kv_store WHERE key = ANY($1)`, keys)
	return err
}

func (p *Postgres) GetByPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := p.DB.Query(ctx, `
		SELECT key, value FROM kv_store
		WHERE key LIKE $1 ESCAPE '\' AND (expires_at IS NULL OR expires_at > now())
		ORDER BY key COLLATE "C"`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error { return p.DB.Ping(ctx) }

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
