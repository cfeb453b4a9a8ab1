package kvstore

import (
	"context"
	"fmt"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Open builds the backend named by KV_BACKEND. The returned func releases
// its connections.
func Open(ctx context.Context, backend, redisAddr, postgresDSN string) (Store, func(), error) {
	switch backend {
	case BackendMemory:
		return NewMemory(), func() {}, nil
	case BackendRedis, "":
		rdb := NewRedisClient(redisAddr)
		s := NewRedis(rdb)
		if err := s.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", redisAddr, err)
		}
		return s, func() { _ = rdb.Close() }, nil
	case BackendPostgres:
		db, err := Connect(ctx, postgresDSN)
		if err != nil {
			return nil, nil, err
		}
		s, err := NewPostgres(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return s, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown kv backend %q", backend)
	}
}
