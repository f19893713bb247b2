// Package store holds the Redis-backed web session store.
//
// redis.go -- go-redis client for per-user sessions.
//
// Each session is one Redis hash (session:<id>) whose fields are the session keys
// (oauth_token, oauth_token_secret, authorized_user, ...). Every write refreshes the
// hash TTL, so abandoned handshakes expire on their own.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MGallo-Code/sociallink/internal/social"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces session hashes.
const KeyPrefix = "session:"

// NewRedisClient parses redisURL, connects, and pings.
// Call once at startup from main.go...returned client is safe for concurrent use.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	// Parse redisURL to get option values, if err return it
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Try and test client to ensure it works correctly
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// RedisStore hands out Redis-backed sessions sharing one client.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore wraps rdb. ttl is applied to a session hash on every write.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Session returns a handle on session id. No Redis call is made until it is used.
func (s *RedisStore) Session(id string) social.Session {
	return &RedisSession{rdb: s.rdb, key: KeyPrefix + id, ttl: s.ttl}
}

// Destroy removes the whole session hash.
func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, KeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// CheckHealth pings Redis.
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// RedisSession implements social.Session on one Redis hash.
type RedisSession struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// Get reads one field. A missing field (or missing hash) is (""/false/nil), not an error.
func (s *RedisSession) Get(ctx context.Context, field string) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, s.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("fetching session field %s: %w", field, err)
	}
	return v, true, nil
}

// Set writes one field and refreshes the hash TTL atomically.
func (s *RedisSession) Set(ctx context.Context, field, value string) error {
	// Create pipeline to make sure atomic
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.key, field, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storing session field %s: %w", field, err)
	}
	return nil
}

// Delete removes fields. Removing the last field deletes the hash (Redis semantics).
func (s *RedisSession) Delete(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.rdb.HDel(ctx, s.key, fields...).Err(); err != nil {
		return fmt.Errorf("deleting session fields: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of the session hash. Used by tests and diagnostics.
func (s *RedisSession) TTL(ctx context.Context) (time.Duration, error) {
	return s.rdb.TTL(ctx, s.key).Result()
}
