package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Shared test connection for the store package; nil when Redis is unreachable.
var testRDB *redis.Client

// TestMain connects to Redis, runs all store tests, tears down.
// REDIS_TEST_URL overrides the default local test instance.
func TestMain(m *testing.M) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		url = "redis://localhost:6380"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	rdb, err := NewRedisClient(ctx, url)
	cancel()
	if err != nil {
		// Tests needing Redis skip themselves via requireRedis.
		fmt.Fprintf(os.Stderr, "redis unavailable at %s, skipping store tests: %v\n", url, err)
	} else {
		testRDB = rdb
	}

	code := m.Run()
	// Couldn't defer close bc Exit(), call here to close connection
	if testRDB != nil {
		testRDB.Close()
	}
	os.Exit(code)
}

// --- Helpers ---

// requireRedis skips t when no test Redis is available.
func requireRedis(t *testing.T) {
	t.Helper()
	if testRDB == nil {
		t.Skip("redis not available")
	}
}

// cleanupSession deletes the hash for id at test end.
func cleanupSession(t *testing.T, id string) {
	t.Helper()
	t.Cleanup(func() {
		testRDB.Del(context.Background(), KeyPrefix+id)
	})
}
