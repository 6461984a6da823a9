package testutils

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// DefaultTestRedisAddr is used when TEST_REDIS_ADDR is not set.
const DefaultTestRedisAddr = "localhost:6379"

// testRedisDB keeps test data away from any local development state.
const testRedisDB = 15

// CreateTestRedisClientOrSkip connects to the test Redis and flushes its
// database, skipping the test when Redis is not reachable. The database
// is flushed again and the client closed on cleanup.
func CreateTestRedisClientOrSkip(t *testing.T) redis.UniversalClient {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = DefaultTestRedisAddr
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   testRedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err(), "Failed to flush test Redis database")

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}
