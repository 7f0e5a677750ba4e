package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func MustConnect(addr string, db int) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := r.Ping(context.Background()).Err(); err != nil {
		panic(err)
	}
	return r
}

// LockTTL bounds how long one document can stay locked for processing.
const LockTTL = 10 * time.Minute

// AcquireLock takes the per-document processing lock. Returns false when
// another worker already holds it.
func AcquireLock(ctx context.Context, r *redis.Client, key string) bool {
	ok, _ := r.SetNX(ctx, key, "1", LockTTL).Result()
	return ok
}

func ReleaseLock(ctx context.Context, r *redis.Client, key string) {
	r.Del(ctx, key)
}
