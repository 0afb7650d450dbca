package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const dialTimeout = 3 * time.Second

// NewClient creates the Redis client backing the fast path, the event
// queue transport and the counter cache. An unreachable Redis at startup
// is logged but not fatal: subsequent operation errors drive the circuit
// breaker open and votes take the slow path instead.
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = dialTimeout
	opts.WriteTimeout = dialTimeout

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("redis: initial ping failed, fast path will open the breaker: %v", err)
	} else {
		log.Println("redis: connected")
	}

	return rdb, nil
}
