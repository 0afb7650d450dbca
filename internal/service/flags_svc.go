package service

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chiefnavajo/aimoviez-sub010/internal/cache"
	"github.com/chiefnavajo/aimoviez-sub010/internal/repository"
)

// FlagFastPath gates the cache-backed vote path.
const FlagFastPath = "vote_fast_path"

// FlagSnapshot is resolved once per request or job invocation and passed
// explicitly, instead of ad-hoc flag lookups scattered through handlers.
type FlagSnapshot struct {
	FastPath bool
}

// FlagService reads feature flags through a short-TTL cache.
type FlagService struct {
	rdb  *redis.Client
	repo *repository.FlagRepo
	ttl  time.Duration
}

func NewFlagService(rdb *redis.Client, repo *repository.FlagRepo, ttl time.Duration) *FlagService {
	return &FlagService{rdb: rdb, repo: repo, ttl: ttl}
}

// Resolve returns the flag snapshot for this invocation. Lookup failures
// disable the fast path: the slow path works without any cache.
func (f *FlagService) Resolve(ctx context.Context) FlagSnapshot {
	return FlagSnapshot{FastPath: f.enabled(ctx, FlagFastPath)}
}

func (f *FlagService) enabled(ctx context.Context, name string) bool {
	key := cache.FlagKey(name)

	if v, err := f.rdb.Get(ctx, key).Result(); err == nil {
		return v == "1"
	}

	enabled, err := f.repo.IsEnabled(ctx, name)
	if err != nil {
		log.Printf("flags: lookup failed for %s, disabling: %v", name, err)
		return false
	}

	v := "0"
	if enabled {
		v = "1"
	}
	if err := f.rdb.Set(ctx, key, v, f.ttl).Err(); err != nil {
		log.Printf("flags: cache write failed for %s: %v", name, err)
	}

	return enabled
}
