// Package musicprefs stores per-guild music preferences, currently just
// the preferred search engine.
package musicprefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const prefsKeyPrefix = "music:prefs:"

// Prefs is the per-guild preference blob.
type Prefs struct {
	SearchEngine string `json:"search_engine,omitempty"`
}

// Repository stores guild music preferences.
type Repository interface {
	// SearchEngine returns the preferred engine, empty for the default.
	SearchEngine(ctx context.Context, guildID string) (string, error)

	SetSearchEngine(ctx context.Context, guildID, engine string) error
}

// RedisRepoConfig holds configuration for the Redis repository
type RedisRepoConfig struct {
	Client redis.UniversalClient
}

type redisRepository struct {
	client redis.UniversalClient
}

// NewRedisRepository creates a new Redis-backed preferences repository
func NewRedisRepository(cfg *RedisRepoConfig) Repository {
	if cfg.Client == nil {
		panic("redis client is required")
	}
	return &redisRepository{client: cfg.Client}
}

func (r *redisRepository) SearchEngine(ctx context.Context, guildID string) (string, error) {
	prefs, err := r.get(ctx, guildID)
	if err != nil {
		return "", err
	}
	return prefs.SearchEngine, nil
}

func (r *redisRepository) SetSearchEngine(ctx context.Context, guildID, engine string) error {
	prefs, err := r.get(ctx, guildID)
	if err != nil {
		return err
	}
	prefs.SearchEngine = engine
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to serialize prefs: %w", err)
	}
	if err := r.client.Set(ctx, prefsKeyPrefix+guildID, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store prefs: %w", err)
	}
	return nil
}

func (r *redisRepository) get(ctx context.Context, guildID string) (Prefs, error) {
	raw, err := r.client.Get(ctx, prefsKeyPrefix+guildID).Result()
	if errors.Is(err, redis.Nil) {
		return Prefs{}, nil
	}
	if err != nil {
		return Prefs{}, fmt.Errorf("failed to read prefs: %w", err)
	}
	var prefs Prefs
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return Prefs{}, fmt.Errorf("failed to parse prefs: %w", err)
	}
	return prefs, nil
}
