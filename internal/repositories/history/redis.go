package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	historyKeyPrefix = "music:history:"

	// maxEntries caps each guild's history list.
	maxEntries = 200
)

// RedisRepoConfig holds configuration for the Redis repository
type RedisRepoConfig struct {
	Client     redis.UniversalClient
	MaxEntries int64
}

// redisRepository implements Repository using Redis lists
type redisRepository struct {
	client     redis.UniversalClient
	maxEntries int64
}

// NewRedisRepository creates a new Redis-backed history repository
func NewRedisRepository(cfg *RedisRepoConfig) Repository {
	if cfg.Client == nil {
		panic("redis client is required")
	}
	max := cfg.MaxEntries
	if max == 0 {
		max = maxEntries
	}
	return &redisRepository{
		client:     cfg.Client,
		maxEntries: max,
	}
}

// Record prepends a play and trims the list to the cap.
func (r *redisRepository) Record(ctx context.Context, guildID, title, uri string) error {
	if guildID == "" {
		return fmt.Errorf("guild ID cannot be empty")
	}
	data, err := json.Marshal(Entry{
		Title:    title,
		URI:      uri,
		PlayedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to serialize history entry: %w", err)
	}

	pipe := r.client.TxPipeline()
	key := historyKeyPrefix + guildID
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, r.maxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// Search scans newest-first for a title containing the substring.
func (r *redisRepository) Search(ctx context.Context, guildID, title string) (string, error) {
	entries, err := r.Recent(ctx, guildID, int(r.maxEntries))
	if err != nil {
		return "", err
	}
	needle := strings.ToLower(title)
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.Title), needle) {
			return entry.URI, nil
		}
	}
	return "", ErrNoMatch
}

// Recent returns up to limit entries, newest first.
func (r *redisRepository) Recent(ctx context.Context, guildID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > int(r.maxEntries) {
		limit = int(r.maxEntries)
	}
	raw, err := r.client.LRange(ctx, historyKeyPrefix+guildID, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			// Skip undecodable entries rather than failing the whole read.
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
