package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"BizLink/entity"
	"BizLink/internal/config"
	"BizLink/internal/lib/sl"
)

const (
	inboxKeyPrefix = "inbox:"
	sweepStampKey  = "sweep:last_run"
)

// Cache is the Redis-backed stale-read cache. It is not a write-ahead
// log: the only consumer is the inbox fallback used while the store is
// unreachable, plus the dedup-sweep throttle stamp.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

// cachedInbox is the persisted blob: the conversation list plus the time
// it was captured, so readers can apply the freshness cutoff.
type cachedInbox struct {
	Conversations []entity.Conversation `json:"conversations"`
	Timestamp     time.Time             `json:"timestamp"`
}

func NewCache(conf *config.Config, logger *slog.Logger) *Cache {
	if !conf.Redis.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", conf.Redis.Host, conf.Redis.Port),
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	return &Cache{
		client: client,
		ttl:    conf.Chat.CacheTTL,
		log:    logger.With(sl.Module("cache")),
	}
}

// StoreInbox snapshots a user's conversation list after every successful
// refresh.
func (c *Cache) StoreInbox(ctx context.Context, userID string, conversations []entity.Conversation) error {
	blob, err := json.Marshal(cachedInbox{
		Conversations: conversations,
		Timestamp:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal inbox cache: %w", err)
	}

	if err := c.client.Set(ctx, inboxKeyPrefix+userID, blob, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set inbox cache: %w", err)
	}
	return nil
}

// LoadInbox returns the cached conversation list if one exists and is
// fresher than the cutoff. A missing or stale blob returns (nil, zero, nil).
func (c *Cache) LoadInbox(ctx context.Context, userID string) ([]entity.Conversation, time.Time, error) {
	blob, err := c.client.Get(ctx, inboxKeyPrefix+userID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, time.Time{}, nil
		}
		return nil, time.Time{}, fmt.Errorf("redis get inbox cache: %w", err)
	}

	var cached cachedInbox
	if err := json.Unmarshal(blob, &cached); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal inbox cache: %w", err)
	}

	if time.Since(cached.Timestamp) > c.ttl {
		return nil, time.Time{}, nil
	}

	return cached.Conversations, cached.Timestamp, nil
}

// LastSweep returns when the dedup sweep last completed.
func (c *Cache) LastSweep(ctx context.Context) (time.Time, error) {
	value, err := c.client.Get(ctx, sweepStampKey).Result()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("redis get sweep stamp: %w", err)
	}

	stamp, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse sweep stamp: %w", err)
	}
	return stamp, nil
}

// MarkSweep records a completed sweep run.
func (c *Cache) MarkSweep(ctx context.Context, at time.Time) error {
	if err := c.client.Set(ctx, sweepStampKey, at.UTC().Format(time.RFC3339), 0).Err(); err != nil {
		return fmt.Errorf("redis set sweep stamp: %w", err)
	}
	return nil
}
