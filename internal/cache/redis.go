package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dishahealth/disha/internal/store"
)

const protocolsKey = "protocols:all"

// RedisCache stores ephemeral flags and the protocol list in redis.
type RedisCache struct {
	rdb *goredis.Client
}

func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second

	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{rdb: rdb}, nil
}

func typingKey(userID string) string { return "typing:" + userID }

func (c *RedisCache) SetTyping(ctx context.Context, userID string, typing bool) {
	var err error
	if typing {
		err = c.rdb.Set(ctx, typingKey(userID), "1", TypingTTL).Err()
	} else {
		err = c.rdb.Del(ctx, typingKey(userID)).Err()
	}
	if err != nil {
		log.Printf("cache: set typing flag for %s failed: %v", userID, err)
	}
}

func (c *RedisCache) IsTyping(ctx context.Context, userID string) bool {
	v, err := c.rdb.Get(ctx, typingKey(userID)).Result()
	if err != nil {
		if err != goredis.Nil {
			log.Printf("cache: get typing flag for %s failed: %v", userID, err)
		}
		return false
	}
	return v == "1"
}

func (c *RedisCache) CachedProtocols(ctx context.Context) ([]store.Protocol, bool) {
	raw, err := c.rdb.Get(ctx, protocolsKey).Bytes()
	if err != nil {
		if err != goredis.Nil {
			log.Printf("cache: get protocols failed: %v", err)
		}
		return nil, false
	}

	var protocols []store.Protocol
	if err := json.Unmarshal(raw, &protocols); err != nil {
		log.Printf("cache: decode cached protocols failed: %v", err)
		return nil, false
	}
	return protocols, true
}

func (c *RedisCache) StoreProtocols(ctx context.Context, protocols []store.Protocol) {
	raw, err := json.Marshal(protocols)
	if err != nil {
		log.Printf("cache: encode protocols failed: %v", err)
		return
	}
	if err := c.rdb.Set(ctx, protocolsKey, raw, ProtocolTTL).Err(); err != nil {
		log.Printf("cache: store protocols failed: %v", err)
	}
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
