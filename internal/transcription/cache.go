// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_transcription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/commons"
	"github.com/YamazakiYusuke/TalkToBook-sub002/pkg/connectors"
	"github.com/redis/go-redis/v9"
)

// ResultCache stores transcripts keyed by asset identity so an unchanged
// audio file is never transcribed twice.
type ResultCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Put(ctx context.Context, key string, text string)
}

// CacheKey identifies an audio asset by path and last modification time. A
// rewritten file gets a new key and therefore a fresh transcription.
func CacheKey(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("transcript:%s:%d", path, info.ModTime().UnixNano()), nil
}

type redisCache struct {
	logger commons.Logger
	redis  connectors.RedisConnector
	ttl    time.Duration
}

func NewRedisCache(logger commons.Logger, redisConn connectors.RedisConnector, ttl time.Duration) ResultCache {
	return &redisCache{
		logger: logger,
		redis:  redisConn,
		ttl:    ttl,
	}
}

func (c *redisCache) Get(ctx context.Context, key string) (string, bool) {
	text, err := c.redis.Client().Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warnf("transcript cache read failed: %v", err)
		}
		return "", false
	}
	return text, true
}

func (c *redisCache) Put(ctx context.Context, key string, text string) {
	// Cache is an optimization; a failed write only costs a re-transcription.
	if err := c.redis.Client().Set(ctx, key, text, c.ttl).Err(); err != nil {
		c.logger.Warnf("transcript cache write failed: %v", err)
	}
}
