// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stitech/convogate/internal/metrics"
)

const (
	sessionKeyPrefix = "convogate:session:"
	claimKeyPrefix   = "convogate:claim:"
	opTimeout        = 2 * time.Second
)

// RedisStore is a Redis-backed Store. Backend failures degrade transparently
// to the in-process fallback store: a degradation is logged and counted, but
// the caller never sees a storage error.
type RedisStore struct {
	client   *redis.Client
	fallback *MemoryStore
	logger   zerolog.Logger
	degraded atomic.Bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig, fallback *MemoryStore, logger zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Msg("connected to Redis session store")

	return &RedisStore{
		client:   client,
		fallback: fallback,
		logger:   logger,
	}, nil
}

// Get loads a session from Redis, serving from the fallback store when the
// backend is unreachable.
func (s *RedisStore) Get(ctx context.Context, key string) (Session, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	val, err := s.client.Get(opCtx, sessionKeyPrefix+key).Bytes()
	if err == redis.Nil {
		s.markHealthy()
		// The fallback may hold sessions written during an outage.
		return s.fallback.Get(ctx, key)
	}
	if err != nil {
		s.degrade("get", key, err)
		return s.fallback.Get(ctx, key)
	}

	var sess Session
	if err := json.Unmarshal(val, &sess); err != nil {
		s.logger.Warn().Err(err).Str("session_key", key).Msg("session unmarshal failed")
		return Session{}, ErrNotFound
	}
	s.markHealthy()
	return sess, nil
}

// Put stores a session with a sliding TTL. The fallback store is written as
// well so an outage mid-conversation keeps continuity within this instance.
func (s *RedisStore) Put(ctx context.Context, key string, sess Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}

	if err := s.fallback.Put(ctx, key, sess, ttl); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.client.Set(opCtx, sessionKeyPrefix+key, data, ttl).Err(); err != nil {
		s.degrade("put", key, err)
		return nil
	}
	s.markHealthy()
	return nil
}

// TryClaim is an atomic SET NX with expiration. On backend failure it
// reports a fresh claim: conversation progress is favored over perfect
// deduplication.
func (s *RedisStore) TryClaim(ctx context.Context, key, idempotencyKey string, ttl time.Duration) (bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ok, err := s.client.SetNX(opCtx, claimKeyPrefix+claimKey(key, idempotencyKey), 1, ttl).Result()
	if err != nil {
		s.degrade("try_claim", key, err)
		claimed, ferr := s.fallback.TryClaim(ctx, key, idempotencyKey, ttl)
		if ferr != nil {
			return true, nil
		}
		return claimed, nil
	}
	s.markHealthy()
	return ok, nil
}

// Close closes the Redis connection and the fallback janitor.
func (s *RedisStore) Close() error {
	_ = s.fallback.Close()
	return s.client.Close()
}

// HealthCheck reports backend reachability.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Degraded reports whether the store is currently serving from the
// in-process fallback.
func (s *RedisStore) Degraded() bool {
	return s.degraded.Load()
}

func (s *RedisStore) degrade(op, key string, err error) {
	metrics.IncStoreDegradation(op)
	if s.degraded.CompareAndSwap(false, true) {
		metrics.SetStoreFallbackActive(true)
	}
	s.logger.Warn().Err(err).
		Str("op", op).
		Str("session_key", key).
		Msg("redis unavailable, serving from in-process fallback")
}

func (s *RedisStore) markHealthy() {
	if s.degraded.CompareAndSwap(true, false) {
		metrics.SetStoreFallbackActive(false)
		s.logger.Info().Msg("redis session store recovered")
	}
}
