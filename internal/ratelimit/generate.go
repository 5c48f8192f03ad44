package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/timehug/timehug/internal/config"
)

const (
	keyGenerateUser = "generate:user:%s"
	keyGenerateLock = "generate:lock:%s"
)

// GenerateLimiter throttles the generate endpoint per user and keeps a
// single in-flight submission per user.
type GenerateLimiter struct {
	enabled bool

	bucket *TokenBucket
	locker *Locker

	rate    float64
	burst   int
	lockTTL time.Duration
}

func NewGenerateLimiter(cfg config.Config) (*GenerateLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.GenerateRate <= 0 || limitCfg.GenerateBurst <= 0 {
		return nil, errors.New("generate rate limit must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &GenerateLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    limitCfg.GenerateRate,
		burst:   limitCfg.GenerateBurst,
		lockTTL: time.Duration(limitCfg.ConcurrencyTTLSeconds) * time.Second,
	}, nil
}

func (l *GenerateLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *GenerateLimiter) AllowUser(ctx context.Context, userID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyGenerateUser, strings.TrimSpace(userID)), l.rate, l.burst)
}

func (l *GenerateLimiter) TryLockUser(ctx context.Context, userID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	key := fmt.Sprintf(keyGenerateLock, strings.TrimSpace(userID))
	return l.locker.TryLock(ctx, key, l.lockTTL)
}

func (l *GenerateLimiter) ReleaseUser(ctx context.Context, userID, token string) error {
	if !l.Enabled() {
		return nil
	}
	key := fmt.Sprintf(keyGenerateLock, strings.TrimSpace(userID))
	return l.locker.Release(ctx, key, token)
}
