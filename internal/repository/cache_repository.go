package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	summaryCacheKey = "helpdesk:reports:summary"
	slaScanLockKey  = "helpdesk:sla:scan-lock"
)

// ReportCache stores the serialized summary report between mutations.
type ReportCache interface {
	GetSummary(ctx context.Context) ([]byte, bool, error)
	SetSummary(ctx context.Context, payload []byte, ttl time.Duration) error
	InvalidateSummary(ctx context.Context) error
}

// ScanLock serializes SLA scans across replicas.
type ScanLock interface {
	Acquire(ctx context.Context, ttl time.Duration) (release func(), acquired bool, err error)
}

type redisReportCache struct {
	client *redis.Client
}

// NewReportCache returns a Redis-backed cache; a nil client disables caching.
func NewReportCache(client *redis.Client) ReportCache {
	return &redisReportCache{client: client}
}

func (c *redisReportCache) GetSummary(ctx context.Context) ([]byte, bool, error) {
	if c.client == nil {
		return nil, false, nil
	}
	payload, err := c.client.Get(ctx, summaryCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (c *redisReportCache) SetSummary(ctx context.Context, payload []byte, ttl time.Duration) error {
	if c.client == nil || ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, summaryCacheKey, payload, ttl).Err()
}

func (c *redisReportCache) InvalidateSummary(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, summaryCacheKey).Err()
}

type redisScanLock struct {
	client *redis.Client
}

// NewScanLock returns a Redis SET NX lock; a nil client always grants the lock.
func NewScanLock(client *redis.Client) ScanLock {
	return &redisScanLock{client: client}
}

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *redisScanLock) Acquire(ctx context.Context, ttl time.Duration) (func(), bool, error) {
	if l.client == nil {
		return func() {}, true, nil
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, slaScanLockKey, token, ttl).Result()
	if err != nil {
		return func() {}, false, err
	}
	if !ok {
		return func() {}, false, nil
	}
	release := func() {
		_ = releaseScript.Run(context.Background(), l.client, []string{slaScanLockKey}, token).Err()
	}
	return release, true, nil
}
