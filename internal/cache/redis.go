package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"vetcare/backend/internal/calendar"
)

const redisKeyPrefix = "vetcare:slots:"

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings, failing early on a bad address.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Redis stores free intervals as JSON under vetcare:slots:<vet>:<date>.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

func (c *Redis) Get(ctx context.Context, vetID uuid.UUID, date calendar.Date) ([]calendar.Interval, bool, error) {
	b, err := c.client.Get(ctx, redisKeyPrefix+key(vetID, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var free []calendar.Interval
	if err := json.Unmarshal(b, &free); err != nil {
		return nil, false, fmt.Errorf("decode cached slots: %w", err)
	}
	return free, true, nil
}

func (c *Redis) Set(ctx context.Context, vetID uuid.UUID, date calendar.Date, free []calendar.Interval) error {
	if free == nil {
		free = []calendar.Interval{}
	}
	b, err := json.Marshal(free)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisKeyPrefix+key(vetID, date), b, c.ttl).Err()
}

func (c *Redis) Invalidate(ctx context.Context, vetID uuid.UUID, date calendar.Date) error {
	return c.client.Del(ctx, redisKeyPrefix+key(vetID, date)).Err()
}

func (c *Redis) InvalidateVeterinarian(ctx context.Context, vetID uuid.UUID) error {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+vetID.String()+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
