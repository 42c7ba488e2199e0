// Package cache implements the slot cache in front of the resolver: an
// in-process expiring LRU and a Redis-backed variant shared by replicas.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"vetcare/backend/internal/calendar"
)

const (
	DefaultSize = 4096
	DefaultTTL  = 5 * time.Minute
)

func key(vetID uuid.UUID, date calendar.Date) string {
	return vetID.String() + ":" + date.String()
}

// LRU keeps the most recently used days in memory. Entries also expire after
// ttl, which bounds staleness when several replicas each hold their own copy.
type LRU struct {
	entries *expirable.LRU[string, []calendar.Interval]
}

func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LRU{entries: expirable.NewLRU[string, []calendar.Interval](size, nil, ttl)}
}

func (c *LRU) Get(ctx context.Context, vetID uuid.UUID, date calendar.Date) ([]calendar.Interval, bool, error) {
	free, ok := c.entries.Get(key(vetID, date))
	if !ok {
		return nil, false, nil
	}
	return append([]calendar.Interval(nil), free...), true, nil
}

func (c *LRU) Set(ctx context.Context, vetID uuid.UUID, date calendar.Date, free []calendar.Interval) error {
	c.entries.Add(key(vetID, date), append([]calendar.Interval{}, free...))
	return nil
}

func (c *LRU) Invalidate(ctx context.Context, vetID uuid.UUID, date calendar.Date) error {
	c.entries.Remove(key(vetID, date))
	return nil
}

func (c *LRU) InvalidateVeterinarian(ctx context.Context, vetID uuid.UUID) error {
	prefix := vetID.String() + ":"
	for _, k := range c.entries.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.entries.Remove(k)
		}
	}
	return nil
}

func (c *LRU) Len() int {
	return c.entries.Len()
}
