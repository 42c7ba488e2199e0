package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetcare/backend/internal/calendar"
)

var (
	vetA   = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	vetB   = uuid.MustParse("00000000-0000-0000-0000-0000000000b2")
	monday = calendar.NewDate(2026, 1, 5)
	free   = []calendar.Interval{
		{Start: calendar.NewTimeOfDay(8, 0), End: calendar.NewTimeOfDay(12, 0)},
		{Start: calendar.NewTimeOfDay(13, 0), End: calendar.NewTimeOfDay(17, 0)},
	}
)

// slotCache is the surface shared by both implementations.
type slotCache interface {
	Get(ctx context.Context, vetID uuid.UUID, date calendar.Date) ([]calendar.Interval, bool, error)
	Set(ctx context.Context, vetID uuid.UUID, date calendar.Date, free []calendar.Interval) error
	Invalidate(ctx context.Context, vetID uuid.UUID, date calendar.Date) error
	InvalidateVeterinarian(ctx context.Context, vetID uuid.UUID) error
}

func exerciseCache(t *testing.T, c slotCache) {
	ctx := context.Background()
	tuesday := monday.AddDays(1)

	_, ok, err := c.Get(ctx, vetA, monday)
	require.NoError(t, err)
	assert.False(t, ok, "empty cache must miss")

	require.NoError(t, c.Set(ctx, vetA, monday, free))
	require.NoError(t, c.Set(ctx, vetA, tuesday, nil))
	require.NoError(t, c.Set(ctx, vetB, monday, free[:1]))

	got, ok, err := c.Get(ctx, vetA, monday)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, free, got)

	got, ok, err = c.Get(ctx, vetA, tuesday)
	require.NoError(t, err)
	require.True(t, ok, "a day with nothing free is still a hit")
	assert.Empty(t, got)

	require.NoError(t, c.Invalidate(ctx, vetA, monday))
	_, ok, err = c.Get(ctx, vetA, monday)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.InvalidateVeterinarian(ctx, vetA))
	_, ok, err = c.Get(ctx, vetA, tuesday)
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err = c.Get(ctx, vetB, monday)
	require.NoError(t, err)
	require.True(t, ok, "other veterinarians keep their entries")
	assert.Equal(t, free[:1], got)
}

func TestLRU(t *testing.T) {
	exerciseCache(t, NewLRU(16, time.Minute))
}

func TestLRUReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(16, time.Minute)
	in := append([]calendar.Interval(nil), free...)
	require.NoError(t, c.Set(ctx, vetA, monday, in))
	in[0].Start = calendar.NewTimeOfDay(10, 0)

	got, ok, err := c.Get(ctx, vetA, monday)
	require.NoError(t, err)
	require.True(t, ok)
	got[1].End = calendar.NewTimeOfDay(18, 0)

	again, _, _ := c.Get(ctx, vetA, monday)
	assert.Equal(t, free, again)
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(2, time.Minute)
	require.NoError(t, c.Set(ctx, vetA, monday, free))
	require.NoError(t, c.Set(ctx, vetA, monday.AddDays(1), free))
	_, _, _ = c.Get(ctx, vetA, monday)
	require.NoError(t, c.Set(ctx, vetA, monday.AddDays(2), free))

	assert.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, vetA, monday.AddDays(1))
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, vetA, monday)
	assert.True(t, ok)
}

func TestLRUExpires(t *testing.T) {
	ctx := context.Background()
	c := NewLRU(16, 20*time.Millisecond)
	require.NoError(t, c.Set(ctx, vetA, monday, free))

	assert.Eventually(t, func() bool {
		_, ok, _ := c.Get(ctx, vetA, monday)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("VETCARE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("VETCARE_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := NewRedisClient(ctx, RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	c := NewRedis(client, time.Minute)
	require.NoError(t, c.InvalidateVeterinarian(ctx, vetA))
	require.NoError(t, c.InvalidateVeterinarian(ctx, vetB))
	exerciseCache(t, c)
	require.NoError(t, c.InvalidateVeterinarian(ctx, vetB))
}
