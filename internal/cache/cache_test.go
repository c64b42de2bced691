package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapos/backend/internal/domain"
)

func TestNoopDashboardCacheNeverHits(t *testing.T) {
	var c DashboardCache = NoopDashboardCache{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", &domain.DashboardStats{TotalMedicines: 3}, time.Minute))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.NoError(t, c.Invalidate(ctx))
}

func TestDashboardKey(t *testing.T) {
	today := time.Date(2025, 3, 15, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-15:2025-06-13", DashboardKey(today, today.AddDate(0, 0, 90)))
}

func TestRedisDashboardCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("PHARMAPOS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set PHARMAPOS_TEST_REDIS_ADDR to run redis cache test")
	}
	ctx := context.Background()
	c := NewRedisDashboardCache(addr, "", 0)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Ping(ctx))

	stats := &domain.DashboardStats{TotalMedicines: 4, LowStock: 1, TodaySales: decimal.RequireFromString("12.50")}
	require.NoError(t, c.Set(ctx, "test-day", stats, time.Minute))

	got, ok, err := c.Get(ctx, "test-day")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, got.TotalMedicines)
	assert.True(t, got.TodaySales.Equal(stats.TodaySales))

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.Get(ctx, "test-day")
	require.NoError(t, err)
	assert.False(t, ok)
}
