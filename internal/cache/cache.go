package cache

import (
	"context"
	"time"

	"pharmapos/backend/internal/domain"
)

// DashboardCache holds computed dashboard counters between ledger mutations.
type DashboardCache interface {
	Get(ctx context.Context, key string) (*domain.DashboardStats, bool, error)
	Set(ctx context.Context, key string, value *domain.DashboardStats, ttl time.Duration) error
	// Invalidate drops every cached dashboard.
	Invalidate(ctx context.Context) error
}

type NoopDashboardCache struct{}

func (NoopDashboardCache) Get(_ context.Context, _ string) (*domain.DashboardStats, bool, error) {
	return nil, false, nil
}

func (NoopDashboardCache) Set(_ context.Context, _ string, _ *domain.DashboardStats, _ time.Duration) error {
	return nil
}

func (NoopDashboardCache) Invalidate(_ context.Context) error {
	return nil
}

// DashboardKey names the cache entry for one day and expiry horizon.
func DashboardKey(today time.Time, horizon time.Time) string {
	return today.Format(domain.DateLayout) + ":" + horizon.Format(domain.DateLayout)
}
