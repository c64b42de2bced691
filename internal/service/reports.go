package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"pharmapos/backend/internal/cache"
	"pharmapos/backend/internal/domain"
)

// Dashboard returns the home screen counters, served from cache between
// ledger mutations.
func (s *Service) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	today := s.today()
	horizon := today.AddDate(0, 0, s.expiryHorizonDays)
	key := cache.DashboardKey(today, horizon)

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger(ctx).Warn("dashboard cache read failed", zap.Error(err))
	}
	if ok && cached != nil {
		return *cached, nil
	}

	stats, err := s.repo.DashboardStats(ctx, today, horizon)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	if err := s.cache.Set(ctx, key, &stats, s.cacheTTL); err != nil {
		s.logger(ctx).Warn("dashboard cache write failed", zap.Error(err))
	}
	return stats, nil
}

func (s *Service) LowStock(ctx context.Context) ([]domain.LowStockItem, error) {
	return emptyOnConnection(s.repo.LowStock(ctx))
}

// ExpiringBatches lists live batches expiring within days from today. A
// non-positive days uses the configured horizon.
func (s *Service) ExpiringBatches(ctx context.Context, days int) ([]domain.ExpiringBatch, error) {
	if days <= 0 {
		days = s.expiryHorizonDays
	}
	today := s.today()
	return emptyOnConnection(s.repo.ExpiringBatches(ctx, today, today.AddDate(0, 0, days)))
}

func (s *Service) FinancialSummary(ctx context.Context, from string, to string) (domain.FinancialSummary, error) {
	window, err := dayWindow(from, to)
	if err != nil {
		return domain.FinancialSummary{}, err
	}
	return s.repo.FinancialSummary(ctx, window)
}

// Reconcile reports every medicine whose aggregate quantity disagrees with
// its batches. An empty result means the ledger is consistent.
func (s *Service) Reconcile(ctx context.Context) ([]domain.StockDiscrepancy, error) {
	out, err := emptyOnConnection(s.repo.StockDiscrepancies(ctx))
	if err == nil && len(out) > 0 {
		s.logger(ctx).Error("stock ledger out of balance", zap.Int("medicines", len(out)))
	}
	return out, err
}

// dayWindow turns inclusive YYYY-MM-DD bounds into a half-open range. Empty
// bounds leave that side open.
func dayWindow(from string, to string) (domain.DateRange, error) {
	var window domain.DateRange
	if strings.TrimSpace(from) != "" {
		t, err := parseDate("from", from)
		if err != nil {
			return window, err
		}
		window.From = t
	}
	if strings.TrimSpace(to) != "" {
		t, err := parseDate("to", to)
		if err != nil {
			return window, err
		}
		window.To = t.Add(24 * time.Hour)
	}
	if !window.From.IsZero() && !window.To.IsZero() && !window.From.Before(window.To) {
		return window, invalid("from is after to")
	}
	return window, nil
}
