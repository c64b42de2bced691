package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/ledger"
)

func (s *Store) DashboardStats(_ context.Context, today time.Time, horizon time.Time) (domain.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return domain.DashboardStats{}, err
	}

	day := domain.DateOnly(today)
	todayWindow := domain.DateRange{From: day, To: day.AddDate(0, 0, 1)}
	last := domain.DateOnly(horizon)

	stats := domain.DashboardStats{
		TotalMedicines: len(s.medicines),
		UsersCount:     len(s.users),
		TodaySales:     decimal.Zero,
	}
	for _, m := range s.medicines {
		if m.Quantity <= m.MinStockAlert {
			stats.LowStock++
		}
	}
	for _, sale := range s.sales {
		if todayWindow.Contains(sale.CreatedAt) {
			stats.TodaySales = stats.TodaySales.Add(sale.Total)
		}
	}
	for _, b := range s.batches {
		if b.Quantity > 0 && !b.ExpiryDate.Before(day) && !b.ExpiryDate.After(last) {
			stats.ExpiringSoon++
		}
	}
	stats.TodaySales = stats.TodaySales.Round(2)
	return stats, nil
}

func (s *Store) LowStock(_ context.Context) ([]domain.LowStockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	out := make([]domain.LowStockItem, 0)
	for _, m := range s.medicines {
		if m.Quantity > m.MinStockAlert {
			continue
		}
		item := domain.LowStockItem{
			MedicineID:    m.ID,
			Barcode:       m.Barcode,
			Name:          m.Name,
			Quantity:      m.Quantity,
			MinStockAlert: m.MinStockAlert,
		}
		if m.SupplierID != nil {
			item.SupplierName = s.suppliers[*m.SupplierID].Name
		}
		out = append(out, item)
	}
	slices.SortFunc(out, func(a, b domain.LowStockItem) int {
		return cmp.Or(cmp.Compare(a.Quantity, b.Quantity), strings.Compare(a.Name, b.Name))
	})
	return out, nil
}

func (s *Store) ExpiringBatches(_ context.Context, from time.Time, to time.Time) ([]domain.ExpiringBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	first, last := domain.DateOnly(from), domain.DateOnly(to)

	live := make([]domain.Batch, 0)
	for _, b := range s.batches {
		if b.Quantity > 0 && !b.ExpiryDate.Before(first) && !b.ExpiryDate.After(last) {
			live = append(live, b)
		}
	}
	slices.SortFunc(live, ledger.CompareForFulfillment)

	out := make([]domain.ExpiringBatch, 0, len(live))
	for _, b := range live {
		out = append(out, domain.ExpiringBatch{
			BatchID:      b.ID,
			MedicineID:   b.MedicineID,
			MedicineName: s.medicines[b.MedicineID].Name,
			BatchNumber:  b.BatchNumber,
			ExpiryDate:   b.ExpiryDate,
			Quantity:     b.Quantity,
		})
	}
	return out, nil
}

func (s *Store) FinancialSummary(_ context.Context, window domain.DateRange) (domain.FinancialSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return domain.FinancialSummary{}, err
	}

	sales, purchases := decimal.Zero, decimal.Zero
	for _, sale := range s.sales {
		if window.Contains(sale.CreatedAt) {
			sales = sales.Add(sale.Total)
		}
	}
	for _, p := range s.purchases {
		if window.Contains(p.InvoiceDate) {
			purchases = purchases.Add(p.Total)
		}
	}

	summary := domain.FinancialSummary{
		Sales:     sales.Round(2),
		Purchases: purchases.Round(2),
		Profit:    sales.Sub(purchases).Round(2),
	}
	summary.From, summary.To = window.Bounds()
	return summary, nil
}

func (s *Store) StockDiscrepancies(_ context.Context) ([]domain.StockDiscrepancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	medicines := make([]domain.Medicine, 0, len(s.medicines))
	for _, m := range s.medicines {
		medicines = append(medicines, m)
	}
	batches := make([]domain.Batch, 0, len(s.batches))
	for _, b := range s.batches {
		batches = append(batches, b)
	}
	return ledger.Reconcile(medicines, batches), nil
}
