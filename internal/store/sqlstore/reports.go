package sqlstore

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/ledger"
)

// DashboardStats reads the headline counters in one statement. Sales are
// summed over the calendar day of today; expiring batches are live batches
// whose expiry falls between today and horizon inclusive.
func (s *Store) DashboardStats(ctx context.Context, today time.Time, horizon time.Time) (domain.DashboardStats, error) {
	day := domain.DateOnly(today)

	var row struct {
		TotalMedicines int             `db:"total_medicines"`
		LowStock       int             `db:"low_stock"`
		TodaySales     decimal.Decimal `db:"today_sales"`
		UsersCount     int             `db:"users_count"`
		ExpiringSoon   int             `db:"expiring_soon"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT
			(SELECT COUNT(*) FROM medicines) AS total_medicines,
			(SELECT COUNT(*) FROM medicines WHERE quantity <= min_stock_alert) AS low_stock,
			(SELECT COALESCE(SUM(total_amount), 0) FROM sales WHERE created_at >= ? AND created_at < ?) AS today_sales,
			(SELECT COUNT(*) FROM users) AS users_count,
			(SELECT COUNT(*) FROM batches WHERE quantity > 0 AND expiry_date >= ? AND expiry_date <= ?) AS expiring_soon
	`), timeArg(day), timeArg(day.AddDate(0, 0, 1)), dateArg(day), dateArg(horizon))
	if err != nil {
		return domain.DashboardStats{}, s.classify(err)
	}
	return domain.DashboardStats{
		TotalMedicines: row.TotalMedicines,
		LowStock:       row.LowStock,
		TodaySales:     row.TodaySales.Round(2),
		UsersCount:     row.UsersCount,
		ExpiringSoon:   row.ExpiringSoon,
	}, nil
}

func (s *Store) LowStock(ctx context.Context) ([]domain.LowStockItem, error) {
	var rows []struct {
		MedicineID    int64  `db:"medicine_id"`
		Barcode       string `db:"barcode"`
		Name          string `db:"name"`
		Quantity      int    `db:"quantity"`
		MinStockAlert int    `db:"min_stock_alert"`
		SupplierName  string `db:"supplier_name"`
	}
	err := s.selectAll(ctx, &rows, `
		SELECT m.id AS medicine_id, COALESCE(m.barcode,'') AS barcode, m.name, m.quantity, m.min_stock_alert,
			COALESCE(sp.name,'') AS supplier_name
		FROM medicines m
		LEFT JOIN suppliers sp ON sp.id = m.supplier_id
		WHERE m.quantity <= m.min_stock_alert
		ORDER BY m.quantity, m.name
	`)
	if err != nil {
		return nil, err
	}
	out := make([]domain.LowStockItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.LowStockItem(r))
	}
	return out, nil
}

func (s *Store) ExpiringBatches(ctx context.Context, from time.Time, to time.Time) ([]domain.ExpiringBatch, error) {
	var rows []struct {
		BatchID      int64  `db:"batch_id"`
		MedicineID   int64  `db:"medicine_id"`
		MedicineName string `db:"medicine_name"`
		BatchNumber  string `db:"batch_number"`
		ExpiryDate   dbTime `db:"expiry_date"`
		Quantity     int    `db:"quantity"`
	}
	err := s.selectAll(ctx, &rows, `
		SELECT b.id AS batch_id, b.medicine_id, m.name AS medicine_name,
			COALESCE(b.batch_number,'') AS batch_number, b.expiry_date, b.quantity
		FROM batches b
		JOIN medicines m ON m.id = b.medicine_id
		WHERE b.quantity > 0 AND b.expiry_date >= ? AND b.expiry_date <= ?
		ORDER BY b.expiry_date, b.id
	`, dateArg(from), dateArg(to))
	if err != nil {
		return nil, err
	}
	out := make([]domain.ExpiringBatch, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.ExpiringBatch{
			BatchID:      r.BatchID,
			MedicineID:   r.MedicineID,
			MedicineName: r.MedicineName,
			BatchNumber:  r.BatchNumber,
			ExpiryDate:   r.ExpiryDate.Time(),
			Quantity:     r.Quantity,
		})
	}
	return out, nil
}

// FinancialSummary totals sales and purchase invoices inside window.
// Profit is sales minus purchases.
func (s *Store) FinancialSummary(ctx context.Context, window domain.DateRange) (domain.FinancialSummary, error) {
	salesClause, salesArgs := windowClause("created_at", window, false)
	purchaseClause, purchaseArgs := windowClause("invoice_date", window, true)

	var row struct {
		Sales     decimal.Decimal `db:"sales"`
		Purchases decimal.Decimal `db:"purchases"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT
			(SELECT COALESCE(SUM(total_amount), 0) FROM sales WHERE `+salesClause+`) AS sales,
			(SELECT COALESCE(SUM(total_amount), 0) FROM purchase_invoices WHERE `+purchaseClause+`) AS purchases
	`), append(salesArgs, purchaseArgs...)...)
	if err != nil {
		return domain.FinancialSummary{}, s.classify(err)
	}

	summary := domain.FinancialSummary{
		Sales:     row.Sales.Round(2),
		Purchases: row.Purchases.Round(2),
		Profit:    row.Sales.Sub(row.Purchases).Round(2),
	}
	summary.From, summary.To = window.Bounds()
	return summary, nil
}

// StockDiscrepancies lists medicines whose aggregate quantity no longer
// equals the sum of their batches.
func (s *Store) StockDiscrepancies(ctx context.Context) ([]domain.StockDiscrepancy, error) {
	medicines, err := s.ListMedicines(ctx)
	if err != nil {
		return nil, err
	}
	var rows []batchRow
	if err := s.selectAll(ctx, &rows, `SELECT `+batchColumns+` FROM batches b`); err != nil {
		return nil, err
	}
	return ledger.Reconcile(medicines, batchesToDomain(rows)), nil
}
