package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/ledger"
	"pharmapos/backend/internal/store"
)

// CreateSale records the header and fulfills every item from batches in
// expiry order. One short item rolls back the whole sale. The stored total is
// the sum of the allocated line totals.
func (s *Store) CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	if len(draft.Items) == 0 {
		return nil, store.ErrValidation
	}
	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	sale := domain.Sale{
		UserID:     draft.UserID,
		CustomerID: draft.CustomerID,
		DoctorName: draft.DoctorName,
		Total:      decimal.Zero,
		CreatedAt:  createdAt.UTC().Truncate(time.Second),
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if draft.CustomerID != nil {
			if err := s.requireRow(ctx, tx, "customers", *draft.CustomerID); err != nil {
				return err
			}
		}

		var userID any
		if draft.UserID > 0 {
			if err := s.requireRow(ctx, tx, "users", draft.UserID); err != nil {
				return fmt.Errorf("user %d: %w", draft.UserID, err)
			}
			userID = draft.UserID
		}
		saleID, err := s.insertID(ctx, tx, `
			INSERT INTO sales (user_id, customer_id, doctor_name, total_amount, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, userID, nullID(draft.CustomerID), nullIfEmpty(draft.DoctorName), decimal.Zero, timeArg(createdAt))
		if err != nil {
			return err
		}
		sale.ID = saleID

		for _, item := range draft.Items {
			lines, total, err := s.fulfill(ctx, tx, saleID, item)
			if err != nil {
				return err
			}
			sale.Lines = append(sale.Lines, lines...)
			sale.Total = sale.Total.Add(total)
		}

		_, err = s.exec(ctx, tx, `UPDATE sales SET total_amount = ? WHERE id = ?`, sale.Total, saleID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) fulfill(ctx context.Context, tx *sqlx.Tx, saleID int64, item domain.SaleItem) ([]domain.SaleLine, decimal.Decimal, error) {
	med, err := s.getMedicine(ctx, tx, item.MedicineID, true)
	if err != nil {
		return nil, decimal.Zero, err
	}
	batches, err := s.liveBatches(ctx, tx, item.MedicineID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	allocations, err := ledger.Allocate(item.MedicineID, batches, item.Quantity, item.UnitPrice)
	if err != nil {
		return nil, decimal.Zero, err
	}

	lines := make([]domain.SaleLine, 0, len(allocations))
	for _, a := range allocations {
		n, err := s.exec(ctx, tx, `
			UPDATE batches SET quantity = quantity - ? WHERE id = ? AND quantity >= ?
		`, a.Quantity, a.BatchID, a.Quantity)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if n != 1 {
			return nil, decimal.Zero, fmt.Errorf("batch %d changed during fulfillment: %w", a.BatchID, store.ErrInsufficientStock)
		}

		lineID, err := s.insertID(ctx, tx, `
			INSERT INTO sale_items (sale_id, medicine_id, batch_id, quantity, unit_price, line_total)
			VALUES (?, ?, ?, ?, ?, ?)
		`, saleID, item.MedicineID, a.BatchID, a.Quantity, a.UnitPrice, a.LineTotal)
		if err != nil {
			return nil, decimal.Zero, err
		}
		lines = append(lines, domain.SaleLine{
			ID:           lineID,
			SaleID:       saleID,
			MedicineID:   item.MedicineID,
			MedicineName: med.Name,
			BatchID:      a.BatchID,
			Quantity:     a.Quantity,
			UnitPrice:    a.UnitPrice,
			LineTotal:    a.LineTotal,
		})
	}

	if _, err := s.exec(ctx, tx, `UPDATE medicines SET quantity = quantity - ? WHERE id = ?`, item.Quantity, item.MedicineID); err != nil {
		return nil, decimal.Zero, err
	}
	return lines, ledger.Total(allocations), nil
}

const saleHeaderQuery = `
	SELECT s.id, COALESCE(s.user_id, 0) AS user_id, COALESCE(u.username, '') AS username,
		s.customer_id, COALESCE(c.name, '') AS customer_name, COALESCE(s.doctor_name, '') AS doctor_name,
		s.total_amount, s.created_at
	FROM sales s
	LEFT JOIN users u ON u.id = s.user_id
	LEFT JOIN customers c ON c.id = s.customer_id`

func (s *Store) GetSale(ctx context.Context, id int64) (*domain.Sale, error) {
	var header saleRow
	if err := s.db.GetContext(ctx, &header, s.db.Rebind(saleHeaderQuery+` WHERE s.id = ?`), id); err != nil {
		return nil, s.classify(err)
	}

	var lines []saleLineRow
	err := s.selectAll(ctx, &lines, `
		SELECT si.id, si.sale_id, si.medicine_id, m.name AS medicine_name, si.batch_id,
			si.quantity, si.unit_price, si.line_total
		FROM sale_items si
		JOIN medicines m ON m.id = si.medicine_id
		WHERE si.sale_id = ?
		ORDER BY si.id
	`, id)
	if err != nil {
		return nil, err
	}

	sale := header.toDomain()
	sale.Lines = make([]domain.SaleLine, 0, len(lines))
	for _, l := range lines {
		sale.Lines = append(sale.Lines, domain.SaleLine(l))
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, window domain.DateRange) ([]domain.Sale, error) {
	clause, args := windowClause("s.created_at", window, false)

	var rows []saleRow
	if err := s.selectAll(ctx, &rows, saleHeaderQuery+` WHERE `+clause+` ORDER BY s.created_at DESC, s.id DESC`, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Sale, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
