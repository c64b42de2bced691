package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/store"
)

func (s *Store) CreateMedicine(ctx context.Context, draft domain.MedicineDraft) (*domain.Medicine, error) {
	var created domain.Medicine
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if draft.SupplierID != nil {
			if err := s.requireRow(ctx, tx, "suppliers", *draft.SupplierID); err != nil {
				return err
			}
		}

		id, err := s.insertID(ctx, tx, `
			INSERT INTO medicines (barcode, name, active_ingredient, description, buy_price, sell_price,
				quantity, expiry_date, supplier_id, min_stock_alert)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, nullIfEmpty(draft.Barcode), draft.Name, draft.ActiveIngredient, draft.Description,
			draft.BuyPrice, draft.SellPrice, draft.Quantity, dateArg(draft.ExpiryDate),
			nullID(draft.SupplierID), draft.MinStockAlert)
		if err != nil {
			if s.dialect.IsUniqueViolation(err) {
				return store.ErrDuplicateBarcode
			}
			return err
		}

		_, err = s.insertID(ctx, tx, `
			INSERT INTO batches (medicine_id, batch_number, expiry_date, buy_price, sell_price, quantity, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, domain.OpeningStockLabel, dateArg(draft.ExpiryDate), draft.BuyPrice, draft.SellPrice,
			draft.Quantity, timeArg(s.now()))
		if err != nil {
			return err
		}

		m, err := s.getMedicine(ctx, tx, id, false)
		if err != nil {
			return err
		}
		created = *m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetMedicine(ctx context.Context, id int64) (*domain.Medicine, error) {
	m, err := s.getMedicine(ctx, s.db, id, false)
	if err != nil {
		return nil, s.classify(err)
	}
	return m, nil
}

func (s *Store) getMedicine(ctx context.Context, q sqlx.QueryerContext, id int64, lock bool) (*domain.Medicine, error) {
	query := `SELECT ` + medicineColumns + ` FROM medicines m WHERE m.id = ?`
	if lock {
		query += s.dialect.LockClause()
	}

	var row medicineRow
	if err := sqlx.GetContext(ctx, q, &row, s.db.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	m := row.toDomain()
	return &m, nil
}

func (s *Store) ListMedicines(ctx context.Context) ([]domain.Medicine, error) {
	var rows []medicineRow
	if err := s.selectAll(ctx, &rows, `SELECT `+medicineColumns+` FROM medicines m ORDER BY m.id DESC`); err != nil {
		return nil, err
	}
	return medicinesToDomain(rows), nil
}

func (s *Store) SearchMedicines(ctx context.Context, term string) ([]domain.Medicine, error) {
	pattern := likePattern(term)
	var rows []medicineRow
	err := s.selectAll(ctx, &rows, `
		SELECT `+medicineColumns+`
		FROM medicines m
		WHERE LOWER(m.name) LIKE ? ESCAPE '\'
			OR LOWER(COALESCE(m.barcode,'')) LIKE ? ESCAPE '\'
			OR LOWER(COALESCE(m.active_ingredient,'')) LIKE ? ESCAPE '\'
		ORDER BY m.id DESC
	`, pattern, pattern, pattern)
	if err != nil {
		return nil, err
	}
	return medicinesToDomain(rows), nil
}

// FindSellableMedicine resolves a POS scan: an exact barcode wins over a name match.
func (s *Store) FindSellableMedicine(ctx context.Context, term string) (*domain.Medicine, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, store.ErrNotFound
	}

	var rows []medicineRow
	err := s.selectAll(ctx, &rows, `
		SELECT `+medicineColumns+`
		FROM medicines m
		WHERE m.quantity > 0 AND (m.barcode = ? OR LOWER(m.name) LIKE ? ESCAPE '\')
		ORDER BY CASE WHEN m.barcode = ? THEN 0 ELSE 1 END, m.id
	`, term, likePattern(term), term)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	m := rows[0].toDomain()
	return &m, nil
}

func (s *Store) UpdateMedicine(ctx context.Context, update domain.MedicineUpdate) (*domain.Medicine, error) {
	var updated domain.Medicine
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if update.SupplierID != nil {
			if err := s.requireRow(ctx, tx, "suppliers", *update.SupplierID); err != nil {
				return err
			}
		}

		n, err := s.exec(ctx, tx, `
			UPDATE medicines
			SET barcode = ?, name = ?, active_ingredient = ?, description = ?,
				buy_price = ?, sell_price = ?, supplier_id = ?, min_stock_alert = ?
			WHERE id = ?
		`, nullIfEmpty(update.Barcode), update.Name, update.ActiveIngredient, update.Description,
			update.BuyPrice, update.SellPrice, nullID(update.SupplierID), update.MinStockAlert, update.ID)
		if err != nil {
			if s.dialect.IsUniqueViolation(err) {
				return store.ErrDuplicateBarcode
			}
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}

		m, err := s.getMedicine(ctx, tx, update.ID, false)
		if err != nil {
			return err
		}
		updated = *m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteMedicine removes a medicine and its batches. Medicines referenced by
// sale or purchase lines are kept and ErrReferentialConflict is returned.
func (s *Store) DeleteMedicine(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.getMedicine(ctx, tx, id, true); err != nil {
			return err
		}

		refs, err := s.count(ctx, tx, `
			SELECT (SELECT COUNT(*) FROM sale_items WHERE medicine_id = ?)
				+ (SELECT COUNT(*) FROM purchase_items WHERE medicine_id = ?)
		`, id, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return store.ErrReferentialConflict
		}

		if _, err := s.exec(ctx, tx, `DELETE FROM batches WHERE medicine_id = ?`, id); err != nil {
			return err
		}
		_, err = s.exec(ctx, tx, `DELETE FROM medicines WHERE id = ?`, id)
		return err
	})
}

func (s *Store) ClearMedicineStock(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.getMedicine(ctx, tx, id, true); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, `UPDATE batches SET quantity = 0 WHERE medicine_id = ?`, id); err != nil {
			return err
		}
		_, err := s.exec(ctx, tx, `UPDATE medicines SET quantity = 0 WHERE id = ?`, id)
		return err
	})
}

func (s *Store) ListBatches(ctx context.Context, medicineID int64) ([]domain.Batch, error) {
	if _, err := s.GetMedicine(ctx, medicineID); err != nil {
		return nil, err
	}

	var rows []batchRow
	err := s.selectAll(ctx, &rows, `
		SELECT `+batchColumns+`
		FROM batches b
		WHERE b.medicine_id = ?
		ORDER BY b.expiry_date, b.id
	`, medicineID)
	if err != nil {
		return nil, err
	}
	return batchesToDomain(rows), nil
}

// liveBatches loads the batches a sale may draw from, locked for update.
func (s *Store) liveBatches(ctx context.Context, tx *sqlx.Tx, medicineID int64) ([]domain.Batch, error) {
	var rows []batchRow
	query := `
		SELECT ` + batchColumns + `
		FROM batches b
		WHERE b.medicine_id = ? AND b.quantity > 0
		ORDER BY b.expiry_date, b.id` + s.dialect.LockClause()
	if err := tx.SelectContext(ctx, &rows, tx.Rebind(query), medicineID); err != nil {
		return nil, err
	}
	return batchesToDomain(rows), nil
}

// requireRow returns ErrNotFound unless table has a row with id.
func (s *Store) requireRow(ctx context.Context, tx *sqlx.Tx, table string, id int64) error {
	n, err := s.count(ctx, tx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
