package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/store"
)

const supplierColumns = `id, name, COALESCE(phone,'') AS phone, COALESCE(company_name,'') AS company_name, balance`

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.insertID(ctx, tx, `
			INSERT INTO suppliers (name, phone, company_name, balance)
			VALUES (?, ?, ?, ?)
		`, supplier.Name, nullIfEmpty(supplier.Phone), nullIfEmpty(supplier.CompanyName), supplier.Balance)
		if err != nil {
			return err
		}
		supplier.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

// UpdateSupplier edits contact details. The balance is owned by purchase intake.
func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	var updated domain.Supplier
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		n, err := s.exec(ctx, tx, `
			UPDATE suppliers SET name = ?, phone = ?, company_name = ? WHERE id = ?
		`, supplier.Name, nullIfEmpty(supplier.Phone), nullIfEmpty(supplier.CompanyName), supplier.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}

		var row supplierRow
		if err := tx.GetContext(ctx, &row, tx.Rebind(`SELECT `+supplierColumns+` FROM suppliers WHERE id = ?`), supplier.ID); err != nil {
			return err
		}
		updated = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error) {
	var row supplierRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+supplierColumns+` FROM suppliers WHERE id = ?`), id); err != nil {
		return nil, s.classify(err)
	}
	supplier := row.toDomain()
	return &supplier, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	var rows []supplierRow
	if err := s.selectAll(ctx, &rows, `SELECT `+supplierColumns+` FROM suppliers ORDER BY name, id`); err != nil {
		return nil, err
	}
	return suppliersToDomain(rows), nil
}

func (s *Store) SearchSuppliers(ctx context.Context, term string) ([]domain.Supplier, error) {
	pattern := likePattern(term)
	var rows []supplierRow
	err := s.selectAll(ctx, &rows, `
		SELECT `+supplierColumns+`
		FROM suppliers
		WHERE LOWER(name) LIKE ? ESCAPE '\'
			OR LOWER(COALESCE(company_name,'')) LIKE ? ESCAPE '\'
			OR LOWER(COALESCE(phone,'')) LIKE ? ESCAPE '\'
		ORDER BY name, id
	`, pattern, pattern, pattern)
	if err != nil {
		return nil, err
	}
	return suppliersToDomain(rows), nil
}

func (s *Store) DeleteSupplier(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.requireRow(ctx, tx, "suppliers", id); err != nil {
			return err
		}
		refs, err := s.count(ctx, tx, `
			SELECT (SELECT COUNT(*) FROM medicines WHERE supplier_id = ?)
				+ (SELECT COUNT(*) FROM purchase_invoices WHERE supplier_id = ?)
		`, id, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return store.ErrReferentialConflict
		}
		_, err = s.exec(ctx, tx, `DELETE FROM suppliers WHERE id = ?`, id)
		return err
	})
}

func suppliersToDomain(rows []supplierRow) []domain.Supplier {
	out := make([]domain.Supplier, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

const customerColumns = `id, name, COALESCE(phone,'') AS phone, COALESCE(email,'') AS email,
	COALESCE(notes,'') AS notes, created_at`

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = s.now()
	}
	customer.CreatedAt = customer.CreatedAt.UTC().Truncate(time.Second)

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := s.insertID(ctx, tx, `
			INSERT INTO customers (name, phone, email, notes, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, customer.Name, nullIfEmpty(customer.Phone), nullIfEmpty(customer.Email), nullIfEmpty(customer.Notes),
			timeArg(customer.CreatedAt))
		if err != nil {
			return err
		}
		customer.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	var updated domain.Customer
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		n, err := s.exec(ctx, tx, `
			UPDATE customers SET name = ?, phone = ?, email = ?, notes = ? WHERE id = ?
		`, customer.Name, nullIfEmpty(customer.Phone), nullIfEmpty(customer.Email), nullIfEmpty(customer.Notes), customer.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}

		var rows []customerRow
		if err := tx.SelectContext(ctx, &rows, tx.Rebind(`SELECT `+customerColumns+` FROM customers WHERE id = ?`), customer.ID); err != nil {
			return err
		}
		if len(rows) == 0 {
			return store.ErrNotFound
		}
		updated = customersToDomain(rows)[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	var rows []customerRow
	if err := s.selectAll(ctx, &rows, `SELECT `+customerColumns+` FROM customers ORDER BY name, id`); err != nil {
		return nil, err
	}
	return customersToDomain(rows), nil
}

func (s *Store) SearchCustomers(ctx context.Context, term string) ([]domain.Customer, error) {
	pattern := likePattern(term)
	var rows []customerRow
	err := s.selectAll(ctx, &rows, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE LOWER(name) LIKE ? ESCAPE '\'
			OR LOWER(COALESCE(phone,'')) LIKE ? ESCAPE '\'
			OR LOWER(COALESCE(email,'')) LIKE ? ESCAPE '\'
		ORDER BY name, id
	`, pattern, pattern, pattern)
	if err != nil {
		return nil, err
	}
	return customersToDomain(rows), nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.requireRow(ctx, tx, "customers", id); err != nil {
			return err
		}
		refs, err := s.count(ctx, tx, `SELECT COUNT(*) FROM sales WHERE customer_id = ?`, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return store.ErrReferentialConflict
		}
		_, err = s.exec(ctx, tx, `DELETE FROM customers WHERE id = ?`, id)
		return err
	})
}
