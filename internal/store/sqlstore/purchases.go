package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/ledger"
	"pharmapos/backend/internal/store"
)

// CreatePurchase commits an invoice: each item becomes a new batch, raises
// the medicine aggregate and sets its reference buy price. The supplier
// balance grows by the invoice total.
func (s *Store) CreatePurchase(ctx context.Context, draft domain.PurchaseDraft) (*domain.PurchaseInvoice, error) {
	if len(draft.Items) == 0 {
		return nil, store.ErrValidation
	}
	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	total := decimal.Zero
	for _, item := range draft.Items {
		total = total.Add(item.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	invoice := domain.PurchaseInvoice{
		SupplierID:    draft.SupplierID,
		InvoiceNumber: draft.InvoiceNumber,
		InvoiceDate:   domain.DateOnly(draft.InvoiceDate),
		Total:         total,
		Notes:         draft.Notes,
		CreatedAt:     createdAt.UTC().Truncate(time.Second),
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var supplierName string
		err := tx.GetContext(ctx, &supplierName, tx.Rebind(`SELECT name FROM suppliers WHERE id = ?`+s.dialect.LockClause()), draft.SupplierID)
		if err != nil {
			return err
		}
		invoice.SupplierName = supplierName

		invoiceID, err := s.insertID(ctx, tx, `
			INSERT INTO purchase_invoices (supplier_id, invoice_number, invoice_date, total_amount, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, draft.SupplierID, draft.InvoiceNumber, dateArg(draft.InvoiceDate), total, nullIfEmpty(draft.Notes), timeArg(createdAt))
		if err != nil {
			return err
		}
		invoice.ID = invoiceID

		for i, item := range draft.Items {
			line, err := s.receive(ctx, tx, draft, invoiceID, i, item)
			if err != nil {
				return err
			}
			invoice.Lines = append(invoice.Lines, line)
		}

		_, err = s.exec(ctx, tx, `UPDATE suppliers SET balance = balance + ? WHERE id = ?`, total, draft.SupplierID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (s *Store) receive(ctx context.Context, tx *sqlx.Tx, draft domain.PurchaseDraft, invoiceID int64, index int, item domain.PurchaseItem) (domain.PurchaseLine, error) {
	if item.Quantity < 1 {
		return domain.PurchaseLine{}, store.ErrValidation
	}
	med, err := s.getMedicine(ctx, tx, item.MedicineID, true)
	if err != nil {
		return domain.PurchaseLine{}, err
	}

	expiry := item.ExpiryDate
	if expiry.IsZero() {
		expiry = draft.InvoiceDate
	}
	sellPrice := med.SellPrice
	if item.SellPrice != nil {
		sellPrice = *item.SellPrice
	}

	batchID, err := s.insertID(ctx, tx, `
		INSERT INTO batches (medicine_id, batch_number, expiry_date, buy_price, sell_price, quantity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, item.MedicineID, ledger.BatchLabel(draft.InvoiceNumber, index), dateArg(expiry), item.UnitCost, sellPrice,
		item.Quantity, timeArg(s.now()))
	if err != nil {
		return domain.PurchaseLine{}, err
	}

	lineTotal := item.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity)))
	lineID, err := s.insertID(ctx, tx, `
		INSERT INTO purchase_items (purchase_id, medicine_id, batch_id, quantity, unit_cost, total_cost)
		VALUES (?, ?, ?, ?, ?, ?)
	`, invoiceID, item.MedicineID, batchID, item.Quantity, item.UnitCost, lineTotal)
	if err != nil {
		return domain.PurchaseLine{}, err
	}

	if _, err := s.exec(ctx, tx, `
		UPDATE medicines SET quantity = quantity + ?, buy_price = ? WHERE id = ?
	`, item.Quantity, item.UnitCost, item.MedicineID); err != nil {
		return domain.PurchaseLine{}, err
	}

	return domain.PurchaseLine{
		ID:           lineID,
		PurchaseID:   invoiceID,
		MedicineID:   item.MedicineID,
		MedicineName: med.Name,
		BatchID:      batchID,
		Quantity:     item.Quantity,
		UnitCost:     item.UnitCost,
		LineTotal:    lineTotal,
	}, nil
}

const purchaseHeaderQuery = `
	SELECT p.id, p.supplier_id, COALESCE(s.name, '') AS supplier_name, COALESCE(p.invoice_number, '') AS invoice_number,
		p.invoice_date, p.total_amount, COALESCE(p.notes, '') AS notes, p.created_at
	FROM purchase_invoices p
	LEFT JOIN suppliers s ON s.id = p.supplier_id`

func (s *Store) GetPurchase(ctx context.Context, id int64) (*domain.PurchaseInvoice, error) {
	var header purchaseRow
	if err := s.db.GetContext(ctx, &header, s.db.Rebind(purchaseHeaderQuery+` WHERE p.id = ?`), id); err != nil {
		return nil, s.classify(err)
	}

	var lines []purchaseLineRow
	err := s.selectAll(ctx, &lines, `
		SELECT pi.id, pi.purchase_id, pi.medicine_id, m.name AS medicine_name, pi.batch_id,
			pi.quantity, pi.unit_cost, pi.total_cost
		FROM purchase_items pi
		JOIN medicines m ON m.id = pi.medicine_id
		WHERE pi.purchase_id = ?
		ORDER BY pi.id
	`, id)
	if err != nil {
		return nil, err
	}

	invoice := header.toDomain()
	invoice.Lines = make([]domain.PurchaseLine, 0, len(lines))
	for _, l := range lines {
		invoice.Lines = append(invoice.Lines, domain.PurchaseLine(l))
	}
	return &invoice, nil
}

func (s *Store) ListPurchases(ctx context.Context, window domain.DateRange) ([]domain.PurchaseInvoice, error) {
	clause, args := windowClause("p.invoice_date", window, true)

	var rows []purchaseRow
	if err := s.selectAll(ctx, &rows, purchaseHeaderQuery+` WHERE `+clause+` ORDER BY p.invoice_date DESC, p.id DESC`, args...); err != nil {
		return nil, err
	}
	out := make([]domain.PurchaseInvoice, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
