package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"pharmapos/backend/internal/domain"
)

// CreatePurchase commits a supplier invoice. Each line becomes a new batch.
// A line without an expiry date takes the invoice date unless strict expiry
// is configured.
func (s *Service) CreatePurchase(ctx context.Context, req domain.PurchaseRequest) (domain.PurchaseInvoice, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.PurchaseInvoice{}, err
	}
	if err := s.check(req); err != nil {
		return domain.PurchaseInvoice{}, err
	}
	invoiceDate, err := parseDate("invoice_date", req.InvoiceDate)
	if err != nil {
		return domain.PurchaseInvoice{}, err
	}

	draft := domain.PurchaseDraft{
		SupplierID:    req.SupplierID,
		InvoiceNumber: strings.TrimSpace(req.InvoiceNumber),
		InvoiceDate:   invoiceDate,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     s.now(),
		Items:         make([]domain.PurchaseItem, 0, len(req.Items)),
	}
	if draft.InvoiceNumber == "" {
		return domain.PurchaseInvoice{}, invalid("invoice_number is required")
	}

	units := 0
	for i, item := range req.Items {
		if item.UnitCost.IsNegative() {
			return domain.PurchaseInvoice{}, invalid("items[%d].unit_cost must not be negative", i)
		}
		if item.SellPrice != nil && item.SellPrice.IsNegative() {
			return domain.PurchaseInvoice{}, invalid("items[%d].sell_price must not be negative", i)
		}

		expiry := invoiceDate
		if strings.TrimSpace(item.ExpiryDate) != "" {
			if expiry, err = parseDate("expiry_date", item.ExpiryDate); err != nil {
				return domain.PurchaseInvoice{}, err
			}
		} else if s.requireExpiry {
			return domain.PurchaseInvoice{}, invalid("items[%d].expiry_date is required", i)
		} else {
			s.logger(ctx).Warn("purchase line has no expiry date, using invoice date",
				zap.String("invoice_number", draft.InvoiceNumber),
				zap.Int("line", i+1),
				zap.Int64("medicine_id", item.MedicineID),
			)
		}

		draft.Items = append(draft.Items, domain.PurchaseItem{
			MedicineID: item.MedicineID,
			Quantity:   item.Quantity,
			UnitCost:   item.UnitCost,
			SellPrice:  item.SellPrice,
			ExpiryDate: expiry,
		})
		units += item.Quantity
	}

	invoice, err := s.repo.CreatePurchase(ctx, draft)
	if err != nil {
		return domain.PurchaseInvoice{}, err
	}

	s.metrics.PurchaseCommitted(units)
	s.invalidate(ctx)
	s.logger(ctx).Info("purchase committed",
		zap.Int64("purchase_id", invoice.ID),
		zap.Int64("supplier_id", invoice.SupplierID),
		zap.String("total", invoice.Total.StringFixed(2)),
	)
	return *invoice, nil
}

func (s *Service) GetPurchase(ctx context.Context, id int64) (domain.PurchaseInvoice, error) {
	invoice, err := s.repo.GetPurchase(ctx, id)
	if err != nil {
		return domain.PurchaseInvoice{}, err
	}
	return *invoice, nil
}

func (s *Service) PurchasesReport(ctx context.Context, from string, to string) ([]domain.PurchaseInvoice, error) {
	window, err := dayWindow(from, to)
	if err != nil {
		return []domain.PurchaseInvoice{}, err
	}
	return emptyOnConnection(s.repo.ListPurchases(ctx, window))
}
