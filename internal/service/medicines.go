package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmapos/backend/internal/domain"
)

func (s *Service) CreateMedicine(ctx context.Context, req domain.MedicineCreateRequest) (domain.Medicine, error) {
	if err := s.check(req); err != nil {
		return domain.Medicine{}, err
	}
	if err := nonNegative("buy_price", req.BuyPrice); err != nil {
		return domain.Medicine{}, err
	}
	if err := nonNegative("sell_price", req.SellPrice); err != nil {
		return domain.Medicine{}, err
	}
	expiry, err := parseDate("expiry_date", req.ExpiryDate)
	if err != nil {
		return domain.Medicine{}, err
	}

	threshold := s.reorderThreshold
	if req.MinStockAlert != nil {
		threshold = *req.MinStockAlert
	}
	barcode := strings.TrimSpace(req.Barcode)
	name := strings.TrimSpace(req.Name)
	if barcode == "" || name == "" {
		return domain.Medicine{}, invalid("barcode and name are required")
	}

	created, err := s.repo.CreateMedicine(ctx, domain.MedicineDraft{
		Barcode:          barcode,
		Name:             name,
		ActiveIngredient: strings.TrimSpace(req.ActiveIngredient),
		Description:      strings.TrimSpace(req.Description),
		BuyPrice:         req.BuyPrice,
		SellPrice:        req.SellPrice,
		Quantity:         req.Quantity,
		ExpiryDate:       expiry,
		SupplierID:       req.SupplierID,
		MinStockAlert:    threshold,
	})
	if err != nil {
		return domain.Medicine{}, err
	}

	s.invalidate(ctx)
	s.logger(ctx).Info("medicine created",
		zap.Int64("medicine_id", created.ID),
		zap.String("barcode", created.Barcode),
		zap.Int("opening_quantity", created.Quantity),
	)
	return *created, nil
}

func (s *Service) GetMedicine(ctx context.Context, id int64) (domain.Medicine, error) {
	m, err := s.repo.GetMedicine(ctx, id)
	if err != nil {
		return domain.Medicine{}, err
	}
	return *m, nil
}

// ListMedicines returns the catalog newest first, or the matches for term.
func (s *Service) ListMedicines(ctx context.Context, term string) ([]domain.Medicine, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return emptyOnConnection(s.repo.ListMedicines(ctx))
	}
	return emptyOnConnection(s.repo.SearchMedicines(ctx, term))
}

// LookupMedicine resolves a scanned barcode or typed name to an in-stock medicine.
func (s *Service) LookupMedicine(ctx context.Context, term string) (domain.Medicine, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return domain.Medicine{}, invalid("lookup term is required")
	}
	m, err := s.repo.FindSellableMedicine(ctx, term)
	if err != nil {
		return domain.Medicine{}, err
	}
	return *m, nil
}

func (s *Service) UpdateMedicine(ctx context.Context, id int64, req domain.MedicineUpdateRequest) (domain.Medicine, error) {
	if err := s.check(req); err != nil {
		return domain.Medicine{}, err
	}
	if err := nonNegative("buy_price", req.BuyPrice); err != nil {
		return domain.Medicine{}, err
	}
	if err := nonNegative("sell_price", req.SellPrice); err != nil {
		return domain.Medicine{}, err
	}

	updated, err := s.repo.UpdateMedicine(ctx, domain.MedicineUpdate{
		ID:               id,
		Barcode:          strings.TrimSpace(req.Barcode),
		Name:             strings.TrimSpace(req.Name),
		ActiveIngredient: strings.TrimSpace(req.ActiveIngredient),
		Description:      strings.TrimSpace(req.Description),
		BuyPrice:         req.BuyPrice,
		SellPrice:        req.SellPrice,
		SupplierID:       req.SupplierID,
		MinStockAlert:    req.MinStockAlert,
	})
	if err != nil {
		return domain.Medicine{}, err
	}
	s.invalidate(ctx)
	return *updated, nil
}

func (s *Service) DeleteMedicine(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.DeleteMedicine(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.logger(ctx).Info("medicine deleted", zap.Int64("medicine_id", id))
	return nil
}

// ClearStock zeroes every batch of a medicine and its aggregate quantity.
func (s *Service) ClearStock(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if err := s.repo.ClearMedicineStock(ctx, id); err != nil {
		return err
	}
	s.metrics.StockCleared()
	s.invalidate(ctx)
	s.logger(ctx).Info("medicine stock cleared", zap.Int64("medicine_id", id))
	return nil
}

func (s *Service) ListBatches(ctx context.Context, medicineID int64) ([]domain.Batch, error) {
	if _, err := s.repo.GetMedicine(ctx, medicineID); err != nil {
		return emptyOnConnection[domain.Batch](nil, err)
	}
	return emptyOnConnection(s.repo.ListBatches(ctx, medicineID))
}

func nonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return invalid("%s must not be negative", field)
	}
	return nil
}
