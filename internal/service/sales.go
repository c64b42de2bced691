package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/receipt"
	"pharmapos/backend/internal/store"
)

// CreateSale prices every item and fulfills the sale from batches in expiry
// order. Items without a unit price are charged the medicine's sell price;
// an explicit zero records a free line.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	if err := s.check(req); err != nil {
		return domain.Sale{}, err
	}

	draft := domain.SaleDraft{
		CustomerID: req.CustomerID,
		DoctorName: strings.TrimSpace(req.DoctorName),
		CreatedAt:  s.now(),
		Items:      make([]domain.SaleItem, 0, len(req.Items)),
	}
	if actor, ok := ActorFromContext(ctx); ok {
		draft.UserID = actor.UserID
	}

	units := 0
	for i, item := range req.Items {
		var price decimal.Decimal
		if item.UnitPrice != nil {
			price = *item.UnitPrice
			if price.IsNegative() {
				return domain.Sale{}, invalid("items[%d].unit_price must not be negative", i)
			}
		} else {
			med, err := s.repo.GetMedicine(ctx, item.MedicineID)
			if err != nil {
				return domain.Sale{}, err
			}
			price = med.SellPrice
		}
		draft.Items = append(draft.Items, domain.SaleItem{
			MedicineID: item.MedicineID,
			Quantity:   item.Quantity,
			UnitPrice:  price,
		})
		units += item.Quantity
	}

	sale, err := s.repo.CreateSale(ctx, draft)
	if err != nil {
		var short *store.InsufficientStockError
		if errors.As(err, &short) {
			s.metrics.InsufficientStock()
			s.logger(ctx).Warn("sale rejected",
				zap.Int64("medicine_id", short.MedicineID),
				zap.Int("requested", short.Requested),
				zap.Int("available", short.Available),
			)
		}
		return domain.Sale{}, err
	}

	s.metrics.SaleCommitted(units)
	s.invalidate(ctx)
	s.logger(ctx).Info("sale committed",
		zap.Int64("sale_id", sale.ID),
		zap.Int("lines", len(sale.Lines)),
		zap.String("total", sale.Total.StringFixed(2)),
	)
	return *sale, nil
}

func (s *Service) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// SalesReport lists sale headers whose timestamp falls on a day in [from, to].
func (s *Service) SalesReport(ctx context.Context, from string, to string) ([]domain.Sale, error) {
	window, err := dayWindow(from, to)
	if err != nil {
		return []domain.Sale{}, err
	}
	return emptyOnConnection(s.repo.ListSales(ctx, window))
}

// Receipt renders a committed sale for printing.
func (s *Service) Receipt(ctx context.Context, saleID int64) (receipt.Document, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return receipt.Document{}, err
	}
	return receipt.Build(*sale, sale.Username)
}
