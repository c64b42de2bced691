package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"pharmapos/backend/internal/domain"
)

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierRequest) (domain.Supplier, error) {
	if err := s.check(req); err != nil {
		return domain.Supplier{}, err
	}
	balance := decimal.Zero
	if req.Balance != nil {
		balance = *req.Balance
	}
	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		Name:        strings.TrimSpace(req.Name),
		Phone:       strings.TrimSpace(req.Phone),
		CompanyName: strings.TrimSpace(req.CompanyName),
		Balance:     balance,
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	return *created, nil
}

// UpdateSupplier edits contact fields. The balance only moves with purchases.
func (s *Service) UpdateSupplier(ctx context.Context, id int64, req domain.SupplierRequest) (domain.Supplier, error) {
	if err := s.check(req); err != nil {
		return domain.Supplier{}, err
	}
	updated, err := s.repo.UpdateSupplier(ctx, domain.Supplier{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		Phone:       strings.TrimSpace(req.Phone),
		CompanyName: strings.TrimSpace(req.CompanyName),
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	return *updated, nil
}

func (s *Service) GetSupplier(ctx context.Context, id int64) (domain.Supplier, error) {
	sup, err := s.repo.GetSupplier(ctx, id)
	if err != nil {
		return domain.Supplier{}, err
	}
	return *sup, nil
}

func (s *Service) ListSuppliers(ctx context.Context, term string) ([]domain.Supplier, error) {
	if term = strings.TrimSpace(term); term != "" {
		return emptyOnConnection(s.repo.SearchSuppliers(ctx, term))
	}
	return emptyOnConnection(s.repo.ListSuppliers(ctx))
}

func (s *Service) DeleteSupplier(ctx context.Context, id int64) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	return s.repo.DeleteSupplier(ctx, id)
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.CustomerRequest) (domain.Customer, error) {
	if err := s.check(req); err != nil {
		return domain.Customer{}, err
	}
	created, err := s.repo.CreateCustomer(ctx, customerFromRequest(0, req))
	if err != nil {
		return domain.Customer{}, err
	}
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, req domain.CustomerRequest) (domain.Customer, error) {
	if err := s.check(req); err != nil {
		return domain.Customer{}, err
	}
	updated, err := s.repo.UpdateCustomer(ctx, customerFromRequest(id, req))
	if err != nil {
		return domain.Customer{}, err
	}
	return *updated, nil
}

func (s *Service) ListCustomers(ctx context.Context, term string) ([]domain.Customer, error) {
	if term = strings.TrimSpace(term); term != "" {
		return emptyOnConnection(s.repo.SearchCustomers(ctx, term))
	}
	return emptyOnConnection(s.repo.ListCustomers(ctx))
}

func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	return s.repo.DeleteCustomer(ctx, id)
}

func customerFromRequest(id int64, req domain.CustomerRequest) domain.Customer {
	return domain.Customer{
		ID:    id,
		Name:  strings.TrimSpace(req.Name),
		Phone: strings.TrimSpace(req.Phone),
		Email: strings.TrimSpace(req.Email),
		Notes: strings.TrimSpace(req.Notes),
	}
}
