package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pharmapos/backend/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConnection          = errors.New("store unavailable")
	ErrDuplicateBarcode    = errors.New("barcode already exists")
	ErrDuplicateUsername   = errors.New("username already exists")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrReferentialConflict = errors.New("record is referenced by other records")
	ErrValidation          = errors.New("validation failed")
	ErrProtectedAccount    = errors.New("account is protected")
)

// InsufficientStockError identifies the medicine that could not be fulfilled.
type InsufficientStockError struct {
	MedicineID int64
	Requested  int
	Available  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for medicine %d: requested %d, available %d", e.MedicineID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

type Repository interface {
	// Init creates the schema when missing and seeds the default admin account.
	Init(ctx context.Context) error
	Close() error

	CreateMedicine(ctx context.Context, draft domain.MedicineDraft) (*domain.Medicine, error)
	GetMedicine(ctx context.Context, id int64) (*domain.Medicine, error)
	ListMedicines(ctx context.Context) ([]domain.Medicine, error)
	SearchMedicines(ctx context.Context, term string) ([]domain.Medicine, error)
	FindSellableMedicine(ctx context.Context, term string) (*domain.Medicine, error)
	UpdateMedicine(ctx context.Context, update domain.MedicineUpdate) (*domain.Medicine, error)
	DeleteMedicine(ctx context.Context, id int64) error
	ClearMedicineStock(ctx context.Context, id int64) error
	ListBatches(ctx context.Context, medicineID int64) ([]domain.Batch, error)

	CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error)
	GetSale(ctx context.Context, id int64) (*domain.Sale, error)
	ListSales(ctx context.Context, window domain.DateRange) ([]domain.Sale, error)

	CreatePurchase(ctx context.Context, draft domain.PurchaseDraft) (*domain.PurchaseInvoice, error)
	GetPurchase(ctx context.Context, id int64) (*domain.PurchaseInvoice, error)
	ListPurchases(ctx context.Context, window domain.DateRange) ([]domain.PurchaseInvoice, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplier(ctx context.Context, id int64) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	SearchSuppliers(ctx context.Context, term string) ([]domain.Supplier, error)
	DeleteSupplier(ctx context.Context, id int64) error

	CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	SearchCustomers(ctx context.Context, term string) ([]domain.Customer, error)
	DeleteCustomer(ctx context.Context, id int64) error

	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateUserPassword(ctx context.Context, username string, passwordHash string) error
	DeleteUser(ctx context.Context, id int64) error

	DashboardStats(ctx context.Context, today time.Time, horizon time.Time) (domain.DashboardStats, error)
	LowStock(ctx context.Context) ([]domain.LowStockItem, error)
	ExpiringBatches(ctx context.Context, from time.Time, to time.Time) ([]domain.ExpiringBatch, error)
	FinancialSummary(ctx context.Context, window domain.DateRange) (domain.FinancialSummary, error)
	StockDiscrepancies(ctx context.Context) ([]domain.StockDiscrepancy, error)
}

// ConnectionError marks err as a store connectivity failure while keeping the cause.
func ConnectionError(err error) error {
	if err == nil || errors.Is(err, ErrConnection) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}
