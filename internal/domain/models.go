package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OpeningStockLabel = "OPENING_STOCK"

	RoleAdmin      = "admin"
	RolePharmacist = "pharmacist"

	DefaultAdminUsername = "admin"
	DateLayout           = "2006-01-02"
)

type Medicine struct {
	ID               int64           `json:"id"`
	Barcode          string          `json:"barcode"`
	Name             string          `json:"name"`
	ActiveIngredient string          `json:"active_ingredient"`
	Description      string          `json:"description"`
	BuyPrice         decimal.Decimal `json:"buy_price"`
	SellPrice        decimal.Decimal `json:"sell_price"`
	Quantity         int             `json:"quantity"`
	ExpiryDate       time.Time       `json:"expiry_date"`
	SupplierID       *int64          `json:"supplier_id,omitempty"`
	MinStockAlert    int             `json:"min_stock_alert"`
}

// MedicineDraft is the catalog row plus the opening lot it is registered with.
type MedicineDraft struct {
	Barcode          string
	Name             string
	ActiveIngredient string
	Description      string
	BuyPrice         decimal.Decimal
	SellPrice        decimal.Decimal
	Quantity         int
	ExpiryDate       time.Time
	SupplierID       *int64
	MinStockAlert    int
}

// MedicineUpdate carries catalog fields only. Quantity is owned by the batch ledger.
type MedicineUpdate struct {
	ID               int64
	Barcode          string
	Name             string
	ActiveIngredient string
	Description      string
	BuyPrice         decimal.Decimal
	SellPrice        decimal.Decimal
	SupplierID       *int64
	MinStockAlert    int
}

type Batch struct {
	ID          int64           `json:"id"`
	MedicineID  int64           `json:"medicine_id"`
	BatchNumber string          `json:"batch_number"`
	ExpiryDate  time.Time       `json:"expiry_date"`
	BuyPrice    decimal.Decimal `json:"buy_price"`
	SellPrice   decimal.Decimal `json:"sell_price"`
	Quantity    int             `json:"quantity"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Allocation is one slice of a requested sale quantity taken from a single batch.
type Allocation struct {
	BatchID   int64           `json:"batch_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type SaleItem struct {
	MedicineID int64
	Quantity   int
	UnitPrice  decimal.Decimal
}

type SaleDraft struct {
	UserID     int64
	CustomerID *int64
	DoctorName string
	CreatedAt  time.Time
	Items      []SaleItem
}

type Sale struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Username     string          `json:"username,omitempty"`
	CustomerID   *int64          `json:"customer_id,omitempty"`
	CustomerName string          `json:"customer_name,omitempty"`
	DoctorName   string          `json:"doctor_name,omitempty"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
	Lines        []SaleLine      `json:"lines,omitempty"`
}

type SaleLine struct {
	ID           int64           `json:"id"`
	SaleID       int64           `json:"sale_id"`
	MedicineID   int64           `json:"medicine_id"`
	MedicineName string          `json:"medicine_name,omitempty"`
	BatchID      int64           `json:"batch_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type PurchaseItem struct {
	MedicineID int64
	Quantity   int
	UnitCost   decimal.Decimal
	// SellPrice overrides the medicine's reference sell price for the new batch when set.
	SellPrice  *decimal.Decimal
	ExpiryDate time.Time
}

// PurchaseDraft is an invoice before commit. Its total is derived from the items.
type PurchaseDraft struct {
	SupplierID    int64
	InvoiceNumber string
	InvoiceDate   time.Time
	Notes         string
	CreatedAt     time.Time
	Items         []PurchaseItem
}

type PurchaseInvoice struct {
	ID            int64           `json:"id"`
	SupplierID    int64           `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name,omitempty"`
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   time.Time       `json:"invoice_date"`
	Total         decimal.Decimal `json:"total"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Lines         []PurchaseLine  `json:"lines,omitempty"`
}

type PurchaseLine struct {
	ID           int64           `json:"id"`
	PurchaseID   int64           `json:"purchase_id"`
	MedicineID   int64           `json:"medicine_id"`
	MedicineName string          `json:"medicine_name,omitempty"`
	BatchID      int64           `json:"batch_id"`
	Quantity     int             `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type Supplier struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	CompanyName string          `json:"company_name"`
	Balance     decimal.Decimal `json:"balance"`
}

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// User is the persisted account. PasswordHash never leaves the service layer.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type Actor struct {
	UserID   int64
	Username string
	Role     string
}

type DashboardStats struct {
	TotalMedicines int             `json:"total_medicines"`
	LowStock       int             `json:"low_stock"`
	TodaySales     decimal.Decimal `json:"today_sales"`
	UsersCount     int             `json:"users_count"`
	ExpiringSoon   int             `json:"expiring_soon"`
}

type LowStockItem struct {
	MedicineID    int64  `json:"medicine_id"`
	Barcode       string `json:"barcode"`
	Name          string `json:"name"`
	Quantity      int    `json:"quantity"`
	MinStockAlert int    `json:"min_stock_alert"`
	SupplierName  string `json:"supplier_name,omitempty"`
}

type ExpiringBatch struct {
	BatchID      int64     `json:"batch_id"`
	MedicineID   int64     `json:"medicine_id"`
	MedicineName string    `json:"medicine_name"`
	BatchNumber  string    `json:"batch_number"`
	ExpiryDate   time.Time `json:"expiry_date"`
	Quantity     int       `json:"quantity"`
}

type FinancialSummary struct {
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Sales     decimal.Decimal `json:"sales"`
	Purchases decimal.Decimal `json:"purchases"`
	Profit    decimal.Decimal `json:"profit"`
}

// StockDiscrepancy reports a medicine whose aggregate quantity disagrees with its batches.
type StockDiscrepancy struct {
	MedicineID int64  `json:"medicine_id"`
	Name       string `json:"name"`
	Aggregate  int    `json:"aggregate"`
	BatchSum   int    `json:"batch_sum"`
}

// DateRange bounds report queries. A zero From or To leaves that side open.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// Bounds reports the range as inclusive YYYY-MM-DD days. An open side is
// returned as an empty string.
func (r DateRange) Bounds() (from string, to string) {
	if !r.From.IsZero() {
		from = DateOnly(r.From).Format(DateLayout)
	}
	if !r.To.IsZero() {
		to = DateOnly(r.To.Add(-time.Nanosecond)).Format(DateLayout)
	}
	return from, to
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
