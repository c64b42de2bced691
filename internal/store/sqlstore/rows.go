package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pharmapos/backend/internal/domain"
)

const timestampLayout = "2006-01-02 15:04:05"

// dbTime scans DATE/TIMESTAMP values from drivers that return time.Time
// (pgx) as well as drivers that hand back the stored text (sqlite).
type dbTime time.Time

var timeLayouts = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05",
	domain.DateLayout,
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = dbTime(time.Time{})
		return nil
	case time.Time:
		*t = dbTime(v.UTC())
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	default:
		return fmt.Errorf("cannot scan %T into time", src)
	}
}

func (t *dbTime) parse(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		*t = dbTime(time.Time{})
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			*t = dbTime(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("unrecognized time value %q", raw)
}

func (t dbTime) Time() time.Time {
	return time.Time(t)
}

func dateArg(t time.Time) string {
	return t.UTC().Format(domain.DateLayout)
}

func timeArg(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullID(val *int64) any {
	if val == nil || *val == 0 {
		return nil
	}
	return *val
}

func idPtr(val sql.NullInt64) *int64 {
	if !val.Valid {
		return nil
	}
	id := val.Int64
	return &id
}

const medicineColumns = `m.id, COALESCE(m.barcode,'') AS barcode, m.name,
	COALESCE(m.active_ingredient,'') AS active_ingredient, COALESCE(m.description,'') AS description,
	m.buy_price, m.sell_price, m.quantity, m.expiry_date, m.supplier_id, m.min_stock_alert`

type medicineRow struct {
	ID               int64           `db:"id"`
	Barcode          string          `db:"barcode"`
	Name             string          `db:"name"`
	ActiveIngredient string          `db:"active_ingredient"`
	Description      string          `db:"description"`
	BuyPrice         decimal.Decimal `db:"buy_price"`
	SellPrice        decimal.Decimal `db:"sell_price"`
	Quantity         int             `db:"quantity"`
	ExpiryDate       dbTime          `db:"expiry_date"`
	SupplierID       sql.NullInt64   `db:"supplier_id"`
	MinStockAlert    int             `db:"min_stock_alert"`
}

func (r medicineRow) toDomain() domain.Medicine {
	return domain.Medicine{
		ID:               r.ID,
		Barcode:          r.Barcode,
		Name:             r.Name,
		ActiveIngredient: r.ActiveIngredient,
		Description:      r.Description,
		BuyPrice:         r.BuyPrice,
		SellPrice:        r.SellPrice,
		Quantity:         r.Quantity,
		ExpiryDate:       r.ExpiryDate.Time(),
		SupplierID:       idPtr(r.SupplierID),
		MinStockAlert:    r.MinStockAlert,
	}
}

func medicinesToDomain(rows []medicineRow) []domain.Medicine {
	out := make([]domain.Medicine, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

const batchColumns = `b.id, b.medicine_id, COALESCE(b.batch_number,'') AS batch_number, b.expiry_date,
	b.buy_price, b.sell_price, b.quantity, b.created_at`

type batchRow struct {
	ID          int64           `db:"id"`
	MedicineID  int64           `db:"medicine_id"`
	BatchNumber string          `db:"batch_number"`
	ExpiryDate  dbTime          `db:"expiry_date"`
	BuyPrice    decimal.Decimal `db:"buy_price"`
	SellPrice   decimal.Decimal `db:"sell_price"`
	Quantity    int             `db:"quantity"`
	CreatedAt   dbTime          `db:"created_at"`
}

func batchesToDomain(rows []batchRow) []domain.Batch {
	out := make([]domain.Batch, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Batch{
			ID:          r.ID,
			MedicineID:  r.MedicineID,
			BatchNumber: r.BatchNumber,
			ExpiryDate:  r.ExpiryDate.Time(),
			BuyPrice:    r.BuyPrice,
			SellPrice:   r.SellPrice,
			Quantity:    r.Quantity,
			CreatedAt:   r.CreatedAt.Time(),
		})
	}
	return out
}

type saleRow struct {
	ID           int64           `db:"id"`
	UserID       int64           `db:"user_id"`
	Username     string          `db:"username"`
	CustomerID   sql.NullInt64   `db:"customer_id"`
	CustomerName string          `db:"customer_name"`
	DoctorName   string          `db:"doctor_name"`
	Total        decimal.Decimal `db:"total_amount"`
	CreatedAt    dbTime          `db:"created_at"`
}

func (r saleRow) toDomain() domain.Sale {
	return domain.Sale{
		ID:           r.ID,
		UserID:       r.UserID,
		Username:     r.Username,
		CustomerID:   idPtr(r.CustomerID),
		CustomerName: r.CustomerName,
		DoctorName:   r.DoctorName,
		Total:        r.Total,
		CreatedAt:    r.CreatedAt.Time(),
	}
}

type saleLineRow struct {
	ID           int64           `db:"id"`
	SaleID       int64           `db:"sale_id"`
	MedicineID   int64           `db:"medicine_id"`
	MedicineName string          `db:"medicine_name"`
	BatchID      int64           `db:"batch_id"`
	Quantity     int             `db:"quantity"`
	UnitPrice    decimal.Decimal `db:"unit_price"`
	LineTotal    decimal.Decimal `db:"line_total"`
}

type purchaseRow struct {
	ID            int64           `db:"id"`
	SupplierID    int64           `db:"supplier_id"`
	SupplierName  string          `db:"supplier_name"`
	InvoiceNumber string          `db:"invoice_number"`
	InvoiceDate   dbTime          `db:"invoice_date"`
	Total         decimal.Decimal `db:"total_amount"`
	Notes         string          `db:"notes"`
	CreatedAt     dbTime          `db:"created_at"`
}

func (r purchaseRow) toDomain() domain.PurchaseInvoice {
	return domain.PurchaseInvoice{
		ID:            r.ID,
		SupplierID:    r.SupplierID,
		SupplierName:  r.SupplierName,
		InvoiceNumber: r.InvoiceNumber,
		InvoiceDate:   r.InvoiceDate.Time(),
		Total:         r.Total,
		Notes:         r.Notes,
		CreatedAt:     r.CreatedAt.Time(),
	}
}

type purchaseLineRow struct {
	ID           int64           `db:"id"`
	PurchaseID   int64           `db:"purchase_id"`
	MedicineID   int64           `db:"medicine_id"`
	MedicineName string          `db:"medicine_name"`
	BatchID      int64           `db:"batch_id"`
	Quantity     int             `db:"quantity"`
	UnitCost     decimal.Decimal `db:"unit_cost"`
	LineTotal    decimal.Decimal `db:"total_cost"`
}

type customerRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Phone     string `db:"phone"`
	Email     string `db:"email"`
	Notes     string `db:"notes"`
	CreatedAt dbTime `db:"created_at"`
}

func customersToDomain(rows []customerRow) []domain.Customer {
	out := make([]domain.Customer, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Customer{
			ID:        r.ID,
			Name:      r.Name,
			Phone:     r.Phone,
			Email:     r.Email,
			Notes:     r.Notes,
			CreatedAt: r.CreatedAt.Time(),
		})
	}
	return out
}

type userRow struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	PasswordHash string `db:"password"`
	Role         string `db:"role"`
	CreatedAt    dbTime `db:"created_at"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt.Time(),
	}
}

type supplierRow struct {
	ID          int64           `db:"id"`
	Name        string          `db:"name"`
	Phone       string          `db:"phone"`
	CompanyName string          `db:"company_name"`
	Balance     decimal.Decimal `db:"balance"`
}

func (r supplierRow) toDomain() domain.Supplier {
	return domain.Supplier{
		ID:          r.ID,
		Name:        r.Name,
		Phone:       r.Phone,
		CompanyName: r.CompanyName,
		Balance:     r.Balance,
	}
}
