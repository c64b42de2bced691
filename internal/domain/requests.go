package domain

import "github.com/shopspring/decimal"

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type MedicineCreateRequest struct {
	Barcode          string          `json:"barcode" validate:"required,max=64"`
	Name             string          `json:"name" validate:"required,max=200"`
	ActiveIngredient string          `json:"active_ingredient" validate:"max=200"`
	Description      string          `json:"description"`
	BuyPrice         decimal.Decimal `json:"buy_price"`
	SellPrice        decimal.Decimal `json:"sell_price"`
	Quantity         int             `json:"quantity" validate:"gte=0"`
	ExpiryDate       string          `json:"expiry_date" validate:"required,datetime=2006-01-02"`
	SupplierID       *int64          `json:"supplier_id,omitempty" validate:"omitempty,gt=0"`
	MinStockAlert    *int            `json:"min_stock_alert,omitempty" validate:"omitempty,gte=0"`
}

type MedicineUpdateRequest struct {
	Barcode          string          `json:"barcode" validate:"max=64"`
	Name             string          `json:"name" validate:"required,max=200"`
	ActiveIngredient string          `json:"active_ingredient" validate:"max=200"`
	Description      string          `json:"description"`
	BuyPrice         decimal.Decimal `json:"buy_price"`
	SellPrice        decimal.Decimal `json:"sell_price"`
	SupplierID       *int64          `json:"supplier_id,omitempty" validate:"omitempty,gt=0"`
	MinStockAlert    int             `json:"min_stock_alert" validate:"gte=0"`
}

type SaleItemRequest struct {
	MedicineID int64 `json:"medicine_id" validate:"required,gt=0"`
	Quantity   int   `json:"quantity" validate:"required,gte=1"`

	// UnitPrice defaults to the medicine's reference sell price when omitted.
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type SaleRequest struct {
	CustomerID *int64            `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	DoctorName string            `json:"doctor_name" validate:"max=200"`
	Items      []SaleItemRequest `json:"items" validate:"required,min=1,dive"`
}

type PurchaseItemRequest struct {
	MedicineID int64            `json:"medicine_id" validate:"required,gt=0"`
	Quantity   int              `json:"quantity" validate:"required,gte=1"`
	UnitCost   decimal.Decimal  `json:"unit_cost"`
	SellPrice  *decimal.Decimal `json:"sell_price,omitempty"`
	ExpiryDate string           `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
}

type PurchaseRequest struct {
	SupplierID    int64                 `json:"supplier_id" validate:"required,gt=0"`
	InvoiceNumber string                `json:"invoice_number" validate:"required,max=64"`
	InvoiceDate   string                `json:"invoice_date" validate:"required,datetime=2006-01-02"`
	Notes         string                `json:"notes"`
	Items         []PurchaseItemRequest `json:"items" validate:"required,min=1,dive"`
}

type SupplierRequest struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Phone       string           `json:"phone" validate:"max=40"`
	CompanyName string           `json:"company_name" validate:"max=200"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
}

type CustomerRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone" validate:"max=40"`
	Email string `json:"email" validate:"omitempty,email"`
	Notes string `json:"notes"`
}

type UserCreateRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=admin pharmacist"`
}

type PasswordChangeRequest struct {
	Password string `json:"password" validate:"required"`
}

type ReceiptResponse struct {
	SaleID       int64  `json:"sale_id"`
	PreviewText  string `json:"preview_text"`
	EscposBase64 string `json:"escpos_base64"`
	FileName     string `json:"file_name"`
}
