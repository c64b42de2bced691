package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pharmapos/backend/internal/auth"
	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/ledger"
	"pharmapos/backend/internal/store"
)

var errClosed = errors.New("memory store is closed")

// Store keeps the whole ledger in process memory. One mutex guards every
// operation; mutations are staged on copies and committed only when the
// whole operation succeeds.
type Store struct {
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
	lastID map[string]int64

	medicines     map[int64]domain.Medicine
	batches       map[int64]domain.Batch
	sales         map[int64]domain.Sale
	saleLines     map[int64][]domain.SaleLine
	purchases     map[int64]domain.PurchaseInvoice
	purchaseLines map[int64][]domain.PurchaseLine
	suppliers     map[int64]domain.Supplier
	customers     map[int64]domain.Customer
	users         map[int64]domain.User
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		now:           time.Now,
		lastID:        map[string]int64{},
		medicines:     map[int64]domain.Medicine{},
		batches:       map[int64]domain.Batch{},
		sales:         map[int64]domain.Sale{},
		saleLines:     map[int64][]domain.SaleLine{},
		purchases:     map[int64]domain.PurchaseInvoice{},
		purchaseLines: map[int64][]domain.PurchaseLine{},
		suppliers:     map[int64]domain.Supplier{},
		customers:     map[int64]domain.Customer{},
		users:         map[int64]domain.User{},
	}
}

// NewSeeded returns an initialized store with a small demo catalog.
func NewSeeded() *Store {
	s := New()
	ctx := context.Background()
	_ = s.Init(ctx)

	sup, _ := s.CreateSupplier(ctx, domain.Supplier{Name: "Demo Distributor", CompanyName: "PT Demo Farma"})
	expiry := domain.DateOnly(s.now()).AddDate(1, 0, 0)
	for _, m := range []domain.MedicineDraft{
		{Barcode: "8991001000011", Name: "Paracetamol 500mg", ActiveIngredient: "Paracetamol", BuyPrice: decimal.RequireFromString("0.80"), SellPrice: decimal.RequireFromString("1.50"), Quantity: 120},
		{Barcode: "8991001000028", Name: "Amoxicillin 500mg", ActiveIngredient: "Amoxicillin", BuyPrice: decimal.RequireFromString("2.10"), SellPrice: decimal.RequireFromString("3.75"), Quantity: 60},
		{Barcode: "8991001000035", Name: "Cetirizine 10mg", ActiveIngredient: "Cetirizine", BuyPrice: decimal.RequireFromString("1.20"), SellPrice: decimal.RequireFromString("2.25"), Quantity: 8},
	} {
		m.ExpiryDate = expiry
		m.SupplierID = &sup.ID
		m.MinStockAlert = 10
		_, _ = s.CreateMedicine(ctx, m)
	}
	return s
}

func (s *Store) nextID(table string) int64 {
	s.lastID[table]++
	return s.lastID[table]
}

func (s *Store) available() error {
	if s.closed {
		return store.ConnectionError(errClosed)
	}
	return nil
}

func (s *Store) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return err
	}
	if _, ok := s.userByName(domain.DefaultAdminUsername); ok {
		return nil
	}
	id := s.nextID("users")
	s.users[id] = domain.User{
		ID:           id,
		Username:     domain.DefaultAdminUsername,
		PasswordHash: auth.HashPassword(auth.DefaultAdminPassword),
		Role:         domain.RoleAdmin,
		CreatedAt:    s.now().UTC().Truncate(time.Second),
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) CreateMedicine(_ context.Context, draft domain.MedicineDraft) (*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	if draft.Quantity < 0 {
		return nil, store.ErrValidation
	}
	if draft.Barcode != "" && s.barcodeTaken(draft.Barcode, 0) {
		return nil, store.ErrDuplicateBarcode
	}
	if draft.SupplierID != nil {
		if _, ok := s.suppliers[*draft.SupplierID]; !ok {
			return nil, store.ErrNotFound
		}
	}

	med := domain.Medicine{
		ID:               s.nextID("medicines"),
		Barcode:          draft.Barcode,
		Name:             draft.Name,
		ActiveIngredient: draft.ActiveIngredient,
		Description:      draft.Description,
		BuyPrice:         draft.BuyPrice,
		SellPrice:        draft.SellPrice,
		Quantity:         draft.Quantity,
		ExpiryDate:       domain.DateOnly(draft.ExpiryDate),
		SupplierID:       cloneID(draft.SupplierID),
		MinStockAlert:    draft.MinStockAlert,
	}
	batch := domain.Batch{
		ID:          s.nextID("batches"),
		MedicineID:  med.ID,
		BatchNumber: domain.OpeningStockLabel,
		ExpiryDate:  med.ExpiryDate,
		BuyPrice:    draft.BuyPrice,
		SellPrice:   draft.SellPrice,
		Quantity:    draft.Quantity,
		CreatedAt:   s.now().UTC().Truncate(time.Second),
	}
	s.medicines[med.ID] = med
	s.batches[batch.ID] = batch
	return cloneMedicine(med), nil
}

func (s *Store) GetMedicine(_ context.Context, id int64) (*domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	med, ok := s.medicines[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneMedicine(med), nil
}

func (s *Store) ListMedicines(_ context.Context) ([]domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	return s.filterMedicines(func(domain.Medicine) bool { return true }), nil
}

func (s *Store) SearchMedicines(_ context.Context, term string) ([]domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	return s.filterMedicines(func(m domain.Medicine) bool {
		return matches(term, m.Name, m.Barcode, m.ActiveIngredient)
	}), nil
}

func (s *Store) FindSellableMedicine(_ context.Context, term string) (*domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, store.ErrNotFound
	}

	candidates := s.filterMedicines(func(m domain.Medicine) bool {
		return m.Quantity > 0 && (m.Barcode == term || matches(term, m.Name))
	})
	if len(candidates) == 0 {
		return nil, store.ErrNotFound
	}
	slices.SortFunc(candidates, func(a, b domain.Medicine) int {
		aExact, bExact := a.Barcode == term, b.Barcode == term
		if aExact != bExact {
			if aExact {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return cloneMedicine(candidates[0]), nil
}

func (s *Store) UpdateMedicine(_ context.Context, update domain.MedicineUpdate) (*domain.Medicine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	med, ok := s.medicines[update.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if update.SupplierID != nil {
		if _, ok := s.suppliers[*update.SupplierID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	if update.Barcode != "" && s.barcodeTaken(update.Barcode, update.ID) {
		return nil, store.ErrDuplicateBarcode
	}

	med.Barcode = update.Barcode
	med.Name = update.Name
	med.ActiveIngredient = update.ActiveIngredient
	med.Description = update.Description
	med.BuyPrice = update.BuyPrice
	med.SellPrice = update.SellPrice
	med.SupplierID = cloneID(update.SupplierID)
	med.MinStockAlert = update.MinStockAlert
	s.medicines[med.ID] = med
	return cloneMedicine(med), nil
}

func (s *Store) DeleteMedicine(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return err
	}
	if _, ok := s.medicines[id]; !ok {
		return store.ErrNotFound
	}
	for _, lines := range s.saleLines {
		for _, l := range lines {
			if l.MedicineID == id {
				return store.ErrReferentialConflict
			}
		}
	}
	for _, lines := range s.purchaseLines {
		for _, l := range lines {
			if l.MedicineID == id {
				return store.ErrReferentialConflict
			}
		}
	}

	for batchID, b := range s.batches {
		if b.MedicineID == id {
			delete(s.batches, batchID)
		}
	}
	delete(s.medicines, id)
	return nil
}

func (s *Store) ClearMedicineStock(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return err
	}
	med, ok := s.medicines[id]
	if !ok {
		return store.ErrNotFound
	}
	for batchID, b := range s.batches {
		if b.MedicineID == id {
			b.Quantity = 0
			s.batches[batchID] = b
		}
	}
	med.Quantity = 0
	s.medicines[id] = med
	return nil
}

func (s *Store) ListBatches(_ context.Context, medicineID int64) ([]domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	if _, ok := s.medicines[medicineID]; !ok {
		return nil, store.ErrNotFound
	}
	return s.batchesOf(medicineID, nil), nil
}

// CreateSale allocates every item against a staged copy of the batches and
// commits only after all items are covered.
func (s *Store) CreateSale(_ context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	if len(draft.Items) == 0 {
		return nil, store.ErrValidation
	}
	if draft.CustomerID != nil {
		if _, ok := s.customers[*draft.CustomerID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	if draft.UserID > 0 {
		if _, ok := s.users[draft.UserID]; !ok {
			return nil, fmt.Errorf("user %d: %w", draft.UserID, store.ErrNotFound)
		}
	}

	staged := map[int64]domain.Batch{}
	sold := map[int64]int{}
	total := decimal.Zero
	lines := make([]domain.SaleLine, 0, len(draft.Items))
	for _, item := range draft.Items {
		med, ok := s.medicines[item.MedicineID]
		if !ok {
			return nil, store.ErrNotFound
		}
		batches := s.batchesOf(item.MedicineID, staged)
		allocations, err := ledger.Allocate(item.MedicineID, batches, item.Quantity, item.UnitPrice)
		if err != nil {
			return nil, err
		}
		ledger.Apply(batches, allocations)
		for _, b := range batches {
			staged[b.ID] = b
		}
		total = total.Add(ledger.Total(allocations))
		for _, a := range allocations {
			lines = append(lines, domain.SaleLine{
				MedicineID:   item.MedicineID,
				MedicineName: med.Name,
				BatchID:      a.BatchID,
				Quantity:     a.Quantity,
				UnitPrice:    a.UnitPrice,
				LineTotal:    a.LineTotal,
			})
		}
		sold[item.MedicineID] += item.Quantity
	}

	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	sale := domain.Sale{
		ID:         s.nextID("sales"),
		UserID:     draft.UserID,
		CustomerID: cloneID(draft.CustomerID),
		DoctorName: draft.DoctorName,
		Total:      total,
		CreatedAt:  createdAt.UTC().Truncate(time.Second),
	}
	for i := range lines {
		lines[i].ID = s.nextID("sale_items")
		lines[i].SaleID = sale.ID
	}

	for id, b := range staged {
		s.batches[id] = b
	}
	for id, qty := range sold {
		med := s.medicines[id]
		med.Quantity -= qty
		s.medicines[id] = med
	}
	s.sales[sale.ID] = sale
	s.saleLines[sale.ID] = lines

	out := sale
	out.Lines = slices.Clone(lines)
	return &out, nil
}

func (s *Store) GetSale(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := s.decorateSale(sale)
	out.Lines = make([]domain.SaleLine, 0, len(s.saleLines[id]))
	for _, l := range s.saleLines[id] {
		l.MedicineName = s.medicines[l.MedicineID].Name
		out.Lines = append(out.Lines, l)
	}
	return &out, nil
}

func (s *Store) ListSales(_ context.Context, window domain.DateRange) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	out := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if window.Contains(sale.CreatedAt) {
			out = append(out, s.decorateSale(sale))
		}
	}
	slices.SortFunc(out, func(a, b domain.Sale) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) decorateSale(sale domain.Sale) domain.Sale {
	if u, ok := s.users[sale.UserID]; ok {
		sale.Username = u.Username
	}
	if sale.CustomerID != nil {
		sale.CustomerName = s.customers[*sale.CustomerID].Name
	}
	sale.CustomerID = cloneID(sale.CustomerID)
	return sale
}

func (s *Store) CreatePurchase(_ context.Context, draft domain.PurchaseDraft) (*domain.PurchaseInvoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	if len(draft.Items) == 0 {
		return nil, store.ErrValidation
	}
	supplier, ok := s.suppliers[draft.SupplierID]
	if !ok {
		return nil, store.ErrNotFound
	}
	total := decimal.Zero
	for _, item := range draft.Items {
		if item.Quantity < 1 {
			return nil, store.ErrValidation
		}
		if _, ok := s.medicines[item.MedicineID]; !ok {
			return nil, store.ErrNotFound
		}
		total = total.Add(item.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	invoice := domain.PurchaseInvoice{
		ID:            s.nextID("purchase_invoices"),
		SupplierID:    supplier.ID,
		SupplierName:  supplier.Name,
		InvoiceNumber: draft.InvoiceNumber,
		InvoiceDate:   domain.DateOnly(draft.InvoiceDate),
		Total:         total,
		Notes:         draft.Notes,
		CreatedAt:     createdAt.UTC().Truncate(time.Second),
	}

	lines := make([]domain.PurchaseLine, 0, len(draft.Items))
	for i, item := range draft.Items {
		med := s.medicines[item.MedicineID]
		expiry := item.ExpiryDate
		if expiry.IsZero() {
			expiry = draft.InvoiceDate
		}
		sellPrice := med.SellPrice
		if item.SellPrice != nil {
			sellPrice = *item.SellPrice
		}

		batch := domain.Batch{
			ID:          s.nextID("batches"),
			MedicineID:  med.ID,
			BatchNumber: ledger.BatchLabel(draft.InvoiceNumber, i),
			ExpiryDate:  domain.DateOnly(expiry),
			BuyPrice:    item.UnitCost,
			SellPrice:   sellPrice,
			Quantity:    item.Quantity,
			CreatedAt:   s.now().UTC().Truncate(time.Second),
		}
		s.batches[batch.ID] = batch

		med.Quantity += item.Quantity
		med.BuyPrice = item.UnitCost
		s.medicines[med.ID] = med

		lines = append(lines, domain.PurchaseLine{
			ID:           s.nextID("purchase_items"),
			PurchaseID:   invoice.ID,
			MedicineID:   med.ID,
			MedicineName: med.Name,
			BatchID:      batch.ID,
			Quantity:     item.Quantity,
			UnitCost:     item.UnitCost,
			LineTotal:    item.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}

	supplier.Balance = supplier.Balance.Add(total)
	s.suppliers[supplier.ID] = supplier
	s.purchases[invoice.ID] = invoice
	s.purchaseLines[invoice.ID] = lines

	out := invoice
	out.Lines = slices.Clone(lines)
	return &out, nil
}

func (s *Store) GetPurchase(_ context.Context, id int64) (*domain.PurchaseInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	invoice, ok := s.purchases[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	invoice.SupplierName = s.suppliers[invoice.SupplierID].Name
	invoice.Lines = make([]domain.PurchaseLine, 0, len(s.purchaseLines[id]))
	for _, l := range s.purchaseLines[id] {
		l.MedicineName = s.medicines[l.MedicineID].Name
		invoice.Lines = append(invoice.Lines, l)
	}
	return &invoice, nil
}

func (s *Store) ListPurchases(_ context.Context, window domain.DateRange) ([]domain.PurchaseInvoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.available(); err != nil {
		return nil, err
	}
	out := make([]domain.PurchaseInvoice, 0, len(s.purchases))
	for _, invoice := range s.purchases {
		if window.Contains(invoice.InvoiceDate) {
			invoice.SupplierName = s.suppliers[invoice.SupplierID].Name
			out = append(out, invoice)
		}
	}
	slices.SortFunc(out, func(a, b domain.PurchaseInvoice) int {
		if c := b.InvoiceDate.Compare(a.InvoiceDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) barcodeTaken(barcode string, exceptID int64) bool {
	for _, m := range s.medicines {
		if m.ID != exceptID && m.Barcode == barcode {
			return true
		}
	}
	return false
}

// filterMedicines returns matching medicines newest first.
func (s *Store) filterMedicines(keep func(domain.Medicine) bool) []domain.Medicine {
	out := make([]domain.Medicine, 0, len(s.medicines))
	for _, m := range s.medicines {
		if keep(m) {
			m.SupplierID = cloneID(m.SupplierID)
			out = append(out, m)
		}
	}
	slices.SortFunc(out, func(a, b domain.Medicine) int {
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

// batchesOf lists a medicine's batches in fulfillment order, reading staged
// copies in preference to committed ones.
func (s *Store) batchesOf(medicineID int64, staged map[int64]domain.Batch) []domain.Batch {
	out := make([]domain.Batch, 0)
	for id, b := range s.batches {
		if b.MedicineID != medicineID {
			continue
		}
		if pending, ok := staged[id]; ok {
			b = pending
		}
		out = append(out, b)
	}
	slices.SortFunc(out, ledger.CompareForFulfillment)
	return out
}

func matches(term string, fields ...string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

func cloneID(id *int64) *int64 {
	if id == nil || *id == 0 {
		return nil
	}
	v := *id
	return &v
}

func cloneMedicine(m domain.Medicine) *domain.Medicine {
	m.SupplierID = cloneID(m.SupplierID)
	return &m
}
