// Package storetest is a behavioral suite every store.Repository backend
// runs from its own tests.
package storetest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapos/backend/internal/auth"
	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/store"
)

// Factory returns an initialized, empty repository. The suite closes it.
type Factory func(t *testing.T) store.Repository

var seq atomic.Int64

// Run executes every scenario against a fresh repository from newRepo.
func Run(t *testing.T, newRepo Factory) {
	scenarios := []struct {
		name string
		fn   func(t *testing.T, repo store.Repository)
	}{
		{"SeedsDefaultAdmin", testSeedsDefaultAdmin},
		{"CreateMedicineAddsOpeningBatch", testCreateMedicineAddsOpeningBatch},
		{"DuplicateBarcodeCreatesNothing", testDuplicateBarcodeCreatesNothing},
		{"ListMedicinesIsStable", testListMedicinesIsStable},
		{"SaleConsumesSoonestExpiryFirst", testSaleConsumesSoonestExpiryFirst},
		{"SaleBreaksExpiryTiesByBatchID", testSaleBreaksExpiryTiesByBatchID},
		{"InsufficientStockRollsBackSale", testInsufficientStockRollsBackSale},
		{"UnknownMedicineRollsBackSale", testUnknownMedicineRollsBackSale},
		{"RepeatedMedicineInOneSale", testRepeatedMedicineInOneSale},
		{"SaleByDeletedUser", testSaleByDeletedUser},
		{"PurchaseCreatesBatchesAndRaisesBalance", testPurchaseCreatesBatches},
		{"PurchaseIsAtomic", testPurchaseIsAtomic},
		{"ClearStockZeroesBatches", testClearStockZeroesBatches},
		{"DeleteMedicine", testDeleteMedicine},
		{"UpdateMedicineKeepsQuantity", testUpdateMedicineKeepsQuantity},
		{"LookupAndSearch", testLookupAndSearch},
		{"Suppliers", testSuppliers},
		{"Customers", testCustomers},
		{"Users", testUsers},
		{"Reports", testReports},
		{"ClosedStoreReportsConnectionFailure", testClosedStore},
	}
	for _, sc := range scenarios {
		t.Run(sc.name, func(t *testing.T) {
			repo := newRepo(t)
			t.Cleanup(func() { _ = repo.Close() })
			sc.fn(t, repo)
		})
	}
}

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func barcode() string {
	return fmt.Sprintf("899%09d", seq.Add(1))
}

func createMedicine(t *testing.T, repo store.Repository, name string, qty int, expiry string) *domain.Medicine {
	t.Helper()
	med, err := repo.CreateMedicine(context.Background(), domain.MedicineDraft{
		Barcode:       barcode(),
		Name:          name,
		BuyPrice:      money("1.00"),
		SellPrice:     money("2.50"),
		Quantity:      qty,
		ExpiryDate:    day(expiry),
		MinStockAlert: 10,
	})
	require.NoError(t, err)
	return med
}

func createSupplier(t *testing.T, repo store.Repository, name string) *domain.Supplier {
	t.Helper()
	sup, err := repo.CreateSupplier(context.Background(), domain.Supplier{Name: name, CompanyName: name + " Ltd"})
	require.NoError(t, err)
	return sup
}

func purchase(t *testing.T, repo store.Repository, supplierID int64, invoice string, items ...domain.PurchaseItem) *domain.PurchaseInvoice {
	t.Helper()
	inv, err := repo.CreatePurchase(context.Background(), domain.PurchaseDraft{
		SupplierID:    supplierID,
		InvoiceNumber: invoice,
		InvoiceDate:   day("2024-12-01"),
		Items:         items,
	})
	require.NoError(t, err)
	return inv
}

func sell(repo store.Repository, items ...domain.SaleItem) (*domain.Sale, error) {
	return repo.CreateSale(context.Background(), domain.SaleDraft{Items: items})
}

func quantities(t *testing.T, repo store.Repository, medicineID int64) []int {
	t.Helper()
	batches, err := repo.ListBatches(context.Background(), medicineID)
	require.NoError(t, err)
	out := make([]int, 0, len(batches))
	for _, b := range batches {
		out = append(out, b.Quantity)
	}
	return out
}

func requireConsistent(t *testing.T, repo store.Repository) {
	t.Helper()
	discrepancies, err := repo.StockDiscrepancies(context.Background())
	require.NoError(t, err)
	require.Empty(t, discrepancies)
}

func aggregate(t *testing.T, repo store.Repository, id int64) int {
	t.Helper()
	med, err := repo.GetMedicine(context.Background(), id)
	require.NoError(t, err)
	return med.Quantity
}

func testSeedsDefaultAdmin(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	admin, err := repo.GetUserByUsername(ctx, domain.DefaultAdminUsername)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.True(t, auth.Verify(admin.PasswordHash, auth.HashPassword("123")))
	assert.False(t, auth.Verify(admin.PasswordHash, auth.HashPassword("wrong")))

	// a second Init must not duplicate the account
	require.NoError(t, repo.Init(ctx))
	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func testCreateMedicineAddsOpeningBatch(t *testing.T, repo store.Repository) {
	med := createMedicine(t, repo, "Paracetamol 500mg", 40, "2026-02-01")
	assert.NotZero(t, med.ID)
	assert.Equal(t, 40, med.Quantity)
	assert.True(t, med.ExpiryDate.Equal(day("2026-02-01")))

	batches, err := repo.ListBatches(context.Background(), med.ID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, domain.OpeningStockLabel, batches[0].BatchNumber)
	assert.Equal(t, 40, batches[0].Quantity)
	assert.True(t, batches[0].ExpiryDate.Equal(day("2026-02-01")))
	assert.True(t, batches[0].SellPrice.Equal(money("2.50")))
	requireConsistent(t, repo)
}

func testDuplicateBarcodeCreatesNothing(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	first := createMedicine(t, repo, "Amoxicillin", 10, "2026-01-01")

	_, err := repo.CreateMedicine(ctx, domain.MedicineDraft{
		Barcode:    first.Barcode,
		Name:       "Amoxicillin copy",
		Quantity:   25,
		ExpiryDate: day("2026-05-01"),
	})
	require.ErrorIs(t, err, store.ErrDuplicateBarcode)

	meds, err := repo.ListMedicines(ctx)
	require.NoError(t, err)
	assert.Len(t, meds, 1)
	assert.Equal(t, []int{10}, quantities(t, repo, first.ID))
	requireConsistent(t, repo)
}

func testListMedicinesIsStable(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	older := createMedicine(t, repo, "Cetirizine", 5, "2026-01-01")
	newer := createMedicine(t, repo, "Loratadine", 7, "2026-03-01")

	first, err := repo.ListMedicines(ctx)
	require.NoError(t, err)
	second, err := repo.ListMedicines(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.Len(t, first, 2)
	assert.Equal(t, newer.ID, first[0].ID)
	assert.Equal(t, older.ID, first[1].ID)
}

func testSaleConsumesSoonestExpiryFirst(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	sup := createSupplier(t, repo, "Kimia Farma")
	med := createMedicine(t, repo, "Ibuprofen", 5, "2025-01-01")
	purchase(t, repo, sup.ID, "FIFO-1", domain.PurchaseItem{
		MedicineID: med.ID, Quantity: 10, UnitCost: money("1.20"), ExpiryDate: day("2025-06-01"),
	})
	require.Equal(t, 15, aggregate(t, repo, med.ID))

	sale, err := sell(repo, domain.SaleItem{MedicineID: med.ID, Quantity: 8, UnitPrice: money("2.50")})
	require.NoError(t, err)
	require.Len(t, sale.Lines, 2)
	assert.Equal(t, 5, sale.Lines[0].Quantity)
	assert.Equal(t, 3, sale.Lines[1].Quantity)
	assert.True(t, sale.Lines[0].LineTotal.Equal(money("12.50")))
	assert.True(t, sale.Lines[1].LineTotal.Equal(money("7.50")))
	assert.True(t, sale.Total.Equal(money("20")))

	assert.Equal(t, []int{0, 7}, quantities(t, repo, med.ID))
	assert.Equal(t, 7, aggregate(t, repo, med.ID))
	requireConsistent(t, repo)

	stored, err := repo.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
	assert.Equal(t, sale.Lines[0].BatchID, stored.Lines[0].BatchID)
	assert.Equal(t, "Ibuprofen", stored.Lines[0].MedicineName)
	assert.True(t, stored.Total.Equal(money("20")))
}

func testSaleBreaksExpiryTiesByBatchID(t *testing.T, repo store.Repository) {
	sup := createSupplier(t, repo, "Tie Supplier")
	med := createMedicine(t, repo, "Omeprazole", 0, "2027-01-01")
	inv := purchase(t, repo, sup.ID, "TIE-1",
		domain.PurchaseItem{MedicineID: med.ID, Quantity: 4, UnitCost: money("3"), ExpiryDate: day("2026-03-01")},
		domain.PurchaseItem{MedicineID: med.ID, Quantity: 4, UnitCost: money("3"), ExpiryDate: day("2026-03-01")},
	)
	require.Len(t, inv.Lines, 2)
	lower, higher := inv.Lines[0].BatchID, inv.Lines[1].BatchID
	require.Less(t, lower, higher)

	sale, err := sell(repo, domain.SaleItem{MedicineID: med.ID, Quantity: 5, UnitPrice: money("4")})
	require.NoError(t, err)
	require.Len(t, sale.Lines, 2)
	assert.Equal(t, lower, sale.Lines[0].BatchID)
	assert.Equal(t, 4, sale.Lines[0].Quantity)
	assert.Equal(t, higher, sale.Lines[1].BatchID)
	assert.Equal(t, 1, sale.Lines[1].Quantity)
	requireConsistent(t, repo)
}

func testInsufficientStockRollsBackSale(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	sup := createSupplier(t, repo, "Short Supplier")
	other := createMedicine(t, repo, "Vitamin C", 30, "2026-01-01")
	med := createMedicine(t, repo, "Ibuprofen", 5, "2025-01-01")
	purchase(t, repo, sup.ID, "SHORT-1", domain.PurchaseItem{
		MedicineID: med.ID, Quantity: 10, UnitCost: money("1"), ExpiryDate: day("2025-06-01"),
	})

	_, err := sell(repo,
		domain.SaleItem{MedicineID: other.ID, Quantity: 3, UnitPrice: money("1")},
		domain.SaleItem{MedicineID: med.ID, Quantity: 20, UnitPrice: money("2.50")},
	)
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	assert.Equal(t, []int{5, 10}, quantities(t, repo, med.ID))
	assert.Equal(t, 15, aggregate(t, repo, med.ID))
	assert.Equal(t, 30, aggregate(t, repo, other.ID))
	sales, err := repo.ListSales(ctx, domain.DateRange{})
	require.NoError(t, err)
	assert.Empty(t, sales)
	requireConsistent(t, repo)
}

func testUnknownMedicineRollsBackSale(t *testing.T, repo store.Repository) {
	med := createMedicine(t, repo, "Metformin", 12, "2026-01-01")
	_, err := sell(repo,
		domain.SaleItem{MedicineID: med.ID, Quantity: 2, UnitPrice: money("1")},
		domain.SaleItem{MedicineID: med.ID + 999, Quantity: 1, UnitPrice: money("1")},
	)
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 12, aggregate(t, repo, med.ID))
	requireConsistent(t, repo)
}

func testRepeatedMedicineInOneSale(t *testing.T, repo store.Repository) {
	sup := createSupplier(t, repo, "Repeat Supplier")
	med := createMedicine(t, repo, "Loratadine", 5, "2025-01-01")
	purchase(t, repo, sup.ID, "REP-1", domain.PurchaseItem{
		MedicineID: med.ID, Quantity: 10, UnitCost: money("1"), ExpiryDate: day("2025-06-01"),
	})

	_, err := sell(repo,
		domain.SaleItem{MedicineID: med.ID, Quantity: 10, UnitPrice: money("2")},
		domain.SaleItem{MedicineID: med.ID, Quantity: 6, UnitPrice: money("2")},
	)
	require.ErrorIs(t, err, store.ErrInsufficientStock)
	assert.Equal(t, []int{5, 10}, quantities(t, repo, med.ID))

	sale, err := sell(repo,
		domain.SaleItem{MedicineID: med.ID, Quantity: 4, UnitPrice: money("2")},
		domain.SaleItem{MedicineID: med.ID, Quantity: 3, UnitPrice: money("3")},
	)
	require.NoError(t, err)
	require.Len(t, sale.Lines, 3)
	assert.Equal(t, 4, sale.Lines[0].Quantity)
	assert.Equal(t, sale.Lines[0].BatchID, sale.Lines[1].BatchID)
	assert.Equal(t, 1, sale.Lines[1].Quantity)
	assert.Equal(t, 2, sale.Lines[2].Quantity)
	assert.NotEqual(t, sale.Lines[1].BatchID, sale.Lines[2].BatchID)
	assert.True(t, sale.Total.Equal(money("17")), "got %s", sale.Total)

	assert.Equal(t, []int{0, 8}, quantities(t, repo, med.ID))
	assert.Equal(t, 8, aggregate(t, repo, med.ID))
	requireConsistent(t, repo)
}

func testSaleByDeletedUser(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	med := createMedicine(t, repo, "Salbutamol", 6, "2026-01-01")
	user, err := repo.CreateUser(ctx, domain.User{Username: "bob", PasswordHash: auth.HashPassword("b0b"), Role: domain.RolePharmacist})
	require.NoError(t, err)
	require.NoError(t, repo.DeleteUser(ctx, user.ID))

	_, err = repo.CreateSale(ctx, domain.SaleDraft{
		UserID: user.ID,
		Items:  []domain.SaleItem{{MedicineID: med.ID, Quantity: 2, UnitPrice: money("1")}},
	})
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.NotErrorIs(t, err, store.ErrReferentialConflict)

	assert.Equal(t, 6, aggregate(t, repo, med.ID))
	sales, err := repo.ListSales(ctx, domain.DateRange{})
	require.NoError(t, err)
	assert.Empty(t, sales)
	requireConsistent(t, repo)
}

func testPurchaseCreatesBatches(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	sup := createSupplier(t, repo, "Enseval")
	med := createMedicine(t, repo, "Amlodipine", 2, "2025-09-01")
	override := money("6.75")

	inv, err := repo.CreatePurchase(ctx, domain.PurchaseDraft{
		SupplierID:    sup.ID,
		InvoiceNumber: "A17",
		InvoiceDate:   day("2025-02-10"),
		Notes:         "monthly restock",
		Items: []domain.PurchaseItem{
			{MedicineID: med.ID, Quantity: 10, UnitCost: money("4.00"), ExpiryDate: day("2026-02-01")},
			{MedicineID: med.ID, Quantity: 6, UnitCost: money("4.50"), SellPrice: &override},
		},
	})
	require.NoError(t, err)
	assert.True(t, inv.Total.Equal(money("67")))
	assert.Equal(t, "Enseval", inv.SupplierName)
	require.Len(t, inv.Lines, 2)

	batches, err := repo.ListBatches(ctx, med.ID)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	byID := map[int64]domain.Batch{}
	for _, b := range batches {
		byID[b.ID] = b
	}
	first, second := byID[inv.Lines[0].BatchID], byID[inv.Lines[1].BatchID]
	assert.Equal(t, "INV-A17-01", first.BatchNumber)
	assert.Equal(t, 10, first.Quantity)
	assert.True(t, first.SellPrice.Equal(money("2.50")))
	assert.Equal(t, "INV-A17-02", second.BatchNumber)
	assert.True(t, second.ExpiryDate.Equal(day("2025-02-10")), "missing expiry falls back to invoice date")
	assert.True(t, second.SellPrice.Equal(override))

	updated, err := repo.GetMedicine(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, 18, updated.Quantity)
	assert.True(t, updated.BuyPrice.Equal(money("4.50")), "last line sets reference buy price")

	supplier, err := repo.GetSupplier(ctx, sup.ID)
	require.NoError(t, err)
	assert.True(t, supplier.Balance.Equal(money("67")))

	stored, err := repo.GetPurchase(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "A17", stored.InvoiceNumber)
	assert.True(t, stored.InvoiceDate.Equal(day("2025-02-10")))
	require.Len(t, stored.Lines, 2)
	assert.True(t, stored.Lines[1].LineTotal.Equal(money("27")))
	requireConsistent(t, repo)
}

func testPurchaseIsAtomic(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	sup := createSupplier(t, repo, "Atomic Supplier")
	a := createMedicine(t, repo, "Salbutamol", 3, "2026-01-01")
	b := createMedicine(t, repo, "Prednisone", 4, "2026-01-01")

	_, err := repo.CreatePurchase(ctx, domain.PurchaseDraft{
		SupplierID:    sup.ID,
		InvoiceNumber: "BAD-1",
		InvoiceDate:   day("2025-03-01"),
		Items: []domain.PurchaseItem{
			{MedicineID: a.ID, Quantity: 5, UnitCost: money("1"), ExpiryDate: day("2026-06-01")},
			{MedicineID: b.ID + 999, Quantity: 5, UnitCost: money("1"), ExpiryDate: day("2026-06-01")},
			{MedicineID: b.ID, Quantity: 5, UnitCost: money("1"), ExpiryDate: day("2026-06-01")},
		},
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	assert.Equal(t, []int{3}, quantities(t, repo, a.ID))
	assert.Equal(t, []int{4}, quantities(t, repo, b.ID))
	assert.Equal(t, 3, aggregate(t, repo, a.ID))

	supplier, err := repo.GetSupplier(ctx, sup.ID)
	require.NoError(t, err)
	assert.True(t, supplier.Balance.IsZero())
	invoices, err := repo.ListPurchases(ctx, domain.DateRange{})
	require.NoError(t, err)
	assert.Empty(t, invoices)

	_, err = repo.CreatePurchase(ctx, domain.PurchaseDraft{
		SupplierID:    sup.ID + 999,
		InvoiceNumber: "BAD-2",
		InvoiceDate:   day("2025-03-01"),
		Items:         []domain.PurchaseItem{{MedicineID: a.ID, Quantity: 1, UnitCost: money("1")}},
	})
	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 3, aggregate(t, repo, a.ID))
	requireConsistent(t, repo)
}

func testClearStockZeroesBatches(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	sup := createSupplier(t, repo, "Clear Supplier")
	med := createMedicine(t, repo, "Ranitidine", 6, "2025-01-01")
	purchase(t, repo, sup.ID, "CLR-1", domain.PurchaseItem{
		MedicineID: med.ID, Quantity: 9, UnitCost: money("1"), ExpiryDate: day("2025-08-01"),
	})

	require.NoError(t, repo.ClearMedicineStock(ctx, med.ID))
	assert.Equal(t, []int{0, 0}, quantities(t, repo, med.ID))
	assert.Equal(t, 0, aggregate(t, repo, med.ID))
	requireConsistent(t, repo)

	_, err := sell(repo, domain.SaleItem{MedicineID: med.ID, Quantity: 1, UnitPrice: money("1")})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	require.ErrorIs(t, repo.ClearMedicineStock(ctx, med.ID+999), store.ErrNotFound)
}

func testDeleteMedicine(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	sold := createMedicine(t, repo, "Sold", 5, "2026-01-01")
	unused := createMedicine(t, repo, "Unused", 5, "2026-01-01")
	_, err := sell(repo, domain.SaleItem{MedicineID: sold.ID, Quantity: 1, UnitPrice: money("1")})
	require.NoError(t, err)

	require.ErrorIs(t, repo.DeleteMedicine(ctx, sold.ID), store.ErrReferentialConflict)
	assert.Equal(t, 4, aggregate(t, repo, sold.ID))

	require.NoError(t, repo.DeleteMedicine(ctx, unused.ID))
	_, err = repo.GetMedicine(ctx, unused.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = repo.ListBatches(ctx, unused.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, repo.DeleteMedicine(ctx, unused.ID), store.ErrNotFound)
	requireConsistent(t, repo)
}

func testUpdateMedicineKeepsQuantity(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	sup := createSupplier(t, repo, "Update Supplier")
	med := createMedicine(t, repo, "Losartan", 14, "2026-01-01")
	other := createMedicine(t, repo, "Valsartan", 1, "2026-01-01")

	updated, err := repo.UpdateMedicine(ctx, domain.MedicineUpdate{
		ID:            med.ID,
		Barcode:       med.Barcode,
		Name:          "Losartan 50mg",
		SellPrice:     money("9.90"),
		BuyPrice:      money("5"),
		SupplierID:    &sup.ID,
		MinStockAlert: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, "Losartan 50mg", updated.Name)
	assert.Equal(t, 14, updated.Quantity)
	assert.Equal(t, 20, updated.MinStockAlert)
	require.NotNil(t, updated.SupplierID)
	assert.Equal(t, sup.ID, *updated.SupplierID)

	_, err = repo.UpdateMedicine(ctx, domain.MedicineUpdate{ID: other.ID, Barcode: med.Barcode, Name: "Valsartan"})
	require.ErrorIs(t, err, store.ErrDuplicateBarcode)

	_, err = repo.UpdateMedicine(ctx, domain.MedicineUpdate{ID: med.ID + 999, Name: "Ghost"})
	require.ErrorIs(t, err, store.ErrNotFound)
	requireConsistent(t, repo)
}

func testLookupAndSearch(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	amox := createMedicine(t, repo, "Amoxicillin 500", 10, "2026-01-01")
	createMedicine(t, repo, "Amoxiclav", 0, "2026-01-01")

	found, err := repo.FindSellableMedicine(ctx, amox.Barcode)
	require.NoError(t, err)
	assert.Equal(t, amox.ID, found.ID)

	found, err = repo.FindSellableMedicine(ctx, "amoxi")
	require.NoError(t, err)
	assert.Equal(t, amox.ID, found.ID, "out-of-stock medicines are not sellable")

	_, err = repo.FindSellableMedicine(ctx, "nothing-like-this")
	require.ErrorIs(t, err, store.ErrNotFound)

	results, err := repo.SearchMedicines(ctx, "AMOX")
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = repo.SearchMedicines(ctx, "100%")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func testSuppliers(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	sup, err := repo.CreateSupplier(ctx, domain.Supplier{Name: "Anugrah", Phone: "0811", CompanyName: "PT Anugrah", Balance: money("100")})
	require.NoError(t, err)
	idle := createSupplier(t, repo, "Idle")

	updated, err := repo.UpdateSupplier(ctx, domain.Supplier{ID: sup.ID, Name: "Anugrah Jaya", Phone: "0812", Balance: money("0")})
	require.NoError(t, err)
	assert.Equal(t, "Anugrah Jaya", updated.Name)
	assert.True(t, updated.Balance.Equal(money("100")), "update never touches the balance")

	found, err := repo.SearchSuppliers(ctx, "0812")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, sup.ID, found[0].ID)

	med := createMedicine(t, repo, "Linked", 1, "2026-01-01")
	_, err = repo.UpdateMedicine(ctx, domain.MedicineUpdate{ID: med.ID, Barcode: med.Barcode, Name: med.Name, SupplierID: &sup.ID})
	require.NoError(t, err)

	require.ErrorIs(t, repo.DeleteSupplier(ctx, sup.ID), store.ErrReferentialConflict)
	require.NoError(t, repo.DeleteSupplier(ctx, idle.ID))
	require.ErrorIs(t, repo.DeleteSupplier(ctx, idle.ID), store.ErrNotFound)

	all, err := repo.ListSuppliers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testCustomers(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	cust, err := repo.CreateCustomer(ctx, domain.Customer{Name: "Budi", Phone: "0813", Email: "budi@example.com"})
	require.NoError(t, err)
	walkIn, err := repo.CreateCustomer(ctx, domain.Customer{Name: "Sari"})
	require.NoError(t, err)

	updated, err := repo.UpdateCustomer(ctx, domain.Customer{ID: cust.ID, Name: "Budi S", Phone: "0813", Notes: "allergic to penicillin"})
	require.NoError(t, err)
	assert.Equal(t, "allergic to penicillin", updated.Notes)
	assert.Empty(t, updated.Email)

	found, err := repo.SearchCustomers(ctx, "budi")
	require.NoError(t, err)
	require.Len(t, found, 1)

	med := createMedicine(t, repo, "Cough Syrup", 3, "2026-01-01")
	sale, err := repo.CreateSale(ctx, domain.SaleDraft{
		CustomerID: &cust.ID,
		DoctorName: "dr. Hadi",
		Items:      []domain.SaleItem{{MedicineID: med.ID, Quantity: 1, UnitPrice: money("5")}},
	})
	require.NoError(t, err)
	stored, err := repo.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "Budi S", stored.CustomerName)
	assert.Equal(t, "dr. Hadi", stored.DoctorName)

	missing := cust.ID + 999
	_, err = repo.CreateSale(ctx, domain.SaleDraft{
		CustomerID: &missing,
		Items:      []domain.SaleItem{{MedicineID: med.ID, Quantity: 1, UnitPrice: money("5")}},
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, repo.DeleteCustomer(ctx, cust.ID), store.ErrReferentialConflict)
	require.NoError(t, repo.DeleteCustomer(ctx, walkIn.ID))
	all, err := repo.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testUsers(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	user, err := repo.CreateUser(ctx, domain.User{Username: "apoteker", PasswordHash: auth.HashPassword("s3cret"), Role: domain.RolePharmacist})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)

	_, err = repo.CreateUser(ctx, domain.User{Username: "apoteker", PasswordHash: auth.HashPassword("x")})
	require.ErrorIs(t, err, store.ErrDuplicateUsername)
	_, err = repo.CreateUser(ctx, domain.User{Username: "nopass"})
	require.ErrorIs(t, err, store.ErrValidation)

	require.NoError(t, repo.UpdateUserPassword(ctx, "apoteker", auth.HashPassword("n3w")))
	stored, err := repo.GetUserByUsername(ctx, "apoteker")
	require.NoError(t, err)
	assert.True(t, auth.Verify(stored.PasswordHash, auth.HashPassword("n3w")))
	require.ErrorIs(t, repo.UpdateUserPassword(ctx, "ghost", auth.HashPassword("x")), store.ErrNotFound)

	admin, err := repo.GetUserByUsername(ctx, domain.DefaultAdminUsername)
	require.NoError(t, err)
	require.ErrorIs(t, repo.DeleteUser(ctx, admin.ID), store.ErrProtectedAccount)

	med := createMedicine(t, repo, "Antacid", 5, "2026-01-01")
	_, err = repo.CreateSale(ctx, domain.SaleDraft{
		UserID: user.ID,
		Items:  []domain.SaleItem{{MedicineID: med.ID, Quantity: 1, UnitPrice: money("1")}},
	})
	require.NoError(t, err)
	require.ErrorIs(t, repo.DeleteUser(ctx, user.ID), store.ErrReferentialConflict)

	temp, err := repo.CreateUser(ctx, domain.User{Username: "temp", PasswordHash: auth.HashPassword("t")})
	require.NoError(t, err)
	assert.Equal(t, domain.RolePharmacist, temp.Role)
	require.NoError(t, repo.DeleteUser(ctx, temp.ID))
	require.ErrorIs(t, repo.DeleteUser(ctx, temp.ID), store.ErrNotFound)

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func testReports(t *testing.T, repo store.Repository) {
	ctx := context.Background()
	today := day("2025-03-15")
	sup := createSupplier(t, repo, "Report Supplier")

	low := createMedicine(t, repo, "Low", 3, "2025-04-01")
	plenty := createMedicine(t, repo, "Plenty", 50, "2027-01-01")
	_, err := repo.CreatePurchase(ctx, domain.PurchaseDraft{
		SupplierID:    sup.ID,
		InvoiceNumber: "RPT-1",
		InvoiceDate:   day("2025-03-10"),
		Items: []domain.PurchaseItem{
			{MedicineID: plenty.ID, Quantity: 10, UnitCost: money("2.25"), ExpiryDate: day("2025-05-01")},
		},
	})
	require.NoError(t, err)

	_, err = repo.CreateSale(ctx, domain.SaleDraft{
		CreatedAt: today.Add(9 * time.Hour),
		Items:     []domain.SaleItem{{MedicineID: plenty.ID, Quantity: 5, UnitPrice: money("2.50")}},
	})
	require.NoError(t, err)
	_, err = repo.CreateSale(ctx, domain.SaleDraft{
		CreatedAt: today.AddDate(0, 0, -1).Add(20 * time.Hour),
		Items:     []domain.SaleItem{{MedicineID: plenty.ID, Quantity: 2, UnitPrice: money("2.50")}},
	})
	require.NoError(t, err)

	stats, err := repo.DashboardStats(ctx, today, today.AddDate(0, 0, 90))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalMedicines)
	assert.Equal(t, 1, stats.LowStock)
	assert.True(t, stats.TodaySales.Equal(money("12.50")), "got %s", stats.TodaySales)
	assert.Equal(t, 1, stats.UsersCount)
	assert.Equal(t, 2, stats.ExpiringSoon)

	lowStock, err := repo.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, lowStock, 1)
	assert.Equal(t, low.ID, lowStock[0].MedicineID)

	expiring, err := repo.ExpiringBatches(ctx, today, today.AddDate(0, 0, 30))
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, low.ID, expiring[0].MedicineID)
	assert.Equal(t, "Low", expiring[0].MedicineName)

	sales, err := repo.ListSales(ctx, domain.DateRange{From: today, To: today.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Len(t, sales, 1)
	all, err := repo.ListSales(ctx, domain.DateRange{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].CreatedAt.After(all[1].CreatedAt), "newest sale first")

	invoices, err := repo.ListPurchases(ctx, domain.DateRange{From: day("2025-03-01"), To: day("2025-04-01")})
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, "Report Supplier", invoices[0].SupplierName)

	summary, err := repo.FinancialSummary(ctx, domain.DateRange{From: day("2025-03-01"), To: day("2025-04-01")})
	require.NoError(t, err)
	assert.True(t, summary.Sales.Equal(money("17.50")), "got %s", summary.Sales)
	assert.True(t, summary.Purchases.Equal(money("22.50")), "got %s", summary.Purchases)
	assert.True(t, summary.Profit.Equal(money("-5")), "got %s", summary.Profit)
	assert.Equal(t, "2025-03-01", summary.From)
	assert.Equal(t, "2025-03-31", summary.To, "the half-open window ends on its last included day")

	requireConsistent(t, repo)
}

func testClosedStore(t *testing.T, repo store.Repository) {
	createMedicine(t, repo, "Before close", 1, "2026-01-01")
	require.NoError(t, repo.Close())

	_, err := repo.ListMedicines(context.Background())
	require.ErrorIs(t, err, store.ErrConnection)
	_, err = repo.CreateMedicine(context.Background(), domain.MedicineDraft{Barcode: barcode(), Name: "After close", ExpiryDate: day("2026-01-01")})
	require.ErrorIs(t, err, store.ErrConnection)
}
