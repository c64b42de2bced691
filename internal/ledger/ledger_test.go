package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/store"
)

func day(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAllocateTakesSoonestExpiryFirst(t *testing.T) {
	batches := []domain.Batch{
		{ID: 2, MedicineID: 7, ExpiryDate: day("2025-06-01"), Quantity: 10},
		{ID: 1, MedicineID: 7, ExpiryDate: day("2025-01-01"), Quantity: 5},
	}

	allocations, err := Allocate(7, batches, 8, decimal.RequireFromString("2.50"))
	require.NoError(t, err)
	require.Len(t, allocations, 2)

	assert.Equal(t, int64(1), allocations[0].BatchID)
	assert.Equal(t, 5, allocations[0].Quantity)
	assert.True(t, allocations[0].LineTotal.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, int64(2), allocations[1].BatchID)
	assert.Equal(t, 3, allocations[1].Quantity)
	assert.True(t, allocations[1].LineTotal.Equal(decimal.RequireFromString("7.50")))
	assert.True(t, Total(allocations).Equal(decimal.NewFromInt(20)))

	// input is untouched until Apply
	assert.Equal(t, 10, batches[0].Quantity)
	Apply(batches, allocations)
	assert.Equal(t, 7, batches[0].Quantity)
	assert.Equal(t, 0, batches[1].Quantity)
}

func TestAllocateBreaksExpiryTiesByLowerID(t *testing.T) {
	batches := []domain.Batch{
		{ID: 9, MedicineID: 1, ExpiryDate: day("2026-03-01"), Quantity: 4},
		{ID: 3, MedicineID: 1, ExpiryDate: day("2026-03-01"), Quantity: 4},
	}

	allocations, err := Allocate(1, batches, 5, decimal.NewFromInt(1))
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	assert.Equal(t, int64(3), allocations[0].BatchID)
	assert.Equal(t, 4, allocations[0].Quantity)
	assert.Equal(t, int64(9), allocations[1].BatchID)
	assert.Equal(t, 1, allocations[1].Quantity)
}

func TestAllocateSkipsExhaustedAndForeignBatches(t *testing.T) {
	batches := []domain.Batch{
		{ID: 1, MedicineID: 1, ExpiryDate: day("2025-01-01"), Quantity: 0},
		{ID: 2, MedicineID: 2, ExpiryDate: day("2025-02-01"), Quantity: 50},
		{ID: 3, MedicineID: 1, ExpiryDate: day("2025-03-01"), Quantity: 6},
	}

	allocations, err := Allocate(1, batches, 6, decimal.NewFromInt(3))
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	assert.Equal(t, int64(3), allocations[0].BatchID)
}

func TestAllocateInsufficientStock(t *testing.T) {
	batches := []domain.Batch{
		{ID: 1, MedicineID: 4, ExpiryDate: day("2025-01-01"), Quantity: 5},
		{ID: 2, MedicineID: 4, ExpiryDate: day("2025-06-01"), Quantity: 10},
	}

	allocations, err := Allocate(4, batches, 20, decimal.NewFromInt(1))
	require.Error(t, err)
	assert.Nil(t, allocations)
	assert.True(t, errors.Is(err, store.ErrInsufficientStock))

	var stockErr *store.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(4), stockErr.MedicineID)
	assert.Equal(t, 20, stockErr.Requested)
	assert.Equal(t, 15, stockErr.Available)
}

func TestAllocateRejectsNonPositiveQuantity(t *testing.T) {
	_, err := Allocate(1, nil, 0, decimal.Zero)
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestReconcile(t *testing.T) {
	medicines := []domain.Medicine{
		{ID: 2, Name: "Ibuprofen", Quantity: 3},
		{ID: 1, Name: "Paracetamol", Quantity: 15},
		{ID: 3, Name: "Empty", Quantity: 0},
	}
	batches := []domain.Batch{
		{ID: 1, MedicineID: 1, Quantity: 5},
		{ID: 2, MedicineID: 1, Quantity: 10},
		{ID: 3, MedicineID: 2, Quantity: 4},
	}

	out := Reconcile(medicines, batches)
	require.Len(t, out, 1)
	assert.Equal(t, domain.StockDiscrepancy{MedicineID: 2, Name: "Ibuprofen", Aggregate: 3, BatchSum: 4}, out[0])

	batches[2].Quantity = 3
	assert.Empty(t, Reconcile(medicines, batches))
}

func TestBatchLabel(t *testing.T) {
	assert.Equal(t, "INV-A17-01", BatchLabel("A17", 0))
	assert.Equal(t, "INV-A17-12", BatchLabel("A17", 11))
}
