// Package ledger holds the batch allocation rules shared by every store.
//
// Stock for a medicine lives in expiry-dated batches. A sale consumes the
// soonest-expiring batch first; batches that share an expiry date are
// consumed in ascending id order, which is their insertion order.
package ledger

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/store"
)

// CompareForFulfillment orders batches by expiry date, then by id.
func CompareForFulfillment(a domain.Batch, b domain.Batch) int {
	if c := a.ExpiryDate.Compare(b.ExpiryDate); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Allocate splits requested units of a medicine across batches in fulfillment
// order. The input slice is not modified. When the live batches cannot cover
// the request an *store.InsufficientStockError is returned and no allocation
// is produced.
func Allocate(medicineID int64, batches []domain.Batch, requested int, unitPrice decimal.Decimal) ([]domain.Allocation, error) {
	if requested < 1 {
		return nil, store.ErrValidation
	}

	live := make([]domain.Batch, 0, len(batches))
	available := 0
	for _, b := range batches {
		if b.MedicineID != medicineID || b.Quantity <= 0 {
			continue
		}
		live = append(live, b)
		available += b.Quantity
	}
	if available < requested {
		return nil, &store.InsufficientStockError{
			MedicineID: medicineID,
			Requested:  requested,
			Available:  available,
		}
	}
	slices.SortFunc(live, CompareForFulfillment)

	allocations := make([]domain.Allocation, 0, 2)
	remaining := requested
	for _, b := range live {
		if remaining == 0 {
			break
		}
		take := min(remaining, b.Quantity)
		allocations = append(allocations, domain.Allocation{
			BatchID:   b.ID,
			Quantity:  take,
			UnitPrice: unitPrice,
			LineTotal: unitPrice.Mul(decimal.NewFromInt(int64(take))),
		})
		remaining -= take
	}
	return allocations, nil
}

// Apply subtracts allocations from the matching batches in place.
func Apply(batches []domain.Batch, allocations []domain.Allocation) {
	taken := make(map[int64]int, len(allocations))
	for _, a := range allocations {
		taken[a.BatchID] += a.Quantity
	}
	for i := range batches {
		if qty, ok := taken[batches[i].ID]; ok {
			batches[i].Quantity -= qty
		}
	}
}

// Total sums the line totals of allocations.
func Total(allocations []domain.Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.LineTotal)
	}
	return total
}

// BatchLabel names the batch created by the index-th line of a purchase invoice.
func BatchLabel(invoiceNumber string, index int) string {
	return fmt.Sprintf("INV-%s-%02d", invoiceNumber, index+1)
}

// Reconcile recomputes batch sums per medicine and reports every medicine
// whose aggregate quantity differs. The result is ordered by medicine id.
func Reconcile(medicines []domain.Medicine, batches []domain.Batch) []domain.StockDiscrepancy {
	sums := make(map[int64]int, len(medicines))
	for _, b := range batches {
		sums[b.MedicineID] += b.Quantity
	}

	out := make([]domain.StockDiscrepancy, 0)
	for _, m := range medicines {
		if sum := sums[m.ID]; sum != m.Quantity {
			out = append(out, domain.StockDiscrepancy{
				MedicineID: m.ID,
				Name:       m.Name,
				Aggregate:  m.Quantity,
				BatchSum:   sum,
			})
		}
	}
	slices.SortFunc(out, func(a, b domain.StockDiscrepancy) int {
		return cmp.Compare(a.MedicineID, b.MedicineID)
	})
	return out
}
