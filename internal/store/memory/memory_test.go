package memory

import (
	"context"
	"testing"

	"pharmapos/backend/internal/store"
	"pharmapos/backend/internal/store/storetest"
)

func TestRepositoryBehavior(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Repository {
		s := New()
		if err := s.Init(context.Background()); err != nil {
			t.Fatalf("init memory store: %v", err)
		}
		return s
	})
}

func TestNewSeededHasConsistentCatalog(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	meds, err := s.ListMedicines(ctx)
	if err != nil {
		t.Fatalf("list medicines: %v", err)
	}
	if len(meds) != 3 {
		t.Fatalf("expected 3 demo medicines, got %d", len(meds))
	}
	discrepancies, err := s.StockDiscrepancies(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(discrepancies) != 0 {
		t.Fatalf("expected consistent seed data, got %+v", discrepancies)
	}
	if _, err := s.GetUserByUsername(ctx, "admin"); err != nil {
		t.Fatalf("expected seeded admin: %v", err)
	}
}
