package postgres

import (
	"context"
	"os"
	"testing"

	"go.uber.org/zap"

	"pharmapos/backend/internal/store"
	"pharmapos/backend/internal/store/storetest"
)

func TestRepositoryBehaviorOnPostgres(t *testing.T) {
	databaseURL := os.Getenv("PHARMAPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set PHARMAPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	storetest.Run(t, func(t *testing.T) store.Repository {
		ctx := context.Background()
		s, err := New(ctx, databaseURL, zap.NewNop())
		if err != nil {
			t.Fatalf("new store: %v", err)
		}
		if err := s.Init(ctx); err != nil {
			t.Fatalf("init store: %v", err)
		}
		if _, err := s.DB().ExecContext(ctx, `
			TRUNCATE sale_items, purchase_items, sales, purchase_invoices, batches, medicines,
				customers, suppliers, users RESTART IDENTITY CASCADE
		`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		if err := s.Init(ctx); err != nil {
			t.Fatalf("reseed admin: %v", err)
		}
		return s
	})
}
