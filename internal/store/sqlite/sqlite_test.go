package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/store"
	"pharmapos/backend/internal/store/storetest"
)

func openTestStore(t *testing.T, path string) store.Repository {
	t.Helper()
	ctx := context.Background()
	s, err := New(ctx, path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx))
	return s
}

func TestRepositoryBehavior(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Repository {
		return openTestStore(t, filepath.Join(t.TempDir(), "pharma_system.db"))
	})
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pharma_system.db")

	first := openTestStore(t, path)
	med, err := first.CreateMedicine(ctx, domain.MedicineDraft{
		Barcode:    "8990000000001",
		Name:       "Paracetamol",
		SellPrice:  decimal.RequireFromString("1.50"),
		Quantity:   12,
		ExpiryDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := openTestStore(t, path)
	t.Cleanup(func() { _ = second.Close() })

	got, err := second.GetMedicine(ctx, med.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, got.Quantity)
	assert.True(t, got.SellPrice.Equal(decimal.RequireFromString("1.50")))

	users, err := second.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1, "reopening must not seed a second admin")
}

func TestNewRejectsEmptyPath(t *testing.T) {
	_, err := New(context.Background(), "", zap.NewNop())
	require.Error(t, err)
}

func TestMissingDirectoryFailsToOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "pharma.db")
	_, err := New(context.Background(), path, zap.NewNop())
	require.Error(t, err)
}

func TestDialectClassifiesNonSQLiteErrors(t *testing.T) {
	var d Dialect
	plain := errors.New("boom")
	assert.False(t, d.IsUniqueViolation(plain))
	assert.False(t, d.IsForeignKeyViolation(plain))
	assert.False(t, d.IsConnectionError(plain))
	assert.Empty(t, d.LockClause())
	assert.Nil(t, d.TxOptions())
}

func TestDSNEscapesURICharacters(t *testing.T) {
	assert.Equal(t, "file:/tmp/a%3fb%23c%25d.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", DSN("/tmp/a?b#c%d.db"))
	assert.Equal(t, "file:pharma_system.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", DSN("pharma_system.db"))
}

func TestOpenPathWithURICharacters(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "shop?#1")
	path := filepath.Join(dir, "pharma%system.db")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	first := openTestStore(t, path)
	_, err := first.CreateMedicine(ctx, domain.MedicineDraft{
		Barcode:    "8990000000777",
		Name:       "Zinc",
		SellPrice:  decimal.RequireFromString("0.75"),
		Quantity:   3,
		ExpiryDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	_, err = os.Stat(path)
	require.NoError(t, err, "database file must be created at the literal path")

	second := openTestStore(t, path)
	t.Cleanup(func() { _ = second.Close() })
	medicines, err := second.ListMedicines(ctx)
	require.NoError(t, err)
	require.Len(t, medicines, 1)
	assert.Equal(t, "Zinc", medicines[0].Name)
}
