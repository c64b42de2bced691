package postgres

import (
	"context"
	"errors"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pharmapos/backend/internal/domain"
	"pharmapos/backend/internal/store"
	"pharmapos/backend/internal/store/sqlstore"
)

var medicineCols = []string{
	"id", "barcode", "name", "active_ingredient", "description", "buy_price", "sell_price",
	"quantity", "expiry_date", "supplier_id", "min_stock_alert",
}

var batchCols = []string{
	"id", "medicine_id", "batch_number", "expiry_date", "buy_price", "sell_price", "quantity", "created_at",
}

func newMockStore(t *testing.T) (*sqlstore.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlstore.New(sqlx.NewDb(db, "pgx"), Dialect{}, zap.NewNop()), mock
}

func TestCreateSaleLocksRowsAndRollsBackWhenShort(t *testing.T) {
	s, mock := newMockStore(t)
	expiry := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO sales`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(41)))
	mock.ExpectQuery(`FROM medicines m WHERE m.id = \$1 FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(medicineCols).
			AddRow(int64(7), "899", "Ibuprofen", "", "", "1.00", "2.50", 15, expiry, nil, 10))
	mock.ExpectQuery(`FROM batches b\s+WHERE b.medicine_id = \$1 AND b.quantity > 0\s+ORDER BY b.expiry_date, b.id FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(batchCols).
			AddRow(int64(1), int64(7), "OPENING_STOCK", expiry, "1.00", "2.50", 5, expiry).
			AddRow(int64(2), int64(7), "INV-A-01", expiry.AddDate(0, 5, 0), "1.00", "2.50", 10, expiry))
	mock.ExpectRollback()

	_, err := s.CreateSale(context.Background(), domain.SaleDraft{
		Items: []domain.SaleItem{{MedicineID: 7, Quantity: 20, UnitPrice: decimal.RequireFromString("2.50")}},
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	var stockErr *store.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 15, stockErr.Available)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSaleDetectsConcurrentBatchChange(t *testing.T) {
	s, mock := newMockStore(t)
	expiry := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO sales`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(`FROM medicines m WHERE m.id = \$1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(medicineCols).
			AddRow(int64(3), "", "Cetirizine", "", "", "1", "2", 4, expiry, nil, 10))
	mock.ExpectQuery(`FROM batches b`).
		WillReturnRows(sqlmock.NewRows(batchCols).
			AddRow(int64(9), int64(3), "OPENING_STOCK", expiry, "1", "2", 4, expiry))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE batches SET quantity = quantity - $1 WHERE id = $2 AND quantity >= $3`)).
		WithArgs(2, int64(9), 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.CreateSale(context.Background(), domain.SaleDraft{
		Items: []domain.SaleItem{{MedicineID: 3, Quantity: 2, UnitPrice: decimal.NewFromInt(2)}},
	})
	require.ErrorIs(t, err, store.ErrInsufficientStock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMedicineMapsUniqueViolation(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO medicines`)).
		WillReturnError(&pgconn.PgError{Code: codeUniqueViolation, Message: "duplicate key value"})
	mock.ExpectRollback()

	_, err := s.CreateMedicine(context.Background(), domain.MedicineDraft{
		Barcode:    "899",
		Name:       "Amoxicillin",
		Quantity:   10,
		ExpiryDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, store.ErrDuplicateBarcode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReadConnectionFailureIsClassified(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM medicines m ORDER BY m.id DESC`).
		WillReturnError(&net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")})

	_, err := s.ListMedicines(context.Background())
	require.ErrorIs(t, err, store.ErrConnection)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestForeignKeyViolationBecomesReferentialConflict(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM customers WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM sales WHERE customer_id = $1`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM customers WHERE id = $1`)).
		WillReturnError(&pgconn.PgError{Code: codeForeignKeyViolation})
	mock.ExpectRollback()

	err := s.DeleteCustomer(context.Background(), 5)
	require.ErrorIs(t, err, store.ErrReferentialConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDialect(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, " FOR UPDATE", d.LockClause())
	assert.True(t, d.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, d.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, d.IsConnectionError(&pgconn.PgError{Code: "08006"}))
	assert.True(t, d.IsConnectionError(&pgconn.PgError{Code: "57P01"}))
	assert.False(t, d.IsConnectionError(errors.New("syntax error")))
}
